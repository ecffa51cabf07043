package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		subject  string
		expected string
	}{
		{subject: "Water Leak Report", expected: "Water Leak Report"},
		{subject: "Re: Water Leak Report", expected: "Water Leak Report"},
		{subject: "RE: re: Water Leak Report", expected: "Water Leak Report"},
		{subject: "Fwd: RE: FW: Water Leak Report", expected: "Water Leak Report"},
		{subject: "Re[2]: Water Leak Report", expected: "Water Leak Report"},
		{subject: "  re :  Water Leak Report  ", expected: "Water Leak Report"},
		{subject: "Regarding: Water Leak Report", expected: "Regarding: Water Leak Report"},
		{subject: "Re:", expected: ""},
		{subject: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSubject(tt.subject))
		})
	}
}

func TestMessageIDs(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected []string
	}{
		{name: "empty", header: "", expected: nil},
		{name: "single", header: "<a@example.gov>", expected: []string{"<a@example.gov>"}},
		{
			name:     "folded list",
			header:   "<a@example.gov>\r\n <b@example.gov>",
			expected: []string{"<a@example.gov>", "<b@example.gov>"},
		},
		{name: "empty brackets skipped", header: "<> <c@example.gov>", expected: []string{"<c@example.gov>"}},
		{name: "unterminated", header: "<a@example.gov> <b@exa", expected: []string{"<a@example.gov>"}},
		{name: "no brackets", header: "a@example.gov", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MessageIDs(tt.header))
		})
	}
}
