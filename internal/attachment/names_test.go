package attachment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "keeps safe characters", input: "report-2024_v1.pdf", expected: "report-2024_v1.pdf"},
		{name: "replaces spaces and symbols", input: "noise complaint (1).jpg", expected: "noise_complaint__1_.jpg"},
		{name: "strips directories", input: "../../etc/passwd", expected: "passwd"},
		{name: "strips windows directories", input: `C:\Users\me\photo.png`, expected: "photo.png"},
		{name: "removes leading dots", input: ".htaccess", expected: "htaccess"},
		{name: "replaces non-ascii", input: "Ärger.txt", expected: "_rger.txt"},
		{name: "falls back when empty", input: "", expected: "attachment"},
		{name: "falls back when only dots", input: "...", expected: "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestStoredName(t *testing.T) {
	now := time.Unix(1700000000, 42)
	assert.Equal(t, "1700000000000000042_a_b.txt", StoredName(now, "a b.txt"))
}

func TestResolveMIMEType(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name     string
		data     []byte
		hint     Hint
		expected string
	}{
		{name: "image uses declared subtype", data: png, hint: Hint{Type: "image", Subtype: "gif", IsImage: true}, expected: "image/gif"},
		{name: "jpg normalized to jpeg", data: png, hint: Hint{Type: "text", Subtype: "jpg", IsImage: true}, expected: "image/jpeg"},
		{name: "generic keeps declared type", data: pdf, hint: Hint{Type: "application", Subtype: "msword"}, expected: "application/msword"},
		{name: "octet-stream is sniffed", data: pdf, hint: Hint{Type: "application", Subtype: "octet-stream"}, expected: "application/pdf"},
		{name: "missing type is sniffed", data: png, hint: Hint{}, expected: "image/png"},
		{name: "plain text sniffed without params", data: []byte("hello"), hint: Hint{}, expected: "text/plain"},
		{name: "archive sniffed by signature", data: []byte("7z\xbc\xaf\x27\x1c\x00\x04"), hint: Hint{Type: "application", Subtype: "octet-stream"}, expected: "application/x-7z-compressed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveMIMEType(tt.data, tt.hint))
		})
	}
}
