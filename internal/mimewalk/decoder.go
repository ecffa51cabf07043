package mimewalk

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"golang.org/x/text/encoding/htmlindex"
)

// Decode reverses a content-transfer-encoding. Identity encodings and
// unknown encodings return raw unchanged, as does a body that fails to decode.
func Decode(raw []byte, encoding string) []byte {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	switch encoding {
	case "", "7bit", "8bit", "binary":
		return raw
	}

	var h message.Header
	h.Set("Content-Transfer-Encoding", encoding)
	entity, err := message.New(h, bytes.NewReader(raw))
	if err != nil {
		return raw
	}

	out, err := io.ReadAll(entity.Body)
	if err != nil {
		return raw
	}
	return out
}

// ToUTF8 converts b from the declared charset. An empty or UTF-8 charset
// passes through; an unknown charset or a failed conversion keeps the
// original bytes.
func ToUTF8(b []byte, charset string) string {
	cs := strings.ToLower(strings.Trim(strings.TrimSpace(charset), `"`))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(b)
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(b)
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) {
		return string(b)
	}
	return string(out)
}
