package mimewalk

import "strings"

// Part is a node of a message's MIME tree. It is one of *TextPart,
// *MultipartContainer or *BinaryPart.
type Part interface {
	header() *Header
}

// Header carries the descriptor fields shared by every part variant.
// Type and Subtype are lower-cased; parameter keys are lower-cased.
type Header struct {
	Type              string
	Subtype           string
	Params            map[string]string
	Disposition       string
	DispositionParams map[string]string
	Encoding          string
	Size              uint32
}

// TextPart is a leaf whose top-level type is text.
type TextPart struct {
	Header
}

// MultipartContainer groups child parts and has no content of its own.
type MultipartContainer struct {
	Header
	Children []Part
}

// BinaryPart is any other part. Children is set for encapsulated messages
// (message/rfc822), whose inner parts are addressable on the server.
type BinaryPart struct {
	Header
	Children []Part
}

func (p *TextPart) header() *Header           { return &p.Header }
func (p *MultipartContainer) header() *Header { return &p.Header }
func (p *BinaryPart) header() *Header         { return &p.Header }

// HeaderOf returns the descriptor of p.
func HeaderOf(p Part) *Header {
	return p.header()
}

// ChildrenOf returns the sub-parts of p, if any.
func ChildrenOf(p Part) []Part {
	switch v := p.(type) {
	case *MultipartContainer:
		return v.Children
	case *BinaryPart:
		return v.Children
	default:
		return nil
	}
}

// ContentType returns "type/subtype".
func (h *Header) ContentType() string {
	return h.Type + "/" + h.Subtype
}

// Param returns a content-type parameter, case-insensitively.
func (h *Header) Param(name string) string {
	return lookup(h.Params, name)
}

// DispositionParam returns a content-disposition parameter, case-insensitively.
func (h *Header) DispositionParam(name string) string {
	return lookup(h.DispositionParams, name)
}

// IsAttachment reports whether the part is explicitly marked as an attachment.
func (h *Header) IsAttachment() bool {
	return strings.EqualFold(h.Disposition, "attachment")
}

func lookup(params map[string]string, name string) string {
	if v, ok := params[name]; ok {
		return v
	}
	for k, v := range params {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// NewPart builds the right variant for a content type. Type and subtype are
// normalized to lower case. A multipart type always yields a container.
func NewPart(h Header, children []Part) Part {
	h.Type = strings.ToLower(strings.TrimSpace(h.Type))
	h.Subtype = strings.ToLower(strings.TrimSpace(h.Subtype))
	switch h.Type {
	case "multipart":
		return &MultipartContainer{Header: h, Children: children}
	case "text":
		if len(children) > 0 {
			return &BinaryPart{Header: h, Children: children}
		}
		return &TextPart{Header: h}
	default:
		return &BinaryPart{Header: h, Children: children}
	}
}
