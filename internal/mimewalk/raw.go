package mimewalk

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// FromRaw parses a complete RFC 822 message and returns an equivalent part
// tree plus a fetcher serving each part's content. It is used when the
// server's structure description is unusable. Content is already decoded, so
// every part reports an identity encoding and UTF-8 text.
func FromRaw(raw []byte) (Part, PartFetcher, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if env.Root == nil {
		return nil, nil, fmt.Errorf("message has no parts")
	}

	contents := make(map[string][]byte)

	rootPath := "1"
	if strings.HasPrefix(strings.ToLower(env.Root.ContentType), "multipart/") {
		rootPath = ""
	}
	root := convertEnmimePart(env.Root, rootPath, contents)

	fetch := PartFetcherFunc(func(_ context.Context, path string) ([]byte, error) {
		content, ok := contents[path]
		if !ok {
			return nil, fmt.Errorf("no part at %q", path)
		}
		return content, nil
	})

	return root, fetch, nil
}

func convertEnmimePart(p *enmime.Part, path string, contents map[string][]byte) Part {
	mediaType, subtype, _ := strings.Cut(strings.ToLower(p.ContentType), "/")
	if mediaType == "" {
		mediaType, subtype = "text", "plain"
	}

	h := Header{
		Type:              mediaType,
		Subtype:           subtype,
		Params:            map[string]string{},
		Disposition:       strings.ToLower(p.Disposition),
		DispositionParams: map[string]string{},
		Size:              uint32(len(p.Content)),
	}
	if p.FileName != "" {
		h.DispositionParams["filename"] = p.FileName
	}
	if mediaType == "text" {
		h.Params["charset"] = "utf-8"
	}

	var children []Part
	n := 0
	for child := p.FirstChild; child != nil; child = child.NextSibling {
		n++
		children = append(children, convertEnmimePart(child, childPath(path, n), contents))
	}

	if len(children) == 0 {
		contents[path] = p.Content
	}

	return NewPart(h, children)
}
