// Package mimewalk turns a message's MIME tree into body text and stored
// attachments.
package mimewalk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/attachment"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

const (
	DefaultMaxDepth = 32
	DefaultMaxParts = 256
)

// PartFetcher returns the raw, still transfer-encoded bytes of the part at a
// dotted path.
type PartFetcher interface {
	FetchPart(ctx context.Context, path string) ([]byte, error)
}

// PartFetcherFunc adapts a function to PartFetcher.
type PartFetcherFunc func(ctx context.Context, path string) ([]byte, error)

// FetchPart calls f.
func (f PartFetcherFunc) FetchPart(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// DecodeError means a part's bytes could not be retrieved. The whole message fails.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to fetch part %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Dropped records an attachment that could not be stored.
type Dropped struct {
	Path     string
	Filename string
	Reason   string
}

// Result is what a walk extracted from one message.
//
// Every visited leaf lands in exactly one bucket:
// Leaves == BodyParts + len(Attachments) + len(Dropped).
type Result struct {
	PlainText   string
	HTMLText    string
	Attachments []models.Attachment
	Dropped     []Dropped
	BodyParts   int
	Leaves      int
	Truncated   bool
}

// Limits bounds a walk. Zero values fall back to the defaults.
type Limits struct {
	MaxDepth int
	MaxParts int
}

// Walker classifies parts and stores attachments through a Sink.
type Walker struct {
	sink   attachment.Sink
	limits Limits
	logger *zap.Logger
}

// NewWalker creates a Walker.
func NewWalker(sink attachment.Sink, limits Limits, logger *zap.Logger) *Walker {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = DefaultMaxDepth
	}
	if limits.MaxParts <= 0 {
		limits.MaxParts = DefaultMaxParts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		sink:   sink,
		limits: limits,
		logger: logger.Named("mimewalk"),
	}
}

type frame struct {
	part  Part
	path  string
	depth int
}

// Walk visits the tree depth-first with children in order, using an explicit
// stack. A multipart root has the empty path and its children are 1..n; a
// single-part root is addressed as 1.
func (w *Walker) Walk(ctx context.Context, fetch PartFetcher, root Part) (*Result, error) {
	result := &Result{Attachments: []models.Attachment{}}
	if root == nil {
		return result, nil
	}

	rootPath := "1"
	if _, ok := root.(*MultipartContainer); ok {
		rootPath = ""
	}

	stack := []frame{{part: root, path: rootPath}}
	visited := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if visited > w.limits.MaxParts {
			result.Truncated = true
			w.logger.Warn("part limit reached, skipping remaining parts",
				zap.Int("max_parts", w.limits.MaxParts))
			break
		}

		if err := w.visit(ctx, fetch, top, result); err != nil {
			return nil, err
		}

		children := ChildrenOf(top.part)
		if len(children) == 0 {
			continue
		}
		if top.depth+1 > w.limits.MaxDepth {
			result.Truncated = true
			w.logger.Warn("depth limit reached, not descending",
				zap.String("path", top.path), zap.Int("max_depth", w.limits.MaxDepth))
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				part:  children[i],
				path:  childPath(top.path, i+1),
				depth: top.depth + 1,
			})
		}
	}

	if result.PlainText == "" && result.HTMLText != "" {
		result.PlainText = strings.TrimSpace(html2text.HTML2Text(result.HTMLText))
	}

	return result, nil
}

func (w *Walker) visit(ctx context.Context, fetch PartFetcher, f frame, result *Result) error {
	if _, ok := f.part.(*MultipartContainer); ok {
		return nil
	}

	h := HeaderOf(f.part)
	result.Leaves++

	// The first plain and the first HTML leaf fill the body. Later text
	// leaves are kept as attachments.
	if slot := bodySlot(h, result); slot != nil {
		raw, err := fetch.FetchPart(ctx, f.path)
		if err != nil {
			return &DecodeError{Path: f.path, Err: err}
		}
		*slot = ToUTF8(Decode(raw, h.Encoding), h.Param("charset"))
		result.BodyParts++
		return nil
	}

	return w.storeAttachment(ctx, fetch, f.path, h, result)
}

// bodySlot returns the body field h fills, or nil when h is not an inline
// text/plain or text/html leaf or that field is already set.
func bodySlot(h *Header, result *Result) *string {
	if h.IsAttachment() || h.Type != "text" {
		return nil
	}
	var slot *string
	switch h.Subtype {
	case "plain":
		slot = &result.PlainText
	case "html":
		slot = &result.HTMLText
	default:
		return nil
	}
	if *slot != "" {
		return nil
	}
	return slot
}

func (w *Walker) storeAttachment(ctx context.Context, fetch PartFetcher, path string, h *Header, result *Result) error {
	filename := Filename(h)

	raw, err := fetch.FetchPart(ctx, path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}

	hint := attachment.Hint{Type: h.Type, Subtype: h.Subtype, IsImage: isImage(h)}
	att, err := w.sink.Store(ctx, Decode(raw, h.Encoding), filename, hint)
	if err != nil {
		w.logger.Warn("attachment dropped",
			zap.String("path", path),
			zap.String("filename", filename),
			zap.Error(err))
		result.Dropped = append(result.Dropped, Dropped{Path: path, Filename: filename, Reason: err.Error()})
		return nil
	}

	result.Attachments = append(result.Attachments, att)
	return nil
}

func childPath(parent string, n int) string {
	if parent == "" {
		return strconv.Itoa(n)
	}
	return parent + "." + strconv.Itoa(n)
}
