package ingest

import (
	"context"
	"strings"
)

// MessageIDIndex looks up stored replies by external message id.
type MessageIDIndex interface {
	ReplyExistsByMessageID(ctx context.Context, messageID string) (bool, error)
}

// Ledger tells whether a message was already ingested. It reads the unique
// message id column of stored replies rather than keeping its own records.
type Ledger struct {
	index MessageIDIndex
}

// NewLedger creates a Ledger.
func NewLedger(index MessageIDIndex) *Ledger {
	return &Ledger{index: index}
}

// Seen reports whether a reply with externalID is stored. Messages without
// an id are never seen, so they are always ingested.
func (l *Ledger) Seen(ctx context.Context, externalID string) (bool, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return false, nil
	}
	return l.index.ReplyExistsByMessageID(ctx, id)
}
