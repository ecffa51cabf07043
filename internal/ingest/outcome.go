package ingest

import "github.com/Christianjames01/repo-sub000/internal/models"

// OutcomeKind classifies what a pass did with one message.
type OutcomeKind string

const (
	OutcomeProcessed        OutcomeKind = "processed"
	OutcomeSkippedDuplicate OutcomeKind = "skipped-duplicate"
	OutcomeSkippedSelf      OutcomeKind = "skipped-self"
	OutcomeFailed           OutcomeKind = "failed"
)

// Outcome is the per-message record of a pass.
type Outcome struct {
	UID                uint32      `json:"uid"`
	MessageID          string      `json:"message_id,omitempty"`
	From               string      `json:"from,omitempty"`
	Subject            string      `json:"subject,omitempty"`
	Kind               OutcomeKind `json:"outcome"`
	Reason             string      `json:"reason,omitempty"`
	ReplyID            string      `json:"reply_id,omitempty"`
	ThreadID           string      `json:"thread_id,omitempty"`
	Attachments        int         `json:"attachments,omitempty"`
	AttachmentsDropped int         `json:"attachments_dropped,omitempty"`
	Notifications      int         `json:"notifications,omitempty"`
	Truncated          bool        `json:"truncated,omitempty"`

	reply *models.Reply
}

// Tally counts outcomes by kind.
type Tally struct {
	Processed        int `json:"processed"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	SkippedSelf      int `json:"skipped_self"`
	Failed           int `json:"failed"`
}

// Total is the number of messages handled.
func (t Tally) Total() int {
	return t.Processed + t.SkippedDuplicate + t.SkippedSelf + t.Failed
}

// PassResult summarizes one pass. It is also returned, partially filled,
// when the pass aborts.
type PassResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Tally    Tally     `json:"tally"`
}

func newPassResult() *PassResult {
	return &PassResult{Outcomes: []Outcome{}}
}

func (r *PassResult) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Kind {
	case OutcomeProcessed:
		r.Tally.Processed++
	case OutcomeSkippedDuplicate:
		r.Tally.SkippedDuplicate++
	case OutcomeSkippedSelf:
		r.Tally.SkippedSelf++
	case OutcomeFailed:
		r.Tally.Failed++
	}
}

// Processed is the number of replies stored by the pass.
func (r *PassResult) Processed() int {
	return r.Tally.Processed
}

// Replies returns the replies stored by the pass, in mailbox order. Never nil.
func (r *PassResult) Replies() []*models.Reply {
	replies := []*models.Reply{}
	for _, o := range r.Outcomes {
		if o.reply != nil {
			replies = append(replies, o.reply)
		}
	}
	return replies
}
