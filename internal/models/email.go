package models

import "time"

// Direction tells whether a reply came from a resident or was sent by the office.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// InboundMessage is the envelope of a mailbox message as seen during one polling pass.
// It is never persisted; the mailbox seen flag is the durable "processed" marker.
type InboundMessage struct {
	UID         uint32    `json:"uid"`
	FromAddress string    `json:"from_address"`
	FromName    string    `json:"from_name"`
	Subject     string    `json:"subject"`
	MessageID   string    `json:"message_id"`
	InReplyTo   string    `json:"in_reply_to"`
	References  string    `json:"references"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Reply is one inbound or outbound email message tied to a notification thread.
type Reply struct {
	ID                 string       `json:"id"`
	ThreadID           string       `json:"thread_id,omitempty"`
	Direction          Direction    `json:"direction"`
	FromAddress        string       `json:"from_address"`
	FromName           string       `json:"from_name"`
	Subject            string       `json:"subject"`
	BodyText           string       `json:"body_text"`
	UnsafeBodyHTML     string       `json:"unsafe_body_html"`
	Attachments        []Attachment `json:"attachments"`
	AttachmentsDropped int          `json:"attachments_dropped"`
	IsRead             bool         `json:"is_read"`
	MessageIDHeader    string       `json:"message_id_header,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Attachment describes a stored attachment file. It only exists inside its parent Reply.
type Attachment struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	IsImage   bool   `json:"is_image"`
}

// ReplySummary is the shape of a reply returned to the dashboard poll endpoint.
type ReplySummary struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	FromAddress string       `json:"from_address"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Direction   Direction    `json:"direction"`
	CreatedAt   string       `json:"created_at"`
	Attachments []Attachment `json:"attachments"`
}

const (
	summaryBodyLimit = 200
	summaryTimeFmt   = "Jan 2, 2006 3:04 PM"
)

// Summary builds the dashboard summary of the reply.
func (r *Reply) Summary() ReplySummary {
	sender := r.FromName
	if sender == "" {
		sender = r.FromAddress
	}

	body := []rune(r.BodyText)
	text := r.BodyText
	if len(body) > summaryBodyLimit {
		text = string(body[:summaryBodyLimit]) + "..."
	}

	attachments := r.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}

	return ReplySummary{
		ID:          r.ID,
		Sender:      sender,
		FromAddress: r.FromAddress,
		Subject:     r.Subject,
		Body:        text,
		Direction:   r.Direction,
		CreatedAt:   r.CreatedAt.Format(summaryTimeFmt),
		Attachments: attachments,
	}
}
