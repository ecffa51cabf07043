package models

import "time"

// Notification is an in-app notification for an administrator.
// The root of a conversation thread has its own ID (or nothing) as ThreadID;
// every reply in that conversation points at the root's ID.
type Notification struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ReplyID   string    `json:"reply_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// RootID returns the id of the thread this notification belongs to.
func (n *Notification) RootID() string {
	if n.ThreadID != "" {
		return n.ThreadID
	}
	return n.ID
}

// Administrator is a portal principal who receives reply notifications.
type Administrator struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
