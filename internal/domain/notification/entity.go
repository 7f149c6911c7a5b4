package notification

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	TypeOrder NotificationType = "order"
	TypeStock NotificationType = "stock"
)

// Notification is one entry in the admin's notification feed. CreatedAt is
// always held in RFC 3339 form regardless of what the server sent.
type Notification struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   string           `json:"created_at"`
	ReferenceID int64            `json:"reference_id"`
}

// Signature is the dedup key for push delivery. Two pushes about the same
// reference within the dedup window collapse into one entry.
func (n *Notification) Signature() string {
	return fmt.Sprintf("%s-%d", n.Type, n.ReferenceID)
}

// Target describes where a click on the notification should navigate.
type Target struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// Target resolves the navigation target for known notification types.
func (n *Notification) Target() (Target, bool) {
	switch n.Type {
	case TypeOrder:
		return Target{Kind: "order", ID: n.ReferenceID}, true
	case TypeStock:
		return Target{Kind: "book", ID: n.ReferenceID}, true
	default:
		return Target{}, false
	}
}

// CreatedTime parses the canonical CreatedAt string. Zero time on failure.
func (n *Notification) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, n.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DTOs

// ListResponse is the paginated notification listing. UnreadCount is optional;
// when the server omits it the client counts unread entries in the page.
type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   *int           `json:"unread_count,omitempty"`
}

// MarkReadRequest marks the listed ids as read; an empty list means all.
type MarkReadRequest struct {
	IDs []int64 `json:"ids"`
}
