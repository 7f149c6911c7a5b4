// internal/domain/realtime/types.go
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bookstore-console/internal/domain/chat"
	"bookstore-console/internal/domain/notification"
)

// EventType discriminates decoded inbound frames.
type EventType string

const (
	EventNotification EventType = "notification"
	EventChat         EventType = "chat"
)

// Event is one decoded inbound frame. Exactly one of Notification/Message is
// set, matching Type.
type Event struct {
	Type         EventType
	Notification *notification.Notification
	Message      *chat.Message
}

// OutboundFrame is the envelope for admin-sent chat messages.
type OutboundFrame struct {
	Type    string        `json:"type"`
	Payload chat.Outbound `json:"payload"`
}

// NewChatFrame wraps an outbound chat payload in its wire envelope.
func NewChatFrame(content string, toUserID int64) OutboundFrame {
	return OutboundFrame{
		Type: "chat",
		Payload: chat.Outbound{
			Content:  content,
			ToUserID: toUserID,
		},
	}
}

// frameProbe sniffs the discriminator before committing to a shape. Chat
// frames carry {type:"chat",payload:{...}}; notification frames arrive flat.
type frameProbe struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// notificationFrame tolerates the loose shapes the server pushes: id may be
// absent or non-numeric, created_at may be absent or in a non-canonical form.
type notificationFrame struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Type        string          `json:"type"`
	ReferenceID int64           `json:"reference_id"`
	CreatedAt   string          `json:"created_at"`
}

// createdAtLayouts are the timestamp forms seen from the server, tried in
// order before giving up and stamping the arrival time.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Decode parses one raw text frame into a typed event. A nil event with a nil
// error means the frame carried a discriminator this client does not handle.
// Malformed input is an error; the caller logs and drops it, the channel
// stays up.
func Decode(data []byte) (*Event, error) {
	var probe frameProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	if probe.Type == "chat" {
		if len(probe.Payload) == 0 {
			return nil, fmt.Errorf("chat frame without payload")
		}
		var msg chat.Message
		if err := json.Unmarshal(probe.Payload, &msg); err != nil {
			return nil, fmt.Errorf("malformed chat payload: %w", err)
		}
		return &Event{Type: EventChat, Message: &msg}, nil
	}

	var frame notificationFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed notification frame: %w", err)
	}
	if frame.Title == "" && frame.Message == "" {
		// Unknown discriminator, not a push we recognize.
		return nil, nil
	}

	n := &notification.Notification{
		ID:          notificationID(frame.ID),
		Title:       frame.Title,
		Message:     frame.Message,
		Type:        notification.NotificationType(frame.Type),
		IsRead:      false,
		CreatedAt:   normalizeCreatedAt(frame.CreatedAt),
		ReferenceID: frame.ReferenceID,
	}
	return &Event{Type: EventNotification, Notification: n}, nil
}

// notificationID takes the server id when it is numeric, otherwise
// synthesizes one from the arrival time.
func notificationID(raw json.RawMessage) int64 {
	if len(raw) > 0 {
		var id int64
		if err := json.Unmarshal(raw, &id); err == nil {
			return id
		}
	}
	return time.Now().UnixMilli()
}

// normalizeCreatedAt canonicalizes the server timestamp to RFC 3339, falling
// back to now when absent or unparseable.
func normalizeCreatedAt(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}
