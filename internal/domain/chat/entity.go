package chat

// UserSnapshot is the display view of a counterparty embedded in a
// conversation listing.
type UserSnapshot struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation is one chat thread with a store customer. ID 0 is reserved for
// placeholder conversations that exist only locally until the first message
// round-trips through the server; UserID is the stable identity key.
type Conversation struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	User          UserSnapshot `json:"user"`
	LastMessage   string       `json:"last_message"`
	LastMessageAt int64        `json:"last_message_at"`
}

// IsPlaceholder reports whether the conversation has not been persisted
// server-side yet.
func (c *Conversation) IsPlaceholder() bool {
	return c.ID == 0
}

// Message is a single chat message. CreatedAt is a unix timestamp in seconds.
type Message struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	SenderID       int64  `json:"sender_id"`
	CreatedAt      int64  `json:"created_at"`
	IsAdmin        bool   `json:"is_admin"`
	ConversationID int64  `json:"conversation_id"`
}

// User is a store customer record, used when starting a new conversation.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Snapshot builds the conversation display view for a user. Falls back to the
// email when no full name is set, matching how the list renders.
func (u *User) Snapshot() UserSnapshot {
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	return UserSnapshot{
		FullName:  name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// Outbound is the payload of an admin-sent chat frame.
type Outbound struct {
	Content  string `json:"content"`
	ToUserID int64  `json:"to_user_id"`
}
