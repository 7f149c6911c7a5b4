package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookstore-console/internal/bus"
	"bookstore-console/internal/domain/chat"
	"bookstore-console/internal/domain/realtime"
	"bookstore-console/internal/pkg/xerrors"
)

// ChatAPI is the slice of the REST client the conversation store needs.
type ChatAPI interface {
	Conversations(ctx context.Context) ([]chat.Conversation, error)
	History(ctx context.Context, userID int64) ([]chat.Message, error)
}

// Sender transmits outbound frames on the chat channel.
type Sender interface {
	Send(v interface{}) error
}

// Conversations keeps the thread list, the active selection and its message
// history. Selection moves None -> Placeholder -> Real: a placeholder
// (id 0) synthesized for a user is transparently swapped for the real
// conversation as soon as a list refresh contains that user, and never back.
type Conversations struct {
	mu       sync.RWMutex
	list     []chat.Conversation
	selected *chat.Conversation
	messages []chat.Message

	api    ChatAPI
	sender Sender
	unread *bus.Unread
	log    *zap.Logger

	refreshTimeout time.Duration
}

func NewConversations(api ChatAPI, sender Sender, unread *bus.Unread, logger *zap.Logger) *Conversations {
	return &Conversations{
		api:            api,
		sender:         sender,
		unread:         unread,
		log:            logger,
		refreshTimeout: 30 * time.Second,
	}
}

// EnterView marks the chat view as open: the persisted unread counter resets
// to zero and the new count is broadcast immediately.
func (s *Conversations) EnterView() {
	s.unread.Reset()
}

// Refresh replaces the thread list wholesale with the server's snapshot and
// reconciles a selected placeholder against it. Refreshes are idempotent
// replacements, so one completing late can never corrupt newer state.
func (s *Conversations) Refresh(ctx context.Context) error {
	list, err := s.api.Conversations(ctx)
	if err != nil {
		return xerrors.Wrap(err, "refresh conversations")
	}

	s.mu.Lock()
	s.list = list
	var promote *chat.Conversation
	if s.selected != nil && s.selected.IsPlaceholder() {
		for i := range list {
			if list[i].UserID == s.selected.UserID {
				conv := list[i]
				s.selected = &conv
				promote = &conv
				break
			}
		}
	}
	s.mu.Unlock()

	if promote != nil {
		s.log.Info("placeholder conversation reconciled",
			zap.Int64("conversation_id", promote.ID),
			zap.Int64("user_id", promote.UserID))
		s.loadHistory(ctx, promote.UserID)
	}
	return nil
}

// SelectByUserID activates the conversation with the given user, synthesizing
// a placeholder when none is persisted yet.
func (s *Conversations) SelectByUserID(ctx context.Context, user chat.User) {
	s.mu.Lock()
	var existing *chat.Conversation
	for i := range s.list {
		if s.list[i].UserID == user.ID {
			conv := s.list[i]
			existing = &conv
			break
		}
	}
	if existing != nil {
		s.selected = existing
	} else {
		s.selected = &chat.Conversation{
			ID:            0,
			UserID:        user.ID,
			User:          user.Snapshot(),
			LastMessageAt: time.Now().Unix(),
		}
	}
	s.messages = nil
	s.mu.Unlock()

	if existing != nil {
		s.loadHistory(ctx, existing.UserID)
	}
}

// SelectByID activates a known conversation, e.g. from a notification
// deep-link.
func (s *Conversations) SelectByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	var found *chat.Conversation
	for i := range s.list {
		if s.list[i].ID == id {
			conv := s.list[i]
			found = &conv
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return xerrors.ErrNotFound
	}
	s.selected = found
	s.messages = nil
	s.mu.Unlock()

	s.loadHistory(ctx, found.UserID)
	return nil
}

// AppendMessage applies one pushed chat message. It lands in the visible
// transcript only when it belongs to the active conversation; either way the
// thread list is refreshed in the background so the sidebar summary updates.
// A customer message outside the active conversation bumps the unread badge.
func (s *Conversations) AppendMessage(msg chat.Message) {
	s.mu.Lock()
	appended := s.selected != nil && !s.selected.IsPlaceholder() &&
		msg.ConversationID == s.selected.ID
	if appended {
		s.messages = append(s.messages, msg)
	}
	s.mu.Unlock()

	if !appended && !msg.IsAdmin {
		s.unread.Increment()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			// Passive background refresh; log and move on.
			s.log.Warn("conversation refresh after push failed", zap.Error(err))
		}
	}()
}

// Send transmits the message to the selected conversation's counterparty.
// There is no local echo: the message appears in the transcript when the
// server pushes it back on the channel.
func (s *Conversations) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return xerrors.ErrEmptyMessage
	}

	s.mu.RLock()
	selected := s.selected
	s.mu.RUnlock()
	if selected == nil {
		return xerrors.ErrNoSelection
	}

	frame := realtime.NewChatFrame(content, selected.UserID)
	if err := s.sender.Send(frame); err != nil {
		return xerrors.Wrap(err, "send message")
	}
	return nil
}

// Selected returns a copy of the active conversation, nil when none.
func (s *Conversations) Selected() *chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	conv := *s.selected
	return &conv
}

// List returns a copy of the thread list.
func (s *Conversations) List() []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Conversation, len(s.list))
	copy(out, s.list)
	return out
}

// Messages returns a copy of the active transcript.
func (s *Conversations) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// loadHistory fetches and installs the transcript for a counterparty, unless
// the selection moved on while the fetch was in flight.
func (s *Conversations) loadHistory(ctx context.Context, userID int64) {
	history, err := s.api.History(ctx, userID)
	if err != nil {
		s.log.Warn("history fetch failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.UserID == userID {
		s.messages = history
	}
	s.mu.Unlock()
}
