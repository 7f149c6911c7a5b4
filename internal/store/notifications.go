// Package store holds the console's in-memory view of the notification feed
// and the chat threads. Stores are eventually-consistent targets: every
// mutation is idempotent, so a late or repeated application cannot corrupt
// state, only delay accuracy.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bookstore-console/internal/domain/notification"
	"bookstore-console/internal/metrics"
	"bookstore-console/internal/pkg/xerrors"
	"bookstore-console/internal/realtime"
)

// NotificationAPI is the slice of the REST client the store needs.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, page, limit int) (*notification.ListResponse, error)
	MarkRead(ctx context.Context, ids []int64) error
}

// Notifications keeps the newest-first notification list and the unread
// counter. Push events pass the dedup window before mutating anything.
type Notifications struct {
	mu     sync.RWMutex
	items  []notification.Notification
	unread int

	api    NotificationAPI
	window *realtime.Window
	log    *zap.Logger
}

func NewNotifications(api NotificationAPI, window *realtime.Window, logger *zap.Logger) *Notifications {
	return &Notifications{api: api, window: window, log: logger}
}

// LoadInitial replaces the store contents with one fetched page. When the
// server omits unread_count the store counts unread records in the page; that
// undercounts if unread items exist beyond it, which is a known limitation of
// the server contract, not something to paper over here.
func (s *Notifications) LoadInitial(ctx context.Context, page, limit int) error {
	resp, err := s.api.ListNotifications(ctx, page, limit)
	if err != nil {
		return xerrors.Wrap(err, "load notifications")
	}

	unread := 0
	if resp.UnreadCount != nil {
		unread = *resp.UnreadCount
	} else {
		for i := range resp.Notifications {
			if !resp.Notifications[i].IsRead {
				unread++
			}
		}
	}

	s.mu.Lock()
	s.items = resp.Notifications
	s.unread = unread
	s.mu.Unlock()
	return nil
}

// ApplyPush admits the event through the dedup window, prepends it and bumps
// the unread counter. Returns false when the push was a duplicate.
func (s *Notifications) ApplyPush(n notification.Notification) bool {
	if !s.window.Admit(n.Signature()) {
		metrics.DedupeDropped.Inc()
		s.log.Debug("duplicate notification ignored", zap.String("signature", n.Signature()))
		return false
	}

	s.mu.Lock()
	s.items = append([]notification.Notification{n}, s.items...)
	s.unread++
	s.mu.Unlock()
	return true
}

// MarkRead marks the listed ids as read; an empty slice marks all. The local
// state is updated optimistically and deliberately not rolled back when the
// server call fails -- re-applying a mark-read is harmless, so the worst case
// is a counter that reads low until the next full load.
func (s *Notifications) MarkRead(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	if len(ids) == 0 {
		for i := range s.items {
			s.items[i].IsRead = true
		}
		s.unread = 0
	} else {
		marked := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			marked[id] = struct{}{}
		}
		for i := range s.items {
			if _, ok := marked[s.items[i].ID]; ok && !s.items[i].IsRead {
				s.items[i].IsRead = true
				if s.unread > 0 {
					s.unread--
				}
			}
		}
	}
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, ids); err != nil {
		s.log.Warn("mark-read not confirmed by server, local state kept", zap.Error(err))
		return xerrors.Wrap(err, "mark read")
	}
	return nil
}

func (s *Notifications) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Snapshot returns a copy of the list, newest first.
func (s *Notifications) Snapshot() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notification.Notification, len(s.items))
	copy(out, s.items)
	return out
}
