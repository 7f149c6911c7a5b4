package bus

import (
	"sync"

	"go.uber.org/zap"

	"bookstore-console/internal/kv"
)

// Unread owns the persisted chat-unread counter and announces every change on
// the bus. Entering the chat view resets it; messages arriving for
// conversations the admin is not looking at increment it.
type Unread struct {
	mu    sync.Mutex
	count int

	bus   *Bus
	store *kv.Store
	log   *zap.Logger
}

// NewUnread loads the persisted counter; a corrupt value starts over at zero.
func NewUnread(b *Bus, store *kv.Store, logger *zap.Logger) *Unread {
	count, err := store.GetInt(kv.KeyChatUnread)
	if err != nil {
		logger.Warn("unreadable chat-unread counter, resetting", zap.Error(err))
		count = 0
	}
	return &Unread{count: count, bus: b, store: store, log: logger}
}

func (u *Unread) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// Reset zeroes the counter and emits immediately. Called on chat-view entry.
func (u *Unread) Reset() {
	u.apply(func(int) int { return 0 })
}

// Increment bumps the counter by one.
func (u *Unread) Increment() {
	u.apply(func(c int) int { return c + 1 })
}

func (u *Unread) apply(f func(int) int) {
	u.mu.Lock()
	u.count = f(u.count)
	count := u.count
	u.mu.Unlock()

	if err := u.store.SetInt(kv.KeyChatUnread, count); err != nil {
		u.log.Warn("failed to persist chat-unread counter", zap.Error(err))
	}
	u.bus.Publish(count)
}
