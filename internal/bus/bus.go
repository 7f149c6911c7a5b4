// Package bus carries the chat-unread count to surfaces outside the chat
// view, e.g. a navigation badge, without a direct data dependency.
package bus

import "sync"

// Bus is a single-topic publish/subscribe channel for unread counts.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan int]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[chan int]struct{})}
}

// Subscribe registers a new listener. The channel is buffered so a slow
// listener never blocks the publisher.
func (b *Bus) Subscribe() chan int {
	ch := make(chan int, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan int) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish fans the count out to every subscriber.
func (b *Bus) Publish(count int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- count:
		default:
			// Drop if the subscriber is too slow.
		}
	}
}
