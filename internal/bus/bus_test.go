package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookstore-console/internal/kv"
)

func TestBusFanOut(t *testing.T) {
	b := New()
	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(3)

	for _, sub := range []chan int{first, second} {
		select {
		case got := <-sub:
			require.Equal(t, 3, got)
		case <-time.After(time.Second):
			t.Fatal("expected count on subscriber")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, open := <-sub
	require.False(t, open)

	// Double unsubscribe is harmless.
	b.Unsubscribe(sub)
	b.Publish(1)
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	// Overflow the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnreadPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := kv.Open(dir)
	require.NoError(t, err)

	u := NewUnread(New(), store, zap.NewNop())
	u.Increment()
	u.Increment()
	require.Equal(t, 2, u.Count())
	require.NoError(t, store.Close())

	store, err = kv.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	restored := NewUnread(New(), store, zap.NewNop())
	require.Equal(t, 2, restored.Count())
}

func TestUnreadResetBroadcastsImmediately(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := New()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	u := NewUnread(b, store, zap.NewNop())
	u.Increment()
	u.Reset()

	got := []int{}
	for len(got) < 2 {
		select {
		case v := <-sub:
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatal("expected two broadcasts")
		}
	}
	require.Equal(t, []int{1, 0}, got)
}
