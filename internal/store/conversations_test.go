package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookstore-console/internal/bus"
	"bookstore-console/internal/domain/chat"
	"bookstore-console/internal/domain/realtime"
	"bookstore-console/internal/kv"
	"bookstore-console/internal/pkg/xerrors"
)

type chatAPIMock struct {
	mu        sync.Mutex
	convs     []chat.Conversation
	history   map[int64][]chat.Message
	refreshes chan struct{}
}

func newChatAPIMock() *chatAPIMock {
	return &chatAPIMock{
		history:   make(map[int64][]chat.Message),
		refreshes: make(chan struct{}, 16),
	}
}

func (m *chatAPIMock) Conversations(_ context.Context) ([]chat.Conversation, error) {
	m.mu.Lock()
	out := make([]chat.Conversation, len(m.convs))
	copy(out, m.convs)
	m.mu.Unlock()
	select {
	case m.refreshes <- struct{}{}:
	default:
	}
	return out, nil
}

func (m *chatAPIMock) History(_ context.Context, userID int64) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[userID], nil
}

func (m *chatAPIMock) setConversations(convs []chat.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs = convs
}

type senderMock struct {
	mu     sync.Mutex
	frames []interface{}
	err    error
}

func (m *senderMock) Send(v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.frames = append(m.frames, v)
	return nil
}

func newTestConversations(t *testing.T, api ChatAPI, sender Sender) (*Conversations, *bus.Unread, *bus.Bus) {
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	b := bus.New()
	unread := bus.NewUnread(b, store, zap.NewNop())
	return NewConversations(api, sender, unread, zap.NewNop()), unread, b
}

func TestPlaceholderReconciliation(t *testing.T) {
	api := newChatAPIMock()
	s, _, _ := newTestConversations(t, api, &senderMock{})

	// Start a chat with a user nobody has messaged yet.
	s.SelectByUserID(context.Background(), chat.User{ID: 42, Email: "reader@example.com"})
	selected := s.Selected()
	require.NotNil(t, selected)
	require.True(t, selected.IsPlaceholder())
	require.Equal(t, int64(42), selected.UserID)
	require.Empty(t, s.Messages())

	// The first message round-trips and the server list now has the real
	// conversation.
	api.setConversations([]chat.Conversation{
		{ID: 17, UserID: 42, LastMessage: "hello"},
	})
	require.NoError(t, s.Refresh(context.Background()))

	selected = s.Selected()
	require.NotNil(t, selected)
	require.Equal(t, int64(17), selected.ID)
	require.Equal(t, int64(42), selected.UserID)
}

func TestPlaceholderNotReconciledForOtherUsers(t *testing.T) {
	api := newChatAPIMock()
	s, _, _ := newTestConversations(t, api, &senderMock{})

	s.SelectByUserID(context.Background(), chat.User{ID: 42, Email: "reader@example.com"})
	api.setConversations([]chat.Conversation{{ID: 17, UserID: 7}})
	require.NoError(t, s.Refresh(context.Background()))

	selected := s.Selected()
	require.NotNil(t, selected)
	require.True(t, selected.IsPlaceholder())
	require.Equal(t, int64(42), selected.UserID)
}

func TestSelectByUserIDPrefersExisting(t *testing.T) {
	api := newChatAPIMock()
	api.setConversations([]chat.Conversation{{ID: 5, UserID: 42}})
	api.history[42] = []chat.Message{{ID: 1, Content: "hi", ConversationID: 5}}
	s, _, _ := newTestConversations(t, api, &senderMock{})
	require.NoError(t, s.Refresh(context.Background()))

	s.SelectByUserID(context.Background(), chat.User{ID: 42, Email: "reader@example.com"})
	selected := s.Selected()
	require.NotNil(t, selected)
	require.Equal(t, int64(5), selected.ID)
	require.Len(t, s.Messages(), 1)
}

func TestSelectByID(t *testing.T) {
	api := newChatAPIMock()
	api.setConversations([]chat.Conversation{{ID: 5, UserID: 42}})
	s, _, _ := newTestConversations(t, api, &senderMock{})
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.SelectByID(context.Background(), 5))
	require.Equal(t, int64(5), s.Selected().ID)

	require.ErrorIs(t, s.SelectByID(context.Background(), 99), xerrors.ErrNotFound)
}

func TestAppendMessageConversationScoped(t *testing.T) {
	api := newChatAPIMock()
	api.setConversations([]chat.Conversation{
		{ID: 7, UserID: 42},
		{ID: 5, UserID: 9},
	})
	s, _, _ := newTestConversations(t, api, &senderMock{})
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectByID(context.Background(), 7))
	drainRefreshes(api)

	// Message for another conversation: not in the transcript, but the list
	// refresh still fires.
	s.AppendMessage(chat.Message{ID: 1, Content: "elsewhere", ConversationID: 5})
	require.Empty(t, s.Messages())
	requireRefresh(t, api)

	// Message for the active conversation lands in the transcript.
	s.AppendMessage(chat.Message{ID: 2, Content: "for us", ConversationID: 7})
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "for us", msgs[0].Content)
	requireRefresh(t, api)
}

func TestAppendMessageBumpsUnreadOutsideSelection(t *testing.T) {
	api := newChatAPIMock()
	api.setConversations([]chat.Conversation{{ID: 7, UserID: 42}})
	s, unread, _ := newTestConversations(t, api, &senderMock{})
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectByID(context.Background(), 7))

	s.AppendMessage(chat.Message{ID: 1, ConversationID: 5, IsAdmin: false})
	require.Equal(t, 1, unread.Count())

	// Admin echoes never count against the badge.
	s.AppendMessage(chat.Message{ID: 2, ConversationID: 5, IsAdmin: true})
	require.Equal(t, 1, unread.Count())

	// Messages for the open conversation do not count either.
	s.AppendMessage(chat.Message{ID: 3, ConversationID: 7, IsAdmin: false})
	require.Equal(t, 1, unread.Count())
}

func TestEnterViewResetsAndBroadcasts(t *testing.T) {
	api := newChatAPIMock()
	s, unread, b := newTestConversations(t, api, &senderMock{})
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	s.AppendMessage(chat.Message{ID: 1, ConversationID: 5})
	require.Equal(t, 1, unread.Count())

	s.EnterView()
	require.Equal(t, 0, unread.Count())

	last := -1
	for {
		select {
		case v := <-sub:
			last = v
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
	require.Equal(t, 0, last)
}

func TestSend(t *testing.T) {
	api := newChatAPIMock()
	sender := &senderMock{}
	s, _, _ := newTestConversations(t, api, sender)

	require.ErrorIs(t, s.Send("hello"), xerrors.ErrNoSelection)
	require.ErrorIs(t, s.Send("   "), xerrors.ErrEmptyMessage)

	s.SelectByUserID(context.Background(), chat.User{ID: 42, Email: "reader@example.com"})
	require.NoError(t, s.Send("hello"))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.frames, 1)
	frame, ok := sender.frames[0].(realtime.OutboundFrame)
	require.True(t, ok)
	require.Equal(t, "chat", frame.Type)
	require.Equal(t, "hello", frame.Payload.Content)
	require.Equal(t, int64(42), frame.Payload.ToUserID)

	// No local echo: transcript unchanged until the server pushes it back.
	require.Empty(t, s.Messages())
}

func drainRefreshes(api *chatAPIMock) {
	for {
		select {
		case <-api.refreshes:
		default:
			return
		}
	}
}

func requireRefresh(t *testing.T, api *chatAPIMock) {
	t.Helper()
	select {
	case <-api.refreshes:
	case <-time.After(time.Second):
		t.Fatal("expected a conversation list refresh")
	}
}
