// Package realtime owns the console's persistent channels to the backend:
// connect, reconnect-with-delay, teardown, and the push dedup window.
package realtime

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"bookstore-console/internal/metrics"
	"bookstore-console/internal/pkg/token"
	"bookstore-console/internal/pkg/xerrors"
)

const writeWait = 10 * time.Second

// State of the channel's connection state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config describes one logical channel.
type Config struct {
	// Name labels the channel in logs and metrics ("notifications", "chat").
	Name string
	// BaseURL is the configured HTTP(S) API base; the realtime endpoint is
	// derived from it.
	BaseURL string
	// Token is the session credential, passed as a query parameter.
	Token string
	// ReconnectDelay is the fixed delay between a close and the next attempt.
	ReconnectDelay time.Duration
	// OnFrame receives every inbound text frame. Called from the read loop;
	// frames are handled one at a time in arrival order.
	OnFrame func([]byte)

	Logger *zap.Logger
}

// Manager maintains exactly one channel to the server across transient
// failures. Any close, including an authentication rejection, schedules a
// reconnect after the fixed delay; only Close stops the cycle.
type Manager struct {
	cfg  Config
	url  string
	info *token.Info

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	reconnect *time.Timer
	closed    bool

	log *zap.Logger
}

// EndpointURL derives the realtime endpoint from the configured API base:
// scheme http(s) becomes ws(s), a trailing /api segment is stripped, the path
// is /ws and the token rides as a query parameter.
func EndpointURL(base, sessionToken string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", xerrors.Wrap(err, "parse api base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api")
	u.Path += "/ws"
	q := url.Values{}
	q.Set("token", sessionToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Token == "" {
		return nil, xerrors.ErrNoToken
	}
	endpoint, err := EndpointURL(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg: cfg,
		url: endpoint,
		log: logger.With(zap.String("channel", cfg.Name)),
	}
	// Unverified claims, for diagnostics only.
	if info, err := token.Inspect(cfg.Token); err == nil {
		m.info = info
	}
	return m, nil
}

// Connect opens the channel. No-op when already connected; an existing
// channel in any other state is closed first so at most one is ever open.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return xerrors.ErrClosed
	}
	if m.conn != nil && m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateConnecting
	attempt := ulid.Make().String()
	m.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		m.log.Warn("dial failed", zap.String("attempt", attempt), zap.Error(err))
		m.mu.Lock()
		m.state = StateDisconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return xerrors.Wrap(err, "dial")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return xerrors.ErrClosed
	}
	if m.conn != nil {
		// A concurrent Connect won the race; keep the first channel.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()

	m.log.Info("channel connected", zap.String("attempt", attempt))
	go m.readLoop(conn, attempt)
	return nil
}

// Close tears the channel down and suppresses further reconnects.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send writes one JSON frame. Fails fast while disconnected; the caller
// decides whether that is worth surfacing.
func (m *Manager) Send(v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return xerrors.ErrClosed
	}
	if m.conn == nil || m.state != StateConnected {
		return xerrors.ErrNotConnected
	}
	m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return m.conn.WriteJSON(v)
}

func (m *Manager) readLoop(conn *websocket.Conn, attempt string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, attempt, err)
			return
		}
		if m.cfg.OnFrame != nil {
			m.cfg.OnFrame(data)
		}
	}
}

// handleClose logs the close, clears the channel and schedules the next
// attempt. An abnormal or policy close with an expired token is almost
// certainly an auth rejection; it is logged as such but retried all the same.
func (m *Manager) handleClose(conn *websocket.Conn, attempt string, err error) {
	conn.Close()

	fields := []zap.Field{zap.String("attempt", attempt), zap.Error(err)}
	if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.ClosePolicyViolation) &&
		m.info != nil && m.info.Expired(time.Now()) {
		fields = append(fields, zap.Time("token_expired_at", m.info.ExpiresAt))
		m.log.Warn("channel closed, session token looks expired", fields...)
	} else {
		m.log.Info("channel closed", fields...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		// A newer channel already replaced this one; nothing to do.
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	if m.closed {
		return
	}
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.closed {
		return
	}
	metrics.ReconnectsTotal.WithLabelValues(m.cfg.Name).Inc()
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		if err := m.Connect(); err != nil && !xerrors.Is(err, xerrors.ErrClosed) {
			m.log.Debug("reconnect attempt failed", zap.Error(err))
		}
	})
}
