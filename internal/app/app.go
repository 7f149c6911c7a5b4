// Package app wires the console together: config, durable KV, REST client,
// the two realtime channels and the stores they feed.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bookstore-console/internal/api"
	"bookstore-console/internal/bus"
	"bookstore-console/internal/config"
	"bookstore-console/internal/debug"
	"bookstore-console/internal/domain/chat"
	rtdomain "bookstore-console/internal/domain/realtime"
	"bookstore-console/internal/kv"
	"bookstore-console/internal/logging"
	"bookstore-console/internal/metrics"
	"bookstore-console/internal/pkg/token"
	"bookstore-console/internal/pkg/xerrors"
	"bookstore-console/internal/realtime"
	"bookstore-console/internal/store"
)

type App struct {
	cfg    config.AppConfig
	logger *zap.Logger

	kv     *kv.Store
	bus    *bus.Bus
	unread *bus.Unread
	api    *api.Client
	window *realtime.Window

	Notifications *store.Notifications
	Conversations *store.Conversations

	notifyChannel *realtime.Manager
	chatChannel   *realtime.Manager
	debug         *debug.Server
}

// New builds the whole object graph. The session token comes from the
// environment when set (and is then persisted), otherwise from the KV store
// left by a previous run.
func New() (*App, error) {
	cfg := config.Load()

	logger, err := logging.New()
	if err != nil {
		return nil, err
	}

	kvStore, err := kv.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sessionToken, err := resolveToken(cfg, kvStore)
	if err != nil {
		kvStore.Close()
		return nil, err
	}
	if info, err := token.Inspect(sessionToken); err != nil {
		logger.Warn("session token is not a parseable JWT", zap.Error(err))
	} else {
		fields := []zap.Field{zap.String("subject", info.Subject)}
		if !info.ExpiresAt.IsZero() {
			fields = append(fields, zap.Time("expires_at", info.ExpiresAt))
		}
		if info.Expired(time.Now()) {
			logger.Warn("session token already expired, server will reject the channels", fields...)
		} else {
			logger.Info("session token loaded", fields...)
		}
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		kv:     kvStore,
		bus:    bus.New(),
	}
	a.unread = bus.NewUnread(a.bus, kvStore, logger)
	a.api = api.New(cfg.APIBaseURL, sessionToken, cfg.RequestTimeout, logger)
	a.window = realtime.NewWindow(cfg.DedupeWindow)

	a.Notifications = store.NewNotifications(a.api, a.window, logger)

	a.chatChannel, err = realtime.NewManager(realtime.Config{
		Name:           "chat",
		BaseURL:        cfg.APIBaseURL,
		Token:          sessionToken,
		ReconnectDelay: cfg.ReconnectDelay,
		OnFrame:        a.onChatFrame,
		Logger:         logger,
	})
	if err != nil {
		kvStore.Close()
		return nil, err
	}
	a.Conversations = store.NewConversations(a.api, a.chatChannel, a.unread, logger)

	a.notifyChannel, err = realtime.NewManager(realtime.Config{
		Name:           "notifications",
		BaseURL:        cfg.APIBaseURL,
		Token:          sessionToken,
		ReconnectDelay: cfg.ReconnectDelay,
		OnFrame:        a.onNotificationFrame,
		Logger:         logger,
	})
	if err != nil {
		kvStore.Close()
		return nil, err
	}

	a.debug = debug.NewServer(cfg.DebugAddr, a.status, logger)
	return a, nil
}

// Run connects both channels, performs the initial loads and serves until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.debug.Start()

	if err := a.notifyChannel.Connect(); err != nil {
		// Reconnect cycle is already scheduled; nothing more to do here.
		a.logger.Warn("initial notification channel connect failed", zap.Error(err))
	}
	if err := a.chatChannel.Connect(); err != nil {
		a.logger.Warn("initial chat channel connect failed", zap.Error(err))
	}

	loadCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	if err := a.Notifications.LoadInitial(loadCtx, 1, a.cfg.PageSize); err != nil {
		a.logger.Warn("initial notification load failed", zap.Error(err))
	}
	if err := a.Conversations.Refresh(loadCtx); err != nil {
		a.logger.Warn("initial conversation load failed", zap.Error(err))
	}
	a.cacheProfile(loadCtx)

	<-ctx.Done()
	return nil
}

// Bus exposes the unread-count subscription surface to embedding code.
func (a *App) Bus() *bus.Bus {
	return a.bus
}

// Users lists store customers for the start-a-conversation picker.
func (a *App) Users(ctx context.Context) ([]chat.User, error) {
	return a.api.Users(ctx)
}

// Shutdown tears the channels down, cancelling any pending reconnects, and
// releases local resources.
func (a *App) Shutdown(ctx context.Context) {
	a.notifyChannel.Close()
	a.chatChannel.Close()
	a.window.Stop()
	if err := a.debug.Shutdown(ctx); err != nil {
		a.logger.Warn("debug server shutdown failed", zap.Error(err))
	}
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("kv store close failed", zap.Error(err))
	}
	a.logger.Sync()
}

func (a *App) onNotificationFrame(data []byte) {
	ev, err := rtdomain.Decode(data)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues("notifications").Inc()
		a.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if ev == nil || ev.Type != rtdomain.EventNotification {
		return
	}
	metrics.FramesTotal.WithLabelValues("notifications", string(ev.Type)).Inc()
	a.Notifications.ApplyPush(*ev.Notification)
}

func (a *App) onChatFrame(data []byte) {
	ev, err := rtdomain.Decode(data)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues("chat").Inc()
		a.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if ev == nil || ev.Type != rtdomain.EventChat {
		return
	}
	metrics.FramesTotal.WithLabelValues("chat", string(ev.Type)).Inc()
	a.Conversations.AppendMessage(*ev.Message)
}

func (a *App) cacheProfile(ctx context.Context) {
	profile, err := a.api.Profile(ctx)
	if err != nil {
		a.logger.Warn("profile fetch failed, keeping cached copy", zap.Error(err))
		return
	}
	if err := a.kv.SetJSON(kv.KeyProfile, profile); err != nil {
		a.logger.Warn("profile cache write failed", zap.Error(err))
	}
}

// CachedProfile returns the last persisted admin profile, if any.
func (a *App) CachedProfile() (*chat.User, bool) {
	var profile chat.User
	ok, err := a.kv.GetJSON(kv.KeyProfile, &profile)
	if err != nil || !ok {
		return nil, false
	}
	return &profile, true
}

func (a *App) status() map[string]interface{} {
	return map[string]interface{}{
		"notification_channel": a.notifyChannel.State().String(),
		"chat_channel":         a.chatChannel.State().String(),
		"notification_unread":  a.Notifications.UnreadCount(),
		"chat_unread":          a.unread.Count(),
		"conversations":        len(a.Conversations.List()),
	}
}

func resolveToken(cfg config.AppConfig, db *kv.Store) (string, error) {
	if cfg.Token != "" {
		if err := db.SetString(kv.KeyToken, cfg.Token); err != nil {
			return "", xerrors.Wrap(err, "persist session token")
		}
		return cfg.Token, nil
	}
	stored, ok, err := db.GetString(kv.KeyToken)
	if err != nil {
		return "", err
	}
	if !ok || stored == "" {
		return "", xerrors.ErrNoToken
	}
	return stored, nil
}
