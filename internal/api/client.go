// Package api is the thin REST client over the bookstore backend. The
// realtime stores use it for initial loads, mark-read and list refreshes; it
// never holds state of its own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bookstore-console/internal/domain/chat"
	"bookstore-console/internal/domain/notification"
	"bookstore-console/internal/metrics"
	"bookstore-console/internal/pkg/xerrors"
)

type Client struct {
	base  string
	token string
	http  *http.Client
	log   *zap.Logger
}

// New builds a client for the configured base URL (including any /api
// prefix). Every request carries the bearer token and the uniform timeout.
func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   logger,
	}
}

// ListNotifications fetches one page of the notification feed.
func (c *Client) ListNotifications(ctx context.Context, page, limit int) (*notification.ListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out notification.ListResponse
	if err := c.do(ctx, "list_notifications", http.MethodGet, "/notifications?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks the listed notification ids as read; an empty slice marks
// all of them.
func (c *Client) MarkRead(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	req := notification.MarkReadRequest{IDs: ids}
	return c.do(ctx, "mark_read", http.MethodPut, "/notifications/read", req, nil)
}

// Conversations lists the admin's chat threads, newest activity first.
func (c *Client) Conversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.do(ctx, "conversations", http.MethodGet, "/admin/chat/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History fetches the message history with one counterparty.
func (c *Client) History(ctx context.Context, userID int64) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))

	var out []chat.Message
	if err := c.do(ctx, "history", http.MethodGet, "/chat/history?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Users lists store customers for the new-conversation picker. The endpoint
// returns either a bare array or {"users": [...]}.
func (c *Client) Users(ctx context.Context) ([]chat.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "users", http.MethodGet, "/admin/users", nil, &raw); err != nil {
		return nil, err
	}

	var users []chat.User
	if err := json.Unmarshal(raw, &users); err == nil {
		return users, nil
	}
	var wrapped struct {
		Users []chat.User `json:"users"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, xerrors.Wrap(err, "decode users response")
	}
	return wrapped.Users, nil
}

// Profile fetches the authenticated admin's own record for the session cache.
func (c *Client) Profile(ctx context.Context) (*chat.User, error) {
	var out chat.User
	if err := c.do(ctx, "profile", http.MethodGet, "/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(op, "error").Inc()
		return xerrors.Wrap(err, op)
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, xerrors.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s: %w: status %d", op, xerrors.ErrBadResponse, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, xerrors.ErrBadResponse, err)
	}
	return nil
}
