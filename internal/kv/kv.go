// Package kv is the console's durable client-side state: the session token,
// the cached user profile and the chat-unread counter survive restarts here.
package kv

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cockroachdb/pebble"

	"bookstore-console/internal/pkg/xerrors"
)

// Well-known keys.
const (
	KeyToken      = "session/token"
	KeyProfile    = "session/profile"
	KeyChatUnread = "chat/unread"
)

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, xerrors.Wrap(err, "open kv store")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SetString(key, value string) error {
	return s.db.Set([]byte(key), []byte(value), pebble.Sync)
}

// GetString returns the value and whether the key was present.
func (s *Store) GetString(key string) (string, bool, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	out := string(value)
	if err := closer.Close(); err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (s *Store) SetInt(key string, value int) error {
	return s.SetString(key, strconv.Itoa(value))
}

// GetInt returns 0 for a missing key; a present but unparseable value is an
// error.
func (s *Store) GetInt(key string) (int, error) {
	raw, ok, err := s.GetString(key)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *Store) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.SetString(key, string(data))
}

func (s *Store) GetJSON(key string, out interface{}) (bool, error) {
	raw, ok, err := s.GetString(key)
	if err != nil || !ok {
		return ok, err
	}
	return true, json.Unmarshal([]byte(raw), out)
}
