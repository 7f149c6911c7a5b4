package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetString(KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetString(KeyToken, "tok123"))
	got, ok, err := s.GetString(KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok123", got)
}

func TestIntDefaultsToZero(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	n, err := s.GetInt(KeyChatUnread)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, s.SetInt(KeyChatUnread, 5))
	n, err = s.GetInt(KeyChatUnread)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestJSONRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	type profile struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}

	var out profile
	ok, err := s.GetJSON(KeyProfile, &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetJSON(KeyProfile, profile{ID: 1, Email: "admin@example.com"}))
	ok, err = s.GetJSON(KeyProfile, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin@example.com", out.Email)
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetString(KeyToken, "tok123"))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.GetString(KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok123", got)
}
