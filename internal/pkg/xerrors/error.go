package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrBadResponse  = errors.New("unexpected response from server")
	ErrNoToken      = errors.New("no session token available")
	ErrClosed       = errors.New("connection manager is closed")
	ErrNotConnected = errors.New("channel is not connected")
	ErrNoSelection  = errors.New("no conversation selected")
	ErrEmptyMessage = errors.New("message content is empty")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
