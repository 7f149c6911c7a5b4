package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info holds the claims we care about for diagnostics. The console never
// verifies the signature; the backend does that on every request.
type Info struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect parses a session token without verifying it so the client can log
// who it is connecting as and warn about expiry before the server rejects it.
func Inspect(raw string) (*Info, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	info := &Info{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// Expired reports whether the token carries an expiry in the past.
func (i *Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Before(now)
}
