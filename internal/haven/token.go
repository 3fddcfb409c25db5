package haven

import (
	"context"
	"time"
)

// TokenScope names the service and operation an access token is valid for.
type TokenScope struct {
	Service   string
	Operation string
}

// AccessToken is a short-lived scoped credential issued by the auth service.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// String returns the transport representation of the token.
func (t AccessToken) String() string { return t.Value }

// Expired reports whether the token is past its expiry at the given time.
// Tokens with a zero ExpiresAt never expire.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// TokenProvider issues access tokens for a requested scope.
type TokenProvider interface {
	GetToken(ctx context.Context, scope TokenScope) (AccessToken, error)
}
