package session

import "time"

// Error marks a session-level failure the endpoints inspect by value.
type Error string

// ErrorRefreshFailed is set when a token-refresh attempt fails. The prior
// access/refresh tokens are kept on the record so callers can detect the
// failure without losing the stale credentials.
const ErrorRefreshFailed Error = "RefreshFailed"

// User identifies the authenticated Google user.
type User struct {
	Name  string
	Email string
}

// Record is the session token record: the user's current access/refresh
// token pair plus bookkeeping fields. It is passed by value into request
// handlers and never persisted by them.
type Record struct {
	// AccessToken is the current Google access token.
	AccessToken string

	// RefreshToken is the long-lived refresh token from the first
	// authorization.
	RefreshToken string

	// ExpiresAt is the absolute instant the access token expires.
	// Always set after the first successful authorization.
	ExpiresAt time.Time

	// User is the authenticated user's profile.
	User User

	// Err carries a prior refresh failure, if any.
	Err Error
}

// Expired reports whether the access token has passed its expiry.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
