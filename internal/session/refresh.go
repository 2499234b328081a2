package session

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// defaultTokenLifetime is assumed when the provider does not report one.
const defaultTokenLifetime = 3600 * time.Second

// TokenRefresher performs the refresh-token grant against the OAuth
// provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Refresh applies the token refresh policy to a record.
//
// If the access token has not expired the record is returned unchanged and
// no network call is made; this fast path runs on every authenticated
// request. Otherwise a refresh is attempted: on success the record carries
// the new access token and expiry (the refresh token is replaced only when
// the provider reissued one), on failure the prior tokens are preserved
// and Err is set to ErrorRefreshFailed. Refresh never returns an error;
// callers are mid-request and inspect Err instead.
func Refresh(ctx context.Context, rec Record, now time.Time, refresher TokenRefresher) Record {
	if now.Before(rec.ExpiresAt) {
		return rec
	}

	token, err := refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		rec.Err = ErrorRefreshFailed
		return rec
	}

	rec.AccessToken = token.AccessToken
	if token.Expiry.IsZero() {
		rec.ExpiresAt = now.Add(defaultTokenLifetime)
	} else {
		rec.ExpiresAt = token.Expiry
	}
	if token.RefreshToken != "" {
		rec.RefreshToken = token.RefreshToken
	}
	rec.Err = ""

	return rec
}
