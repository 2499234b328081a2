package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

// countingRefresher records refresh attempts and returns a canned result.
type countingRefresher struct {
	calls int
	token *oauth2.Token
	err   error
}

func (c *countingRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	c.calls++
	return c.token, c.err
}

func baseRecord(expiresAt time.Time) Record {
	return Record{
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    expiresAt,
		User:         User{Name: "Test User", Email: "user@example.com"},
	}
}

func TestRefreshFastPathIsIdentity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(30 * time.Minute))
	refresher := &countingRefresher{}

	got := Refresh(context.Background(), rec, now, refresher)

	assert.Equal(t, rec, got, "unexpired record must be returned unchanged")
	assert.Zero(t, refresher.calls, "fast path must make no network call")
}

func TestRefreshFastPathIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(time.Hour))
	refresher := &countingRefresher{}

	first := Refresh(context.Background(), rec, now, refresher)
	second := Refresh(context.Background(), first, now, refresher)

	assert.Equal(t, rec, second)
	assert.Zero(t, refresher.calls)
}

func TestRefreshSuccessExtendsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(-time.Minute))
	refresher := &countingRefresher{token: &oauth2.Token{
		AccessToken: "access-1",
		Expiry:      now.Add(45 * time.Minute),
	}}

	got := Refresh(context.Background(), rec, now, refresher)

	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.True(t, got.ExpiresAt.After(rec.ExpiresAt), "new expiry must strictly exceed the original")
	assert.Empty(t, got.Err)
}

func TestRefreshSuccessDefaultsLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(-time.Second))
	refresher := &countingRefresher{token: &oauth2.Token{AccessToken: "access-1"}}

	got := Refresh(context.Background(), rec, now, refresher)

	assert.Equal(t, now.Add(3600*time.Second), got.ExpiresAt)
}

func TestRefreshKeepsRefreshTokenUnlessReissued(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not reissued", func(t *testing.T) {
		rec := baseRecord(now)
		refresher := &countingRefresher{token: &oauth2.Token{AccessToken: "access-1"}}

		got := Refresh(context.Background(), rec, now, refresher)
		assert.Equal(t, "refresh-0", got.RefreshToken)
	})

	t.Run("reissued", func(t *testing.T) {
		rec := baseRecord(now)
		refresher := &countingRefresher{token: &oauth2.Token{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		}}

		got := Refresh(context.Background(), rec, now, refresher)
		assert.Equal(t, "refresh-1", got.RefreshToken)
	})
}

func TestRefreshFailurePreservesTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(-time.Hour))
	refresher := &countingRefresher{err: fmt.Errorf("invalid_grant")}

	got := Refresh(context.Background(), rec, now, refresher)

	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, rec.AccessToken, got.AccessToken, "stale access token must be preserved")
	assert.Equal(t, rec.RefreshToken, got.RefreshToken, "refresh token must be preserved")
	assert.Equal(t, ErrorRefreshFailed, got.Err)
}

func TestRefreshRetriesAfterFailure(t *testing.T) {
	// A failed refresh leaves the expiry in the past, so the next read
	// attempts the refresh again instead of treating the error as final.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseRecord(now.Add(-time.Hour))

	failing := &countingRefresher{err: fmt.Errorf("network down")}
	failed := Refresh(context.Background(), rec, now, failing)
	assert.Equal(t, ErrorRefreshFailed, failed.Err)

	recovering := &countingRefresher{token: &oauth2.Token{
		AccessToken: "access-2",
		Expiry:      now.Add(time.Hour),
	}}
	recovered := Refresh(context.Background(), failed, now, recovering)

	assert.Equal(t, 1, recovering.calls)
	assert.Empty(t, recovered.Err)
	assert.Equal(t, "access-2", recovered.AccessToken)
}

func TestRecordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, baseRecord(now.Add(time.Second)).Expired(now))
	assert.True(t, baseRecord(now).Expired(now), "expiry instant itself counts as expired")
	assert.True(t, baseRecord(now.Add(-time.Second)).Expired(now))
}
