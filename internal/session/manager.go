package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSession is returned when a session token does not resolve to a
// live record.
var ErrNoSession = errors.New("no active session")

// entry tracks a record and its last access for cleanup.
type entry struct {
	record     Record
	lastAccess time.Time
}

// Manager keeps session records in memory, keyed by a random session ID
// that travels to the browser as an HS256-signed JWT. Resolving a session
// applies the token refresh policy, so every authenticated read observes
// a current (or explicitly failed) token record.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*entry
	secret        []byte
	ttl           time.Duration
	refresher     TokenRefresher
	logger        *slog.Logger
	cleanupTicker *time.Ticker
	cleanupDone   chan bool

	// onRefresh, when set, observes every refresh attempt's outcome.
	onRefresh func(ctx context.Context, success bool)

	// now is swappable for tests.
	now func() time.Time
}

// SetRefreshObserver registers a callback invoked after every token
// refresh attempt. Call before the manager serves traffic.
func (m *Manager) SetRefreshObserver(fn func(ctx context.Context, success bool)) {
	m.onRefresh = fn
}

// NewManager creates a session manager and starts its cleanup goroutine.
func NewManager(secret string, ttl time.Duration, refresher TokenRefresher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		sessions:      make(map[string]*entry),
		secret:        []byte(secret),
		ttl:           ttl,
		refresher:     refresher,
		logger:        logger,
		cleanupTicker: time.NewTicker(10 * time.Minute),
		cleanupDone:   make(chan bool),
		now:           time.Now,
	}

	go m.cleanupExpiredSessions()

	return m
}

// Issue stores a record and returns the signed session token for the
// cookie. Called once per successful OAuth authorization.
func (m *Manager) Issue(rec Record) (string, error) {
	sid := uuid.NewString()
	now := m.now()

	signed, err := m.sign(sid, now)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	m.mu.Lock()
	m.sessions[sid] = &entry{record: rec, lastAccess: now}
	m.mu.Unlock()

	m.logger.Debug("session issued", "session_id", sid)
	return signed, nil
}

// Resolve verifies a session token, applies the refresh policy to the
// stored record and returns the resulting record by value.
func (m *Manager) Resolve(ctx context.Context, token string) (Record, error) {
	sid, err := m.verify(token)
	if err != nil {
		return Record{}, ErrNoSession
	}

	now := m.now()

	m.mu.RLock()
	e, ok := m.sessions[sid]
	var current Record
	if ok {
		current = e.record
	}
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNoSession
	}

	refreshed := Refresh(ctx, current, now, m.refresher)
	if m.onRefresh != nil && current.Expired(now) {
		m.onRefresh(ctx, refreshed.Err == "")
	}

	m.mu.Lock()
	if e, ok := m.sessions[sid]; ok {
		e.record = refreshed
		e.lastAccess = now
	}
	m.mu.Unlock()

	return refreshed, nil
}

// Revoke destroys the session behind a token. Unknown or invalid tokens
// are ignored; sign-out is idempotent.
func (m *Manager) Revoke(token string) {
	sid, err := m.verify(token)
	if err != nil {
		return
	}

	m.mu.Lock()
	delete(m.sessions, sid)
	m.mu.Unlock()

	m.logger.Debug("session revoked", "session_id", sid)
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop stops the session cleanup goroutine.
func (m *Manager) Stop() {
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}
	if m.cleanupDone != nil {
		close(m.cleanupDone)
	}
}

// sign wraps a session ID in an HS256 JWT bounded by the session TTL.
func (m *Manager) sign(sid string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// verify validates a session token and extracts the session ID.
func (m *Manager) verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("session token carries no subject")
	}

	return claims.Subject, nil
}

// cleanupExpiredSessions periodically removes idle sessions.
func (m *Manager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.mu.Lock()
			now := m.now()
			expired := 0
			for sid, e := range m.sessions {
				if now.Sub(e.lastAccess) > m.ttl {
					delete(m.sessions, sid)
					expired++
				}
			}
			m.mu.Unlock()
			if expired > 0 {
				m.logger.Info("cleaned up expired sessions", "count", expired)
			}
		case <-m.cleanupDone:
			return
		}
	}
}
