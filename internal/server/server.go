package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/oauth2"

	"github.com/meetsched/meetsched/internal/calendar"
	"github.com/meetsched/meetsched/internal/config"
	"github.com/meetsched/meetsched/internal/google"
	"github.com/meetsched/meetsched/internal/instrumentation"
	"github.com/meetsched/meetsched/internal/session"
)

const (
	sessionCookieName = "meetsched_session"
	stateCookieName   = "meetsched_oauth_state"

	readHeaderTimeout = 10 * time.Second
	// Write timeout must leave room for the Calendar request budget.
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// calendarClient is the slice of the Calendar adapter the handlers use.
type calendarClient interface {
	InsertMeeting(ctx context.Context, in calendar.MeetingInput) (*calendar.Meeting, error)
	ListMeetings(ctx context.Context, opts calendar.ListOptions) ([]calendar.Meeting, error)
}

type clientFactory func(ctx context.Context, conf *oauth2.Config, accessToken, refreshToken string) (calendarClient, error)

// Server hosts the meeting API, the OAuth sign-in flow, and the health
// probes on a single listener.
type Server struct {
	cfg       *config.Config
	oauthConf *oauth2.Config
	sessions  *session.Manager
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	tracer    trace.Tracer

	newClient clientFactory
	now       func() time.Time

	httpServer *http.Server
	health     *HealthChecker
	shutdown   atomic.Bool
}

// New builds a Server from already-initialized dependencies. The
// instrumentation provider may be disabled; recording is nil-safe.
func New(cfg *config.Config, sessions *session.Manager, provider *instrumentation.Provider, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		oauthConf: google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL()),
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
		newClient: func(ctx context.Context, conf *oauth2.Config, accessToken, refreshToken string) (calendarClient, error) {
			return calendar.NewClient(ctx, conf, accessToken, refreshToken)
		},
	}
	s.metrics = &instrumentation.Metrics{}
	s.tracer = noop.NewTracerProvider().Tracer("meetsched/server")
	if provider != nil {
		if m := provider.Metrics(); m != nil {
			s.metrics = m
		}
		s.tracer = provider.Tracer("meetsched/server")
	}
	s.health = NewHealthChecker(sessions, s.shutdown.Load)
	return s
}

// Handler returns the full route table wrapped in the request
// instrumentation middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/meetings", s.handleMeetings)

	mux.HandleFunc("/auth/signin", s.handleSignIn)
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.HandleFunc("/auth/signout", s.handleSignOut)

	mux.HandleFunc("/healthz", s.health.HandleHealthz)
	mux.HandleFunc("/readyz", s.health.HandleReadyz)
	mux.HandleFunc("/healthz/detailed", s.health.HandleDetailed)

	mux.HandleFunc("/", s.handleIndex)

	return s.instrument(mux)
}

// Start runs the HTTP listener and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.health.SetReady(true)
	s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// sessionToken extracts the session token from the cookie set by the
// sign-in flow, or from an Authorization bearer header for API clients.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// resolveSession walks the session preconditions shared by the meeting
// endpoints: a token must be present, resolve to a live session, carry
// an access token, and not be marked with a failed refresh.
func (s *Server) resolveSession(r *http.Request, signInHint string) (session.Record, *APIError) {
	token := sessionToken(r)
	if token == "" {
		return session.Record{}, errUnauthorized(signInHint)
	}
	rec, err := s.sessions.Resolve(r.Context(), token)
	if err != nil {
		return session.Record{}, errUnauthorized(signInHint)
	}
	if rec.AccessToken == "" {
		return session.Record{}, errUnauthorized("Invalid session: missing access token. Please sign in again.")
	}
	if rec.Err == session.ErrorRefreshFailed {
		return session.Record{}, errTokenRefresh()
	}
	return rec, nil
}
