package server

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meetsched/meetsched/internal/google"
	"github.com/meetsched/meetsched/internal/logging"
	"github.com/meetsched/meetsched/internal/session"
)

const stateCookieTTL = 10 * time.Minute

// handleSignIn starts the OAuth flow: mint a state value, pin it in a
// short-lived cookie, and send the browser to Google's consent screen.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, google.AuthCodeURL(s.oauthConf, state), http.StatusFound)
}

// handleCallback finishes the OAuth flow: validate state, exchange the
// code, fetch the user profile, and issue the session cookie.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.With(logging.Operation("oauth_callback"))

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		logger.Warn("authorization denied", "reason", errParam)
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Sign-in was cancelled or denied: "+errParam)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		logger.Warn("state mismatch on callback")
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Sign-in state did not match. Please try again.")
		return
	}
	clearCookie(w, stateCookieName, "/auth", s.secureCookies())

	code := r.URL.Query().Get("code")
	if code == "" {
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Missing authorization code.")
		return
	}

	token, err := google.Exchange(ctx, s.oauthConf, code)
	if err != nil {
		logger.Error("code exchange failed", logging.Err(err))
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Could not complete sign-in with Google. Please try again.")
		return
	}

	info, err := google.FetchUserInfo(ctx, s.oauthConf, token)
	if err != nil {
		logger.Error("userinfo fetch failed", logging.Err(err))
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Could not load your Google profile. Please try again.")
		return
	}

	rec := session.Record{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		User:         session.User{Name: info.Name, Email: info.Email},
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = s.now().Add(time.Hour)
	}

	signed, err := s.sessions.Issue(rec)
	if err != nil {
		logger.Error("session issue failed", logging.Err(err))
		s.metrics.RecordSignIn(ctx, false)
		s.renderAuthError(w, "Could not create your session. Please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	s.metrics.RecordSignIn(ctx, true)
	s.metrics.RecordSessionStart(ctx)
	logger.Info("user signed in", logging.UserHash(info.Email))

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleSignOut revokes the session and clears the cookie. Idempotent.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		s.sessions.Revoke(c.Value)
		s.metrics.RecordSessionEnd(r.Context())
	}
	clearCookie(w, sessionCookieName, "/", s.secureCookies())
	http.Redirect(w, r, "/auth/signin", http.StatusFound)
}

// handleIndex serves the minimal signed-in landing page. Browsers
// without a live session are redirected into the sign-in flow; only the
// API paths answer with 401 JSON.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	token := sessionToken(r)
	if token == "" {
		http.Redirect(w, r, "/auth/signin", http.StatusFound)
		return
	}
	rec, err := s.sessions.Resolve(r.Context(), token)
	if err != nil {
		clearCookie(w, sessionCookieName, "/", s.secureCookies())
		http.Redirect(w, r, "/auth/signin", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, must-revalidate, max-age=0")
	fmt.Fprintf(w, indexPage, html.EscapeString(rec.User.Name), html.EscapeString(rec.User.Email))
}

func (s *Server) renderAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, authErrorPage, html.EscapeString(msg))
}

// secureCookies reports whether cookies should carry the Secure flag,
// which requires the public base URL to be served over HTTPS.
func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.cfg.BaseURL, "https://")
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

const indexPage = `<!doctype html>
<html>
<head><title>meetsched</title></head>
<body>
<h1>meetsched</h1>
<p>Signed in as %s (%s).</p>
<p>Create and list Google Meet meetings via <code>/api/meetings</code>.</p>
<p><a href="/auth/signout">Sign out</a></p>
</body>
</html>
`

const authErrorPage = `<!doctype html>
<html>
<head><title>meetsched - sign-in error</title></head>
<body>
<h1>Sign-in failed</h1>
<p>%s</p>
<p><a href="/auth/signin">Try again</a></p>
</body>
</html>
`
