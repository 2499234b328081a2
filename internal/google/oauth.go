package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

const (
	// exchangeTimeout bounds a single token-exchange round trip.
	exchangeTimeout = 10 * time.Second

	// exchangeMaxTries is the total number of exchange attempts:
	// 1 initial plus 3 retries, waiting 1s, 2s and 4s between them.
	exchangeMaxTries = 4

	userInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// UserInfo represents the user information from Google's userinfo endpoint
type UserInfo struct {
	// Sub is the unique Google user ID
	Sub string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// EmailVerified indicates if the email is verified
	EmailVerified bool `json:"email_verified"`

	// Name is the user's full name
	Name string `json:"name"`

	// Picture is the URL of the user's profile picture
	Picture string `json:"picture"`
}

// NewOAuthConfig returns the OAuth2 configuration for the Calendar scopes
// meetsched needs. Offline access with a forced consent prompt ensures
// Google issues a refresh token on first authorization.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"openid",
			"email",
			"profile",
			calendar.CalendarScope,
			calendar.CalendarEventsScope,
		},
	}
}

// AuthCodeURL returns the Google authorization URL for the given CSRF state.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token. Transient failures are
// retried up to three times with exponential backoff (1s, 2s, 4s); each
// attempt is bounded by a 10 second client timeout.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: exchangeTimeout})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	token, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		t, err := conf.Exchange(ctx, code)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
				retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 &&
				retrieveErr.Response.StatusCode != http.StatusTooManyRequests {
				// The provider rejected the grant; retrying cannot help.
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return t, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(exchangeMaxTries))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	return token, nil
}

// FetchUserInfo resolves the authenticated user's profile for the token.
func FetchUserInfo(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*UserInfo, error) {
	client := conf.Client(ctx, token)
	client.Timeout = exchangeTimeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, body)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo response is missing the email claim")
	}

	return &info, nil
}

// Refresher performs the refresh-token grant against Google.
type Refresher struct {
	conf *oauth2.Config
}

// NewRefresher creates a Refresher bound to the given OAuth config.
func NewRefresher(conf *oauth2.Config) *Refresher {
	return &Refresher{conf: conf}
}

// Refresh exchanges a refresh token for a fresh access token.
// The returned token carries a new refresh token only if Google reissued one.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: exchangeTimeout})

	ts := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return token, nil
}
