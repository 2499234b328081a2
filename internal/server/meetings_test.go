package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/meetsched/meetsched/internal/calendar"
	"github.com/meetsched/meetsched/internal/config"
	"github.com/meetsched/meetsched/internal/session"
)

// fakeClient satisfies calendarClient with pluggable behavior.
type fakeClient struct {
	insert func(ctx context.Context, in calendar.MeetingInput) (*calendar.Meeting, error)
	list   func(ctx context.Context, opts calendar.ListOptions) ([]calendar.Meeting, error)
}

func (f *fakeClient) InsertMeeting(ctx context.Context, in calendar.MeetingInput) (*calendar.Meeting, error) {
	return f.insert(ctx, in)
}

func (f *fakeClient) ListMeetings(ctx context.Context, opts calendar.ListOptions) ([]calendar.Meeting, error) {
	return f.list(ctx, opts)
}

// failingRefresher must not be reached when records are unexpired.
type failingRefresher struct{}

func (failingRefresher) Refresh(context.Context, string) (*oauth2.Token, error) {
	return nil, errors.New("refresher should not be called")
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:           ":0",
		BaseURL:            "http://localhost:8080",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		SessionSecret:      "test-secret",
		SessionTTL:         time.Hour,
		DefaultTimeZone:    "UTC",
	}
}

func newTestServer(t *testing.T, fake *fakeClient) (*Server, *session.Manager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager("test-secret", time.Hour, failingRefresher{}, logger)
	t.Cleanup(sessions.Stop)

	srv := New(testConfig(), sessions, nil, logger)
	if fake != nil {
		srv.newClient = func(context.Context, *oauth2.Config, string, string) (calendarClient, error) {
			return fake, nil
		}
	}
	return srv, sessions
}

func issueSession(t *testing.T, sessions *session.Manager, rec session.Record) *http.Cookie {
	t.Helper()
	token, err := sessions.Issue(rec)
	if err != nil {
		t.Fatalf("issuing session: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func liveRecord() session.Record {
	return session.Record{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         session.User{Name: "Test User", Email: "user@example.com"},
	}
}

func decodeError(t *testing.T, body io.Reader) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	return resp
}

func TestMeetingEnd(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := meetingEnd(start, 30)
	want := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Errorf("meetingEnd = %v, want %v", end, want)
	}

	if got := meetingEnd(start, defaultDurationMinutes); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("default duration end = %v, want %v", got, start.Add(time.Hour))
	}
}

func TestCreateMeetingPreconditions(t *testing.T) {
	futureStart := time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	tests := []struct {
		name       string
		record     *session.Record
		body       string
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name:       "no session",
			record:     nil,
			body:       `{"startTime":"` + futureStart + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeUnauthorized,
		},
		{
			name:       "session without access token",
			record:     &session.Record{ExpiresAt: time.Now().Add(time.Hour)},
			body:       `{"startTime":"` + futureStart + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeUnauthorized,
		},
		{
			name: "refresh failure marker",
			record: &session.Record{
				AccessToken: "stale",
				ExpiresAt:   time.Now().Add(time.Hour),
				Err:         session.ErrorRefreshFailed,
			},
			body:       `{"startTime":"` + futureStart + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeTokenRefreshError,
		},
		{
			name:       "malformed JSON",
			record:     recordPtr(liveRecord()),
			body:       `{"startTime":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "missing start time",
			record:     recordPtr(liveRecord()),
			body:       `{"title":"Standup"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "unparseable start time",
			record:     recordPtr(liveRecord()),
			body:       `{"startTime":"tomorrow at noon"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "start time in the past",
			record:     recordPtr(liveRecord()),
			body:       `{"startTime":"2020-01-01T10:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sessions := newTestServer(t, &fakeClient{
				insert: func(context.Context, calendar.MeetingInput) (*calendar.Meeting, error) {
					t.Fatal("calendar must not be reached when a precondition fails")
					return nil, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/meetings", strings.NewReader(tt.body))
			if tt.record != nil {
				req.AddCookie(issueSession(t, sessions, *tt.record))
			}
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			resp := decodeError(t, rr.Body)
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("expected a human-readable message")
			}
		})
	}
}

func recordPtr(rec session.Record) *session.Record {
	return &rec
}

func TestCreateMeetingSuccess(t *testing.T) {
	start := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	var gotInput calendar.MeetingInput
	srv, sessions := newTestServer(t, &fakeClient{
		insert: func(_ context.Context, in calendar.MeetingInput) (*calendar.Meeting, error) {
			gotInput = in
			return &calendar.Meeting{
				ID:        "evt-1",
				Title:     in.Title,
				StartTime: in.Start.Format(time.RFC3339),
				EndTime:   in.End.Format(time.RFC3339),
				MeetLink:  "https://meet.google.com/abc-defg-hij",
				Attendees: []calendar.Attendee{},
			}, nil
		},
	})

	body := `{"startTime":"` + start.Format(time.RFC3339) + `","duration":30,"attendees":["a@example.com"],"sendInvites":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/meetings", strings.NewReader(body))
	req.AddCookie(issueSession(t, sessions, liveRecord()))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success bool             `json:"success"`
		Meeting calendar.Meeting `json:"meeting"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
	if resp.Meeting.ID != "evt-1" {
		t.Errorf("meeting ID = %q, want evt-1", resp.Meeting.ID)
	}
	if resp.Meeting.MeetLink == "" {
		t.Error("expected a meet link")
	}

	if !gotInput.End.Equal(gotInput.Start.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want start + 30m", gotInput.End)
	}
	if gotInput.Title != defaultTitle {
		t.Errorf("title = %q, want default %q", gotInput.Title, defaultTitle)
	}
	if gotInput.TimeZone != "UTC" {
		t.Errorf("time zone = %q, want configured default", gotInput.TimeZone)
	}
	if !gotInput.SendInvites {
		t.Error("sendInvites not propagated")
	}
	if len(gotInput.Attendees) != 1 || gotInput.Attendees[0] != "a@example.com" {
		t.Errorf("attendees = %v", gotInput.Attendees)
	}
}

func TestCreateMeetingUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, http.StatusForbidden, CodeAccessDenied},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, http.StatusTooManyRequests, CodeRateLimitExceeded},
		{"generic failure", errors.New("boom"), http.StatusInternalServerError, CodeCreateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sessions := newTestServer(t, &fakeClient{
				insert: func(context.Context, calendar.MeetingInput) (*calendar.Meeting, error) {
					return nil, tt.err
				},
			})

			body := `{"startTime":"` + time.Now().Add(time.Hour).Format(time.RFC3339) + `"}`
			req := httptest.NewRequest(http.MethodPost, "/api/meetings", strings.NewReader(body))
			req.AddCookie(issueSession(t, sessions, liveRecord()))
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if resp := decodeError(t, rr.Body); resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestListMeetings(t *testing.T) {
	var gotOpts calendar.ListOptions
	srv, sessions := newTestServer(t, &fakeClient{
		list: func(_ context.Context, opts calendar.ListOptions) ([]calendar.Meeting, error) {
			gotOpts = opts
			return []calendar.Meeting{
				{ID: "evt-1", Title: "Standup", Attendees: []calendar.Attendee{}},
			}, nil
		},
	})
	cookie := issueSession(t, sessions, liveRecord())

	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/meetings", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
		}
		if gotOpts.Limit != defaultListLimit {
			t.Errorf("limit = %d, want %d", gotOpts.Limit, defaultListLimit)
		}
		if time.Since(gotOpts.TimeMin) > time.Minute {
			t.Errorf("timeMin = %v, want roughly now", gotOpts.TimeMin)
		}

		var resp struct {
			Success  bool               `json:"success"`
			Meetings []calendar.Meeting `json:"meetings"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !resp.Success || len(resp.Meetings) != 1 {
			t.Errorf("unexpected envelope: %+v", resp)
		}
	})

	t.Run("explicit limit and timeMin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/meetings?limit=5&timeMin=2030-06-01T00:00:00Z", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		if gotOpts.Limit != 5 {
			t.Errorf("limit = %d, want 5", gotOpts.Limit)
		}
		want := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
		if !gotOpts.TimeMin.Equal(want) {
			t.Errorf("timeMin = %v, want %v", gotOpts.TimeMin, want)
		}
	})

	t.Run("invalid query values fall back to defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/meetings?limit=many&timeMin=yesterday", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		if gotOpts.Limit != defaultListLimit {
			t.Errorf("limit = %d, want %d", gotOpts.Limit, defaultListLimit)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/meetings", nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rr.Code)
		}
		if resp := decodeError(t, rr.Body); resp.Error != CodeUnauthorized {
			t.Errorf("error code = %q", resp.Error)
		}
	})
}

func TestListMeetingsEmptyResult(t *testing.T) {
	srv, sessions := newTestServer(t, &fakeClient{
		list: func(context.Context, calendar.ListOptions) ([]calendar.Meeting, error) {
			return []calendar.Meeting{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/meetings", nil)
	req.AddCookie(issueSession(t, sessions, liveRecord()))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"meetings":[]`) {
		t.Errorf("empty listing must be an empty array, got: %s", body)
	}
}

func TestMeetingsBearerToken(t *testing.T) {
	srv, sessions := newTestServer(t, &fakeClient{
		list: func(context.Context, calendar.ListOptions) ([]calendar.Meeting, error) {
			return []calendar.Meeting{}, nil
		},
	})
	token, err := sessions.Issue(liveRecord())
	if err != nil {
		t.Fatalf("issuing session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/meetings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("bearer auth status = %d, body: %s", rr.Code, rr.Body.String())
	}
}

func TestMeetingsOptionsAndHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/meetings", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Cache-Control":                "no-store, must-revalidate, max-age=0",
	}
	for name, want := range headers {
		if got := rr.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestMeetingsMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/meetings", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow = %q", got)
	}
}
