package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/meetsched/meetsched/internal/calendar"
	"github.com/meetsched/meetsched/internal/logging"
)

const (
	defaultDurationMinutes = 60
	defaultListLimit       = 10
	defaultTitle           = "Google Meet Meeting"
	defaultDescription     = "Meeting created via meetsched"

	// pastStartGrace allows "start now" requests whose timestamp was
	// computed a moment before they reached us.
	pastStartGrace = time.Minute
)

type createMeetingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartTime   string   `json:"startTime"`
	Duration    int      `json:"duration"`
	TimeZone    string   `json:"timeZone"`
	Attendees   []string `json:"attendees"`
	SendInvites bool     `json:"sendInvites"`
}

// meetingEnd computes the event end from the start and a duration in
// minutes.
func meetingEnd(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		// CORS preflight; the allow headers ride on every response.
		writeJSON(w, http.StatusOK, struct{}{})
	case http.MethodPost:
		s.handleCreateMeeting(w, r)
	case http.MethodGet:
		s.handleListMeetings(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeError(w, &APIError{
			Code:    CodeBadRequest,
			Message: "Method not allowed",
			Status:  http.StatusMethodNotAllowed,
		})
	}
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.With(logging.Operation("create_meeting"))

	rec, apiErr := s.resolveSession(r, "Please sign in to create meetings")
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	logger = logger.With(logging.UserHash(rec.User.Email))

	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("Invalid JSON in request body"))
		return
	}

	if req.StartTime == "" {
		writeError(w, errBadRequest("Start time is required"))
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, errBadRequest("Start time must be a valid RFC 3339 timestamp"))
		return
	}
	if start.Before(s.now().Add(-pastStartGrace)) {
		writeError(w, errBadRequest("Start time cannot be in the past"))
		return
	}

	duration := req.Duration
	if duration <= 0 {
		duration = defaultDurationMinutes
	}

	in := calendar.MeetingInput{
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         meetingEnd(start, duration),
		TimeZone:    req.TimeZone,
		Attendees:   req.Attendees,
		SendInvites: req.SendInvites,
	}
	if in.Title == "" {
		in.Title = defaultTitle
	}
	if in.Description == "" {
		in.Description = defaultDescription
	}
	if in.TimeZone == "" {
		in.TimeZone = s.cfg.DefaultTimeZone
	}

	client, err := s.newClient(ctx, s.oauthConf, rec.AccessToken, rec.RefreshToken)
	if err != nil {
		logger.Error("calendar client init failed", logging.Err(err))
		writeError(w, classifyCalendarError(err, CodeCreateFailed))
		return
	}

	ctx, span := s.tracer.Start(ctx, "calendar.insert")
	began := s.now()
	meeting, err := client.InsertMeeting(ctx, in)
	span.End()
	if err != nil {
		apiErr := classifyCalendarError(err, CodeCreateFailed)
		s.metrics.RecordCalendarOperation(ctx, "insert", string(apiErr.Code), time.Since(began))
		logger.Error("meeting creation failed", logging.Err(err), logging.Status(string(apiErr.Code)))
		writeError(w, apiErr)
		return
	}
	s.metrics.RecordCalendarOperation(ctx, "insert", "", time.Since(began))

	logger.Info("meeting created", "meeting_id", meeting.ID)
	writeJSON(w, http.StatusOK, meetingResponse{Success: true, Meeting: meeting})
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.With(logging.Operation("list_meetings"))

	rec, apiErr := s.resolveSession(r, "Please sign in to view meetings")
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	logger = logger.With(logging.UserHash(rec.User.Email))

	opts := calendar.ListOptions{
		Limit:   defaultListLimit,
		TimeMin: s.now(),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("timeMin"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.TimeMin = t
		}
	}

	client, err := s.newClient(ctx, s.oauthConf, rec.AccessToken, rec.RefreshToken)
	if err != nil {
		logger.Error("calendar client init failed", logging.Err(err))
		writeError(w, classifyCalendarError(err, CodeFetchFailed))
		return
	}

	ctx, span := s.tracer.Start(ctx, "calendar.list")
	began := s.now()
	meetings, err := client.ListMeetings(ctx, opts)
	span.End()
	if err != nil {
		apiErr := classifyCalendarError(err, CodeFetchFailed)
		s.metrics.RecordCalendarOperation(ctx, "list", string(apiErr.Code), time.Since(began))
		logger.Error("meeting listing failed", logging.Err(err), logging.Status(string(apiErr.Code)))
		writeError(w, apiErr)
		return
	}
	s.metrics.RecordCalendarOperation(ctx, "list", "", time.Since(began))

	logger.Debug("meetings listed", "count", len(meetings))
	writeJSON(w, http.StatusOK, meetingsResponse{Success: true, Meetings: meetings})
}
