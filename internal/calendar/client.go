package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// primaryCalendar is the only calendar meetsched writes to.
	primaryCalendar = "primary"

	// meetQuery is the text filter for Meet-conferenced events. The
	// upstream match is approximate; results are post-filtered by
	// conference ID.
	meetQuery = "hangoutsMeet"

	// requestTimeout bounds each Calendar API call.
	requestTimeout = 30 * time.Second
)

// Client wraps the Google Calendar service for a single token pair.
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client authorized with the given
// access/refresh token pair. The client lives for one request.
func NewClient(ctx context.Context, conf *oauth2.Config, accessToken, refreshToken string) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
	httpClient.Timeout = requestTimeout

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// InsertMeeting creates a Meet-enabled event on the primary calendar and
// returns the resulting meeting.
func (c *Client) InsertMeeting(ctx context.Context, input MeetingInput) (*Meeting, error) {
	event := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				// Per-call uniqueness is the only requirement here.
				RequestId: fmt.Sprintf("meet-%s", uuid.NewString()),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	sendUpdates := "none"
	if input.SendInvites {
		sendUpdates = "all"
	}

	created, err := c.svc.Events.Insert(primaryCalendar, event).
		ConferenceDataVersion(1).
		SendUpdates(sendUpdates).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	meeting := toMeeting(created)
	return &meeting, nil
}

// ListMeetings lists upcoming Meet-enabled events on the primary calendar,
// ordered by start time. Events the fuzzy text query returned without an
// actual conference attached are dropped.
func (c *Client) ListMeetings(ctx context.Context, opts ListOptions) ([]Meeting, error) {
	events, err := c.svc.Events.List(primaryCalendar).
		TimeMin(opts.TimeMin.Format(time.RFC3339)).
		MaxResults(opts.Limit).
		SingleEvents(true).
		OrderBy("startTime").
		Q(meetQuery).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return conferencedMeetings(events.Items), nil
}

// conferencedMeetings maps events to the wire shape, keeping only events
// with a confirmed conference ID.
func conferencedMeetings(items []*calendar.Event) []Meeting {
	meetings := make([]Meeting, 0, len(items))
	for _, event := range items {
		if !hasConference(event) {
			continue
		}
		meetings = append(meetings, toMeeting(event))
	}
	return meetings
}
