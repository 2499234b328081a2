package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// MeetingInput represents the input for creating a Meet-enabled event.
type MeetingInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string

	// SendInvites controls whether Calendar notifies the attendees.
	SendInvites bool
}

// ListOptions narrows a meeting listing.
type ListOptions struct {
	// Limit caps the number of returned events.
	Limit int64

	// TimeMin is the lower bound on event start times.
	TimeMin time.Time
}

// Attendee carries an attendee's address and their response status.
type Attendee struct {
	Email          string `json:"email"`
	ResponseStatus string `json:"responseStatus"`
}

// Meeting is the simplified wire shape for a Meet-enabled event. All
// fields default to the empty string when absent upstream; the JSON
// envelope never carries nulls.
type Meeting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	MeetLink    string     `json:"meetLink"`
	Attendees   []Attendee `json:"attendees"`
}

// hasConference reports whether the upstream event carries a confirmed
// conference ID. The list query's text filter is fuzzy, so events without
// one are dropped.
func hasConference(event *calendar.Event) bool {
	return event != nil && event.ConferenceData != nil && event.ConferenceData.ConferenceId != ""
}

// toMeeting converts a Google Calendar event to a Meeting.
func toMeeting(event *calendar.Event) Meeting {
	m := Meeting{Attendees: []Attendee{}}
	if event == nil {
		return m
	}

	m.ID = event.Id
	m.Title = event.Summary
	m.Description = event.Description

	// Prefer the precise dateTime over the all-day date value.
	if event.Start != nil {
		if event.Start.DateTime != "" {
			m.StartTime = event.Start.DateTime
		} else {
			m.StartTime = event.Start.Date
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			m.EndTime = event.End.DateTime
		} else {
			m.EndTime = event.End.Date
		}
	}

	m.MeetLink = meetLink(event)

	for _, att := range event.Attendees {
		m.Attendees = append(m.Attendees, Attendee{
			Email:          att.Email,
			ResponseStatus: att.ResponseStatus,
		})
	}

	return m
}

// meetLink extracts the join URL, preferring the conference video entry
// point over the legacy hangout link field.
func meetLink(event *calendar.Event) string {
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return event.HangoutLink
}
