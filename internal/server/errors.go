package server

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorCode identifies an API error in the JSON error envelope.
type ErrorCode string

const (
	CodeUnauthorized         ErrorCode = "Unauthorized"
	CodeTokenRefreshError    ErrorCode = "TokenRefreshError"
	CodeBadRequest           ErrorCode = "BadRequest"
	CodeAuthenticationFailed ErrorCode = "AuthenticationFailed"
	CodeAccessDenied         ErrorCode = "AccessDenied"
	CodeRateLimitExceeded    ErrorCode = "RateLimitExceeded"
	CodeCreateFailed         ErrorCode = "FailedToCreateMeeting"
	CodeFetchFailed          ErrorCode = "FailedToFetchMeetings"
)

// APIError is an error that maps onto an HTTP status and the JSON error
// envelope returned to clients.
type APIError struct {
	Code    ErrorCode
	Message string
	Details string
	Status  int
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return string(e.Code) + ": " + e.Message + " (" + e.Details + ")"
	}
	return string(e.Code) + ": " + e.Message
}

func errUnauthorized(msg string) *APIError {
	return &APIError{Code: CodeUnauthorized, Message: msg, Status: http.StatusUnauthorized}
}

func errTokenRefresh() *APIError {
	return &APIError{
		Code:    CodeTokenRefreshError,
		Message: "Your session has expired. Please sign in again.",
		Status:  http.StatusUnauthorized,
	}
}

func errBadRequest(msg string) *APIError {
	return &APIError{Code: CodeBadRequest, Message: msg, Status: http.StatusBadRequest}
}

// classifyCalendarError maps a Calendar API failure onto the error
// taxonomy by inspecting the upstream status code and message text.
// Anything unrecognized falls back to the operation-specific 500 code.
func classifyCalendarError(err error, fallback ErrorCode) *APIError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return authenticationFailed(err)
		case gerr.Code == http.StatusForbidden:
			return &APIError{
				Code:    CodeAccessDenied,
				Message: "Access to Google Calendar was denied. Check that the calendar scopes were granted.",
				Details: err.Error(),
				Status:  http.StatusForbidden,
			}
		case gerr.Code == http.StatusTooManyRequests:
			return rateLimited(err)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "Invalid Credentials"):
		return authenticationFailed(err)
	case strings.Contains(strings.ToLower(msg), "rate limit"):
		return rateLimited(err)
	}

	apiMsg := "Failed to create meeting. Please try again."
	if fallback == CodeFetchFailed {
		apiMsg = "Failed to fetch meetings. Please try again."
	}
	return &APIError{
		Code:    fallback,
		Message: apiMsg,
		Details: msg,
		Status:  http.StatusInternalServerError,
	}
}

func authenticationFailed(err error) *APIError {
	return &APIError{
		Code:    CodeAuthenticationFailed,
		Message: "Google rejected the credentials. Please sign in again.",
		Details: err.Error(),
		Status:  http.StatusUnauthorized,
	}
}

func rateLimited(err error) *APIError {
	return &APIError{
		Code:    CodeRateLimitExceeded,
		Message: "Too many requests to Google Calendar. Please wait a moment and try again.",
		Details: err.Error(),
		Status:  http.StatusTooManyRequests,
	}
}
