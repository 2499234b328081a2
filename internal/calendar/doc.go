// Package calendar wraps the Google Calendar API for meetsched.
//
// A Client binds one access/refresh token pair to a Calendar service and
// issues exactly one upstream call per operation: inserting a Meet-enabled
// event or listing upcoming Meet events. It performs no caching, batching
// or retries; failures surface immediately to the caller's error
// classifier.
package calendar
