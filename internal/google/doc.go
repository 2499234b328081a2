// Package google provides OAuth2 authentication against Google for the
// meetsched service: authorization-code exchange, userinfo lookup, and
// access-token refresh.
package google
