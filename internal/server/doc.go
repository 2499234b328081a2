// Package server implements the meetsched HTTP surface: the meeting
// endpoints, the browser OAuth sign-in flow, health probes, and the
// dedicated metrics listener.
package server
