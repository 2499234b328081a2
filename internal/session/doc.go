// Package session holds the authenticated user's token record and its
// lifecycle: a pure refresh policy applied on every session read, and an
// in-memory manager that binds records to signed session cookies.
package session
