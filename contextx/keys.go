// Package contextx carries per-exchange values (request ID, route group)
// through a request context so that handlers and listeners agree on them.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	groupKey
)
