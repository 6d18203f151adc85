// Package listener defines the request and response events emitted by the
// listener middleware and the hooks that observe them.
//
// Events are transport neutral: the HTTP middleware and the gRPC
// interceptors fill the same types.
package listener

import (
	"net/http"
	"net/netip"
	"time"
)

// Request describes an incoming request as seen before the downstream
// handler runs.
type Request struct {
	// ID is the request ID propagated through the X-Request-Id header.
	ID string

	Method string
	// Target is the request URI (path plus query) for HTTP or the full
	// method name for gRPC.
	Target string
	// Path is the part of Target used for policy matching.
	Path  string
	Proto string
	Host  string

	RemoteAddr string
	// ClientIP is the resolved client address; it may differ from
	// RemoteAddr behind a trusted proxy. Invalid when unknown.
	ClientIP netip.Addr

	Header http.Header

	// Body holds the captured request body. Truncated is set when the body
	// was longer than the capture limit.
	Body      []byte
	Truncated bool

	// Group is the policy group the target resolved to, if any.
	Group string

	ReceivedAt time.Time
}

// Referer returns the Referer header.
func (r *Request) Referer() string { return r.Header.Get("Referer") }

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string { return r.Header.Get("User-Agent") }

// Response describes a completed exchange.
type Response struct {
	Request *Request

	// StatusCode is the first status written by the handler, 200 when the
	// handler wrote a body without an explicit status.
	StatusCode int
	Header     http.Header

	// ContentLength is the declared Content-Length when present and valid,
	// otherwise the number of body bytes written.
	ContentLength int64

	Body      []byte
	Truncated bool

	// Duration is the processing time of the downstream handler.
	Duration time.Duration

	// Err is the error returned by a gRPC handler. Always nil for HTTP.
	Err error

	// Panic holds the value recovered from a panicking handler.
	Panic any
}

// Failed reports whether the exchange ended in a server error.
func (r *Response) Failed() bool {
	return r.Panic != nil || r.StatusCode >= http.StatusInternalServerError
}
