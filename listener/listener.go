package listener

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// RequestListener observes requests before the downstream handler runs.
// Implementations must not retain the event's Body beyond the call unless
// they copy it.
type RequestListener interface {
	HandleRequest(ctx context.Context, req *Request)
}

// ResponseListener observes completed exchanges.
type ResponseListener interface {
	HandleResponse(ctx context.Context, resp *Response)
}

// RequestListenerFunc adapts a function to RequestListener.
type RequestListenerFunc func(ctx context.Context, req *Request)

// HandleRequest calls f(ctx, req).
func (f RequestListenerFunc) HandleRequest(ctx context.Context, req *Request) { f(ctx, req) }

// ResponseListenerFunc adapts a function to ResponseListener.
type ResponseListenerFunc func(ctx context.Context, resp *Response)

// HandleResponse calls f(ctx, resp).
func (f ResponseListenerFunc) HandleResponse(ctx context.Context, resp *Response) { f(ctx, resp) }

// Set is an ordered collection of listeners. Listeners run synchronously in
// registration order; a panicking listener is logged and skipped so that it
// cannot break the exchange.
type Set struct {
	Requests  []RequestListener
	Responses []ResponseListener
	Logger    zerolog.Logger
}

// Empty reports whether the set has no listeners at all.
func (s *Set) Empty() bool {
	return len(s.Requests) == 0 && len(s.Responses) == 0
}

// NotifyRequest delivers req to every request listener.
func (s *Set) NotifyRequest(ctx context.Context, req *Request) {
	for _, l := range s.Requests {
		s.safely(req, func() { l.HandleRequest(ctx, req) })
	}
}

// NotifyResponse delivers resp to every response listener.
func (s *Set) NotifyResponse(ctx context.Context, resp *Response) {
	for _, l := range s.Responses {
		s.safely(resp.Request, func() { l.HandleResponse(ctx, resp) })
	}
}

func (s *Set) safely(req *Request, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error().
				Str("request_id", req.ID).
				Str("target", req.Target).
				Str("panic", fmt.Sprint(r)).
				Msg("listener panicked")
		}
	}()
	fn()
}
