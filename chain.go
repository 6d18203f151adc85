// Package gorawrlistener provides an HTTP middleware that reports every
// request/response exchange to listener hooks without altering what the
// downstream handler sends, plus gRPC interceptors emitting the same events.
//
// The smallest useful setup wraps a handler with the default listeners,
// which log each exchange through zerolog:
//
//	http.ListenAndServe(":8080", gorawrlistener.New(app))
package gorawrlistener

import "net/http"

// Chain composes plain HTTP middlewares from left to right, i.e.
// Chain(A, B)(h) => A(B(h)).
func Chain(mw ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Wrap applies the middleware chain to h and returns the wrapped handler.
func Wrap(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	if len(mw) == 0 {
		return h
	}
	return Chain(mw...)(h)
}

// Listen returns the listener middleware as a plain decorator for routers
// that compose func(http.Handler) http.Handler values.
func Listen(opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return New(next, opts...)
	}
}
