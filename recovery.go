package gorawrlistener

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/Keksclan/goRawrListener/internal/capture"
	"github.com/rs/zerolog"
)

// recoverHTTP returns the HTTP recovery layer. A panic below it is logged
// and answered with 500 unless the handler already started the response.
// http.ErrAbortHandler keeps its meaning and is re-raised.
func recoverHTTP(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := capture.NewWriter(w, 0)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(p)
				}
				log.Error().
					Str("request_id", requestIDOf(r, cw)).
					Str("method", r.Method).
					Str("target", r.URL.RequestURI()).
					Str("panic", fmt.Sprint(p)).
					Msg("recovered from panic")
				if !cw.WroteHeader() {
					http.Error(cw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(cw, r)
		})
	}
}

// requestIDOf finds the request ID for a panic log line, falling back to the
// echoed response header and then the incoming request header.
func requestIDOf(r *http.Request, w http.ResponseWriter) string {
	if id := contextx.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := w.Header().Get(contextx.RequestIDHeader); id != "" {
		return id
	}
	return r.Header.Get(contextx.RequestIDHeader)
}
