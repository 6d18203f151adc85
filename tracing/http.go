package tracing

import (
	"fmt"
	"net/http"

	"github.com/Keksclan/goRawrListener/internal/capture"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Middleware returns an HTTP middleware that creates a server span for every
// request. Responses with a 5xx status and handler panics mark the span as
// failed. If cfg is nil the middleware is a passthrough.
func Middleware(cfg *Config) func(http.Handler) http.Handler {
	if cfg == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := cfg.startServerSpan(r.Context(), "HTTP "+r.Method,
				propagation.HeaderCarrier(r.Header),
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("server.address", r.Host),
				attribute.String("network.protocol.version", fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor)),
				attribute.String("user_agent.original", r.UserAgent()),
			)
			defer span.End()

			cw := capture.NewWriter(w, 0)
			defer func() {
				if p := recover(); p != nil {
					span.SetStatus(codes.Error, fmt.Sprint(p))
					span.SetAttributes(attribute.Int("http.response.status_code", http.StatusInternalServerError))
					panic(p)
				}
				recordHTTPStatus(span, cw.Status())
			}()

			next.ServeHTTP(cw, r.WithContext(ctx))
		})
	}
}

func recordHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
