package gorawrlistener

import (
	"net/http"
	"time"

	"github.com/Keksclan/goRawrListener/clientip"
	"github.com/Keksclan/goRawrListener/internal/core"
	"github.com/Keksclan/goRawrListener/listener"
	"github.com/Keksclan/goRawrListener/metrics"
	"github.com/Keksclan/goRawrListener/policy"
	"github.com/Keksclan/goRawrListener/ratelimit"
	"github.com/Keksclan/goRawrListener/recorder"
	"github.com/Keksclan/goRawrListener/tracing"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Option configures a Middleware or Server.
type Option func(*config)

// WithRequestListeners replaces the default request listener. Calling it
// with no listeners disables request events.
func WithRequestListeners(ls ...listener.RequestListener) Option {
	return func(c *config) {
		c.requests = ls
		c.requestsSet = true
	}
}

// WithResponseListeners replaces the default response listener. Calling it
// with no listeners disables response events, except for those added by
// WithMetrics, WithOpenTelemetry and WithRecorder.
func WithResponseListeners(ls ...listener.ResponseListener) Option {
	return func(c *config) {
		c.responses = ls
		c.responsesSet = true
	}
}

// WithLogger sets the logger used by the default listeners and for
// recovered panics. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithBodyLimit sets how many request and response body bytes are captured
// per exchange. Zero disables body capture.
func WithBodyLimit(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.bodyLimit = n
	}
}

// WithPolicies configures route groups. Requests are matched on the URL path
// (HTTP) or full method name (gRPC).
//
// Example:
//
//	gl.WithPolicies(
//		policy.Group("health").Exact("/healthz").Policy(policy.Policy{Skip: true}),
//		policy.Group("upload").Prefix("/upload/").Policy(policy.Policy{NoBody: true}),
//	)
func WithPolicies(groups ...*policy.GroupBuilder) Option {
	return func(c *config) { c.policies = policy.NewResolver(groups...) }
}

// WithSampling caps the number of exchanges reported to listeners for
// routes whose policy has no sample rule of its own: at most rate exchanges
// per window. Unsampled exchanges are still served.
func WithSampling(rate int, window time.Duration) Option {
	return func(c *config) {
		c.globalSample = ratelimit.FromRule(&policy.SampleRule{Rate: rate, Window: window})
	}
}

// WithRecovery installs panic recovery: a panicking handler yields
// 500 Internal Server Error (codes.Internal for gRPC) instead of crashing the
// connection. http.ErrAbortHandler is always re-raised.
func WithRecovery() Option {
	return func(c *config) { c.recovery = true }
}

// WithRequestIDHeader changes the header carrying the request ID.
func WithRequestIDHeader(name string) Option {
	return func(c *config) { c.requestIDHeader = name }
}

// WithEchoRequestID sets the request ID header on every response.
func WithEchoRequestID() Option {
	return func(c *config) { c.echoRequestID = true }
}

// WithClientIPResolver sets how the client address is derived from
// forwarding headers. Without it the peer address is used.
func WithClientIPResolver(r *clientip.Resolver) Option {
	return func(c *config) { c.clientIP = r }
}

// WithOpenTelemetry creates a server span per exchange and annotates it
// with the listener response event.
func WithOpenTelemetry(cfg tracing.Config) Option {
	return func(c *config) { c.tracing = &cfg }
}

// WithMetrics reports every exchange to the Prometheus collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) { c.metrics = m }
}

// WithRecorder stores every exchange in the recorder's cache.
func WithRecorder(r *recorder.Recorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithClock overrides the time source used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithHTTPMiddleware appends an HTTP middleware running inside the listener,
// so its effects are observed by the listeners.
func WithHTTPMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(c *config) {
		c.middlewares.Add(core.Layer{Order: orderUser, HTTP: mw})
	}
}

// WithUnaryInterceptor appends a unary server interceptor running inside the
// listener interceptor.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add(core.Layer{Order: orderUser, Unary: i})
	}
}

// WithStreamInterceptor appends a stream server interceptor running inside
// the listener interceptor.
func WithStreamInterceptor(i grpc.StreamServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add(core.Layer{Order: orderUser, Stream: i})
	}
}
