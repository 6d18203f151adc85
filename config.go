package gorawrlistener

import (
	"net/http"
	"time"

	"github.com/Keksclan/goRawrListener/clientip"
	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/Keksclan/goRawrListener/interceptors"
	"github.com/Keksclan/goRawrListener/internal/core"
	"github.com/Keksclan/goRawrListener/listener"
	"github.com/Keksclan/goRawrListener/metrics"
	"github.com/Keksclan/goRawrListener/policy"
	"github.com/Keksclan/goRawrListener/ratelimit"
	"github.com/Keksclan/goRawrListener/recorder"
	"github.com/Keksclan/goRawrListener/tracing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fixed execution order of the built-in layers. Lower values run first.
const (
	orderRecovery  = 100
	orderTracing   = 200
	orderRequestID = 300
	orderListen    = 400
	orderUser      = 500
)

// DefaultBodyLimit is the number of request and response body bytes
// captured per exchange unless WithBodyLimit says otherwise.
const DefaultBodyLimit = 64 << 10

// config holds the internal configuration assembled via functional options.
type config struct {
	logger zerolog.Logger

	requests     []listener.RequestListener
	requestsSet  bool
	responses    []listener.ResponseListener
	responsesSet bool

	bodyLimit       int
	policies        *policy.Resolver
	globalSample    *ratelimit.Limiter
	recovery        bool
	requestIDHeader string
	echoRequestID   bool
	clientIP        *clientip.Resolver
	tracing         *tracing.Config
	metrics         *metrics.Collector
	recorder        *recorder.Recorder
	now             func() time.Time

	// user layers registered through WithHTTPMiddleware and the interceptor
	// options.
	middlewares core.MiddlewareBuilder
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:          log.Logger,
		bodyLimit:       DefaultBodyLimit,
		requestIDHeader: contextx.RequestIDHeader,
		now:             time.Now,
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// listeners assembles the listener set: the configured (or default)
// listeners first, followed by the metrics, tracing and recorder
// listeners in that order.
func (c *config) listeners() *listener.Set {
	set := &listener.Set{Logger: c.logger}

	if c.requestsSet {
		set.Requests = append(set.Requests, c.requests...)
	} else {
		set.Requests = append(set.Requests, listener.DefaultRequestListener(c.logger))
	}

	if c.responsesSet {
		set.Responses = append(set.Responses, c.responses...)
	} else {
		set.Responses = append(set.Responses, listener.DefaultResponseListener(c.logger))
	}
	if c.metrics != nil {
		set.Responses = append(set.Responses, c.metrics)
	}
	if c.tracing != nil {
		set.Responses = append(set.Responses, tracing.ResponseListener())
	}
	if c.recorder != nil {
		set.Responses = append(set.Responses, c.recorder)
	}
	return set
}

// layers returns a builder holding the built-in layers for both transports
// plus the user layers. listen is the HTTP form of the listener layer.
func (c *config) layers(set *listener.Set, sampler *ratelimit.Groups, listen func(http.Handler) http.Handler) *core.MiddlewareBuilder {
	var b core.MiddlewareBuilder

	if c.recovery {
		b.Add(core.Layer{
			Name:   "recovery",
			Order:  orderRecovery,
			HTTP:   recoverHTTP(c.logger),
			Unary:  interceptors.RecoveryUnary(c.logger),
			Stream: interceptors.RecoveryStream(c.logger),
		})
	}
	if c.tracing != nil {
		b.Add(core.Layer{
			Name:   "tracing",
			Order:  orderTracing,
			HTTP:   tracing.Middleware(c.tracing),
			Unary:  tracing.UnaryServerInterceptor(c.tracing),
			Stream: tracing.StreamServerInterceptor(c.tracing),
		})
	}
	b.Add(core.Layer{
		Name:   "requestid",
		Order:  orderRequestID,
		Unary:  interceptors.RequestIDUnary(),
		Stream: interceptors.RequestIDStream(),
	})

	lc := interceptors.ListenerConfig{
		Listeners: set,
		Policies:  c.policies,
		Sampler:   sampler,
		ClientIP:  c.clientIP,
		BodyLimit: c.bodyLimit,
		Now:       c.now,
	}
	b.Add(core.Layer{
		Name:   "listen",
		Order:  orderListen,
		HTTP:   listen,
		Unary:  interceptors.ListenerUnary(lc),
		Stream: interceptors.ListenerStream(lc),
	})

	b.Merge(&c.middlewares)
	return &b
}
