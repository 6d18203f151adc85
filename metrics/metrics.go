// Package metrics exports Prometheus metrics for the exchanges observed by
// the listener middleware.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Keksclan/goRawrListener/listener"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures a Collector.
type Config struct {
	// Registerer receives the collectors. When nil a fresh registry is
	// created and used for both registration and exposition.
	Registerer prometheus.Registerer
	// Gatherer is what Handler exposes. When nil it is the Registerer if that
	// also gathers, otherwise prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Namespace prefixes every metric name.
	Namespace string
	// Buckets overrides the duration histogram buckets in seconds.
	Buckets []float64
}

// Collector is a listener.ResponseListener that records request counts,
// latency and payload sizes.
type Collector struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec
	requestSize  *prometheus.HistogramVec
}

var sizeBuckets = prometheus.ExponentialBuckets(64, 4, 8)

// knownMethods bounds the method label; anything else is counted as "other".
var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

func methodLabel(m string) string {
	if _, ok := knownMethods[m]; ok {
		return m
	}
	return "other"
}

// New registers the listener metrics on cfg.Registerer.
func New(cfg Config) (*Collector, error) {
	reg, gat := cfg.Registerer, cfg.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg = r
		if gat == nil {
			gat = r
		}
	}
	if gat == nil {
		if g, ok := reg.(prometheus.Gatherer); ok {
			gat = g
		} else {
			gat = prometheus.DefaultGatherer
		}
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	labels := []string{"method", "code", "group"}
	c := &Collector{
		registerer: reg,
		gatherer:   gat,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_listener_requests_total",
			Help:      "Exchanges observed by the listener middleware.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_listener_request_duration_seconds",
			Help:      "Processing time of the downstream handler.",
			Buckets:   buckets,
		}, labels),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_listener_response_size_bytes",
			Help:      "Response content length.",
			Buckets:   sizeBuckets,
		}, labels),
		requestSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_listener_request_size_bytes",
			Help:      "Captured request body size.",
			Buckets:   sizeBuckets,
		}, labels),
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration, c.responseSize, c.requestSize} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// HandleResponse implements listener.ResponseListener.
func (c *Collector) HandleResponse(_ context.Context, resp *listener.Response) {
	group := resp.Request.Group
	if group == "" {
		group = "default"
	}
	lv := []string{methodLabel(resp.Request.Method), strconv.Itoa(resp.StatusCode), group}

	c.requests.WithLabelValues(lv...).Inc()
	c.duration.WithLabelValues(lv...).Observe(resp.Duration.Seconds())
	c.responseSize.WithLabelValues(lv...).Observe(float64(resp.ContentLength))
	c.requestSize.WithLabelValues(lv...).Observe(float64(len(resp.Request.Body)))
}

// Gatherer returns what Handler exposes.
func (c *Collector) Gatherer() prometheus.Gatherer { return c.gatherer }

// Handler serves the collector's gatherer in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{Registry: c.registerer})
}
