package tracing

import (
	"context"

	"github.com/Keksclan/goRawrListener/listener"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResponseListener returns a listener that records each completed exchange
// as a "listener.response" event on the span active in the request context.
// Exchanges without a recording span are ignored.
func ResponseListener() listener.ResponseListener {
	return listener.ResponseListenerFunc(func(ctx context.Context, resp *listener.Response) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		if resp.Request.Group != "" {
			span.SetAttributes(attribute.String("listener.group", resp.Request.Group))
		}
		span.AddEvent("listener.response", trace.WithAttributes(
			attribute.String("listener.request_id", resp.Request.ID),
			attribute.Int("listener.status", resp.StatusCode),
			attribute.Int64("listener.size", resp.ContentLength),
			attribute.Float64("listener.duration_ms", float64(resp.Duration.Microseconds())/1000),
			attribute.Bool("listener.body_truncated", resp.Truncated),
		))
	})
}
