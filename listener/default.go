package listener

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// DefaultRequestListener returns a listener that logs every request at debug
// level, including the captured body.
func DefaultRequestListener(log zerolog.Logger) RequestListener {
	return RequestListenerFunc(func(_ context.Context, req *Request) {
		log.Debug().
			Str("request_id", req.ID).
			Str("method", req.Method).
			Str("target", req.Target).
			Str("group", req.Group).
			Bytes("body", req.Body).
			Bool("body_truncated", req.Truncated).
			Msg("request received")
	})
}

// DefaultResponseListener returns a listener that logs every exchange as an
// Apache combined log line with the processing time appended. Server errors
// and panics are logged at error level, client errors at warn level, and
// everything else at info level.
func DefaultResponseListener(log zerolog.Logger) ResponseListener {
	return ResponseListenerFunc(func(_ context.Context, resp *Response) {
		var ev *zerolog.Event
		switch {
		case resp.Failed():
			ev = log.Error()
		case resp.StatusCode >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		ev = ev.
			Str("request_id", resp.Request.ID).
			Int("status", resp.StatusCode).
			Int64("size", resp.ContentLength).
			Dur("duration", resp.Duration)
		if resp.Err != nil {
			ev = ev.Err(resp.Err)
		}
		if resp.Panic != nil {
			ev = ev.Str("panic", fmt.Sprint(resp.Panic))
		}
		ev.Msg(FormatCombined(resp))
	})
}
