package gorawrlistener

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/Keksclan/goRawrListener/internal/capture"
	"github.com/Keksclan/goRawrListener/listener"
	"github.com/Keksclan/goRawrListener/ratelimit"
	"github.com/google/uuid"
)

// Middleware wraps a downstream http.Handler and reports every exchange to
// the configured listeners. The downstream handler sees the request exactly
// as it arrived, and the client receives exactly what the handler wrote.
type Middleware struct {
	next    http.Handler
	handler http.Handler

	cfg     *config
	set     *listener.Set
	sampler *ratelimit.Groups
}

// New wraps next. Without listener options the default request and response
// listeners are installed, logging through the configured zerolog logger.
//
// Example:
//
//	h := gl.New(app,
//		gl.WithRecovery(),
//		gl.WithResponseListeners(listener.DefaultResponseListener(logger), audit),
//	)
func New(next http.Handler, opts ...Option) *Middleware {
	cfg := newConfig(opts)
	m := &Middleware{
		next:    next,
		cfg:     cfg,
		set:     cfg.listeners(),
		sampler: ratelimit.NewGroups(cfg.globalSample),
	}
	m.handler = cfg.layers(m.set, m.sampler, m.listenLayer).Handler(next)
	return m
}

// ServeHTTP implements http.Handler.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}

func (m *Middleware) listenLayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.listen(next, w, r)
	})
}

func (m *Middleware) listen(next http.Handler, w http.ResponseWriter, r *http.Request) {
	group, pol, _ := m.cfg.policies.Resolve(r.URL.Path)
	if (pol != nil && pol.Skip) || m.set.Empty() || !m.sampler.Allow(group, pol) {
		next.ServeHTTP(w, r)
		return
	}

	start := m.cfg.now()
	id := m.requestID(r)
	ctx := contextx.WithRequestID(r.Context(), id)
	if group != "" {
		ctx = contextx.WithGroup(ctx, group)
	}
	if m.cfg.echoRequestID {
		w.Header().Set(m.cfg.requestIDHeader, id)
	}
	r = r.WithContext(ctx)

	limit := pol.EffectiveBodyLimit(m.cfg.bodyLimit)
	body, truncated, err := capture.Body(r, limit)
	if err != nil {
		m.cfg.logger.Debug().Err(err).Str("request_id", id).Msg("reading request body")
	}

	req := &listener.Request{
		ID:         id,
		Method:     r.Method,
		Target:     r.URL.RequestURI(),
		Path:       r.URL.Path,
		Proto:      r.Proto,
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header,
		Body:       body,
		Truncated:  truncated,
		Group:      group,
		ReceivedAt: start,
	}
	if addr, ok := m.cfg.clientIP.FromRequest(r); ok {
		req.ClientIP = addr
	}
	m.set.NotifyRequest(ctx, req)

	cw := capture.NewWriter(w, limit)
	defer func() {
		p := recover()
		m.set.NotifyResponse(ctx, m.response(req, cw, start, p))
		if p != nil {
			panic(p)
		}
	}()
	next.ServeHTTP(cw, r)
}

// requestID returns the ID already in the context, the incoming header value
// or a fresh UUID, in that order.
func (m *Middleware) requestID(r *http.Request) string {
	if id := contextx.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(m.cfg.requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func (m *Middleware) response(req *listener.Request, cw *capture.Writer, start time.Time, p any) *listener.Response {
	resp := &listener.Response{
		Request:    req,
		StatusCode: cw.Status(),
		Header:     cw.Header().Clone(),
		Duration:   m.cfg.now().Sub(start),
		Panic:      p,
	}
	resp.Body, resp.Truncated = cw.Body()

	resp.ContentLength = cw.Written()
	if cl, err := strconv.ParseInt(cw.Header().Get("Content-Length"), 10, 64); err == nil && cl >= 0 {
		resp.ContentLength = cl
	}

	if p != nil {
		if !cw.WroteHeader() {
			resp.StatusCode = http.StatusInternalServerError
		}
		if err, ok := p.(error); ok {
			resp.Err = err
		}
	}
	return resp
}
