package interceptors

import (
	"context"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/Keksclan/goRawrListener/clientip"
	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/Keksclan/goRawrListener/listener"
	"github.com/Keksclan/goRawrListener/policy"
	"github.com/Keksclan/goRawrListener/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// ListenerConfig configures the listener interceptors.
type ListenerConfig struct {
	Listeners *listener.Set

	// Policies resolves the full method name to a group. Optional.
	Policies *policy.Resolver
	// Sampler limits how many calls per group reach the listeners. Optional.
	Sampler *ratelimit.Groups
	// ClientIP resolves the caller address. A nil resolver uses the peer.
	ClientIP *clientip.Resolver

	// BodyLimit caps the captured wire size of request and response
	// messages. Zero disables capture.
	BodyLimit int

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *ListenerConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// admit resolves the group for fullMethod and reports whether the call is
// reported to listeners.
func (c *ListenerConfig) admit(fullMethod string) (string, *policy.Policy, bool) {
	if c.Listeners == nil || c.Listeners.Empty() {
		return "", nil, false
	}
	group, pol, _ := c.Policies.Resolve(fullMethod)
	if pol != nil && pol.Skip {
		return group, pol, false
	}
	if c.Sampler != nil && !c.Sampler.Allow(group, pol) {
		return group, pol, false
	}
	return group, pol, true
}

func (c *ListenerConfig) requestEvent(ctx context.Context, fullMethod, group string) *listener.Request {
	md, _ := metadata.FromIncomingContext(ctx)
	ev := &listener.Request{
		ID:         contextx.RequestIDFromContext(ctx),
		Method:     http.MethodPost,
		Target:     fullMethod,
		Path:       fullMethod,
		Proto:      "HTTP/2.0",
		Header:     headerFromMetadata(md),
		Group:      group,
		ReceivedAt: c.now(),
	}
	if vals := md.Get(":authority"); len(vals) > 0 {
		ev.Host = vals[0]
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev.RemoteAddr = p.Addr.String()
	}
	if addr, ok := c.ClientIP.FromGRPC(ctx); ok {
		ev.ClientIP = addr
	}
	return ev
}

// ListenerUnary returns a unary server interceptor that reports every call
// to the configured listeners. Request and response messages are captured in
// their protobuf wire encoding.
func ListenerUnary(cfg ListenerConfig) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		group, pol, ok := cfg.admit(info.FullMethod)
		if !ok {
			return handler(ctx, req)
		}
		ctx, _, _ = ensureRequestID(ctx)
		if group != "" {
			ctx = contextx.WithGroup(ctx, group)
		}
		limit := pol.EffectiveBodyLimit(cfg.BodyLimit)

		ev := cfg.requestEvent(ctx, info.FullMethod, group)
		ev.Body, ev.Truncated, _ = encode(req, limit)
		cfg.Listeners.NotifyRequest(ctx, ev)

		start := ev.ReceivedAt
		out := &listener.Response{Request: ev}
		defer func() {
			out.Duration = cfg.now().Sub(start)
			if r := recover(); r != nil {
				out.Panic = r
				out.StatusCode = http.StatusInternalServerError
				cfg.Listeners.NotifyResponse(ctx, out)
				panic(r)
			}
			out.StatusCode = HTTPStatusFromCode(status.Code(err))
			out.Err = err
			if err == nil {
				var size int
				out.Body, out.Truncated, size = encode(resp, limit)
				out.ContentLength = int64(size)
			}
			cfg.Listeners.NotifyResponse(ctx, out)
		}()

		return handler(ctx, req)
	}
}

// ListenerStream returns a stream server interceptor that reports every
// streaming call. The request event carries no body; the response event
// counts the wire size of all messages sent and captures the leading bytes
// of the first message received.
func ListenerStream(cfg ListenerConfig) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		group, pol, ok := cfg.admit(info.FullMethod)
		if !ok {
			return handler(srv, ss)
		}
		ctx, _, _ := ensureRequestID(ss.Context())
		if group != "" {
			ctx = contextx.WithGroup(ctx, group)
		}

		ev := cfg.requestEvent(ctx, info.FullMethod, group)
		cfg.Listeners.NotifyRequest(ctx, ev)

		ws := &listenedStream{
			ServerStream: ss,
			ctx:          ctx,
			limit:        pol.EffectiveBodyLimit(cfg.BodyLimit),
		}
		start := ev.ReceivedAt
		out := &listener.Response{Request: ev}
		defer func() {
			out.Duration = cfg.now().Sub(start)
			ws.mu.Lock()
			ev.Body, ev.Truncated = ws.firstIn, ws.firstInTruncated
			out.ContentLength = ws.sent
			ws.mu.Unlock()
			if r := recover(); r != nil {
				out.Panic = r
				out.StatusCode = http.StatusInternalServerError
				cfg.Listeners.NotifyResponse(ctx, out)
				panic(r)
			}
			out.StatusCode = HTTPStatusFromCode(status.Code(err))
			out.Err = err
			cfg.Listeners.NotifyResponse(ctx, out)
		}()

		return handler(srv, ws)
	}
}

type listenedStream struct {
	grpc.ServerStream
	ctx   context.Context
	limit int

	mu               sync.Mutex
	sent             int64
	received         bool
	firstIn          []byte
	firstInTruncated bool
}

func (s *listenedStream) Context() context.Context { return s.ctx }

func (s *listenedStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		if msg, ok := m.(proto.Message); ok {
			s.mu.Lock()
			s.sent += int64(proto.Size(msg))
			s.mu.Unlock()
		}
	}
	return err
}

func (s *listenedStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.received {
		s.received = true
		s.firstIn, s.firstInTruncated, _ = encode(m, s.limit)
	}
	return nil
}

// encode returns up to limit bytes of m's wire encoding, whether it was cut,
// and the full encoded size. Non-proto values encode to nothing.
func encode(m any, limit int) ([]byte, bool, int) {
	msg, ok := m.(proto.Message)
	if !ok || msg == nil {
		return nil, false, 0
	}
	size := proto.Size(msg)
	if limit <= 0 || size == 0 {
		return nil, false, size
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, false, size
	}
	if len(b) > limit {
		return b[:limit], true, size
	}
	return b, false, size
}

// headerFromMetadata converts incoming metadata to an http.Header, dropping
// pseudo-headers and binary values.
func headerFromMetadata(md metadata.MD) http.Header {
	if len(md) == 0 {
		return nil
	}
	h := make(http.Header, len(md))
	for k, vals := range md {
		if strings.HasPrefix(k, ":") || strings.HasSuffix(k, "-bin") {
			continue
		}
		key := textproto.CanonicalMIMEHeaderKey(k)
		h[key] = append(h[key], vals...)
	}
	return h
}

// HTTPStatusFromCode maps a gRPC status code to the equivalent HTTP status.
func HTTPStatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
