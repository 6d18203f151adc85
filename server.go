package gorawrlistener

import (
	"net/http"

	"github.com/Keksclan/goRawrListener/interceptors"
	"github.com/Keksclan/goRawrListener/recorder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// Server bundles an HTTP handler wrapped by the listener [Middleware] with a
// [grpc.Server] whose interceptor chain reports RPCs to the same listeners.
// Both transports share one listener set, one sampler and one set of route
// policies.
//
// After construction the gRPC server is available through [Server.GRPC] so
// that services can be registered normally:
//
//	srv := gl.NewServer(app, gl.DefaultOptions()...)
//	pb.RegisterEchoServer(srv.GRPC(), &echo{})
type Server struct {
	mw         *Middleware
	grpcServer *grpc.Server
}

// NewServer wraps h and builds the gRPC server from the same options.
// Middleware execution order is determined by fixed priority levels
// (recovery, tracing, request ID, listener, user layers), not by the order
// options are passed.
func NewServer(h http.Handler, opts ...Option) *Server {
	mw := New(h, opts...)

	serverOpts := mw.cfg.layers(mw.set, mw.sampler, nil).ServerOptions(interceptors.ChainUnary, interceptors.ChainStream)

	return &Server{
		mw:         mw,
		grpcServer: grpc.NewServer(serverOpts...),
	}
}

// Handler returns the wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mw
}

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Recorder returns the recorder configured via WithRecorder, or nil.
func (s *Server) Recorder() *recorder.Recorder {
	return s.mw.cfg.recorder
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics:
// the collector configured via WithMetrics, or the default registry.
func (s *Server) MetricsHandler() http.Handler {
	if s.mw.cfg.metrics != nil {
		return s.mw.cfg.metrics.Handler()
	}
	return promhttp.Handler()
}
