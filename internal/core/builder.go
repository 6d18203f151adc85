package core

import "google.golang.org/grpc"

// ServerOptions turns the gRPC half of the registered layers into options for
// grpc.NewServer. The chain functions fold each interceptor slice, in layer
// order, into a single interceptor; a transport with no layers contributes
// no option.
func (b *MiddlewareBuilder) ServerOptions(
	chainUnary func([]grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor,
	chainStream func([]grpc.StreamServerInterceptor) grpc.StreamServerInterceptor,
) []grpc.ServerOption {
	unary, stream := b.Interceptors()

	var opts []grpc.ServerOption
	if len(unary) > 0 {
		if u := chainUnary(unary); u != nil {
			opts = append(opts, grpc.UnaryInterceptor(u))
		}
	}
	if len(stream) > 0 {
		if s := chainStream(stream); s != nil {
			opts = append(opts, grpc.StreamInterceptor(s))
		}
	}
	return opts
}
