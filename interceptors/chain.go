package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnary composes unary interceptors into one. Interceptors execute in
// slice order; an empty slice yields nil so callers can skip the server
// option entirely.
func ChainUnary(chain []grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, final grpc.UnaryHandler) (any, error) {
		var step func(i int) grpc.UnaryHandler
		step = func(i int) grpc.UnaryHandler {
			if i == len(chain) {
				return final
			}
			return func(ctx context.Context, req any) (any, error) {
				return chain[i](ctx, req, info, step(i+1))
			}
		}
		return step(0)(ctx, req)
	}
}

// ChainStream is the streaming counterpart of ChainUnary.
func ChainStream(chain []grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, final grpc.StreamHandler) error {
		var step func(i int) grpc.StreamHandler
		step = func(i int) grpc.StreamHandler {
			if i == len(chain) {
				return final
			}
			return func(srv any, ss grpc.ServerStream) error {
				return chain[i](srv, ss, info, step(i+1))
			}
		}
		return step(0)(srv, ss)
	}
}
