package interceptors

import (
	"context"
	"fmt"

	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func logPanic(log zerolog.Logger, ctx context.Context, method string, r any) {
	log.Error().
		Str("request_id", contextx.RequestIDFromContext(ctx)).
		Str("method", method).
		Str("panic", fmt.Sprint(r)).
		Msg("recovered from panic")
}

// RecoveryUnary returns a unary server interceptor that recovers from panics,
// logs them and returns an Internal gRPC error instead of crashing the
// process.
func RecoveryUnary(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(log, ctx, info.FullMethod, r)
				resp = nil
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStream is the streaming counterpart of RecoveryUnary.
func RecoveryStream(log zerolog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(log, ss.Context(), info.FullMethod, r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}
