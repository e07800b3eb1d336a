package logger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDInterceptor is a gRPC interceptor that puts a request ID into the context.
// An incoming x-request-id metadata value is reused; otherwise a new UUID is generated.
// The ID is echoed back in the response header metadata.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(strings.ToLower(RequestIDHeader)); len(ids) > 0 {
				requestID = ids[0]
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// fails outside a real server stream, e.g. when the interceptor is called directly
		_ = grpc.SetHeader(ctx, metadata.Pairs(strings.ToLower(RequestIDHeader), requestID))

		return handler(ContextWithRequestID(ctx, requestID), req)
	}
}
