package grpc

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"autobattler/arbiter/internal/logging"
)

// SharedSecretMetadataKey carries the shared secret on every call.
const SharedSecretMetadataKey = "x-arbiter-shared-secret"

// traceMetadataKey mirrors logging.TraceIDHeader in gRPC metadata form.
const traceMetadataKey = "x-trace-id"

func checkSharedSecret(ctx context.Context, expected string) error {
	if expected == "" {
		return status.Error(codes.Unauthenticated, "shared secret not configured")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

// UnarySharedSecret rejects unary calls that do not present secret.
func UnarySharedSecret(secret string) grpc.UnaryServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := checkSharedSecret(ctx, normalized); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamSharedSecret rejects streams that do not present secret.
func StreamSharedSecret(secret string) grpc.StreamServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := checkSharedSecret(ss.Context(), normalized); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func extractSharedSecret(md metadata.MD) string {
	if md == nil {
		return ""
	}
	for _, value := range md.Get(SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if strings.HasPrefix(strings.ToLower(value), "bearer ") {
			token := strings.TrimSpace(value[7:])
			if token != "" {
				return token
			}
		}
	}
	return ""
}

func traceContext(ctx context.Context, base *logging.Logger) (context.Context, *logging.Logger) {
	incoming := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(traceMetadataKey); len(values) > 0 {
			incoming = values[0]
		}
	}
	ctx, logger, traceID := logging.WithTrace(ctx, base, incoming)
	_ = grpc.SetHeader(ctx, metadata.Pairs(traceMetadataKey, traceID))
	return ctx, logger
}

// UnaryLogging attaches a trace-scoped logger to the call and logs its outcome.
func UnaryLogging(base *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, logger := traceContext(ctx, base)
		started := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, info.FullMethod, started, err)
		return resp, err
	}
}

// StreamLogging is the streaming counterpart of UnaryLogging.
func StreamLogging(base *logging.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, logger := traceContext(ss.Context(), base)
		started := time.Now()
		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		logCall(logger, info.FullMethod, started, err)
		return err
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

func logCall(logger *logging.Logger, method string, started time.Time, err error) {
	code := status.Code(err)
	fields := []logging.Field{
		logging.String("method", method),
		logging.String("code", code.String()),
		logging.Duration("duration", time.Since(started)),
	}
	switch code {
	case codes.OK:
		logger.Debug("grpc call served", fields...)
	case codes.Internal, codes.Unknown:
		logger.Error("grpc call failed", append(fields, logging.Error(err))...)
	default:
		logger.Warn("grpc call rejected", append(fields, logging.Error(err))...)
	}
}
