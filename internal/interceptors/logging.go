package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Novip1906/taskmaster/internal/contextkeys"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		ctx, log := withRequestLogger(ctx, logger, info.FullMethod)

		log.Info("request started")

		resp, err := handler(ctx, req)

		logCompletion(log, start, err)
		return resp, err
	}
}

func LoggingStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx, log := withRequestLogger(ss.Context(), logger, info.FullMethod)

		log.Info("stream started")

		err := handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})

		logCompletion(log, start, err)
		return err
	}
}

func withRequestLogger(ctx context.Context, logger *slog.Logger, method string) (context.Context, *slog.Logger) {
	requestID := generateRequestID()

	log := logger.With(
		slog.String("method", method),
		slog.String("request_id", requestID),
	)

	ctx = contextkeys.WithLogger(ctx, log)
	ctx = contextkeys.WithRequestID(ctx, requestID)
	return ctx, log
}

func logCompletion(log *slog.Logger, start time.Time, err error) {
	attributes := []any{
		slog.Duration("duration", time.Since(start)),
		slog.String("status", status.Code(err).String()),
	}

	if err != nil {
		attributes = append(attributes, slog.String("error", err.Error()))
		log.Error("request failed", attributes...)
	} else {
		log.Info("request completed", attributes...)
	}
}

func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// wrappedStream replaces the stream context so values added by
// interceptors reach the handler.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
