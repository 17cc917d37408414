package interceptors

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Novip1906/taskmaster/internal/contextkeys"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*contextkeys.TokenClaims, error)
}

var publicMethods = map[string]bool{
	rpc.AuthCreateAccountMethod: true,
	rpc.AuthSignInMethod:        true,
}

func AuthUnaryInterceptor(validator TokenValidator, log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		ctx, err = authenticate(ctx, validator, log)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func AuthStreamInterceptor(validator TokenValidator, log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), validator, log)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticate(ctx context.Context, validator TokenValidator, log *slog.Logger) (context.Context, error) {
	log = log.With(slog.String("interceptor", "auth"))

	log.Debug("begin")
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		log.Error("context error")
		return nil, status.Error(codes.Unauthenticated, "Missing data")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		log.Warn("auth headers empty")
		return nil, status.Error(codes.Unauthenticated, "Authorization header required")
	}

	authHeader := authHeaders[0]
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		log.Warn("invalid authorization format")
		return nil, status.Error(codes.Unauthenticated, "Invalid authorization format. Expected 'Bearer <token>'")
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		log.Warn("missing token after bearer prefix")
		return nil, status.Error(codes.Unauthenticated, "Missing token after 'Bearer '")
	}

	claims, err := validator.ValidateToken(ctx, token)
	if err != nil {
		log.Warn("validate token error", logging.Err(err))
		return nil, status.Error(codes.Unauthenticated, "Invalid token")
	}

	log.Debug("token is ok", slog.String("user_id", claims.UserId))

	ctx = contextkeys.WithTokenClaims(ctx, claims)

	reqLog := contextkeys.GetLogger(ctx).With(slog.String("user_id", claims.UserId))
	ctx = contextkeys.WithLogger(ctx, reqLog)

	return ctx, nil
}
