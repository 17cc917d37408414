package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/go-redis/redis_rate/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Limiter is satisfied by *redis_rate.Limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

type RateLimiter struct {
	limiter Limiter
	limit   redis_rate.Limit
	log     *slog.Logger
}

func NewRateLimiter(limiter Limiter, cfg *config.RateLimiter, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		limit: redis_rate.Limit{
			Rate:   cfg.RPS,
			Burst:  max(cfg.Burst, cfg.RPS),
			Period: time.Second,
		},
		log: log.With(slog.String("interceptor", "rate_limit")),
	}
}

func (rl *RateLimiter) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := rl.allow(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (rl *RateLimiter) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := rl.allow(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (rl *RateLimiter) allow(ctx context.Context) error {
	ip := clientIP(ctx)
	key := fmt.Sprintf("rate_limit:%s", ip)

	res, err := rl.limiter.Allow(ctx, key, rl.limit)
	if err != nil {
		// fail open
		rl.log.Error("redis rate limiter error", logging.Err(err))
		return nil
	}

	if res.Allowed == 0 {
		rl.log.Warn("rate limit exceeded (redis)",
			slog.String("ip", ip),
			slog.Int("remaining", res.Remaining),
		)
		return status.Errorf(codes.ResourceExhausted, "Too many requests, retry in %s", res.RetryAfter.Round(time.Millisecond))
	}
	return nil
}

func clientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return ip
}
