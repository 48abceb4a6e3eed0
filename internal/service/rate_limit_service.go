package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type rateCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// RateDecision is the outcome of a rate limit check.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitService bounds login attempts per client address and username.
type RateLimitService struct {
	counter rateCounter
	limit   int
	window  time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRateLimitService constructs a RateLimitService allowing limit attempts per window.
func NewRateLimitService(counter rateCounter, limit int, window time.Duration, metrics *MetricsService, logger *zap.Logger) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimitService{counter: counter, limit: limit, window: window, metrics: metrics, logger: logger}
}

// AllowLogin records a login attempt. A counter failure lets the attempt through.
func (s *RateLimitService) AllowLogin(ctx context.Context, ip, username string) RateDecision {
	key := loginKey(ip, username)
	count, ttl, err := s.counter.Hit(ctx, key, s.window)
	if err != nil {
		s.logger.Warn("login rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return RateDecision{Allowed: true, Remaining: s.limit}
	}
	if count > int64(s.limit) {
		s.metrics.RecordAuthEvent(EventRateLimited)
		return RateDecision{Allowed: false, RetryAfter: ttl}
	}
	return RateDecision{Allowed: true, Remaining: s.limit - int(count)}
}

// ResetLogin clears the attempt counter after a successful login.
func (s *RateLimitService) ResetLogin(ctx context.Context, ip, username string) {
	if err := s.counter.Reset(ctx, loginKey(ip, username)); err != nil {
		s.logger.Warn("failed to reset login rate limit", zap.Error(err))
	}
}

func loginKey(ip, username string) string {
	return "login:" + ip + ":" + strings.ToLower(strings.TrimSpace(username))
}
