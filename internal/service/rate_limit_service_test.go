package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockRateCounter struct {
	counts map[string]int64
	err    error
}

func (m *mockRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	m.counts[key]++
	return m.counts[key], window, nil
}

func (m *mockRateCounter) Reset(ctx context.Context, key string) error {
	delete(m.counts, key)
	return nil
}

func TestRateLimitServiceBlocksAfterLimit(t *testing.T) {
	counter := &mockRateCounter{counts: map[string]int64{}}
	svc := NewRateLimitService(counter, 3, time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := svc.AllowLogin(ctx, "10.0.0.1", "alice")
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d := svc.AllowLogin(ctx, "10.0.0.1", "Alice")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	assert.True(t, svc.AllowLogin(ctx, "10.0.0.2", "alice").Allowed, "other address")
	assert.True(t, svc.AllowLogin(ctx, "10.0.0.1", "bob").Allowed, "other user")

	svc.ResetLogin(ctx, "10.0.0.1", "alice")
	assert.True(t, svc.AllowLogin(ctx, "10.0.0.1", "alice").Allowed)
}

func TestRateLimitServiceFailsOpen(t *testing.T) {
	counter := &mockRateCounter{err: errors.New("redis down")}
	svc := NewRateLimitService(counter, 1, time.Minute, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		assert.True(t, svc.AllowLogin(context.Background(), "10.0.0.1", "alice").Allowed)
	}
}
