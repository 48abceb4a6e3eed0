package apiclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultActivityInterval is used when StartActivityMonitor gets a
// non-positive interval.
const DefaultActivityInterval = 5 * time.Minute

// ActivityMonitor runs a check on a fixed interval until stopped.
type ActivityMonitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartActivityMonitor runs check every interval. A nil check asks the server
// for the session security report. Starting a monitor stops the previous one.
func (g *Gateway) StartActivityMonitor(ctx context.Context, interval time.Duration, check func(context.Context) error) *ActivityMonitor {
	if check == nil {
		check = g.securityCheck
	}
	if interval <= 0 {
		interval = DefaultActivityInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	m := &ActivityMonitor{cancel: cancel, done: make(chan struct{})}

	g.monitorMu.Lock()
	previous := g.monitor
	g.monitor = m
	g.monitorMu.Unlock()
	if previous != nil {
		previous.Stop()
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := check(ctx); err != nil && ctx.Err() == nil {
					g.logger.Info("activity check failed", zap.Error(err))
				}
			}
		}
	}()
	return m
}

// Stop halts the monitor. It does not wait for a running check, which may
// itself be the caller.
func (m *ActivityMonitor) Stop() {
	m.once.Do(m.cancel)
}

// Done is closed once the monitor goroutine has exited.
func (m *ActivityMonitor) Done() <-chan struct{} {
	return m.done
}

func (g *Gateway) stopMonitor() {
	g.monitorMu.Lock()
	m := g.monitor
	g.monitor = nil
	g.monitorMu.Unlock()
	if m != nil {
		m.Stop()
	}
}

func (g *Gateway) securityCheck(ctx context.Context) error {
	return g.call(ctx, http.MethodGet, PathSecurityCheck, nil, nil)
}
