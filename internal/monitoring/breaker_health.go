package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

// StateReporter is satisfied by *gobreaker.CircuitBreaker.
type StateReporter interface {
	Name() string
	State() gobreaker.State
}

// MonitorBreakerHealth marks the model backend unhealthy while its circuit
// breaker is open. Reading the state also lets an expired open breaker move to
// half-open, so a recovered backend is picked up on the next tick.
func MonitorBreakerHealth(ctx context.Context, breaker StateReporter, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CheckBreaker(breaker, healthy)
		}
	}
}

func CheckBreaker(breaker StateReporter, healthy *atomic.Bool) bool {
	isHealthy := breaker.State() != gobreaker.StateOpen
	if healthy.Swap(isHealthy) != isHealthy {
		if isHealthy {
			slog.Info("[HealthCheck] Model backend recovered", slog.String("breaker", breaker.Name()))
		} else {
			slog.Warn("[HealthCheck] Model backend is unhealthy", slog.String("breaker", breaker.Name()))
		}
	}
	return isHealthy
}
