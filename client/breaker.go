package client

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/types"
)

type metricsBreaker struct {
	cb     *gobreaker.CircuitBreaker[*types.MetricsSnapshot]
	logger types.Logger
}

func newMetricsBreaker(config *types.CircuitBreakerConfig, logger types.Logger) *metricsBreaker {
	if config == nil || !config.Enabled {
		return nil
	}

	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	recovery := config.RecoveryTimeout
	if recovery <= 0 {
		recovery = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "admin-metrics",
		MaxRequests: config.HalfOpenRequests,
		Timeout:     recovery,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &metricsBreaker{
		cb:     gobreaker.NewCircuitBreaker[*types.MetricsSnapshot](settings),
		logger: logger,
	}
}

func (b *metricsBreaker) execute(fn func() (*types.MetricsSnapshot, error)) (*types.MetricsSnapshot, error) {
	snapshot, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &types.TransportError{
			Message: "Metrics endpoint unavailable, retrying later",
			Err:     types.WrapError(types.ErrCircuitBreakerOpen, err.Error()),
		}
	}
	return snapshot, err
}

func (b *metricsBreaker) state() gobreaker.State {
	return b.cb.State()
}
