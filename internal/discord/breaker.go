package discord

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/metrics"
)

// BreakerName labels the Discord REST circuit breaker in logs and metrics.
const BreakerName = "discord-api"

// newBreaker builds the circuit breaker guarding Discord REST calls:
// at most 3 probes while half-open, counts reset every minute while closed,
// 30s open before probing, trips at >= 60% failures over >= 10 requests.
func newBreaker[T any](logger *zap.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker[T] {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logger.Warn("opening circuit",
					zap.String("breaker", BreakerName),
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_rate", ratio),
				)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			}
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
