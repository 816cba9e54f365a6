package dispatch

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	breakerConsecutiveFailures = 3
	breakerOpenTimeout         = 30 * time.Second
)

// breakerProvider guards one provider with a circuit breaker so a backend
// outage cannot stall every flush cycle. Batches offered while the
// breaker is open are dropped for that provider only.
type breakerProvider struct {
	Provider

	cb *gobreaker.CircuitBreaker
}

func wrapWithBreaker(p Provider, log logger.Logger) *breakerProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker state changed")
		},
	})

	return &breakerProvider{Provider: p, cb: cb}
}

func (b *breakerProvider) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})

	return err
}

func (b *breakerProvider) SendMetrics(ctx context.Context, batch []models.MetricData) error {
	return b.execute(func() error { return b.Provider.SendMetrics(ctx, batch) })
}

func (b *breakerProvider) SendLogs(ctx context.Context, batch []models.LogData) error {
	return b.execute(func() error { return b.Provider.SendLogs(ctx, batch) })
}

func (b *breakerProvider) SendTraces(ctx context.Context, batch []*models.TraceData) error {
	return b.execute(func() error { return b.Provider.SendTraces(ctx, batch) })
}

func (b *breakerProvider) SendAlert(ctx context.Context, alert models.AlertData) error {
	return b.execute(func() error { return b.Provider.SendAlert(ctx, alert) })
}

// State reports the breaker position. HealthCheck deliberately bypasses
// the breaker so probes always reach the real backend.
func (b *breakerProvider) State() gobreaker.State {
	return b.cb.State()
}
