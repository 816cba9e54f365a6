/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultMaxMetricsBuffer = 500
	defaultMaxLogsBuffer    = 200
	defaultMaxTracesBuffer  = 50
	defaultFlushInterval    = 15 * time.Second

	// dispatchFailureMetric counts failed provider deliveries. It is
	// alertable; only the observe_alert_ prefix is reserved.
	dispatchFailureMetric = "observe_dispatch_failures"
)

// Dispatcher buffers metrics, logs, and traces in independent queues and
// flushes all three to every enabled provider on a shared interval, or
// earlier when a queue crosses its size threshold. Alerts skip the
// queues entirely.
type Dispatcher struct {
	providers []*breakerProvider

	maxMetrics int
	maxLogs    int
	maxTraces  int
	interval   time.Duration

	clock  clock.Clock
	logger logger.Logger

	mu       sync.Mutex
	metrics  []models.MetricData
	logs     []models.LogData
	traces   []*models.TraceData
	recorder metrics.MetricRecorder

	flushCh  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher wires the given providers behind circuit breakers. A nil
// cfg uses defaults throughout; a nil clk uses the wall clock.
func NewDispatcher(cfg *models.DispatchConfig, providers []Provider, clk clock.Clock, log logger.Logger) *Dispatcher {
	if cfg == nil {
		cfg = &models.DispatchConfig{}
	}

	if clk == nil {
		clk = clock.New()
	}

	d := &Dispatcher{
		maxMetrics: defaultMaxMetricsBuffer,
		maxLogs:    defaultMaxLogsBuffer,
		maxTraces:  defaultMaxTracesBuffer,
		interval:   defaultFlushInterval,
		clock:      clk,
		logger:     log,
		flushCh:    make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}

	if cfg.MaxMetricsBuffer > 0 {
		d.maxMetrics = cfg.MaxMetricsBuffer
	}

	if cfg.MaxLogsBuffer > 0 {
		d.maxLogs = cfg.MaxLogsBuffer
	}

	if cfg.MaxTracesBuffer > 0 {
		d.maxTraces = cfg.MaxTracesBuffer
	}

	if cfg.FlushInterval > 0 {
		d.interval = time.Duration(cfg.FlushInterval)
	}

	for _, p := range providers {
		d.providers = append(d.providers, wrapWithBreaker(p, log))
	}

	return d
}

// SetRecorder registers the aggregator that receives delivery-failure
// counters. Wiring calls this once before Start.
func (d *Dispatcher) SetRecorder(rec metrics.MetricRecorder) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recorder = rec
}

// SendMetrics queues metric samples for the next flush.
func (d *Dispatcher) SendMetrics(batch []models.MetricData) {
	if len(batch) == 0 {
		return
	}

	d.mu.Lock()
	d.metrics = append(d.metrics, batch...)
	full := len(d.metrics) >= d.maxMetrics
	d.mu.Unlock()

	if full {
		d.signalFlush()
	}
}

// SendLogs queues log entries for the next flush.
func (d *Dispatcher) SendLogs(batch []models.LogData) {
	if len(batch) == 0 {
		return
	}

	d.mu.Lock()
	d.logs = append(d.logs, batch...)
	full := len(d.logs) >= d.maxLogs
	d.mu.Unlock()

	if full {
		d.signalFlush()
	}
}

// SendTraces queues completed traces for the next flush.
func (d *Dispatcher) SendTraces(batch []*models.TraceData) {
	if len(batch) == 0 {
		return
	}

	d.mu.Lock()
	d.traces = append(d.traces, batch...)
	full := len(d.traces) >= d.maxTraces
	d.mu.Unlock()

	if full {
		d.signalFlush()
	}
}

// SendAlert fans the alert out to every enabled provider immediately.
// Provider failures are isolated from each other and folded into the
// returned error.
func (d *Dispatcher) SendAlert(ctx context.Context, alert models.AlertData) error {
	var (
		wg   sync.WaitGroup
		errM sync.Mutex
		errs []error
	)

	for _, p := range d.providers {
		if !p.Enabled() {
			continue
		}

		wg.Add(1)

		go func(p *breakerProvider) {
			defer wg.Done()

			if err := p.SendAlert(ctx, alert); err != nil {
				d.logger.Error().Err(err).
					Str("provider", p.Name()).
					Str("alert_id", alert.ID).
					Msg("Failed to dispatch alert")
				d.recordFailure(p.Name(), kindAlerts)

				errM.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				errM.Unlock()
			}
		}(p)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("alert dispatch failed: %w", errors.Join(errs...))
	}

	return nil
}

func (d *Dispatcher) signalFlush() {
	select {
	case d.flushCh <- struct{}{}:
	default:
	}
}

// Flush drains all three buffers and delivers the copies to every
// enabled provider concurrently. One provider failing never keeps the
// batch from the others.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.mu.Lock()

	ms := d.metrics
	ls := d.logs
	ts := d.traces
	d.metrics = nil
	d.logs = nil
	d.traces = nil

	d.mu.Unlock()

	if len(ms) == 0 && len(ls) == 0 && len(ts) == 0 {
		return
	}

	var wg sync.WaitGroup

	for _, p := range d.providers {
		if !p.Enabled() {
			continue
		}

		wg.Add(1)

		go func(p *breakerProvider) {
			defer wg.Done()
			d.deliver(ctx, p, ms, ls, ts)
		}(p)
	}

	wg.Wait()

	d.logger.Debug().
		Int("metrics", len(ms)).
		Int("logs", len(ls)).
		Int("traces", len(ts)).
		Msg("Flushed telemetry buffers")
}

// deliver pushes the batch copies to one provider, logging and counting
// each failed kind independently.
func (d *Dispatcher) deliver(ctx context.Context, p *breakerProvider, ms []models.MetricData, ls []models.LogData, ts []*models.TraceData) {
	if len(ms) > 0 {
		if err := p.SendMetrics(ctx, ms); err != nil {
			d.logger.Error().Err(err).
				Str("provider", p.Name()).
				Int("count", len(ms)).
				Msg("Failed to dispatch metrics")
			d.recordFailure(p.Name(), kindMetrics)
		}
	}

	if len(ls) > 0 {
		if err := p.SendLogs(ctx, ls); err != nil {
			d.logger.Error().Err(err).
				Str("provider", p.Name()).
				Int("count", len(ls)).
				Msg("Failed to dispatch logs")
			d.recordFailure(p.Name(), kindLogs)
		}
	}

	if len(ts) > 0 {
		if err := p.SendTraces(ctx, ts); err != nil {
			d.logger.Error().Err(err).
				Str("provider", p.Name()).
				Int("count", len(ts)).
				Msg("Failed to dispatch traces")
			d.recordFailure(p.Name(), kindTraces)
		}
	}
}

func (d *Dispatcher) recordFailure(provider, kind string) {
	d.mu.Lock()
	rec := d.recorder
	d.mu.Unlock()

	if rec == nil {
		return
	}

	rec.Record(dispatchFailureMetric, 1, map[string]string{
		"provider": provider,
		"kind":     kind,
	}, models.MetricTypeCounter)
}

// HealthReport probes every provider and returns its state keyed by
// provider name. Probes bypass the circuit breaker.
func (d *Dispatcher) HealthReport(ctx context.Context) map[string]models.ProviderHealth {
	report := make(map[string]models.ProviderHealth, len(d.providers))

	for _, p := range d.providers {
		health := models.ProviderHealth{
			Enabled:      p.Enabled(),
			BreakerState: p.State().String(),
		}

		if health.Enabled {
			if err := p.HealthCheck(ctx); err != nil {
				health.Error = err.Error()
			} else {
				health.Healthy = true
			}
		}

		report[p.Name()] = health
	}

	return report
}

// BufferStats reports current queue occupancy.
func (d *Dispatcher) BufferStats() models.BufferStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return models.BufferStats{
		Metrics: len(d.metrics),
		Logs:    len(d.logs),
		Traces:  len(d.traces),
	}
}

// Start launches the flush loop. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) error {
	names := make([]string, 0, len(d.providers))

	for _, p := range d.providers {
		if p.Enabled() {
			names = append(names, p.Name())
		}
	}

	d.logger.Info().
		Strs("providers", names).
		Dur("flush_interval", d.interval).
		Msg("Starting dispatcher")

	d.wg.Add(1)

	go d.run(ctx)

	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := d.clock.Ticker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Flush(context.Background())
			return
		case <-d.stop:
			d.Flush(context.Background())
			return
		case <-d.flushCh:
			d.Flush(ctx)
		case <-ticker.Chan():
			d.Flush(ctx)
		}
	}
}

// Stop halts the flush loop after one final flush and closes providers
// that hold connections.
func (d *Dispatcher) Stop(_ context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
	})

	d.wg.Wait()

	for _, p := range d.providers {
		c, ok := p.Provider.(interface{ Close() error })
		if !ok {
			continue
		}

		if err := c.Close(); err != nil {
			d.logger.Error().Err(err).Str("provider", p.Name()).Msg("Failed to close provider")
		}
	}

	d.logger.Info().Msg("Dispatcher stopped")

	return nil
}
