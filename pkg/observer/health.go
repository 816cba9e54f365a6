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

package observer

import (
	"context"
	"sync"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/alerting"
	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/dispatch"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/logs"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	// MetricHealthScore is the composite score gauge; alert rules can
	// reference it like any other metric.
	MetricHealthScore = "system_health_score"

	defaultHealthInterval = 60 * time.Second

	// degradedScoreFloor is the score below which the evaluator emits a
	// warning record into the log pipeline.
	degradedScoreFloor = 50.0
)

// healthScore derives the 0-100 composite score from the latest system
// gauges and the count of critical active alerts. The score starts at
// 100 and loses points per degraded signal.
func healthScore(stats models.SystemStats, criticalAlerts int) float64 {
	score := 100.0

	switch {
	case stats.MemoryUsedPercent > 90:
		score -= 30
	case stats.MemoryUsedPercent > 75:
		score -= 15
	}

	switch {
	case stats.ErrorRate > 5:
		score -= 30
	case stats.ErrorRate > 1:
		score -= 15
	}

	switch {
	case stats.AvgResponseMs > 1000:
		score -= 20
	case stats.AvgResponseMs > 500:
		score -= 10
	}

	score -= float64(criticalAlerts) * 10

	if score < 0 {
		score = 0
	}

	return score
}

// healthEvaluator periodically folds the system gauges, active alerts,
// buffer occupancy, and provider probes into one snapshot for the
// status API.
type healthEvaluator struct {
	gauges     *dispatch.GaugeCollector
	engine     *alerting.Engine
	dispatcher *dispatch.Dispatcher
	recorder   metrics.MetricRecorder
	pipeline   *logs.Pipeline

	interval time.Duration
	clock    clock.Clock
	logger   logger.Logger

	mu   sync.Mutex
	last models.HealthSnapshot

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newHealthEvaluator(
	cfg *models.HealthConfig,
	gauges *dispatch.GaugeCollector,
	engine *alerting.Engine,
	d *dispatch.Dispatcher,
	rec metrics.MetricRecorder,
	pipe *logs.Pipeline,
	clk clock.Clock,
	log logger.Logger,
) *healthEvaluator {
	if clk == nil {
		clk = clock.New()
	}

	interval := defaultHealthInterval
	if cfg != nil && cfg.Interval > 0 {
		interval = time.Duration(cfg.Interval)
	}

	return &healthEvaluator{
		gauges:     gauges,
		engine:     engine,
		dispatcher: d,
		recorder:   rec,
		pipeline:   pipe,
		interval:   interval,
		clock:      clk,
		logger:     log,
		stop:       make(chan struct{}),
	}
}

// Evaluate computes one snapshot, records the score gauge, and emits a
// warning log record when the score falls below the degraded floor.
func (h *healthEvaluator) Evaluate(ctx context.Context) models.HealthSnapshot {
	stats := h.gauges.LastStats()
	active := h.engine.ActiveAlerts()

	critical := 0

	for i := range active {
		if active[i].Rule.Severity == models.SeverityCritical {
			critical++
		}
	}

	score := healthScore(stats, critical)

	snap := models.HealthSnapshot{
		Timestamp:    h.clock.Now(),
		Score:        score,
		Status:       models.StatusForScore(score),
		System:       stats,
		Buffers:      h.dispatcher.BufferStats(),
		Providers:    h.dispatcher.HealthReport(ctx),
		ActiveAlerts: active,
	}

	h.mu.Lock()
	h.last = snap
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.Record(MetricHealthScore, score, nil, models.MetricTypeGauge)
	}

	h.dispatcher.SendMetrics([]models.MetricData{{
		Name:      MetricHealthScore,
		Value:     score,
		Type:      models.MetricTypeGauge,
		Timestamp: snap.Timestamp,
	}})

	if score < degradedScoreFloor && h.pipeline != nil {
		h.pipeline.Log(ctx, models.LevelWarn, "System health degraded", map[string]interface{}{
			"score":           score,
			"status":          string(snap.Status),
			"critical_alerts": critical,
		})
	}

	h.logger.Debug().
		Float64("score", score).
		Str("status", string(snap.Status)).
		Int("active_alerts", len(active)).
		Msg("Health evaluated")

	return snap
}

// Current returns the latest snapshot, evaluating on the spot when the
// periodic loop has not produced one yet.
func (h *healthEvaluator) Current(ctx context.Context) models.HealthSnapshot {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()

	if last.Timestamp.IsZero() {
		return h.Evaluate(ctx)
	}

	return last
}

// Start launches the evaluation loop with one immediate pass.
func (h *healthEvaluator) Start(ctx context.Context) error {
	h.logger.Info().Dur("interval", h.interval).Msg("Starting health evaluator")

	h.wg.Add(1)

	go h.run(ctx)

	return nil
}

func (h *healthEvaluator) run(ctx context.Context) {
	defer h.wg.Done()

	h.Evaluate(ctx)

	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.Chan():
			h.Evaluate(ctx)
		}
	}
}

// Stop halts the evaluation loop.
func (h *healthEvaluator) Stop(_ context.Context) error {
	h.stopOnce.Do(func() {
		close(h.stop)
	})

	h.wg.Wait()

	h.logger.Info().Msg("Health evaluator stopped")

	return nil
}
