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
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const defaultGaugeInterval = 30 * time.Second

// Gauge metric names recorded by the collector. The alerting engine and
// the health evaluator read them back from the aggregator snapshot.
const (
	MetricMemoryUsedPercent = "system_memory_used_percent"
	MetricProcessRSSBytes   = "system_process_rss_bytes"
	MetricCPUPercent        = "system_cpu_percent"
	MetricGoroutines        = "system_goroutines"
	MetricErrorRate         = "perf_error_rate"
	MetricAvgResponseMs     = "perf_avg_response_ms"
	MetricRequestRate       = "perf_request_rate"
)

// PerfSource supplies application performance figures the process cannot
// derive from the OS: request outcomes and latency as observed by the
// caller's serving layer.
type PerfSource interface {
	// ErrorRate is the percentage of recent requests that failed, 0-100.
	ErrorRate() float64
	// AvgResponseMs is the mean response time of recent requests.
	AvgResponseMs() float64
	// RequestRate is the recent request throughput per second.
	RequestRate() float64
}

// GaugeCollector periodically samples process and host gauges and feeds
// them to the metrics aggregator and the dispatch buffers, so alert
// rules on system metrics always evaluate fresh data.
type GaugeCollector struct {
	perf       PerfSource
	recorder   metrics.MetricRecorder
	dispatcher *Dispatcher

	interval time.Duration
	clock    clock.Clock
	logger   logger.Logger

	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	cpuPercent    func(context.Context, time.Duration, bool) ([]float64, error)
	memoryInfo    func(context.Context) (*process.MemoryInfoStat, error)

	mu   sync.Mutex
	last models.SystemStats

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGaugeCollector builds the collector. perf may be nil when no
// serving layer feeds performance figures; the perf gauges are then
// omitted.
func NewGaugeCollector(cfg *models.DispatchConfig, perf PerfSource, recorder metrics.MetricRecorder, d *Dispatcher, clk clock.Clock, log logger.Logger) *GaugeCollector {
	if cfg == nil {
		cfg = &models.DispatchConfig{}
	}

	if clk == nil {
		clk = clock.New()
	}

	g := &GaugeCollector{
		perf:          perf,
		recorder:      recorder,
		dispatcher:    d,
		interval:      defaultGaugeInterval,
		clock:         clk,
		logger:        log,
		virtualMemory: mem.VirtualMemoryWithContext,
		cpuPercent:    cpu.PercentWithContext,
		stop:          make(chan struct{}),
	}

	if cfg.GaugeInterval > 0 {
		g.interval = time.Duration(cfg.GaugeInterval)
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("Process handle unavailable; RSS will be zero")
	} else {
		g.memoryInfo = proc.MemoryInfoWithContext
	}

	return g
}

// SetPerfSource attaches a performance source after construction, for
// applications that wire their serving layer in once it exists.
func (g *GaugeCollector) SetPerfSource(perf PerfSource) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.perf = perf
}

// Collect samples every gauge once, records the values, and queues them
// for dispatch. Collection failures degrade to zero values.
func (g *GaugeCollector) Collect(ctx context.Context) models.SystemStats {
	g.mu.Lock()
	perf := g.perf
	g.mu.Unlock()

	stats := models.SystemStats{Goroutines: runtime.NumGoroutine()}

	if vm, err := g.virtualMemory(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Memory collection failed; reporting zeroes")
	} else {
		stats.MemoryUsedPercent = vm.UsedPercent
	}

	if g.memoryInfo != nil {
		if mi, err := g.memoryInfo(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("Process memory collection failed; reporting zeroes")
		} else {
			stats.ProcessRSSBytes = mi.RSS
		}
	}

	if usage, err := g.cpuPercent(ctx, 0, false); err != nil {
		g.logger.Warn().Err(err).Msg("CPU collection failed; usage will be zero")
	} else if len(usage) > 0 {
		stats.CPUPercent = usage[0]
	}

	if perf != nil {
		stats.ErrorRate = perf.ErrorRate()
		stats.AvgResponseMs = perf.AvgResponseMs()
		stats.RequestRate = perf.RequestRate()
	}

	g.mu.Lock()
	g.last = stats
	g.mu.Unlock()

	g.publish(stats, perf != nil)

	return stats
}

// LastStats returns the most recent sample, zero before the first
// collection.
func (g *GaugeCollector) LastStats() models.SystemStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.last
}

func (g *GaugeCollector) publish(stats models.SystemStats, withPerf bool) {
	now := g.clock.Now()

	samples := []models.MetricData{
		{Name: MetricMemoryUsedPercent, Value: stats.MemoryUsedPercent, Type: models.MetricTypeGauge, Timestamp: now},
		{Name: MetricProcessRSSBytes, Value: float64(stats.ProcessRSSBytes), Type: models.MetricTypeGauge, Timestamp: now},
		{Name: MetricCPUPercent, Value: stats.CPUPercent, Type: models.MetricTypeGauge, Timestamp: now},
		{Name: MetricGoroutines, Value: float64(stats.Goroutines), Type: models.MetricTypeGauge, Timestamp: now},
	}

	if withPerf {
		samples = append(samples,
			models.MetricData{Name: MetricErrorRate, Value: stats.ErrorRate, Type: models.MetricTypeGauge, Timestamp: now},
			models.MetricData{Name: MetricAvgResponseMs, Value: stats.AvgResponseMs, Type: models.MetricTypeGauge, Timestamp: now},
			models.MetricData{Name: MetricRequestRate, Value: stats.RequestRate, Type: models.MetricTypeGauge, Timestamp: now},
		)
	}

	if g.recorder != nil {
		for _, s := range samples {
			g.recorder.Record(s.Name, s.Value, nil, s.Type)
		}
	}

	if g.dispatcher != nil {
		g.dispatcher.SendMetrics(samples)
	}
}

// Start launches the sampling loop with one immediate collection, so
// alert rules see system gauges before the first interval elapses.
func (g *GaugeCollector) Start(ctx context.Context) error {
	g.logger.Info().Dur("interval", g.interval).Msg("Starting system gauge collector")

	g.wg.Add(1)

	go g.run(ctx)

	return nil
}

func (g *GaugeCollector) run(ctx context.Context) {
	defer g.wg.Done()

	g.Collect(ctx)

	ticker := g.clock.Ticker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case <-ticker.Chan():
			g.Collect(ctx)
		}
	}
}

// Stop halts the sampling loop.
func (g *GaugeCollector) Stop(_ context.Context) error {
	g.stopOnce.Do(func() {
		close(g.stop)
	})

	g.wg.Wait()

	g.logger.Info().Msg("System gauge collector stopped")

	return nil
}
