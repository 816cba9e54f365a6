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

// Package metrics keeps the in-process aggregated metric state that the
// alerting engine evaluates and the health check reads.
package metrics

import (
	"container/list"
	"sync"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultMaxSeries = 1000
	defaultRetention = 100
)

// Config bounds the aggregator's memory.
type Config struct {
	// MaxSeries caps distinct metric names; the least recently written
	// series is evicted past the cap.
	MaxSeries int `json:"max_series,omitempty"`
	// Retention is the ring buffer size per series.
	Retention int `json:"retention,omitempty"`
}

type series struct {
	name    string
	typ     models.MetricType
	counter float64           // accumulated since last snapshot
	last    float64           // latest value for gauges and histograms
	tags    map[string]string // most recent tags
	ring    *ringBuffer
	elem    *list.Element
}

// Aggregator folds metric samples into per-name aggregate state.
// Counters accumulate between snapshots and reset on read; gauges and
// histograms keep their latest value. Every sample also lands in a
// bounded per-series ring buffer.
type Aggregator struct {
	mu        sync.RWMutex
	series    map[string]*series
	evictList *list.List // front = most recently written
	maxSeries int
	retention int
	clock     clock.Clock
	logger    logger.Logger
}

var _ MetricRecorder = (*Aggregator)(nil)
var _ SnapshotSource = (*Aggregator)(nil)

// NewAggregator builds an Aggregator. A nil clock uses the real one.
func NewAggregator(cfg Config, clk clock.Clock, log logger.Logger) *Aggregator {
	if cfg.MaxSeries <= 0 {
		cfg.MaxSeries = defaultMaxSeries
	}

	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	if clk == nil {
		clk = clock.New()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Aggregator{
		series:    make(map[string]*series),
		evictList: list.New(),
		maxSeries: cfg.MaxSeries,
		retention: cfg.Retention,
		clock:     clk,
		logger:    log,
	}
}

// Record folds one sample into the aggregate state for name.
func (a *Aggregator) Record(name string, value float64, tags map[string]string, metricType models.MetricType) {
	if name == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[name]
	if !ok {
		if len(a.series) >= a.maxSeries {
			a.evictOldest()
		}

		s = &series{
			name: name,
			typ:  metricType,
			ring: newRingBuffer(a.retention),
		}
		s.elem = a.evictList.PushFront(name)
		a.series[name] = s
	} else {
		a.evictList.MoveToFront(s.elem)
	}

	if metricType != "" {
		s.typ = metricType
	}

	if tags != nil {
		s.tags = tags
	}

	switch s.typ {
	case models.MetricTypeCounter:
		s.counter += value
	default:
		s.last = value
	}

	s.ring.add(models.MetricData{
		Name:      name,
		Value:     value,
		Type:      s.typ,
		Tags:      tags,
		Timestamp: a.clock.Now(),
	})
}

// evictOldest drops the least recently written series. Caller holds the lock.
func (a *Aggregator) evictOldest() {
	element := a.evictList.Back()
	if element == nil {
		return
	}

	name := element.Value.(string)
	a.evictList.Remove(element)
	delete(a.series, name)

	a.logger.Debug().Str("metric", name).Msg("Evicted stale metric series")
}

// Snapshot returns the aggregate value per metric name: accumulated
// totals for counters (which then reset) merged with the latest values
// of gauges and histograms.
func (a *Aggregator) Snapshot() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]float64, len(a.series))

	for name, s := range a.series {
		switch s.typ {
		case models.MetricTypeCounter:
			out[name] = s.counter
			s.counter = 0
		default:
			out[name] = s.last
		}
	}

	return out
}

// Points returns the buffered samples for one series, oldest first.
func (a *Aggregator) Points(name string) []models.MetricData {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.series[name]
	if !ok {
		return nil
	}

	return s.ring.snapshot()
}

// SeriesCount reports how many distinct series are tracked.
func (a *Aggregator) SeriesCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.series)
}
