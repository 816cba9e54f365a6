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

package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

func newTestAggregator(t *testing.T, cfg Config) *Aggregator {
	t.Helper()

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	return NewAggregator(cfg, fake, logger.NewTestLogger())
}

func TestAggregatorCounterAccumulatesAndResets(t *testing.T) {
	agg := newTestAggregator(t, Config{})

	agg.Record("requests_total", 1, nil, models.MetricTypeCounter)
	agg.Record("requests_total", 2, nil, models.MetricTypeCounter)
	agg.Record("requests_total", 4, nil, models.MetricTypeCounter)

	snap := agg.Snapshot()
	assert.InDelta(t, 7.0, snap["requests_total"], 0.0001)

	// Counters reset on snapshot.
	snap = agg.Snapshot()
	assert.InDelta(t, 0.0, snap["requests_total"], 0.0001)

	agg.Record("requests_total", 3, nil, models.MetricTypeCounter)
	snap = agg.Snapshot()
	assert.InDelta(t, 3.0, snap["requests_total"], 0.0001)
}

func TestAggregatorGaugeKeepsLatest(t *testing.T) {
	agg := newTestAggregator(t, Config{})

	agg.Record("queue_depth", 12, nil, models.MetricTypeGauge)
	agg.Record("queue_depth", 8, nil, models.MetricTypeGauge)

	snap := agg.Snapshot()
	assert.InDelta(t, 8.0, snap["queue_depth"], 0.0001)

	// Gauges survive snapshots.
	snap = agg.Snapshot()
	assert.InDelta(t, 8.0, snap["queue_depth"], 0.0001)
}

func TestAggregatorHistogramKeepsLatest(t *testing.T) {
	agg := newTestAggregator(t, Config{})

	agg.Record("request_ms", 120, nil, models.MetricTypeHistogram)
	agg.Record("request_ms", 85, nil, models.MetricTypeHistogram)

	snap := agg.Snapshot()
	assert.InDelta(t, 85.0, snap["request_ms"], 0.0001)
}

func TestAggregatorPointsOldestFirst(t *testing.T) {
	agg := newTestAggregator(t, Config{Retention: 3})

	for i := 1; i <= 3; i++ {
		agg.Record("cpu", float64(i), nil, models.MetricTypeGauge)
	}

	points := agg.Points("cpu")
	require.Len(t, points, 3)
	assert.InDelta(t, 1.0, points[0].Value, 0.0001)
	assert.InDelta(t, 3.0, points[2].Value, 0.0001)
}

func TestAggregatorPointsRingWraps(t *testing.T) {
	agg := newTestAggregator(t, Config{Retention: 3})

	for i := 1; i <= 5; i++ {
		agg.Record("cpu", float64(i), nil, models.MetricTypeGauge)
	}

	points := agg.Points("cpu")
	require.Len(t, points, 3)

	// Oldest two samples fell off.
	assert.InDelta(t, 3.0, points[0].Value, 0.0001)
	assert.InDelta(t, 4.0, points[1].Value, 0.0001)
	assert.InDelta(t, 5.0, points[2].Value, 0.0001)
}

func TestAggregatorPointsUnknownSeries(t *testing.T) {
	agg := newTestAggregator(t, Config{})

	assert.Nil(t, agg.Points("missing"))
}

func TestAggregatorEvictsLeastRecentlyWritten(t *testing.T) {
	agg := newTestAggregator(t, Config{MaxSeries: 3})

	agg.Record("a", 1, nil, models.MetricTypeGauge)
	agg.Record("b", 2, nil, models.MetricTypeGauge)
	agg.Record("c", 3, nil, models.MetricTypeGauge)

	// Touch "a" so "b" becomes the eviction candidate.
	agg.Record("a", 10, nil, models.MetricTypeGauge)

	agg.Record("d", 4, nil, models.MetricTypeGauge)

	assert.Equal(t, 3, agg.SeriesCount())

	snap := agg.Snapshot()
	assert.Contains(t, snap, "a")
	assert.Contains(t, snap, "c")
	assert.Contains(t, snap, "d")
	assert.NotContains(t, snap, "b")
}

func TestAggregatorEvictionCap(t *testing.T) {
	agg := newTestAggregator(t, Config{MaxSeries: 10})

	for i := 0; i < 50; i++ {
		agg.Record(fmt.Sprintf("metric_%d", i), float64(i), nil, models.MetricTypeGauge)
	}

	assert.Equal(t, 10, agg.SeriesCount())
}

func TestAggregatorRecordsTagsAndTimestamps(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	agg := NewAggregator(Config{}, fake, logger.NewTestLogger())

	agg.Record("http_requests", 1, map[string]string{"route": "/api/status"}, models.MetricTypeCounter)
	fake.Advance(time.Second)
	agg.Record("http_requests", 1, map[string]string{"route": "/healthz"}, models.MetricTypeCounter)

	points := agg.Points("http_requests")
	require.Len(t, points, 2)
	assert.Equal(t, "/api/status", points[0].Tags["route"])
	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, "/healthz", points[1].Tags["route"])
	assert.Equal(t, start.Add(time.Second), points[1].Timestamp)
	assert.Equal(t, models.MetricTypeCounter, points[0].Type)
}

func TestAggregatorIgnoresEmptyName(t *testing.T) {
	agg := newTestAggregator(t, Config{})

	agg.Record("", 1, nil, models.MetricTypeCounter)

	assert.Equal(t, 0, agg.SeriesCount())
	assert.Empty(t, agg.Snapshot())
}

func TestAggregatorDefaults(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil)

	assert.Equal(t, defaultMaxSeries, agg.maxSeries)
	assert.Equal(t, defaultRetention, agg.retention)
	assert.NotNil(t, agg.clock)
	assert.NotNil(t, agg.logger)
}
