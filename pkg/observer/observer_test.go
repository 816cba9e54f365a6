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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ehudso7/vrux-observe/pkg/dispatch"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

// clearProviderEnv blanks the provider credential variables so tests
// never pick up credentials from the host environment.
func clearProviderEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"DATADOG_API_KEY", "NEW_RELIC_LICENSE_KEY", "OBSERVE_WEBHOOK_URL", "NATS_URL"} {
		t.Setenv(key, "")
	}
}

func newTestObserver(t *testing.T, mutate func(cfg *models.ObserverConfig)) *Observer {
	t.Helper()

	clearProviderEnv(t)

	cfg := &models.ObserverConfig{
		ServiceName: "checkout",
		Version:     "1.4.2",
		Logs: models.LogPipelineConfig{
			LogDir: t.TempDir(),
		},
	}

	if mutate != nil {
		mutate(cfg)
	}

	o, err := New(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)

	return o
}

func TestNewValidatesConfig(t *testing.T) {
	clearProviderEnv(t)

	_, err := New(context.Background(), nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, errNilConfig)

	_, err = New(context.Background(), &models.ObserverConfig{}, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_name")
}

func TestNewBuildsRulesWatcherOnlyWhenConfigured(t *testing.T) {
	withFile := newTestObserver(t, func(cfg *models.ObserverConfig) {
		cfg.Alerting.RulesFile = filepath.Join(t.TempDir(), "rules.json")
	})
	assert.NotNil(t, withFile.watcher)

	without := newTestObserver(t, nil)
	assert.Nil(t, without.watcher)
}

func TestRecordMetricFeedsAggregatorAndDispatch(t *testing.T) {
	o := newTestObserver(t, nil)

	o.RecordMetric("queue_depth", 42, map[string]string{"queue": "email"}, models.MetricTypeGauge)

	snap := o.aggregator.Snapshot()
	assert.Equal(t, 42.0, snap["queue_depth"])
	assert.Equal(t, 1, o.dispatcher.BufferStats().Metrics)
}

func TestTrackRecordsCounterAndLog(t *testing.T) {
	o := newTestObserver(t, nil)
	ctx := context.Background()

	o.Track(ctx, "user_signup", map[string]interface{}{"plan": "pro"})

	snap := o.aggregator.Snapshot()
	assert.Equal(t, 1.0, snap["track_user_signup"])
	assert.Equal(t, 1, o.dispatcher.BufferStats().Metrics)
	require.Equal(t, 1, o.pipeline.BufferedRecords())

	o.pipeline.Flush(ctx)

	assert.Equal(t, 1, o.dispatcher.BufferStats().Logs)

	found, err := o.SearchLogs(ctx, models.LogQuery{Contains: "user_signup"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.LevelInfo, found[0].Level)
	assert.Equal(t, "pro", found[0].Metadata["plan"])
}

func TestCompletedTracesReachDispatchBuffers(t *testing.T) {
	o := newTestObserver(t, nil)
	ctx := context.Background()

	ctx, root := o.StartTrace(ctx, "checkout.submit")
	_, child := o.StartSpan(ctx, "db.query")

	o.SetAttribute(child, "table", "orders")
	o.EndSpan(child)
	o.EndSpan(root)

	o.tracer.Export(ctx)

	assert.Equal(t, 1, o.dispatcher.BufferStats().Traces)
}

func TestLogFlushForwardsToDispatch(t *testing.T) {
	o := newTestObserver(t, nil)
	ctx := context.Background()

	ctx, span := o.StartTrace(ctx, "checkout.submit")
	o.Log(ctx, models.LevelError, "payment declined", map[string]interface{}{"user_id": "u-17"})
	o.EndSpan(span)

	require.Equal(t, 1, o.pipeline.BufferedRecords())

	o.pipeline.Flush(context.Background())

	assert.Equal(t, 0, o.pipeline.BufferedRecords())
	assert.Equal(t, 1, o.dispatcher.BufferStats().Logs)
}

func TestFlattenRecordsPromotesIdentityFields(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	out := flattenRecords([]*models.LogRecord{
		{
			Timestamp:   ts,
			Level:       models.LevelError,
			Message:     "boom",
			Service:     "checkout",
			Environment: "production",
			Version:     "1.4.2",
			TraceID:     "4bf92f3577b34da6a3ce929d0e0e4736",
			SpanID:      "00f067aa0ba902b7",
			UserID:      "u-17",
			RequestID:   "r-9",
			Host:        "web-1",
			Metadata:    map[string]interface{}{"amount": 12.5},
		},
		nil,
		{Level: models.LevelInfo, Message: "plain"},
	})

	require.Len(t, out, 2)

	assert.Equal(t, ts, out[0].Timestamp)
	assert.Equal(t, "error", out[0].Level)
	assert.Equal(t, "boom", out[0].Message)
	assert.Equal(t, 12.5, out[0].Metadata["amount"])
	assert.Equal(t, "checkout", out[0].Metadata["service"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out[0].Metadata["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out[0].Metadata["span_id"])
	assert.Equal(t, "u-17", out[0].Metadata["user_id"])
	assert.Equal(t, "r-9", out[0].Metadata["request_id"])
	assert.Equal(t, "web-1", out[0].Metadata["host"])

	assert.Equal(t, "plain", out[1].Message)
	assert.NotContains(t, out[1].Metadata, "service")
}

func TestAlertStreamActionReachesProviders(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies [][]byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	o := newTestObserver(t, func(cfg *models.ObserverConfig) {
		cfg.Dispatch.Webhook = &models.WebhookProviderConfig{URL: srv.URL}
	})

	ctx := context.Background()

	require.NoError(t, o.engine.AddRule(&models.AlertRule{
		ID:        "cpu-high",
		Name:      "CPU high",
		Metric:    "cpu_usage",
		Condition: models.ConditionAbove,
		Threshold: 90,
		Severity:  models.SeverityCritical,
		Actions:   []models.ActionConfig{{Type: models.ActionStream}},
		Enabled:   true,
	}))

	o.RecordMetric("cpu_usage", 97.5, nil, models.MetricTypeGauge)
	o.engine.Evaluate(ctx)

	require.Len(t, o.ActiveAlerts(), 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)

	var envelope struct {
		Kind string             `json:"kind"`
		Data []models.AlertData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(bodies[0], &envelope))

	assert.Equal(t, "alerts", envelope.Kind)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "cpu-high", envelope.Data[0].RuleID)
	assert.Equal(t, models.SeverityCritical, envelope.Data[0].Severity)
}

func TestSetPerfSourceFeedsGauges(t *testing.T) {
	o := newTestObserver(t, nil)
	ctrl := gomock.NewController(t)

	perf := dispatch.NewMockPerfSource(ctrl)
	perf.EXPECT().ErrorRate().Return(7.5)
	perf.EXPECT().AvgResponseMs().Return(180.0)
	perf.EXPECT().RequestRate().Return(33.0)

	o.SetPerfSource(perf)

	stats := o.gauges.Collect(context.Background())

	assert.Equal(t, 7.5, stats.ErrorRate)
	assert.Equal(t, 180.0, stats.AvgResponseMs)
	assert.Equal(t, 33.0, stats.RequestRate)

	snap := o.aggregator.Snapshot()
	assert.Equal(t, 7.5, snap[dispatch.MetricErrorRate])
}

func TestStartStopDrainsBuffers(t *testing.T) {
	o := newTestObserver(t, nil)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx))

	o.RecordMetric("queue_depth", 3, nil, models.MetricTypeGauge)
	o.Log(ctx, models.LevelInfo, "request served", nil)

	_, span := o.StartTrace(ctx, "checkout.submit")
	o.EndSpan(span)

	require.NoError(t, o.Stop(ctx))

	// Shutdown flushed the tracer and pipeline into the dispatcher and
	// then drained the dispatch buffers.
	assert.Equal(t, models.BufferStats{}, o.dispatcher.BufferStats())
	assert.Equal(t, 0, o.pipeline.BufferedRecords())
	assert.Equal(t, 0, o.tracer.CompletedTraces())
}
