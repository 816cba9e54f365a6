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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

func newTestNewRelic(t *testing.T, srv *httptest.Server) *NewRelicProvider {
	t.Helper()

	p := NewNewRelic(&models.NewRelicConfig{LicenseKey: "test-license"}, logger.NewTestLogger())
	p.metricURL = srv.URL + "/metric/v1"
	p.logURL = srv.URL + "/log/v1"
	p.traceURL = srv.URL + "/trace/v1"
	p.eventURL = srv.URL

	return p
}

func TestNewRelicDisabledWithoutKey(t *testing.T) {
	t.Setenv(newRelicLicenseEnv, "")

	p := NewNewRelic(nil, logger.NewTestLogger())

	assert.False(t, p.Enabled())
	assert.NoError(t, p.SendLogs(context.Background(), []models.LogData{{Message: "hello"}}))
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestNewRelicKeyFromEnvironment(t *testing.T) {
	t.Setenv(newRelicLicenseEnv, "env-license")

	p := NewNewRelic(nil, logger.NewTestLogger())

	assert.True(t, p.Enabled())
}

func TestNewRelicRegionEndpoints(t *testing.T) {
	us := NewNewRelic(&models.NewRelicConfig{LicenseKey: "k"}, logger.NewTestLogger())
	assert.Equal(t, "https://metric-api.newrelic.com/metric/v1", us.metricURL)

	eu := NewNewRelic(&models.NewRelicConfig{LicenseKey: "k", Region: "eu"}, logger.NewTestLogger())
	assert.Equal(t, "https://metric-api.eu.newrelic.com/metric/v1", eu.metricURL)
	assert.Equal(t, "https://log-api.eu.newrelic.com/log/v1", eu.logURL)
}

func TestNewRelicSendMetrics(t *testing.T) {
	srv, rec := newProviderServer(t, http.StatusAccepted)
	p := newTestNewRelic(t, srv)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := []models.MetricData{
		{Name: "requests_total", Value: 42, Type: models.MetricTypeCounter, Timestamp: ts},
		{Name: "cpu_usage", Value: 63.5, Type: models.MetricTypeGauge, Timestamp: ts, Tags: map[string]string{"region": "us"}},
	}

	require.NoError(t, p.SendMetrics(context.Background(), batch))

	assert.Equal(t, "/metric/v1", rec.path)
	assert.Equal(t, "test-license", rec.header.Get(newRelicKeyHeader))

	var got []struct {
		Metrics []newRelicMetric `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].Metrics, 2)

	assert.Equal(t, "count", got[0].Metrics[0].Type)
	assert.EqualValues(t, newRelicCountIntervalMs, got[0].Metrics[0].IntervalMs)

	assert.Equal(t, "gauge", got[0].Metrics[1].Type)
	assert.Zero(t, got[0].Metrics[1].IntervalMs)
	assert.Equal(t, "us", got[0].Metrics[1].Attributes["region"])
}

func TestNewRelicSendLogs(t *testing.T) {
	srv, rec := newProviderServer(t, http.StatusAccepted)
	p := newTestNewRelic(t, srv)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := []models.LogData{{
		Timestamp: ts,
		Level:     "warn",
		Message:   "disk filling up",
		Metadata:  map[string]interface{}{"free_pct": 9},
	}}

	require.NoError(t, p.SendLogs(context.Background(), batch))

	assert.Equal(t, "/log/v1", rec.path)

	var got []struct {
		Logs []newRelicLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].Logs, 1)

	entry := got[0].Logs[0]
	assert.Equal(t, "disk filling up", entry.Message)
	assert.Equal(t, ts.UnixMilli(), entry.Timestamp)
	assert.Equal(t, "warn", entry.Attributes["level"])
	assert.EqualValues(t, 9, entry.Attributes["free_pct"])
}

func TestNewRelicSendTraces(t *testing.T) {
	srv, rec := newProviderServer(t, http.StatusAccepted)
	p := newTestNewRelic(t, srv)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Millisecond)
	batch := []*models.TraceData{{
		TraceID: "0af7651916cd43dd8448eb211c80319c",
		Spans: []*models.Span{{
			SpanID:       "b7ad6b7169203331",
			TraceID:      "0af7651916cd43dd8448eb211c80319c",
			ParentSpanID: "00f067aa0ba902b7",
			Name:         "db.query",
			StartTime:    start,
			EndTime:      &end,
		}},
	}}

	require.NoError(t, p.SendTraces(context.Background(), batch))

	assert.Equal(t, "/trace/v1", rec.path)
	assert.Equal(t, "newrelic", rec.header.Get("Data-Format"))
	assert.Equal(t, "1", rec.header.Get("Data-Format-Version"))

	var got []struct {
		Spans []newRelicSpan `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].Spans, 1)

	span := got[0].Spans[0]
	assert.Equal(t, "b7ad6b7169203331", span.ID)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.TraceID)
	assert.Equal(t, "db.query", span.Attributes["name"])
	assert.Equal(t, "00f067aa0ba902b7", span.Attributes["parent.id"])
	assert.InDelta(t, 25.0, span.Attributes["duration.ms"], 0.001)
}

func TestNewRelicAlertFallsBackToLogsWithoutAccount(t *testing.T) {
	srv, rec := newProviderServer(t, http.StatusAccepted)
	p := newTestNewRelic(t, srv)

	alert := models.AlertData{
		ID:        "alert-1",
		Severity:  models.SeverityWarning,
		Title:     "Disk filling up",
		Message:   "disk_free_pct is 9 (below 10)",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.SendAlert(context.Background(), alert))

	assert.Equal(t, "/log/v1", rec.path)

	var got []struct {
		Logs []newRelicLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Len(t, got[0].Logs, 1)
	assert.Equal(t, "alert-1", got[0].Logs[0].Attributes["alert_id"])
	assert.Equal(t, "warning", got[0].Logs[0].Attributes["severity"])
}

func TestNewRelicAlertAsInsightsEvent(t *testing.T) {
	srv, rec := newProviderServer(t, http.StatusAccepted)
	p := newTestNewRelic(t, srv)
	p.accountID = "12345"

	alert := models.AlertData{
		ID:       "alert-1",
		RuleID:   "disk-low",
		Severity: models.SeverityWarning,
		Title:    "Disk filling up",
	}

	require.NoError(t, p.SendAlert(context.Background(), alert))

	assert.Equal(t, "/v1/accounts/12345/events", rec.path)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "VruxObserveAlert", got[0]["eventType"])
	assert.Equal(t, "disk-low", got[0]["ruleId"])
}

func TestNewRelicHealthCheck(t *testing.T) {
	// 404 on HEAD still proves the endpoint is reachable.
	srv, rec := newProviderServer(t, http.StatusNotFound)
	p := newTestNewRelic(t, srv)

	require.NoError(t, p.HealthCheck(context.Background()))
	assert.Equal(t, http.MethodHead, rec.method)

	down, _ := newProviderServer(t, http.StatusInternalServerError)
	p.metricURL = down.URL + "/metric/v1"

	assert.Error(t, p.HealthCheck(context.Background()))
}
