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
	"fmt"
	"net/http"
	"os"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	newRelicLicenseEnv = "NEW_RELIC_LICENSE_KEY"
	newRelicKeyHeader  = "Api-Key"

	// Count samples need an aggregation window; this matches the
	// default dispatch flush cadence.
	newRelicCountIntervalMs = 15000
)

// NewRelicProvider ships telemetry to the New Relic ingest APIs. Alerts
// become insights custom events when an account ID is configured and
// structured log entries otherwise.
type NewRelicProvider struct {
	licenseKey string
	accountID  string

	metricURL string
	logURL    string
	traceURL  string
	eventURL  string

	client *http.Client
	logger logger.Logger
}

// NewNewRelic builds the provider from cfg, falling back to the
// NEW_RELIC_LICENSE_KEY environment variable. Without a key the provider
// is disabled and every send is a no-op.
func NewNewRelic(cfg *models.NewRelicConfig, log logger.Logger) *NewRelicProvider {
	if cfg == nil {
		cfg = &models.NewRelicConfig{}
	}

	key := cfg.LicenseKey
	if key == "" {
		key = os.Getenv(newRelicLicenseEnv)
	}

	if key == "" {
		log.Info().Msg("New Relic provider disabled, no license key configured")
	}

	p := &NewRelicProvider{
		licenseKey: key,
		accountID:  cfg.AccountID,
		client:     &http.Client{Timeout: defaultRequestTimeout},
		logger:     log,
	}

	if cfg.Region == "eu" {
		p.metricURL = "https://metric-api.eu.newrelic.com/metric/v1"
		p.logURL = "https://log-api.eu.newrelic.com/log/v1"
		p.traceURL = "https://trace-api.eu.newrelic.com/trace/v1"
		p.eventURL = "https://insights-collector.eu01.nr-data.net"
	} else {
		p.metricURL = "https://metric-api.newrelic.com/metric/v1"
		p.logURL = "https://log-api.newrelic.com/log/v1"
		p.traceURL = "https://trace-api.newrelic.com/trace/v1"
		p.eventURL = "https://insights-collector.newrelic.com"
	}

	return p
}

func (p *NewRelicProvider) Name() string { return "newrelic" }

func (p *NewRelicProvider) Enabled() bool { return p.licenseKey != "" }

type newRelicMetric struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Value      float64                `json:"value"`
	Timestamp  int64                  `json:"timestamp"`
	IntervalMs int64                  `json:"interval.ms,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (p *NewRelicProvider) SendMetrics(ctx context.Context, batch []models.MetricData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	ms := make([]newRelicMetric, 0, len(batch))

	for _, m := range batch {
		nm := newRelicMetric{
			Name:       m.Name,
			Type:       "gauge",
			Value:      m.Value,
			Timestamp:  m.Timestamp.Unix(),
			Attributes: tagAttributes(m.Tags),
		}

		if m.Type == models.MetricTypeCounter {
			nm.Type = "count"
			nm.IntervalMs = newRelicCountIntervalMs
		}

		ms = append(ms, nm)
	}

	payload := []map[string]interface{}{{"metrics": ms}}

	return p.post(ctx, p.metricURL, nil, payload)
}

type newRelicLog struct {
	Timestamp  int64                  `json:"timestamp"`
	Message    string                 `json:"message"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (p *NewRelicProvider) SendLogs(ctx context.Context, batch []models.LogData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	ls := make([]newRelicLog, 0, len(batch))

	for _, l := range batch {
		attrs := map[string]interface{}{"level": l.Level}
		for k, v := range l.Metadata {
			attrs[k] = v
		}

		ls = append(ls, newRelicLog{
			Timestamp:  l.Timestamp.UnixMilli(),
			Message:    l.Message,
			Attributes: attrs,
		})
	}

	payload := []map[string]interface{}{{"logs": ls}}

	return p.post(ctx, p.logURL, nil, payload)
}

type newRelicSpan struct {
	ID         string                 `json:"id"`
	TraceID    string                 `json:"trace.id"`
	Timestamp  int64                  `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (p *NewRelicProvider) SendTraces(ctx context.Context, batch []*models.TraceData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	var spans []newRelicSpan

	for _, trace := range batch {
		for _, span := range trace.Spans {
			attrs := map[string]interface{}{
				"name":        span.Name,
				"duration.ms": float64(span.Duration().Microseconds()) / 1000,
			}

			if span.ParentSpanID != "" {
				attrs["parent.id"] = span.ParentSpanID
			}

			if span.Status == models.SpanStatusError {
				attrs["error"] = true
			}

			for k, v := range span.Attributes {
				attrs[k] = v
			}

			spans = append(spans, newRelicSpan{
				ID:         span.SpanID,
				TraceID:    span.TraceID,
				Timestamp:  span.StartTime.UnixMilli(),
				Attributes: attrs,
			})
		}
	}

	if len(spans) == 0 {
		return nil
	}

	headers := map[string]string{
		"Data-Format":         "newrelic",
		"Data-Format-Version": "1",
	}
	payload := []map[string]interface{}{{"spans": spans}}

	return p.post(ctx, p.traceURL, headers, payload)
}

func (p *NewRelicProvider) SendAlert(ctx context.Context, alert models.AlertData) error {
	if !p.Enabled() {
		return nil
	}

	if p.accountID == "" {
		return p.SendLogs(ctx, []models.LogData{alertAsLog(alert)})
	}

	event := map[string]interface{}{
		"eventType": "VruxObserveAlert",
		"alertId":   alert.ID,
		"ruleId":    alert.RuleID,
		"severity":  string(alert.Severity),
		"title":     alert.Title,
		"message":   alert.Message,
		"timestamp": alert.Timestamp.Unix(),
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/events", p.eventURL, p.accountID)

	return p.post(ctx, url, nil, []map[string]interface{}{event})
}

// HealthCheck probes the metric endpoint for reachability. Auth cannot
// be verified cheaply, so any response below 500 counts as healthy.
func (p *NewRelicProvider) HealthCheck(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.metricURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set(newRelicKeyHeader, p.licenseKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("metric endpoint probe failed with status %d", resp.StatusCode)
	}

	return nil
}

func (p *NewRelicProvider) post(ctx context.Context, url string, extra map[string]string, payload interface{}) error {
	headers := map[string]string{newRelicKeyHeader: p.licenseKey}
	for k, v := range extra {
		headers[k] = v
	}

	return postJSON(ctx, p.client, url, headers, payload)
}

func alertAsLog(alert models.AlertData) models.LogData {
	meta := map[string]interface{}{
		"alert_id": alert.ID,
		"severity": string(alert.Severity),
		"title":    alert.Title,
	}

	for k, v := range alert.Metadata {
		meta[k] = v
	}

	return models.LogData{
		Timestamp: alert.Timestamp,
		Level:     "error",
		Message:   alert.Message,
		Metadata:  meta,
	}
}

func tagAttributes(tags map[string]string) map[string]interface{} {
	if len(tags) == 0 {
		return nil
	}

	attrs := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		attrs[k] = v
	}

	return attrs
}
