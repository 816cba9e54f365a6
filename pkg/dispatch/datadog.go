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
	"net/http"
	"os"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	datadogSiteDefault = "datadoghq.com"
	datadogAPIKeyEnv   = "DATADOG_API_KEY"
	datadogKeyHeader   = "DD-API-KEY"
	datadogLogSource   = "vrux-observe"
)

// DatadogProvider ships telemetry to the Datadog HTTP intake. Spans ride
// the log intake as structured entries; the native trace intake speaks a
// binary agent protocol this provider does not implement.
type DatadogProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewDatadog builds the provider from cfg, falling back to the
// DATADOG_API_KEY environment variable. Without a key the provider is
// disabled and every send is a no-op.
func NewDatadog(cfg *models.DatadogConfig, log logger.Logger) *DatadogProvider {
	if cfg == nil {
		cfg = &models.DatadogConfig{}
	}

	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(datadogAPIKeyEnv)
	}

	site := cfg.Site
	if site == "" {
		site = datadogSiteDefault
	}

	if key == "" {
		log.Info().Msg("Datadog provider disabled, no API key configured")
	}

	return &DatadogProvider{
		apiKey:  key,
		baseURL: "https://api." + site,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  log,
	}
}

func (p *DatadogProvider) Name() string { return "datadog" }

func (p *DatadogProvider) Enabled() bool { return p.apiKey != "" }

type datadogSeries struct {
	Metric string       `json:"metric"`
	Points [][2]float64 `json:"points"`
	Type   string       `json:"type"`
	Tags   []string     `json:"tags,omitempty"`
}

func (p *DatadogProvider) SendMetrics(ctx context.Context, batch []models.MetricData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	series := make([]datadogSeries, 0, len(batch))

	for _, m := range batch {
		typ := "gauge"
		if m.Type == models.MetricTypeCounter {
			typ = "count"
		}

		series = append(series, datadogSeries{
			Metric: m.Name,
			Points: [][2]float64{{float64(m.Timestamp.Unix()), m.Value}},
			Type:   typ,
			Tags:   formatTags(m.Tags),
		})
	}

	payload := map[string]interface{}{"series": series}

	return p.post(ctx, "/api/v1/series", payload)
}

type datadogLogEntry struct {
	Message    string                 `json:"message"`
	Status     string                 `json:"status,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
	Source     string                 `json:"ddsource"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (p *DatadogProvider) SendLogs(ctx context.Context, batch []models.LogData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	entries := make([]datadogLogEntry, 0, len(batch))

	for _, l := range batch {
		entries = append(entries, datadogLogEntry{
			Message:    l.Message,
			Status:     l.Level,
			Timestamp:  l.Timestamp.UnixMilli(),
			Source:     datadogLogSource,
			Attributes: l.Metadata,
		})
	}

	return p.post(ctx, "/api/v2/logs", entries)
}

func (p *DatadogProvider) SendTraces(ctx context.Context, batch []*models.TraceData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	var entries []datadogLogEntry

	for _, trace := range batch {
		for _, span := range trace.Spans {
			status := "info"
			if span.Status == models.SpanStatusError {
				status = "error"
			}

			attrs := map[string]interface{}{
				"trace_id":    span.TraceID,
				"span_id":     span.SpanID,
				"duration_ms": float64(span.Duration().Microseconds()) / 1000,
			}

			if span.ParentSpanID != "" {
				attrs["parent_span_id"] = span.ParentSpanID
			}

			if len(span.Attributes) > 0 {
				attrs["attributes"] = span.Attributes
			}

			entries = append(entries, datadogLogEntry{
				Message:    span.Name,
				Status:     status,
				Timestamp:  span.StartTime.UnixMilli(),
				Source:     datadogLogSource + ".traces",
				Attributes: attrs,
			})
		}
	}

	if len(entries) == 0 {
		return nil
	}

	return p.post(ctx, "/api/v2/logs", entries)
}

func (p *DatadogProvider) SendAlert(ctx context.Context, alert models.AlertData) error {
	if !p.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"title":         alert.Title,
		"text":          alert.Message,
		"alert_type":    datadogAlertType(alert.Severity),
		"date_happened": alert.Timestamp.Unix(),
		"tags":          formatTags(alert.Metadata),
	}

	return p.post(ctx, "/api/v1/events", payload)
}

// HealthCheck validates the API key against the Datadog validation
// endpoint.
func (p *DatadogProvider) HealthCheck(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/validate", nil)
	if err != nil {
		return err
	}

	req.Header.Set(datadogKeyHeader, p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	return checkResponse(resp)
}

func (p *DatadogProvider) post(ctx context.Context, path string, payload interface{}) error {
	headers := map[string]string{datadogKeyHeader: p.apiKey}

	return postJSON(ctx, p.client, p.baseURL+path, headers, payload)
}

func datadogAlertType(sev models.AlertSeverity) string {
	switch sev {
	case models.SeverityCritical:
		return "error"
	case models.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}
