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

package models

import (
	"fmt"

	"github.com/ehudso7/vrux-observe/pkg/logger"
)

// TracerConfig controls the span propagator.
type TracerConfig struct {
	ExportInterval Duration `json:"export_interval,omitempty"` // default 10s
}

// LogPipelineConfig controls the log aggregation pipeline.
type LogPipelineConfig struct {
	BufferSize    int                `json:"buffer_size,omitempty"`    // default 100 records
	FlushInterval Duration           `json:"flush_interval,omitempty"` // default 10s
	LogDir        string             `json:"log_dir,omitempty"`        // default ./logs
	FilePrefix    string             `json:"file_prefix,omitempty"`    // default "app"
	MaxFileSize   int64              `json:"max_file_size,omitempty"`  // bytes, default 50MB
	RetentionDays int                `json:"retention_days,omitempty"` // default 30
	SweepInterval Duration           `json:"sweep_interval,omitempty"` // default 1h
	Archive       *bool              `json:"archive,omitempty"`        // gzip stream, default on
	SampleRates   map[string]float64 `json:"sample_rates,omitempty"`   // level -> keep probability
}

// AlertingConfig controls the alert evaluation engine.
type AlertingConfig struct {
	PollInterval Duration    `json:"poll_interval,omitempty"` // default 30s
	HistorySize  int         `json:"history_size,omitempty"`  // anomaly window, default 100
	MinSamples   int         `json:"min_samples,omitempty"`   // anomaly floor, default 10
	RulesFile    string      `json:"rules_file,omitempty"`    // optional, hot-reloaded
	Rules        []AlertRule `json:"rules,omitempty"`
}

// Header represents a custom HTTP header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DatadogConfig configures the Datadog provider. An empty APIKey falls
// back to DATADOG_API_KEY; the provider disables itself when both are
// absent.
type DatadogConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Site   string `json:"site,omitempty"` // default datadoghq.com
}

// NewRelicConfig configures the New Relic provider. An empty LicenseKey
// falls back to NEW_RELIC_LICENSE_KEY.
type NewRelicConfig struct {
	LicenseKey string `json:"license_key,omitempty"`
	Region     string `json:"region,omitempty"`     // "us" (default) or "eu"
	AccountID  string `json:"account_id,omitempty"` // enables the insights event endpoint
}

// WebhookProviderConfig configures the generic webhook provider. An empty
// URL falls back to OBSERVE_WEBHOOK_URL.
type WebhookProviderConfig struct {
	URL      string   `json:"url,omitempty"`
	Token    string   `json:"token,omitempty"`
	ProbeURL string   `json:"probe_url,omitempty"` // optional health probe
	Headers  []Header `json:"headers,omitempty"`
}

// StreamConfig configures the NATS JetStream provider. An empty URL falls
// back to NATS_URL.
type StreamConfig struct {
	URL           string `json:"url,omitempty"`
	Stream        string `json:"stream,omitempty"`         // default TELEMETRY
	SubjectPrefix string `json:"subject_prefix,omitempty"` // default telemetry
}

// DispatchConfig controls telemetry buffering and provider fan-out.
type DispatchConfig struct {
	MaxMetricsBuffer int      `json:"max_metrics_buffer,omitempty"` // default 500
	MaxLogsBuffer    int      `json:"max_logs_buffer,omitempty"`    // default 200
	MaxTracesBuffer  int      `json:"max_traces_buffer,omitempty"`  // default 50
	FlushInterval    Duration `json:"flush_interval,omitempty"`     // default 15s
	GaugeInterval    Duration `json:"gauge_interval,omitempty"`     // system gauges, default 30s

	Datadog  *DatadogConfig         `json:"datadog,omitempty"`
	NewRelic *NewRelicConfig        `json:"new_relic,omitempty"`
	Webhook  *WebhookProviderConfig `json:"webhook,omitempty"`
	Stream   *StreamConfig          `json:"stream,omitempty"`
}

// HealthConfig controls the periodic health evaluation.
type HealthConfig struct {
	Interval Duration `json:"interval,omitempty"` // default 60s
}

// ObserverConfig is the top-level configuration for the observability
// pipeline.
type ObserverConfig struct {
	ServiceName string `json:"service_name"`
	Environment string `json:"environment,omitempty"` // default "development"
	Version     string `json:"version,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"` // status API, off when empty
	APIKey      string `json:"api_key,omitempty"`     // status API auth, open when empty

	Tracer   TracerConfig      `json:"tracer,omitempty"`
	Logs     LogPipelineConfig `json:"logs,omitempty"`
	Alerting AlertingConfig    `json:"alerting,omitempty"`
	Dispatch DispatchConfig    `json:"dispatch,omitempty"`
	Health   HealthConfig      `json:"health,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

var (
	errServiceNameRequired = fmt.Errorf("service_name is required")
	errNegativeBuffer      = fmt.Errorf("buffer sizes must be non-negative")
	errSampleRateRange     = fmt.Errorf("sample rates must be within [0, 1]")
)

func (c *ObserverConfig) Validate() error {
	if c.ServiceName == "" {
		return errServiceNameRequired
	}

	if c.Logs.BufferSize < 0 || c.Dispatch.MaxMetricsBuffer < 0 ||
		c.Dispatch.MaxLogsBuffer < 0 || c.Dispatch.MaxTracesBuffer < 0 {
		return errNegativeBuffer
	}

	for level, rate := range c.Logs.SampleRates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%w: %s=%f", errSampleRateRange, level, rate)
		}
	}

	for i := range c.Alerting.Rules {
		if err := c.Alerting.Rules[i].Validate(); err != nil {
			return fmt.Errorf("alerting rule %d: %w", i, err)
		}
	}

	return nil
}
