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

// Package dispatch buffers telemetry and fans it out to monitoring
// backends. Each backend is a Provider; a provider whose credential is
// absent stays registered but disabled, so wiring never depends on which
// backends the deployment actually configures.
package dispatch

import (
	"context"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

//go:generate mockgen -destination=mock_dispatch.go -package=dispatch github.com/ehudso7/vrux-observe/pkg/dispatch Provider,PerfSource

const (
	kindMetrics = "metrics"
	kindLogs    = "logs"
	kindTraces  = "traces"
	kindAlerts  = "alerts"

	defaultRequestTimeout = 10 * time.Second
)

// Provider delivers telemetry batches to one monitoring backend. Send
// methods on a disabled provider are no-ops returning nil.
type Provider interface {
	// Name identifies the provider in logs and health reports.
	Name() string
	// Enabled reports whether the provider has a usable credential.
	Enabled() bool
	SendMetrics(ctx context.Context, batch []models.MetricData) error
	SendLogs(ctx context.Context, batch []models.LogData) error
	SendTraces(ctx context.Context, batch []*models.TraceData) error
	// SendAlert delivers a single alert immediately, outside the
	// buffered flush cycle.
	SendAlert(ctx context.Context, alert models.AlertData) error
	// HealthCheck probes the backend with a lightweight request.
	HealthCheck(ctx context.Context) error
}
