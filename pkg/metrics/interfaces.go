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

import "github.com/ehudso7/vrux-observe/pkg/models"

//go:generate mockgen -destination=mock_metrics.go -package=metrics github.com/ehudso7/vrux-observe/pkg/metrics MetricRecorder,SnapshotSource

// MetricRecorder accepts metric samples from producers.
type MetricRecorder interface {
	Record(name string, value float64, tags map[string]string, metricType models.MetricType)
}

// SnapshotSource produces the current aggregated value per metric name.
type SnapshotSource interface {
	Snapshot() map[string]float64
}
