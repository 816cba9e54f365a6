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

import "time"

// TraceContext identifies a position in a distributed trace. It is the unit
// that crosses process boundaries via Inject/Extract.
type TraceContext struct {
	TraceID      string `json:"trace_id"`       // 32 lowercase hex chars
	SpanID       string `json:"span_id"`        // 16 lowercase hex chars
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Sampled      bool   `json:"sampled"`
	Vendor       string `json:"vendor,omitempty"` // opaque tracestate payload
}

// SpanStatus describes the terminal outcome of a span.
type SpanStatus string

const (
	SpanStatusUnset SpanStatus = ""
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanEvent is a timestamped annotation attached to a span.
type SpanEvent struct {
	Name       string                 `json:"name"`
	Timestamp  time.Time              `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Span is a single timed operation within a trace.
type Span struct {
	SpanID       string                 `json:"span_id"`
	TraceID      string                 `json:"trace_id"`
	ParentSpanID string                 `json:"parent_span_id,omitempty"`
	Name         string                 `json:"name"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      *time.Time             `json:"end_time,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	Events       []SpanEvent            `json:"events,omitempty"`
	Status       SpanStatus             `json:"status,omitempty"`
}

// Duration returns the elapsed time of a finished span, zero while open.
func (s *Span) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}

	return s.EndTime.Sub(s.StartTime)
}

// TraceData groups the completed spans of one trace for export.
type TraceData struct {
	TraceID string  `json:"trace_id"`
	Spans   []*Span `json:"spans"`
}
