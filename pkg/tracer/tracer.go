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

// Package tracer implements in-process distributed tracing: span lifecycle,
// trace context propagation across goroutines and process boundaries, and
// periodic export of completed traces.
//
// Trace context travels as an explicit context.Context value; there is no
// ambient global state. Each span carries its own context, so overlapping
// sibling spans never corrupt each other's parent linkage.
package tracer

import (
	"context"
	"sync"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const defaultExportInterval = 10 * time.Second

// Exporter receives completed traces on each export cycle. Failure is
// logged and the batch is dropped; traces are a sampling aid, not an
// audit log, and are never retried.
type Exporter func(ctx context.Context, traces []*models.TraceData) error

// Tracer tracks in-flight spans, groups finished spans per trace, and
// periodically hands completed traces to the configured exporter.
type Tracer struct {
	mu           sync.Mutex
	active       map[string]*models.Span   // span id -> in-flight span
	completed    map[string][]*models.Span // trace id -> finished spans awaiting export
	openChildren map[string]int            // span id -> count of open local children

	exporter Exporter
	interval time.Duration
	clock    clock.Clock
	logger   logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Tracer. A nil config uses the default export interval.
func New(cfg *models.TracerConfig, clk clock.Clock, log logger.Logger) *Tracer {
	interval := defaultExportInterval
	if cfg != nil && cfg.ExportInterval > 0 {
		interval = time.Duration(cfg.ExportInterval)
	}

	if clk == nil {
		clk = clock.New()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Tracer{
		active:       make(map[string]*models.Span),
		completed:    make(map[string][]*models.Span),
		openChildren: make(map[string]int),
		interval:     interval,
		clock:        clk,
		logger:       log,
		stop:         make(chan struct{}),
	}
}

// SetExporter registers the callback that receives completed traces.
// Wiring calls this once before Start.
func (t *Tracer) SetExporter(fn Exporter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.exporter = fn
}

// StartTrace begins a new trace with a root span and returns a context
// carrying that span.
func (t *Tracer) StartTrace(ctx context.Context, name string) (context.Context, *models.Span) {
	span := &models.Span{
		SpanID:     newSpanID(),
		TraceID:    newTraceID(),
		Name:       name,
		StartTime:  t.clock.Now(),
		Attributes: make(map[string]interface{}),
	}

	t.mu.Lock()
	t.active[span.SpanID] = span
	t.mu.Unlock()

	return ContextWithSpan(ctx, span), span
}

// StartSpan begins a child of the active span in ctx. When ctx carries a
// remote trace context instead, the child continues that trace. With
// neither, StartSpan behaves as StartTrace.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *models.Span) {
	if parent, ok := SpanFromContext(ctx); ok {
		span := &models.Span{
			SpanID:       newSpanID(),
			TraceID:      parent.TraceID,
			ParentSpanID: parent.SpanID,
			Name:         name,
			StartTime:    t.clock.Now(),
			Attributes:   make(map[string]interface{}),
		}

		t.mu.Lock()
		t.active[span.SpanID] = span
		t.openChildren[parent.SpanID]++
		t.mu.Unlock()

		return ContextWithSpan(ctx, span), span
	}

	if remote, ok := RemoteFromContext(ctx); ok {
		span := &models.Span{
			SpanID:       newSpanID(),
			TraceID:      remote.TraceID,
			ParentSpanID: remote.SpanID,
			Name:         name,
			StartTime:    t.clock.Now(),
			Attributes:   make(map[string]interface{}),
		}

		t.mu.Lock()
		t.active[span.SpanID] = span
		t.mu.Unlock()

		return ContextWithSpan(ctx, span), span
	}

	return t.StartTrace(ctx, name)
}

// EndSpan completes a span: sets its end time exactly once, defaults the
// status to ok, and moves it to the per-trace completed list. Ending a
// span twice is a no-op. A span ended while local children are still
// open gets the attribute inconsistent=true.
func (t *Tracer) EndSpan(span *models.Span) {
	if span == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if span.EndTime != nil {
		return
	}

	now := t.clock.Now()
	span.EndTime = &now

	if span.Status == models.SpanStatusUnset {
		span.Status = models.SpanStatusOK
	}

	if t.openChildren[span.SpanID] > 0 {
		if span.Attributes == nil {
			span.Attributes = make(map[string]interface{})
		}

		span.Attributes["inconsistent"] = true
	}

	delete(t.openChildren, span.SpanID)

	if span.ParentSpanID != "" {
		if n := t.openChildren[span.ParentSpanID]; n > 1 {
			t.openChildren[span.ParentSpanID] = n - 1
		} else if n == 1 {
			delete(t.openChildren, span.ParentSpanID)
		}
	}

	delete(t.active, span.SpanID)
	t.completed[span.TraceID] = append(t.completed[span.TraceID], span)
}

// RecordError marks an open span as failed and appends an error event.
func (t *Tracer) RecordError(span *models.Span, err error) {
	if span == nil || err == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if span.EndTime != nil {
		return
	}

	span.Status = models.SpanStatusError
	span.Events = append(span.Events, models.SpanEvent{
		Name:      "error",
		Timestamp: t.clock.Now(),
		Attributes: map[string]interface{}{
			"message": err.Error(),
		},
	})
}

// SetAttribute sets one attribute on an open span.
func (t *Tracer) SetAttribute(span *models.Span, key string, value interface{}) {
	if span == nil || key == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if span.EndTime != nil {
		return
	}

	if span.Attributes == nil {
		span.Attributes = make(map[string]interface{})
	}

	span.Attributes[key] = value
}

// AddEvent appends a timestamped event to an open span.
func (t *Tracer) AddEvent(span *models.Span, name string, attrs map[string]interface{}) {
	if span == nil || name == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if span.EndTime != nil {
		return
	}

	span.Events = append(span.Events, models.SpanEvent{
		Name:       name,
		Timestamp:  t.clock.Now(),
		Attributes: attrs,
	})
}

// ActiveSpans reports the number of in-flight spans.
func (t *Tracer) ActiveSpans() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.active)
}

// CompletedTraces reports the number of traces with finished spans
// awaiting export.
func (t *Tracer) CompletedTraces() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.completed)
}

// Start launches the periodic export loop. It returns immediately.
func (t *Tracer) Start(ctx context.Context) error {
	t.logger.Info().Dur("interval", t.interval).Msg("Starting trace exporter")

	t.wg.Add(1)

	go t.run(ctx)

	return nil
}

func (t *Tracer) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Export(context.Background())
			return
		case <-t.stop:
			t.Export(context.Background())
			return
		case <-ticker.Chan():
			t.Export(ctx)
		}
	}
}

// Stop halts the export loop after one final export.
func (t *Tracer) Stop(_ context.Context) error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})

	t.wg.Wait()

	t.logger.Info().Msg("Trace exporter stopped")

	return nil
}

// Export hands all completed traces to the exporter and clears them from
// memory. Export failures are logged and the batch is dropped.
func (t *Tracer) Export(ctx context.Context) {
	t.mu.Lock()

	if len(t.completed) == 0 {
		t.mu.Unlock()
		return
	}

	traces := make([]*models.TraceData, 0, len(t.completed))
	for traceID, spans := range t.completed {
		traces = append(traces, &models.TraceData{TraceID: traceID, Spans: spans})
	}

	t.completed = make(map[string][]*models.Span)
	exporter := t.exporter

	t.mu.Unlock()

	if exporter == nil {
		return
	}

	if err := exporter(ctx, traces); err != nil {
		t.logger.Error().Err(err).Int("traces", len(traces)).Msg("Failed to export traces")
	}
}
