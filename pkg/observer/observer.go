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

// Package observer is the composition root of the pipeline. It builds
// the metric aggregator, tracer, log pipeline, alerting engine, and
// dispatcher, connects their hand-off callbacks, and exposes the
// producer API applications instrument with. No component references
// another directly; every hand-off between them is a callback set here.
package observer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehudso7/vrux-observe/pkg/alerting"
	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/dispatch"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/logs"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
	"github.com/ehudso7/vrux-observe/pkg/tracer"
)

const (
	defaultEnvironment = "development"

	// trackMetricPrefix namespaces the counters produced by Track so
	// business events stay alertable without colliding with gauges.
	trackMetricPrefix = "track_"
)

var errNilConfig = errors.New("observer config is required")

// Observer owns every pipeline component and their lifecycles.
type Observer struct {
	cfg         *models.ObserverConfig
	environment string

	aggregator *metrics.Aggregator
	tracer     *tracer.Tracer
	pipeline   *logs.Pipeline
	engine     *alerting.Engine
	watcher    *alerting.RulesWatcher
	dispatcher *dispatch.Dispatcher
	gauges     *dispatch.GaugeCollector
	health     *healthEvaluator
	server     *statusServer

	clock  clock.Clock
	logger logger.Logger
}

// New builds the full pipeline from cfg and wires the components
// together. The context covers provider connection setup only; a
// stream provider that cannot connect is logged and skipped rather
// than failing construction.
func New(ctx context.Context, cfg *models.ObserverConfig, log logger.Logger) (*Observer, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observer config: %w", err)
	}

	environment := cfg.Environment
	if environment == "" {
		environment = defaultEnvironment
	}

	clk := clock.New()

	aggregator := metrics.NewAggregator(metrics.Config{}, clk, log.WithComponent("metrics"))
	trc := tracer.New(&cfg.Tracer, clk, log.WithComponent("tracer"))

	sink := logs.NewFileSink(&cfg.Logs, clk, log.WithComponent("logsink"))
	processors := []logs.Processor{
		logs.NewEnricher(cfg.ServiceName, environment, cfg.Version),
		logs.NewRedactor(),
		logs.NewSampler(environment, cfg.Logs.SampleRates),
	}
	pipe := logs.NewPipeline(&cfg.Logs, sink, processors, clk, log.WithComponent("logpipe"))

	engine := alerting.NewEngine(&cfg.Alerting, aggregator, clk, log.WithComponent("alerting"))
	engine.SetRecorder(aggregator)

	dispatchLog := log.WithComponent("dispatch")

	providers := []dispatch.Provider{
		dispatch.NewDatadog(cfg.Dispatch.Datadog, dispatchLog),
		dispatch.NewNewRelic(cfg.Dispatch.NewRelic, dispatchLog),
		dispatch.NewWebhook(cfg.Dispatch.Webhook, dispatchLog),
	}

	if stream, err := dispatch.NewStream(ctx, cfg.Dispatch.Stream, dispatchLog); err != nil {
		log.Error().Err(err).Msg("Stream provider unavailable, continuing without it")
	} else {
		providers = append(providers, stream)
	}

	dispatcher := dispatch.NewDispatcher(&cfg.Dispatch, providers, clk, dispatchLog)
	dispatcher.SetRecorder(aggregator)

	gauges := dispatch.NewGaugeCollector(&cfg.Dispatch, nil, aggregator, dispatcher, clk, dispatchLog)

	// Hand-offs between components. Completed traces and flushed log
	// batches land in the dispatch buffers; stream-action alerts go
	// straight out, bypassing them.
	trc.SetExporter(func(_ context.Context, traces []*models.TraceData) error {
		dispatcher.SendTraces(traces)
		return nil
	})

	pipe.SetForwarder(func(_ context.Context, batch []*models.LogRecord) error {
		dispatcher.SendLogs(flattenRecords(batch))
		return nil
	})

	engine.RegisterAction(models.ActionStream, func(ctx context.Context, _ models.ActionConfig, alert models.AlertData) error {
		return dispatcher.SendAlert(ctx, alert)
	})

	o := &Observer{
		cfg:         cfg,
		environment: environment,
		aggregator:  aggregator,
		tracer:      trc,
		pipeline:    pipe,
		engine:      engine,
		dispatcher:  dispatcher,
		gauges:      gauges,
		clock:       clk,
		logger:      log.WithComponent("observer"),
	}

	if cfg.Alerting.RulesFile != "" {
		o.watcher = alerting.NewRulesWatcher(cfg.Alerting.RulesFile, engine, log.WithComponent("alerting"))
	}

	o.health = newHealthEvaluator(&cfg.Health, gauges, engine, dispatcher, aggregator, pipe, clk, log.WithComponent("health"))

	if cfg.ListenAddr != "" {
		o.server = newStatusServer(cfg.ListenAddr, cfg.APIKey, o.health, log.WithComponent("api"))
	}

	return o, nil
}

// Start launches every component loop, consumers before producers so
// nothing feeds a loop that is not yet draining. It returns once all
// loops are running.
func (o *Observer) Start(ctx context.Context) error {
	o.logger.Info().
		Str("service", o.cfg.ServiceName).
		Str("environment", o.environment).
		Str("version", o.cfg.Version).
		Msg("Starting observer")

	if err := o.dispatcher.Start(ctx); err != nil {
		return err
	}

	if err := o.tracer.Start(ctx); err != nil {
		return err
	}

	if err := o.pipeline.Start(ctx); err != nil {
		return err
	}

	if err := o.engine.Start(ctx); err != nil {
		return err
	}

	if o.watcher != nil {
		if err := o.watcher.Start(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("Rules watcher failed to start, hot reload disabled")
		}
	}

	if err := o.gauges.Start(ctx); err != nil {
		return err
	}

	if err := o.health.Start(ctx); err != nil {
		return err
	}

	if o.server != nil {
		if err := o.server.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Stop shuts the pipeline down in order: the status API and periodic
// evaluators first, then each producer performs its final flush into
// the dispatch buffers, and the dispatcher drains to the providers
// last so nothing buffered is lost.
func (o *Observer) Stop(ctx context.Context) error {
	o.logger.Info().Msg("Stopping observer")

	var errs []error

	if o.server != nil {
		errs = append(errs, o.server.Stop(ctx))
	}

	errs = append(errs, o.health.Stop(ctx), o.gauges.Stop(ctx))

	if o.watcher != nil {
		errs = append(errs, o.watcher.Stop(ctx))
	}

	errs = append(errs,
		o.tracer.Stop(ctx),
		o.pipeline.Stop(ctx),
		o.engine.Stop(ctx),
		o.dispatcher.Stop(ctx),
	)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}

	o.logger.Info().Msg("Observer stopped")

	return nil
}

// StartTrace begins a new root span and returns the derived context.
func (o *Observer) StartTrace(ctx context.Context, name string) (context.Context, *models.Span) {
	return o.tracer.StartTrace(ctx, name)
}

// StartSpan begins a child of the active span in ctx, or a new root
// when none is active.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, *models.Span) {
	return o.tracer.StartSpan(ctx, name)
}

// EndSpan finishes the span and restores its parent as active.
func (o *Observer) EndSpan(span *models.Span) {
	o.tracer.EndSpan(span)
}

// RecordError marks the span failed and attaches the error detail.
func (o *Observer) RecordError(span *models.Span, err error) {
	o.tracer.RecordError(span, err)
}

// SetAttribute sets one attribute on an unfinished span.
func (o *Observer) SetAttribute(span *models.Span, key string, value interface{}) {
	o.tracer.SetAttribute(span, key, value)
}

// AddEvent appends a point-in-time event to an unfinished span.
func (o *Observer) AddEvent(span *models.Span, name string, attrs map[string]interface{}) {
	o.tracer.AddEvent(span, name, attrs)
}

// Log submits a record to the log pipeline. Correlation ids are filled
// in from ctx when a span is active.
func (o *Observer) Log(ctx context.Context, level models.LogLevel, message string, metadata map[string]interface{}) {
	o.pipeline.Log(ctx, level, message, metadata)
}

// RecordMetric feeds one sample to the aggregator and queues it for
// provider dispatch.
func (o *Observer) RecordMetric(name string, value float64, tags map[string]string, metricType models.MetricType) {
	o.aggregator.Record(name, value, tags, metricType)

	o.dispatcher.SendMetrics([]models.MetricData{{
		Name:      name,
		Value:     value,
		Type:      metricType,
		Tags:      tags,
		Timestamp: o.clock.Now(),
	}})
}

// Track records a business event as a counter metric plus an info log
// record carrying the payload.
func (o *Observer) Track(ctx context.Context, eventType string, payload map[string]interface{}) {
	o.RecordMetric(trackMetricPrefix+eventType, 1, nil, models.MetricTypeCounter)
	o.pipeline.Log(ctx, models.LevelInfo, eventType, payload)
}

// SearchLogs queries the persisted log files.
func (o *Observer) SearchLogs(ctx context.Context, q models.LogQuery) ([]models.LogRecord, error) {
	return o.pipeline.Search(ctx, q)
}

// Health returns the latest health snapshot, evaluating immediately
// when the periodic loop has not produced one yet.
func (o *Observer) Health(ctx context.Context) models.HealthSnapshot {
	return o.health.Current(ctx)
}

// ActiveAlerts lists the currently firing alerts.
func (o *Observer) ActiveAlerts() []models.ActiveAlert {
	return o.engine.ActiveAlerts()
}

// Acknowledge silences re-notification for an active alert until it
// resolves.
func (o *Observer) Acknowledge(ruleID string) error {
	return o.engine.Acknowledge(ruleID)
}

// SetPerfSource registers the serving-layer collaborator that supplies
// request performance gauges.
func (o *Observer) SetPerfSource(perf dispatch.PerfSource) {
	o.gauges.SetPerfSource(perf)
}

// flattenRecords converts pipeline records to the flat provider
// payload, folding the structured identity fields into metadata.
func flattenRecords(batch []*models.LogRecord) []models.LogData {
	out := make([]models.LogData, 0, len(batch))

	for _, rec := range batch {
		if rec == nil {
			continue
		}

		meta := make(map[string]interface{}, len(rec.Metadata)+8)
		for k, v := range rec.Metadata {
			meta[k] = v
		}

		if rec.Service != "" {
			meta["service"] = rec.Service
		}

		if rec.Environment != "" {
			meta["environment"] = rec.Environment
		}

		if rec.Version != "" {
			meta["version"] = rec.Version
		}

		if rec.TraceID != "" {
			meta["trace_id"] = rec.TraceID
		}

		if rec.SpanID != "" {
			meta["span_id"] = rec.SpanID
		}

		if rec.UserID != "" {
			meta["user_id"] = rec.UserID
		}

		if rec.RequestID != "" {
			meta["request_id"] = rec.RequestID
		}

		if rec.Host != "" {
			meta["host"] = rec.Host
		}

		out = append(out, models.LogData{
			Timestamp: rec.Timestamp,
			Level:     string(rec.Level),
			Message:   rec.Message,
			Metadata:  meta,
		})
	}

	return out
}
