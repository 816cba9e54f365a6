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

// Package logs implements the log aggregation pipeline: records pass
// through an enrich/redact/sample processor chain into an in-memory
// buffer that flushes to a rotating on-disk sink and onward to the
// dispatch layer. Failed batches are requeued at the front of the
// buffer for exactly one retry.
package logs

import (
	"context"
	"sync"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultBufferSize    = 100
	defaultFlushInterval = 10 * time.Second
	defaultSweepInterval = time.Hour
)

// Pipeline buffers processed log records and flushes them on a size
// threshold or a timer, whichever comes first.
type Pipeline struct {
	processors []Processor
	sink       Sink

	bufferSize    int
	flushInterval time.Duration
	sweepInterval time.Duration

	clock  clock.Clock
	logger logger.Logger

	mu        sync.Mutex
	buffer    []*models.LogRecord
	requeued  int // leading records that already failed one flush
	forwarder Forwarder

	flushCh  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPipeline assembles a pipeline from its stages. The processor chain
// runs in order on every submitted record.
func NewPipeline(cfg *models.LogPipelineConfig, sink Sink, processors []Processor, clk clock.Clock, log logger.Logger) *Pipeline {
	bufferSize := defaultBufferSize
	flushInterval := defaultFlushInterval
	sweepInterval := defaultSweepInterval

	if cfg != nil {
		if cfg.BufferSize > 0 {
			bufferSize = cfg.BufferSize
		}

		if cfg.FlushInterval > 0 {
			flushInterval = time.Duration(cfg.FlushInterval)
		}

		if cfg.SweepInterval > 0 {
			sweepInterval = time.Duration(cfg.SweepInterval)
		}
	}

	if clk == nil {
		clk = clock.New()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Pipeline{
		processors:    processors,
		sink:          sink,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		sweepInterval: sweepInterval,
		clock:         clk,
		logger:        log,
		flushCh:       make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
}

// SetForwarder registers the dispatch hand-off callback. Wiring calls
// this once before Start.
func (p *Pipeline) SetForwarder(fn Forwarder) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.forwarder = fn
}

// Log builds a record and submits it to the pipeline.
func (p *Pipeline) Log(ctx context.Context, level models.LogLevel, message string, metadata map[string]interface{}) {
	p.Submit(ctx, &models.LogRecord{
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
}

// Submit runs the record through the processor chain and buffers it.
// Vetoed records are discarded before they reach the buffer.
func (p *Pipeline) Submit(ctx context.Context, rec *models.LogRecord) {
	if rec == nil {
		return
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = p.clock.Now()
	}

	for _, proc := range p.processors {
		if !proc.Process(ctx, rec) {
			return
		}
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, rec)
	full := len(p.buffer) >= p.bufferSize
	p.mu.Unlock()

	if full {
		p.signalFlush()
	}
}

func (p *Pipeline) signalFlush() {
	select {
	case p.flushCh <- struct{}{}:
	default:
	}
}

// Start launches the flush and retention loops. It returns immediately.
func (p *Pipeline) Start(ctx context.Context) error {
	p.logger.Info().
		Int("buffer_size", p.bufferSize).
		Dur("flush_interval", p.flushInterval).
		Msg("Starting log pipeline")

	p.wg.Add(1)

	go p.run(ctx)

	return nil
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	flushTicker := p.clock.Ticker(p.flushInterval)
	defer flushTicker.Stop()

	sweepTicker := p.clock.Ticker(p.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Flush(context.Background())
			return
		case <-p.stop:
			p.Flush(context.Background())
			return
		case <-p.flushCh:
			p.Flush(ctx)
		case <-flushTicker.Chan():
			p.Flush(ctx)
		case <-sweepTicker.Chan():
			if err := p.sink.Sweep(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Log retention sweep failed")
			}
		}
	}
}

// Stop flushes once more, halts the loops, and closes the sink.
func (p *Pipeline) Stop(_ context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stop)
	})

	p.wg.Wait()

	if err := p.sink.Close(); err != nil {
		p.logger.Error().Err(err).Msg("Failed to close log sink")
	}

	p.logger.Info().Msg("Log pipeline stopped")

	return nil
}

// Flush persists the buffered batch and hands it to the forwarder. On
// failure the not-yet-retried part of the batch returns to the front of
// the buffer for exactly one more attempt; records that already had
// their retry are dropped with an error log.
func (p *Pipeline) Flush(ctx context.Context) {
	p.mu.Lock()

	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}

	batch := p.buffer
	retried := p.requeued
	p.buffer = nil
	p.requeued = 0
	forward := p.forwarder

	p.mu.Unlock()

	err := p.sink.Write(ctx, batch)
	if err == nil && forward != nil {
		err = forward(ctx, batch)
	}

	if err == nil {
		p.logger.Debug().Int("records", len(batch)).Msg("Flushed log batch")
		return
	}

	if retried > len(batch) {
		retried = len(batch)
	}

	keep := batch[retried:]

	p.mu.Lock()
	p.buffer = append(append(make([]*models.LogRecord, 0, len(keep)+len(p.buffer)), keep...), p.buffer...)
	p.requeued = len(keep)
	p.mu.Unlock()

	if retried > 0 {
		p.logger.Error().Err(err).Int("dropped", retried).Msg("Dropping log records after failed retry")
	}

	if len(keep) > 0 {
		p.logger.Error().Err(err).Int("requeued", len(keep)).Msg("Log flush failed, batch requeued for one retry")
	}
}

// BufferedRecords reports the current buffer depth for self-gauges.
func (p *Pipeline) BufferedRecords() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buffer)
}

// Search scans the persisted files for matching records, newest first.
func (p *Pipeline) Search(ctx context.Context, q models.LogQuery) ([]models.LogRecord, error) {
	return p.sink.Search(ctx, q)
}
