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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	natsURLEnv = "NATS_URL"

	defaultStreamName    = "TELEMETRY"
	defaultSubjectPrefix = "telemetry"

	streamEventSource = "vrux-observe"
	streamTypePrefix  = "com.vrux.observe."
)

var errNATSNotConnected = errors.New("nats connection is not connected")

// jetStreamPublisher is the slice of the JetStream API the provider
// uses. jetstream.JetStream satisfies it.
type jetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// StreamProvider publishes telemetry batches as CloudEvents onto a NATS
// JetStream stream, one subject per telemetry kind under a common
// prefix.
type StreamProvider struct {
	nc     *nats.Conn
	js     jetStreamPublisher
	stream string
	prefix string
	logger logger.Logger
}

// NewStream connects to NATS and ensures the telemetry stream exists.
// Without a URL (config or NATS_URL) the provider is returned disabled
// with no error; a URL that cannot be reached is an error.
func NewStream(ctx context.Context, cfg *models.StreamConfig, log logger.Logger) (*StreamProvider, error) {
	if cfg == nil {
		cfg = &models.StreamConfig{}
	}

	stream := cfg.Stream
	if stream == "" {
		stream = defaultStreamName
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	p := &StreamProvider{stream: stream, prefix: prefix, logger: log}

	url := cfg.URL
	if url == "" {
		url = os.Getenv(natsURLEnv)
	}

	if url == "" {
		log.Info().Msg("Stream provider disabled, no NATS URL configured")
		return p, nil
	}

	nc, err := nats.Connect(url,
		nats.Name(streamEventSource),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS async error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at '%s': %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.Stream(ctx, stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     stream,
			Subjects: []string{prefix + ".>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to ensure stream '%s': %w", stream, err)
		}
	}

	log.Info().Str("stream", stream).Str("subject_prefix", prefix).Msg("Stream provider connected")

	p.nc = nc
	p.js = js

	return p, nil
}

func (p *StreamProvider) Name() string { return "stream" }

func (p *StreamProvider) Enabled() bool { return p.js != nil }

func (p *StreamProvider) SendMetrics(ctx context.Context, batch []models.MetricData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.publish(ctx, kindMetrics, batch)
}

func (p *StreamProvider) SendLogs(ctx context.Context, batch []models.LogData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.publish(ctx, kindLogs, batch)
}

func (p *StreamProvider) SendTraces(ctx context.Context, batch []*models.TraceData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.publish(ctx, kindTraces, batch)
}

func (p *StreamProvider) SendAlert(ctx context.Context, alert models.AlertData) error {
	if !p.Enabled() {
		return nil
	}

	return p.publish(ctx, kindAlerts, alert)
}

// HealthCheck reports the connection status.
func (p *StreamProvider) HealthCheck(_ context.Context) error {
	if !p.Enabled() || p.nc == nil {
		return nil
	}

	if status := p.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("%w: %s", errNATSNotConnected, status)
	}

	return nil
}

// Close drains the NATS connection.
func (p *StreamProvider) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}

	return nil
}

func (p *StreamProvider) publish(ctx context.Context, kind string, data interface{}) error {
	now := time.Now().UTC()
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          streamEventSource,
		Type:            streamTypePrefix + kind,
		DataContentType: "application/json",
		Subject:         p.prefix + "." + kind,
		Time:            &now,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	p.logger.Debug().
		Str("subject", event.Subject).
		Uint64("sequence", ack.Sequence).
		Msg("Published telemetry event")

	return nil
}
