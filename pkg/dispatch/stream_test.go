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
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

type fakeJetStream struct {
	mu       sync.Mutex
	err      error
	subjects []string
	payloads [][]byte
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)

	return &jetstream.PubAck{Stream: "TELEMETRY", Sequence: uint64(len(f.payloads))}, nil
}

func newTestStream(js jetStreamPublisher) *StreamProvider {
	return &StreamProvider{
		js:     js,
		stream: defaultStreamName,
		prefix: defaultSubjectPrefix,
		logger: logger.NewTestLogger(),
	}
}

func TestStreamDisabledWithoutURL(t *testing.T) {
	t.Setenv(natsURLEnv, "")

	p, err := NewStream(context.Background(), nil, logger.NewTestLogger())

	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.SendMetrics(context.Background(), []models.MetricData{metricSample("cpu")}))
	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close())
}

func TestStreamPublishesCloudEvents(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestStream(js)

	batch := []models.MetricData{metricSample("cpu"), metricSample("mem")}
	require.NoError(t, p.SendMetrics(context.Background(), batch))

	require.Len(t, js.subjects, 1)
	assert.Equal(t, "telemetry.metrics", js.subjects[0])

	var event models.CloudEvent
	require.NoError(t, json.Unmarshal(js.payloads[0], &event))

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "com.vrux.observe.metrics", event.Type)
	assert.Equal(t, "vrux-observe", event.Source)
	assert.Equal(t, "application/json", event.DataContentType)
	assert.Equal(t, "telemetry.metrics", event.Subject)
	assert.NotEmpty(t, event.ID)
	require.NotNil(t, event.Time)

	data, err := json.Marshal(event.Data)
	require.NoError(t, err)

	var got []models.MetricData
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "cpu", got[0].Name)
	assert.Equal(t, "mem", got[1].Name)
}

func TestStreamSubjectPerKind(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestStream(js)

	ctx := context.Background()
	require.NoError(t, p.SendLogs(ctx, []models.LogData{{Message: "hello"}}))
	require.NoError(t, p.SendTraces(ctx, []*models.TraceData{{TraceID: "trace-1"}}))
	require.NoError(t, p.SendAlert(ctx, models.AlertData{ID: "alert-1"}))

	assert.Equal(t, []string{"telemetry.logs", "telemetry.traces", "telemetry.alerts"}, js.subjects)
}

func TestStreamCustomPrefix(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestStream(js)
	p.prefix = "observe.prod"

	require.NoError(t, p.SendAlert(context.Background(), models.AlertData{ID: "alert-1"}))

	assert.Equal(t, []string{"observe.prod.alerts"}, js.subjects)
}

func TestStreamPublishError(t *testing.T) {
	js := &fakeJetStream{err: errProviderDown}
	p := newTestStream(js)

	err := p.SendLogs(context.Background(), []models.LogData{{Message: "hello"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, errProviderDown)
	assert.Contains(t, err.Error(), "failed to publish logs event")
}
