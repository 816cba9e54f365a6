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

package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const actionCapture models.ActionType = "capture"

type stubSource struct {
	mu   sync.Mutex
	snap map[string]float64
}

func (s *stubSource) Snapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.snap))
	for k, v := range s.snap {
		out[k] = v
	}

	return out
}

func (s *stubSource) set(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap[name] = value
}

func (s *stubSource) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snap, name)
}

type capture struct {
	mu    sync.Mutex
	calls []models.AlertData
}

func (c *capture) handler() ActionHandler {
	return func(_ context.Context, _ models.ActionConfig, alert models.AlertData) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, alert)

		return nil
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.calls)
}

func (c *capture) last() models.AlertData {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[len(c.calls)-1]
}

func newTestEngine(t *testing.T, cfg *models.AlertingConfig) (*Engine, *stubSource, *capture, *clock.FakeClock) {
	t.Helper()

	source := &stubSource{snap: map[string]float64{}}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	e := NewEngine(cfg, source, fake, logger.NewTestLogger())

	captured := &capture{}
	e.RegisterAction(actionCapture, captured.handler())

	return e, source, captured, fake
}

func aboveRule(id, metric string, threshold float64) *models.AlertRule {
	return &models.AlertRule{
		ID:        id,
		Name:      id,
		Metric:    metric,
		Condition: models.ConditionAbove,
		Threshold: threshold,
		Severity:  models.SeverityWarning,
		Enabled:   true,
		Actions:   []models.ActionConfig{{Type: actionCapture}},
	}
}

func TestEngineAlertLifecycle(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("cpu-high", "cpu_usage", 5)))

	ctx := context.Background()

	// Violation activates exactly one alert.
	source.set("cpu_usage", 6)
	e.Evaluate(ctx)

	active := e.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertStateActive, active[0].State)
	assert.Equal(t, 6.0, active[0].CurrentValue)
	require.Equal(t, 1, captured.count())
	assert.Equal(t, "firing", captured.last().Metadata["state"])
	assert.Equal(t, models.SeverityWarning, captured.last().Severity)

	firstID := active[0].ID

	// Still violating inside the cooldown: no duplicate notification.
	e.Evaluate(ctx)
	assert.Equal(t, 1, captured.count())
	require.Len(t, e.ActiveAlerts(), 1)

	// Recovery resolves exactly once and removes the alert.
	source.set("cpu_usage", 4)
	e.Evaluate(ctx)

	assert.Empty(t, e.ActiveAlerts())
	require.Equal(t, 2, captured.count())
	assert.Equal(t, "resolved", captured.last().Metadata["state"])
	assert.Equal(t, models.SeverityInfo, captured.last().Severity)
	assert.Equal(t, firstID, captured.last().ID)

	// A fresh violation is a new alert with a new id.
	source.set("cpu_usage", 6)
	e.Evaluate(ctx)

	active = e.ActiveAlerts()
	require.Len(t, active, 1)
	assert.NotEqual(t, firstID, active[0].ID)
	assert.Equal(t, 3, captured.count())
}

func TestEngineCooldownRenotify(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)

	rule := aboveRule("mem-high", "memory", 80)
	rule.Cooldown = models.Duration(time.Minute)
	require.NoError(t, e.AddRule(rule))

	ctx := context.Background()
	source.set("memory", 95)

	e.Evaluate(ctx)
	require.Equal(t, 1, captured.count())

	fake.Advance(30 * time.Second)
	e.Evaluate(ctx)
	assert.Equal(t, 1, captured.count())

	fake.Advance(31 * time.Second)
	e.Evaluate(ctx)
	require.Equal(t, 2, captured.count())
	assert.Equal(t, "firing", captured.last().Metadata["state"])

	// Same alert, not a new activation.
	require.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, captured.last().ID, e.ActiveAlerts()[0].ID)
}

func TestEngineDefaultCooldown(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("r", "m", 5)))

	ctx := context.Background()
	source.set("m", 6)

	e.Evaluate(ctx)
	require.Equal(t, 1, captured.count())

	fake.Advance(4 * time.Minute)
	e.Evaluate(ctx)
	assert.Equal(t, 1, captured.count())

	fake.Advance(time.Minute + time.Second)
	e.Evaluate(ctx)
	assert.Equal(t, 2, captured.count())
}

func TestEngineDurationWindow(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)

	rule := aboveRule("sustained", "latency", 100)
	rule.Duration = models.Duration(time.Minute)
	require.NoError(t, e.AddRule(rule))

	ctx := context.Background()

	// First violating tick opens the window, no alert yet.
	source.set("latency", 250)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())
	assert.Equal(t, 0, captured.count())

	fake.Advance(30 * time.Second)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())

	// Held past the window: activation.
	fake.Advance(31 * time.Second)
	e.Evaluate(ctx)
	require.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, 1, captured.count())
}

func TestEngineDurationWindowResetsOnRecovery(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)

	rule := aboveRule("sustained", "latency", 100)
	rule.Duration = models.Duration(time.Minute)
	require.NoError(t, e.AddRule(rule))

	ctx := context.Background()

	source.set("latency", 250)
	e.Evaluate(ctx)

	// A clean tick resets the window; the earlier partial hold is gone.
	fake.Advance(45 * time.Second)
	source.set("latency", 50)
	e.Evaluate(ctx)

	fake.Advance(30 * time.Second)
	source.set("latency", 250)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())

	fake.Advance(30 * time.Second)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())

	fake.Advance(31 * time.Second)
	e.Evaluate(ctx)
	require.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, 1, captured.count())
}

func TestEngineBelowAndEqualsConditions(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)

	below := aboveRule("disk-low", "disk_free", 10)
	below.Condition = models.ConditionBelow
	require.NoError(t, e.AddRule(below))

	equals := aboveRule("exact", "replicas", 0)
	equals.Condition = models.ConditionEquals
	require.NoError(t, e.AddRule(equals))

	ctx := context.Background()

	source.set("disk_free", 12)
	source.set("replicas", 3)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())

	source.set("disk_free", 9)
	source.set("replicas", 0)
	e.Evaluate(ctx)
	assert.Len(t, e.ActiveAlerts(), 2)
	assert.Equal(t, 2, captured.count())
}

func TestEngineAbsentMetricSkipsEvaluation(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("r", "m", 5)))

	ctx := context.Background()

	source.set("m", 6)
	e.Evaluate(ctx)
	require.Len(t, e.ActiveAlerts(), 1)

	// Metric vanishes: no evaluation, so no resolution either.
	source.remove("m")
	e.Evaluate(ctx)

	assert.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, 1, captured.count())
}

func TestEngineAcknowledgeSuppressesRenotify(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)

	rule := aboveRule("r", "m", 5)
	rule.Cooldown = models.Duration(time.Minute)
	require.NoError(t, e.AddRule(rule))

	ctx := context.Background()
	source.set("m", 6)
	e.Evaluate(ctx)
	require.Equal(t, 1, captured.count())

	require.NoError(t, e.Acknowledge("r"))
	assert.Equal(t, models.AlertStateAcknowledged, e.ActiveAlerts()[0].State)

	// Well past the cooldown, still violating: acknowledged stays quiet.
	fake.Advance(5 * time.Minute)
	source.set("m", 9)
	e.Evaluate(ctx)
	assert.Equal(t, 1, captured.count())
	assert.Equal(t, 9.0, e.ActiveAlerts()[0].CurrentValue)

	// Resolution still fires normally.
	source.set("m", 2)
	e.Evaluate(ctx)
	assert.Empty(t, e.ActiveAlerts())
	require.Equal(t, 2, captured.count())
	assert.Equal(t, "resolved", captured.last().Metadata["state"])
}

func TestEngineAcknowledgeUnknownRule(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)

	err := e.Acknowledge("missing")
	assert.ErrorIs(t, err, errNoActiveAlert)
}

func anomalyRule(id, metric string, threshold float64) *models.AlertRule {
	rule := aboveRule(id, metric, threshold)
	rule.Condition = models.ConditionAnomaly

	return rule
}

func feedTicks(e *Engine, source *stubSource, fake *clock.FakeClock, metric string, values ...float64) {
	for _, v := range values {
		source.set(metric, v)
		e.Evaluate(context.Background())
		fake.Advance(30 * time.Second)
	}
}

func TestEngineAnomalyRequiresHistory(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(anomalyRule("anom", "rate", 3)))

	// Nine baseline samples, then an extreme value: nine is below the
	// minimum history, so nothing may fire.
	feedTicks(e, source, fake, "rate", 10, 12, 10, 12, 10, 12, 10, 12, 10)

	source.set("rate", 100000)
	e.Evaluate(context.Background())

	assert.Empty(t, e.ActiveAlerts())
	assert.Equal(t, 0, captured.count())
}

func TestEngineAnomalyFiresAfterBaseline(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(anomalyRule("anom", "rate", 3)))

	feedTicks(e, source, fake, "rate", 10, 12, 10, 12, 10, 12, 10, 12, 10, 12)

	// Baseline of ten samples, mean 11, deviation 1: 1000 is way out.
	source.set("rate", 1000)
	e.Evaluate(context.Background())

	require.Len(t, e.ActiveAlerts(), 1)
	require.Equal(t, 1, captured.count())
	assert.Equal(t, "firing", captured.last().Metadata["state"])

	// A normal value resolves it.
	fake.Advance(30 * time.Second)
	source.set("rate", 11)
	e.Evaluate(context.Background())

	assert.Empty(t, e.ActiveAlerts())
	assert.Equal(t, 2, captured.count())
}

func TestEngineAnomalyFlatBaselineNeverFires(t *testing.T) {
	e, source, captured, fake := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(anomalyRule("anom", "rate", 3)))

	feedTicks(e, source, fake, "rate", 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)

	source.set("rate", 100000)
	e.Evaluate(context.Background())

	assert.Empty(t, e.ActiveAlerts())
	assert.Equal(t, 0, captured.count())
}

func TestEngineAnomalyHistoryBounded(t *testing.T) {
	cfg := &models.AlertingConfig{HistorySize: 5, MinSamples: 3}
	e, source, _, fake := newTestEngine(t, cfg)
	require.NoError(t, e.AddRule(anomalyRule("anom", "rate", 3)))

	// Early outliers scroll out of the bounded window.
	feedTicks(e, source, fake, "rate", 1000, 1000, 10, 12, 10, 12, 10)

	e.mu.Lock()
	window := e.histories["rate"]
	samples := len(window.samples)
	e.mu.Unlock()

	assert.Equal(t, 5, samples)
}

func TestEngineRemoveRuleClearsActiveAlert(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("r", "m", 5)))

	ctx := context.Background()
	source.set("m", 6)
	e.Evaluate(ctx)
	require.Len(t, e.ActiveAlerts(), 1)

	require.NoError(t, e.RemoveRule("r"))

	assert.Empty(t, e.ActiveAlerts())
	assert.Empty(t, e.Rules())

	// No stray resolution fires afterwards.
	e.Evaluate(ctx)
	assert.Equal(t, 1, captured.count())

	assert.ErrorIs(t, e.RemoveRule("r"), errUnknownRule)
}

func TestEngineReplaceRules(t *testing.T) {
	e, source, _, _ := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("a", "m1", 5)))
	require.NoError(t, e.AddRule(aboveRule("b", "m2", 5)))

	ctx := context.Background()
	source.set("m1", 6)
	source.set("m2", 6)
	e.Evaluate(ctx)
	require.Len(t, e.ActiveAlerts(), 2)

	updated := aboveRule("a", "m1", 50)
	fresh := aboveRule("c", "m3", 1)
	require.NoError(t, e.ReplaceRules([]models.AlertRule{*updated, *fresh}))

	rules := e.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "a", rules[0].ID)
	assert.Equal(t, "c", rules[1].ID)

	// b's alert dropped with its rule; a's alert carries the new definition.
	active := e.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].RuleID)
	assert.Equal(t, 50.0, active[0].Rule.Threshold)
}

func TestEngineReplaceRulesRejectsBadBatch(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)
	require.NoError(t, e.AddRule(aboveRule("a", "m1", 5)))

	dup := []models.AlertRule{*aboveRule("x", "m", 1), *aboveRule("x", "m", 2)}
	assert.ErrorIs(t, e.ReplaceRules(dup), errDuplicateRule)

	// The existing set is untouched.
	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "a", rules[0].ID)
}

func TestEngineReservedMetricRejected(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)

	rule := aboveRule("self", "observe_alert_action_failures", 0)
	assert.ErrorIs(t, e.AddRule(rule), errReservedMetric)
	assert.ErrorIs(t, e.ReplaceRules([]models.AlertRule{*rule}), errReservedMetric)

	require.NoError(t, e.AddRule(aboveRule("ok", "observe_health_score", 50)))
}

func TestEngineRuleManagement(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)

	rule := aboveRule("r", "m", 5)
	require.NoError(t, e.AddRule(rule))
	assert.ErrorIs(t, e.AddRule(rule), errDuplicateRule)

	changed := aboveRule("r", "m", 42)
	require.NoError(t, e.UpdateRule(changed))
	assert.Equal(t, 42.0, e.Rules()[0].Threshold)

	assert.ErrorIs(t, e.UpdateRule(aboveRule("ghost", "m", 1)), errUnknownRule)

	bad := aboveRule("bad", "m", 1)
	bad.Condition = "sideways"
	assert.Error(t, e.AddRule(bad))
}

type failingHandler struct{}

func (failingHandler) handle(_ context.Context, _ models.ActionConfig, _ models.AlertData) error {
	return errors.New("handler down")
}

func TestEngineActionIsolation(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)
	e.RegisterAction("fail", failingHandler{}.handle)

	rule := aboveRule("r", "m", 5)
	rule.Actions = []models.ActionConfig{{Type: "fail"}, {Type: actionCapture}}
	require.NoError(t, e.AddRule(rule))

	other := aboveRule("other", "m2", 5)
	require.NoError(t, e.AddRule(other))

	ctrl := gomock.NewController(t)
	rec := metrics.NewMockMetricRecorder(ctrl)
	rec.EXPECT().Record(actionFailureMetric, 1.0, map[string]string{"action": "fail"}, models.MetricTypeCounter)
	e.SetRecorder(rec)

	ctx := context.Background()
	source.set("m", 6)
	source.set("m2", 6)
	e.Evaluate(ctx)

	// The failing action neither blocked its sibling nor the other rule.
	assert.Equal(t, 2, captured.count())
	assert.Len(t, e.ActiveAlerts(), 2)
}

func TestEngineDisabledRuleSkipped(t *testing.T) {
	e, source, captured, _ := newTestEngine(t, nil)

	rule := aboveRule("r", "m", 5)
	rule.Enabled = false
	require.NoError(t, e.AddRule(rule))

	source.set("m", 100)
	e.Evaluate(context.Background())

	assert.Empty(t, e.ActiveAlerts())
	assert.Equal(t, 0, captured.count())
}

func TestEngineUnregisteredActionIgnored(t *testing.T) {
	e, source, _, _ := newTestEngine(t, nil)

	rule := aboveRule("r", "m", 5)
	rule.Actions = []models.ActionConfig{{Type: "bogus"}}
	require.NoError(t, e.AddRule(rule))

	source.set("m", 6)
	e.Evaluate(context.Background())

	assert.Len(t, e.ActiveAlerts(), 1)
}

func TestEngineConfigRulesInstalled(t *testing.T) {
	cfg := &models.AlertingConfig{
		Rules: []models.AlertRule{
			*aboveRule("good", "m", 5),
			{ID: "bad", Metric: "m", Condition: "sideways", Enabled: true},
		},
	}

	source := &stubSource{snap: map[string]float64{}}
	e := NewEngine(cfg, source, clock.NewFakeClock(time.Now()), logger.NewTestLogger())

	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].ID)
}

func TestEnginePeriodicEvaluation(t *testing.T) {
	e, source, _, fake := newTestEngine(t, &models.AlertingConfig{PollInterval: models.Duration(time.Second)})
	require.NoError(t, e.AddRule(aboveRule("r", "m", 5)))

	source.set("m", 6)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Stop(ctx) }()

	assert.Eventually(t, func() bool {
		fake.Advance(time.Second)
		return len(e.ActiveAlerts()) == 1
	}, time.Second, 10*time.Millisecond)
}
