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

// Package alerting evaluates declarative rules against the aggregated
// metric snapshot on a fixed poll interval and drives the lifecycle of
// the resulting alerts.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/metrics"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultHistorySize  = 100
	defaultMinSamples   = 10
	defaultCooldown     = 5 * time.Minute

	// reservedMetricPrefix namespaces the engine's own failure counters.
	// Rules may not target it: an alert on its own dispatch failures
	// would feed the condition it reports on.
	reservedMetricPrefix = "observe_alert_"

	actionFailureMetric = reservedMetricPrefix + "action_failures"

	stateFiring   = "firing"
	stateResolved = "resolved"
)

var (
	errNilRule        = errors.New("alert rule is nil")
	errDuplicateRule  = errors.New("alert rule already exists")
	errUnknownRule    = errors.New("alert rule not found")
	errReservedMetric = errors.New("alert rule targets a reserved metric")
	errNoActiveAlert  = errors.New("no active alert for rule")
)

// notification is a state transition ready to be handed to action handlers.
type notification struct {
	rule models.AlertRule
	data models.AlertData
}

// Engine owns the rule set, the per-metric sample histories, and the
// active-alert map. All three are mutated only under its mutex; action
// handlers run outside the lock.
type Engine struct {
	mu        sync.Mutex
	rules     map[string]*models.AlertRule
	active    map[string]*models.ActiveAlert
	pending   map[string]time.Time
	histories map[string]*sampleWindow
	handlers  map[models.ActionType]ActionHandler

	source   metrics.SnapshotSource
	recorder metrics.MetricRecorder

	pollInterval time.Duration
	historySize  int
	minSamples   int

	clock  clock.Clock
	logger logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine builds an engine polling source. Rules carried in the config
// are installed immediately; invalid ones are logged and skipped.
func NewEngine(cfg *models.AlertingConfig, source metrics.SnapshotSource, clk clock.Clock, log logger.Logger) *Engine {
	if cfg == nil {
		cfg = &models.AlertingConfig{}
	}

	if clk == nil {
		clk = clock.New()
	}

	pollInterval := time.Duration(cfg.PollInterval)
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}

	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = defaultMinSamples
	}

	client := &http.Client{Timeout: defaultActionTimeout}

	e := &Engine{
		rules:     make(map[string]*models.AlertRule),
		active:    make(map[string]*models.ActiveAlert),
		pending:   make(map[string]time.Time),
		histories: make(map[string]*sampleWindow),
		handlers: map[models.ActionType]ActionHandler{
			models.ActionLog:       LogAction(log),
			models.ActionWebhook:   WebhookAction(client),
			models.ActionSlack:     SlackAction(client),
			models.ActionPagerDuty: PagerDutyAction(client),
			models.ActionEmail:     EmailAction(client),
		},
		source:       source,
		pollInterval: pollInterval,
		historySize:  historySize,
		minSamples:   minSamples,
		clock:        clk,
		logger:       log,
		stop:         make(chan struct{}),
	}

	for i := range cfg.Rules {
		if err := e.AddRule(&cfg.Rules[i]); err != nil {
			log.Warn().Err(err).Str("rule_id", cfg.Rules[i].ID).Msg("Skipping invalid alert rule from config")
		}
	}

	return e
}

// SetRecorder wires the counter sink for the engine's own failure metrics.
func (e *Engine) SetRecorder(rec metrics.MetricRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recorder = rec
}

// RegisterAction installs or replaces the handler for an action type.
func (e *Engine) RegisterAction(actionType models.ActionType, handler ActionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[actionType] = handler
}

// AddRule installs a new rule. The rule is copied; later caller mutation
// has no effect.
func (e *Engine) AddRule(rule *models.AlertRule) error {
	if rule == nil {
		return errNilRule
	}

	if err := rule.Validate(); err != nil {
		return err
	}

	if strings.HasPrefix(rule.Metric, reservedMetricPrefix) {
		return fmt.Errorf("%w: %s", errReservedMetric, rule.Metric)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[rule.ID]; ok {
		return fmt.Errorf("%w: %s", errDuplicateRule, rule.ID)
	}

	r := *rule
	e.rules[r.ID] = &r

	return nil
}

// UpdateRule replaces an existing rule in place. A running duration window
// restarts; an active alert survives with the new rule definition.
func (e *Engine) UpdateRule(rule *models.AlertRule) error {
	if rule == nil {
		return errNilRule
	}

	if err := rule.Validate(); err != nil {
		return err
	}

	if strings.HasPrefix(rule.Metric, reservedMetricPrefix) {
		return fmt.Errorf("%w: %s", errReservedMetric, rule.Metric)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[rule.ID]; !ok {
		return fmt.Errorf("%w: %s", errUnknownRule, rule.ID)
	}

	r := *rule
	e.rules[r.ID] = &r
	delete(e.pending, r.ID)

	if alert, ok := e.active[r.ID]; ok {
		alert.Rule = r
	}

	return nil
}

// RemoveRule deletes a rule together with any pending window or active
// alert, so no orphaned state survives the rule.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("%w: %s", errUnknownRule, id)
	}

	delete(e.rules, id)
	delete(e.pending, id)

	if _, ok := e.active[id]; ok {
		delete(e.active, id)
		e.logger.Info().Str("rule_id", id).Msg("Cleared active alert for removed rule")
	}

	return nil
}

// ReplaceRules swaps in a complete new rule set atomically. The whole
// batch is validated first; on any error the current set stays in place.
// Active alerts and pending windows for vanished rules are dropped.
func (e *Engine) ReplaceRules(rules []models.AlertRule) error {
	next := make(map[string]*models.AlertRule, len(rules))

	for i := range rules {
		rule := rules[i]
		if err := rule.Validate(); err != nil {
			return err
		}

		if strings.HasPrefix(rule.Metric, reservedMetricPrefix) {
			return fmt.Errorf("%w: %s", errReservedMetric, rule.Metric)
		}

		if _, ok := next[rule.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateRule, rule.ID)
		}

		next[rule.ID] = &rule
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = next

	for id := range e.pending {
		if _, ok := next[id]; !ok {
			delete(e.pending, id)
		}
	}

	for id, alert := range e.active {
		rule, ok := next[id]
		if !ok {
			delete(e.active, id)
			e.logger.Info().Str("rule_id", id).Msg("Cleared active alert for removed rule")

			continue
		}

		alert.Rule = *rule
	}

	e.logger.Info().Int("rules", len(next)).Msg("Alert rules replaced")

	return nil
}

// Rules returns a copy of the rule set ordered by id.
func (e *Engine) Rules() []models.AlertRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.AlertRule, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, *rule)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// ActiveAlerts returns a copy of the active set ordered by rule id.
func (e *Engine) ActiveAlerts() []models.ActiveAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.ActiveAlert, 0, len(e.active))
	for _, alert := range e.active {
		out = append(out, *alert)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })

	return out
}

// Acknowledge suppresses re-notification for an active alert. The
// underlying condition keeps being evaluated and resolution still fires.
func (e *Engine) Acknowledge(ruleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.active[ruleID]
	if !ok {
		return fmt.Errorf("%w: %s", errNoActiveAlert, ruleID)
	}

	alert.State = models.AlertStateAcknowledged
	e.logger.Info().Str("rule_id", ruleID).Str("alert_id", alert.ID).Msg("Alert acknowledged")

	return nil
}

// Start launches the polling loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	ruleCount := len(e.rules)
	e.mu.Unlock()

	e.logger.Info().
		Dur("interval", e.pollInterval).
		Int("rules", ruleCount).
		Msg("Starting alert engine")

	e.wg.Add(1)

	go e.run(ctx)

	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := e.clock.Ticker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.Chan():
			e.Evaluate(ctx)
		}
	}
}

// Stop halts the polling loop and waits for it to exit.
func (e *Engine) Stop(_ context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stop)
	})

	e.wg.Wait()

	e.logger.Info().Msg("Alert engine stopped")

	return nil
}

// Evaluate runs one poll cycle: snapshot, history update, then every
// enabled rule. Metrics absent from the snapshot are skipped, never
// treated as zero.
func (e *Engine) Evaluate(ctx context.Context) {
	if e.source == nil {
		return
	}

	snapshot := e.source.Snapshot()

	e.mu.Lock()

	for name, value := range snapshot {
		window := e.histories[name]
		if window == nil {
			window = newSampleWindow(e.historySize)
			e.histories[name] = window
		}

		window.add(value)
	}

	ids := make([]string, 0, len(e.rules))
	for id := range e.rules {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var notifications []notification

	for _, id := range ids {
		rule := e.rules[id]
		if !rule.Enabled {
			continue
		}

		value, ok := snapshot[rule.Metric]
		if !ok {
			continue
		}

		if n, fired := e.transition(rule, value); fired {
			notifications = append(notifications, n)
		}
	}

	e.mu.Unlock()

	for i := range notifications {
		e.notify(ctx, &notifications[i])
	}
}

// transition applies the state machine for one rule. Caller holds e.mu.
func (e *Engine) transition(rule *models.AlertRule, value float64) (notification, bool) {
	now := e.clock.Now()
	violating := e.conditionHolds(rule, value)
	alert := e.active[rule.ID]

	if !violating {
		delete(e.pending, rule.ID)

		if alert == nil {
			return notification{}, false
		}

		delete(e.active, rule.ID)
		e.logger.Info().
			Str("rule_id", rule.ID).
			Float64("value", value).
			Msg("Alert resolved")

		return e.buildNotification(rule, alert.ID, value, now, stateResolved, resolvedMessage(rule, value)), true
	}

	if alert != nil {
		alert.CurrentValue = value

		if alert.State == models.AlertStateAcknowledged {
			return notification{}, false
		}

		if now.Sub(alert.LastNotified) < e.cooldownFor(rule) {
			return notification{}, false
		}

		alert.LastNotified = now
		alert.Message = firingMessage(rule, value)
		e.logger.Info().
			Str("rule_id", rule.ID).
			Float64("value", value).
			Msg("Alert still firing, re-notifying")

		return e.buildNotification(rule, alert.ID, value, now, stateFiring, alert.Message), true
	}

	if hold := time.Duration(rule.Duration); hold > 0 {
		since, started := e.pending[rule.ID]
		if !started {
			e.pending[rule.ID] = now
			return notification{}, false
		}

		if now.Sub(since) < hold {
			return notification{}, false
		}
	}

	delete(e.pending, rule.ID)

	alert = &models.ActiveAlert{
		ID:           uuid.New().String(),
		RuleID:       rule.ID,
		Rule:         *rule,
		State:        models.AlertStateActive,
		CurrentValue: value,
		Message:      firingMessage(rule, value),
		TriggeredAt:  now,
		LastNotified: now,
	}
	e.active[rule.ID] = alert

	e.logger.Warn().
		Str("rule_id", rule.ID).
		Str("severity", string(severityFor(rule))).
		Float64("value", value).
		Msg("Alert triggered")

	return e.buildNotification(rule, alert.ID, value, now, stateFiring, alert.Message), true
}

func (e *Engine) buildNotification(
	rule *models.AlertRule, alertID string, value float64, ts time.Time, state, message string,
) notification {
	severity := severityFor(rule)
	if state == stateResolved {
		severity = models.SeverityInfo
	}

	title := rule.Name
	if title == "" {
		title = rule.ID
	}

	return notification{
		rule: *rule,
		data: models.AlertData{
			ID:        alertID,
			RuleID:    rule.ID,
			Severity:  severity,
			Title:     title,
			Message:   message,
			Timestamp: ts,
			Metadata: map[string]string{
				"metric":    rule.Metric,
				"condition": string(rule.Condition),
				"value":     strconv.FormatFloat(value, 'f', -1, 64),
				"threshold": strconv.FormatFloat(rule.Threshold, 'f', -1, 64),
				"state":     state,
			},
		},
	}
}

// notify runs the rule's actions in order. A handler failure is logged
// and counted; it never stops the remaining actions.
func (e *Engine) notify(ctx context.Context, n *notification) {
	for _, action := range n.rule.Actions {
		e.mu.Lock()
		handler := e.handlers[action.Type]
		e.mu.Unlock()

		if handler == nil {
			e.logger.Warn().
				Str("rule_id", n.rule.ID).
				Str("action", string(action.Type)).
				Msg("No handler registered for alert action")

			continue
		}

		if err := handler(ctx, action, n.data); err != nil {
			e.logger.Error().
				Err(err).
				Str("rule_id", n.rule.ID).
				Str("action", string(action.Type)).
				Msg("Alert action failed")
			e.recordActionFailure(action.Type)
		}
	}
}

func (e *Engine) recordActionFailure(actionType models.ActionType) {
	e.mu.Lock()
	rec := e.recorder
	e.mu.Unlock()

	if rec == nil {
		return
	}

	rec.Record(actionFailureMetric, 1, map[string]string{"action": string(actionType)}, models.MetricTypeCounter)
}

func (e *Engine) cooldownFor(rule *models.AlertRule) time.Duration {
	if d := time.Duration(rule.Cooldown); d > 0 {
		return d
	}

	return defaultCooldown
}

func severityFor(rule *models.AlertRule) models.AlertSeverity {
	if rule.Severity == "" {
		return models.SeverityWarning
	}

	return rule.Severity
}
