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

import (
	"fmt"
	"time"
)

// AlertCondition selects how a rule compares a metric value against its
// threshold.
type AlertCondition string

const (
	ConditionAbove   AlertCondition = "above"
	ConditionBelow   AlertCondition = "below"
	ConditionEquals  AlertCondition = "equals"
	ConditionAnomaly AlertCondition = "anomaly"
)

// AlertSeverity classifies how urgent a triggered alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertState tracks an alert through its lifecycle. Resolved alerts are
// removed from the active set rather than kept in a terminal state.
type AlertState string

const (
	AlertStatePending      AlertState = "pending"
	AlertStateActive       AlertState = "active"
	AlertStateAcknowledged AlertState = "acknowledged"
)

// ActionType names a notification handler kind.
type ActionType string

const (
	ActionLog       ActionType = "log"
	ActionWebhook   ActionType = "webhook"
	ActionSlack     ActionType = "slack"
	ActionPagerDuty ActionType = "pagerduty"
	ActionEmail     ActionType = "email"
	ActionStream    ActionType = "stream"
)

// ActionConfig binds one notification action to a rule.
type ActionConfig struct {
	Type     ActionType        `json:"type"`
	Target   string            `json:"target,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

// AlertRule describes one condition evaluated against the metric snapshot
// on every poll cycle.
type AlertRule struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metric    string         `json:"metric"`
	Condition AlertCondition `json:"condition"`
	Threshold float64        `json:"threshold"`
	Duration  Duration       `json:"duration,omitempty"`
	Severity  AlertSeverity  `json:"severity"`
	Cooldown  Duration       `json:"cooldown,omitempty"`
	Actions   []ActionConfig `json:"actions,omitempty"`
	Enabled   bool           `json:"enabled"`
}

var (
	errRuleIDRequired     = fmt.Errorf("alert rule id is required")
	errRuleMetricRequired = fmt.Errorf("alert rule metric is required")
	errUnknownCondition   = fmt.Errorf("unknown alert condition")
	errUnknownSeverity    = fmt.Errorf("unknown alert severity")
	errNegativeDuration   = fmt.Errorf("alert rule duration must be non-negative")
	errNegativeCooldown   = fmt.Errorf("alert rule cooldown must be non-negative")
)

func (r *AlertRule) Validate() error {
	if r.ID == "" {
		return errRuleIDRequired
	}

	if r.Metric == "" {
		return fmt.Errorf("%w: rule %s", errRuleMetricRequired, r.ID)
	}

	switch r.Condition {
	case ConditionAbove, ConditionBelow, ConditionEquals, ConditionAnomaly:
	default:
		return fmt.Errorf("%w: %q", errUnknownCondition, r.Condition)
	}

	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical, "":
	default:
		return fmt.Errorf("%w: %q", errUnknownSeverity, r.Severity)
	}

	if r.Duration < 0 {
		return fmt.Errorf("%w: rule %s", errNegativeDuration, r.ID)
	}

	if r.Cooldown < 0 {
		return fmt.Errorf("%w: rule %s", errNegativeCooldown, r.ID)
	}

	return nil
}

// ActiveAlert is the live state of a rule that is currently violating.
// At most one exists per rule id.
type ActiveAlert struct {
	ID           string     `json:"id"` // unique per activation
	RuleID       string     `json:"rule_id"`
	Rule         AlertRule  `json:"rule"`
	State        AlertState `json:"state"`
	CurrentValue float64    `json:"current_value"`
	Message      string     `json:"message"`
	TriggeredAt  time.Time  `json:"triggered_at"`
	LastNotified time.Time  `json:"last_notified"`
}

// AlertData is the notification payload handed to actions and dispatched
// to providers. Alerts bypass telemetry buffering.
type AlertData struct {
	ID        string            `json:"id"`
	RuleID    string            `json:"rule_id,omitempty"`
	Severity  AlertSeverity     `json:"severity"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
