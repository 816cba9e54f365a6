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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultActionTimeout = 10 * time.Second

	pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

	settingToken      = "token"
	settingRoutingKey = "routing_key"
	settingRelayURL   = "relay_url"
)

// ActionHandler executes one notification action for an alert transition.
type ActionHandler func(ctx context.Context, action models.ActionConfig, alert models.AlertData) error

var (
	errActionTarget     = errors.New("alert action requires a target")
	errActionRoutingKey = errors.New("pagerduty action requires a routing_key setting")
	errActionRelay      = errors.New("email action requires a relay_url setting")
)

// LogAction writes the alert through the structured logger at a level
// matching its severity.
func LogAction(log logger.Logger) ActionHandler {
	return func(_ context.Context, _ models.ActionConfig, alert models.AlertData) error {
		evt := log.Warn()

		switch alert.Severity {
		case models.SeverityInfo:
			evt = log.Info()
		case models.SeverityCritical:
			evt = log.Error()
		case models.SeverityWarning:
		}

		evt.
			Str("alert_id", alert.ID).
			Str("rule_id", alert.RuleID).
			Str("severity", string(alert.Severity)).
			Str("title", alert.Title).
			Msg(alert.Message)

		return nil
	}
}

// WebhookAction POSTs the alert payload as JSON to the action target.
// A "token" setting is sent as a bearer credential.
func WebhookAction(client *http.Client) ActionHandler {
	return func(ctx context.Context, action models.ActionConfig, alert models.AlertData) error {
		if action.Target == "" {
			return errActionTarget
		}

		headers := map[string]string{}
		if token := action.Settings[settingToken]; token != "" {
			headers["Authorization"] = "Bearer " + token
		}

		return postJSON(ctx, client, action.Target, headers, alert)
	}
}

// SlackAction posts a chat-webhook-style message to the action target.
func SlackAction(client *http.Client) ActionHandler {
	return func(ctx context.Context, action models.ActionConfig, alert models.AlertData) error {
		if action.Target == "" {
			return errActionTarget
		}

		payload := map[string]interface{}{
			"text": fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Title, alert.Message),
		}

		return postJSON(ctx, client, action.Target, nil, payload)
	}
}

// PagerDutyAction sends an Events API v2 payload. The alert id doubles as
// the dedup key so re-notifications update the same incident, and a
// resolved transition sends a resolve event instead of a trigger.
func PagerDutyAction(client *http.Client) ActionHandler {
	return func(ctx context.Context, action models.ActionConfig, alert models.AlertData) error {
		routingKey := action.Settings[settingRoutingKey]
		if routingKey == "" {
			return errActionRoutingKey
		}

		target := action.Target
		if target == "" {
			target = pagerDutyEventsURL
		}

		eventAction := "trigger"
		if alert.Metadata["state"] == stateResolved {
			eventAction = "resolve"
		}

		payload := map[string]interface{}{
			"routing_key":  routingKey,
			"event_action": eventAction,
			"dedup_key":    alert.ID,
			"payload": map[string]interface{}{
				"summary":   alert.Message,
				"source":    alert.Metadata["metric"],
				"severity":  pagerDutySeverity(alert.Severity),
				"timestamp": alert.Timestamp.UTC().Format(time.RFC3339),
			},
		}

		return postJSON(ctx, client, target, nil, payload)
	}
}

// EmailAction hands the alert to an HTTP mail relay; this pipeline does
// not speak SMTP itself. The action target is the recipient address.
func EmailAction(client *http.Client) ActionHandler {
	return func(ctx context.Context, action models.ActionConfig, alert models.AlertData) error {
		relay := action.Settings[settingRelayURL]
		if relay == "" {
			return errActionRelay
		}

		if action.Target == "" {
			return errActionTarget
		}

		payload := map[string]interface{}{
			"to":       action.Target,
			"subject":  fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title),
			"body":     alert.Message,
			"metadata": alert.Metadata,
		}

		return postJSON(ctx, client, relay, nil, payload)
	}
}

func pagerDutySeverity(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "critical"
	case models.SeverityWarning:
		return "warning"
	case models.SeverityInfo:
		return "info"
	default:
		return "warning"
	}
}

func postJSON(ctx context.Context, client *http.Client, target string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal action payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create action request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("action request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("action response status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return nil
}
