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

package logger

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultOTelConfig(t *testing.T) {
	config := DefaultOTelConfig()

	if config.ServiceName == "" {
		t.Error("ServiceName should have a default value")
	}

	if config.BatchTimeout != Duration(5*time.Second) {
		t.Errorf("Expected default BatchTimeout to be 5s, got %v", config.BatchTimeout)
	}
}

func TestOTelWriterDisabled(t *testing.T) {
	writer, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: false})
	if err == nil {
		t.Error("Expected error when OTel is disabled")
	}

	if writer != nil {
		t.Error("Writer should be nil when OTel is disabled")
	}
}

func TestOTelWriterNoEndpoint(t *testing.T) {
	writer, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: true})
	if err == nil {
		t.Error("Expected error when endpoint is empty")
	}

	if writer != nil {
		t.Error("Writer should be nil when endpoint is empty")
	}
}

func TestNewWithOTelEnabledButNoEndpoint(t *testing.T) {
	config := &Config{
		Level:  "info",
		Output: "stdout",
		OTel: OTelConfig{
			Enabled:  true,
			Endpoint: "",
		},
	}

	// An enabled bridge without an endpoint is treated as disabled.
	log, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("Failed to create logger with OTel enabled but no endpoint: %v", err)
	}

	log.Info().Str("test", "value").Msg("message without OTel bridge")
}

func TestMapZerologLevelToOTel(t *testing.T) {
	tests := []struct {
		zerologLevel string
		expected     string
	}{
		{"trace", "TRACE"},
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"fatal", "FATAL"},
		{"panic", "FATAL"},
		{"unknown", "INFO"},
	}

	for _, test := range tests {
		result := mapZerologLevelToOTel(test.zerologLevel)
		if result.String() != test.expected {
			t.Errorf("mapZerologLevelToOTel(%s) = %s, expected %s",
				test.zerologLevel, result.String(), test.expected)
		}
	}
}

func TestFormatAttributeValue(t *testing.T) {
	if got := formatAttributeValue(nil); got != "null" {
		t.Errorf("nil should format as null, got %s", got)
	}

	if got := formatAttributeValue(true); got != "true" {
		t.Errorf("bool should format as true, got %s", got)
	}

	if got := formatAttributeValue(42.0); got != "42" {
		t.Errorf("number should format as 42, got %s", got)
	}

	long := strings.Repeat("x", maxAttributeValueLength+100)

	got := formatAttributeValue(long)
	if len(got) > maxAttributeValueLength {
		t.Errorf("Expected truncation to %d chars, got %d", maxAttributeValueLength, len(got))
	}

	if !strings.HasSuffix(got, "...") {
		t.Error("Truncated value should end with ellipsis")
	}

	nested := map[string]interface{}{"key": "value"}
	if got := formatAttributeValue(nested); got != `{"key":"value"}` {
		t.Errorf("map should format as JSON, got %s", got)
	}
}

func TestShutdownWithoutInit(t *testing.T) {
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown without init should be a no-op, got %v", err)
	}
}
