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

package logs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

func TestRedactorMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "api key pair",
			message:  "calling upstream with api_key=sk-12ab34cd",
			expected: "calling upstream with api_key=[REDACTED]",
		},
		{
			name:     "password with colon",
			message:  "login failed password: hunter2",
			expected: "login failed password=[REDACTED]",
		},
		{
			name:     "token pair",
			message:  "refresh token=eyJhbGciOi",
			expected: "refresh token=[REDACTED]",
		},
		{
			name:     "card number plain",
			message:  "charged card 4111111111111111 ok",
			expected: "charged card [REDACTED] ok",
		},
		{
			name:     "card number with dashes",
			message:  "card 4111-1111-1111-1111 declined",
			expected: "card [REDACTED] declined",
		},
		{
			name:     "card number with spaces",
			message:  "pan 4111 1111 1111 1111",
			expected: "pan [REDACTED]",
		},
		{
			name:     "email address",
			message:  "signup from ada.lovelace@example.co.uk done",
			expected: "signup from [REDACTED] done",
		},
		{
			name:     "short digit run untouched",
			message:  "order 123456789012 confirmed",
			expected: "order 123456789012 confirmed",
		},
		{
			name:     "plain message untouched",
			message:  "request served in 12ms",
			expected: "request served in 12ms",
		},
		{
			name:     "author is not auth",
			message:  "author=jane updated the draft",
			expected: "author=jane updated the draft",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.LogRecord{Message: tt.message}

			r := NewRedactor()
			require.True(t, r.Process(context.Background(), rec))

			assert.Equal(t, tt.expected, rec.Message)
		})
	}
}

func TestRedactorMetadata(t *testing.T) {
	rec := &models.LogRecord{
		Message: "ok",
		Metadata: map[string]interface{}{
			"password":   "hunter2",
			"api_key":    12345,
			"route":      "/api/v1/users",
			"email_note": "contact grace@example.com please",
			"nested": map[string]interface{}{
				"token": "abc",
				"depth": map[string]interface{}{
					"secret_sauce": "yes",
					"plain":        "value",
				},
			},
			"list": []interface{}{
				"password=letmein",
				7,
			},
			"count": 42,
		},
	}

	r := NewRedactor()
	require.True(t, r.Process(context.Background(), rec))

	assert.Equal(t, RedactionMarker, rec.Metadata["password"])

	// Sensitive keys are replaced wholesale, whatever the value type.
	assert.Equal(t, RedactionMarker, rec.Metadata["api_key"])

	assert.Equal(t, "/api/v1/users", rec.Metadata["route"])
	assert.Equal(t, "contact [REDACTED] please", rec.Metadata["email_note"])

	nested := rec.Metadata["nested"].(map[string]interface{})
	assert.Equal(t, RedactionMarker, nested["token"])

	depth := nested["depth"].(map[string]interface{})
	assert.Equal(t, RedactionMarker, depth["secret_sauce"])
	assert.Equal(t, "value", depth["plain"])

	list := rec.Metadata["list"].([]interface{})
	assert.Equal(t, "password=[REDACTED]", list[0])
	assert.Equal(t, 7, list[1])

	assert.Equal(t, 42, rec.Metadata["count"])
}

func TestRedactorIdempotent(t *testing.T) {
	rec := &models.LogRecord{
		Message: "user bob@example.com paid with 4111-1111-1111-1111, token=xyz",
		Metadata: map[string]interface{}{
			"password": "hunter2",
			"note":     "apikey=abc123",
		},
	}

	r := NewRedactor()
	require.True(t, r.Process(context.Background(), rec))

	onceMessage := rec.Message
	onceNote := rec.Metadata["note"]

	require.True(t, r.Process(context.Background(), rec))

	assert.Equal(t, onceMessage, rec.Message)
	assert.Equal(t, onceNote, rec.Metadata["note"])
	assert.Equal(t, RedactionMarker, rec.Metadata["password"])
}

func TestRedactorEmptyRecord(t *testing.T) {
	rec := &models.LogRecord{}

	r := NewRedactor()
	require.True(t, r.Process(context.Background(), rec))

	assert.Empty(t, rec.Message)
	assert.Nil(t, rec.Metadata)
}
