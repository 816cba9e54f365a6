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
	"regexp"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// RedactionMarker replaces every redacted match. Running the redactor
// over already-redacted text is a no-op.
const RedactionMarker = "[REDACTED]"

var (
	// secret-shaped key=value pairs in free text
	reSecretPair = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|password|passwd|pwd|secret|token|authorization|auth|credentials?|private[_-]?key)\b\s*[:=]\s*\S+`)

	// 13-19 digit card-like runs with optional space/dash separators
	reCardNumber = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	// email addresses
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// metadata keys whose values are replaced wholesale
	reSensitiveKey = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|apikey|authorization|credentials?|private[_-]?key|ssn|card[_-]?number)`)
)

// Redactor strips secret-shaped substrings from messages and metadata
// before records reach disk or any provider.
type Redactor struct{}

// NewRedactor returns the redaction stage.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Process redacts the record in place. It never vetoes.
func (r *Redactor) Process(_ context.Context, rec *models.LogRecord) bool {
	rec.Message = redactText(rec.Message)
	redactMap(rec.Metadata)

	return true
}

func redactText(s string) string {
	if s == "" {
		return s
	}

	s = reSecretPair.ReplaceAllString(s, "${1}="+RedactionMarker)
	s = reCardNumber.ReplaceAllString(s, RedactionMarker)
	s = reEmail.ReplaceAllString(s, RedactionMarker)

	return s
}

// redactMap walks metadata recursively. Sensitive keys are replaced
// wholesale regardless of the value's shape.
func redactMap(m map[string]interface{}) {
	for key, value := range m {
		if reSensitiveKey.MatchString(key) {
			m[key] = RedactionMarker
			continue
		}

		m[key] = redactValue(value)
	}
}

func redactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return redactText(v)
	case map[string]interface{}:
		redactMap(v)
		return v
	case []interface{}:
		for i := range v {
			v[i] = redactValue(v[i])
		}

		return v
	default:
		return value
	}
}
