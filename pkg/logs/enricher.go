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
	"os"

	"github.com/ehudso7/vrux-observe/pkg/models"
	"github.com/ehudso7/vrux-observe/pkg/tracer"
)

// Enricher stamps records with service identity, process metadata, and
// the correlation ids carried by the request context.
type Enricher struct {
	service     string
	environment string
	version     string
	host        string
	pid         int
}

// NewEnricher builds an Enricher for the given service identity.
func NewEnricher(service, environment, version string) *Enricher {
	host, _ := os.Hostname()

	return &Enricher{
		service:     service,
		environment: environment,
		version:     version,
		host:        host,
		pid:         os.Getpid(),
	}
}

// Process fills in identity and correlation fields. It never vetoes.
func (e *Enricher) Process(ctx context.Context, rec *models.LogRecord) bool {
	rec.Service = e.service
	rec.Environment = e.environment
	rec.Version = e.version
	rec.Host = e.host
	rec.PID = e.pid

	if tc, ok := tracer.TraceContextFromContext(ctx); ok {
		rec.TraceID = tc.TraceID
		rec.SpanID = tc.SpanID
	}

	if rec.UserID == "" {
		if v, ok := rec.Metadata["user_id"].(string); ok {
			rec.UserID = v
		}
	}

	if rec.RequestID == "" {
		if v, ok := rec.Metadata["request_id"].(string); ok {
			rec.RequestID = v
		}
	}

	return true
}
