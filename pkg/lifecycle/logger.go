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

// Package lifecycle owns process-level concerns: building the root
// logger, running a service until a shutdown signal arrives, and
// flushing telemetry exporters on the way out.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/ehudso7/vrux-observe/pkg/logger"
)

// CreateLogger builds the process root logger from config. A nil
// config uses defaults. When the OTel bridge is configured the logger
// also ships every record over OTLP.
func CreateLogger(ctx context.Context, config *logger.Config) (logger.Logger, error) {
	log, err := logger.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return log, nil
}

// CreateComponentLogger builds a root logger scoped to one component.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	log, err := CreateLogger(ctx, config)
	if err != nil {
		return nil, err
	}

	return log.WithComponent(component), nil
}

// ShutdownLogger flushes any pending OTLP log and metric exports.
func ShutdownLogger() error {
	return logger.Shutdown()
}
