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

package lifecycle

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ehudso7/vrux-observe/pkg/logger"
)

// DefaultShutdownTimeout bounds how long Run waits for the service to
// flush and stop after a shutdown signal.
const DefaultShutdownTimeout = 30 * time.Second

// Service is anything with a start/stop lifecycle the runner can manage.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts svc and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM, then stops it with a bounded timeout so
// final flushes cannot hang shutdown forever.
func Run(ctx context.Context, svc Service, log logger.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(sigCtx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	<-sigCtx.Done()
	stop()

	log.Info().Dur("timeout", DefaultShutdownTimeout).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop service cleanly: %w", err)
	}

	return nil
}
