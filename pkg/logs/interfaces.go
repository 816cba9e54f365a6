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

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// Processor is one stage of the log pipeline. It may mutate the record
// in place; returning false vetoes the record and stops the chain.
type Processor interface {
	Process(ctx context.Context, rec *models.LogRecord) bool
}

// Sink persists flushed log batches and answers queries over them.
type Sink interface {
	Write(ctx context.Context, batch []*models.LogRecord) error
	Search(ctx context.Context, q models.LogQuery) ([]models.LogRecord, error)
	Sweep(ctx context.Context) error
	Close() error
}

// Forwarder hands a persisted batch onward to the dispatch layer.
// Wiring registers it once at startup.
type Forwarder func(ctx context.Context, batch []*models.LogRecord) error
