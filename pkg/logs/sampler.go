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
	"math/rand/v2"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

const productionEnvironment = "production"

// Sampler drops a configured share of low-severity records in
// production. Error and critical records always pass, regardless of
// configuration; outside production everything passes.
type Sampler struct {
	environment string
	rates       map[models.LogLevel]float64
	randFn      func() float64
}

// NewSampler builds the sampling stage. Rates map level names to keep
// probabilities and override the defaults (debug 0.05, info 0.5, warn
// and above 1.0).
func NewSampler(environment string, rates map[string]float64) *Sampler {
	merged := map[models.LogLevel]float64{
		models.LevelDebug: 0.05,
		models.LevelInfo:  0.5,
		models.LevelWarn:  1.0,
	}

	for level, rate := range rates {
		merged[models.LogLevel(level)] = rate
	}

	return &Sampler{
		environment: environment,
		rates:       merged,
		randFn:      rand.Float64,
	}
}

// Process returns false for sampled-out records.
func (s *Sampler) Process(_ context.Context, rec *models.LogRecord) bool {
	if s.environment != productionEnvironment {
		return true
	}

	// Severity floor: errors are never sampled out.
	if rec.Level == models.LevelError || rec.Level == models.LevelCritical {
		return true
	}

	rate, ok := s.rates[rec.Level]
	if !ok || rate >= 1 {
		return true
	}

	return s.randFn() < rate
}
