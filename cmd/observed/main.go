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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ehudso7/vrux-observe/pkg/config"
	"github.com/ehudso7/vrux-observe/pkg/lifecycle"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
	"github.com/ehudso7/vrux-observe/pkg/observer"
	"github.com/ehudso7/vrux-observe/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/vrux-observe/observed.json", "Path to observer config file")
	flag.Parse()

	ctx := context.Background()

	var cfg models.ObserverConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := lifecycle.CreateLogger(ctx, logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			mainLogger.Error().Err(err).Msg("Failed to shut down logger")
		}
	}()

	mainLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("config", *configPath).
		Msg("Starting observed")

	obs, err := observer.New(ctx, &cfg, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to build observer: %w", err)
	}

	return lifecycle.Run(ctx, obs, mainLogger)
}
