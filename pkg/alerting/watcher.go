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
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ehudso7/vrux-observe/pkg/config"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

// reloadDebounce coalesces the event bursts editors produce on save.
const reloadDebounce = 200 * time.Millisecond

type ruleFile struct {
	Rules []models.AlertRule `json:"rules"`
}

// loadRulesFile reads a rules file holding either {"rules": [...]} or a
// bare JSON array.
func loadRulesFile(ctx context.Context, loader config.ConfigLoader, path string) ([]models.AlertRule, error) {
	var wrapper ruleFile
	if err := loader.Load(ctx, path, &wrapper); err == nil {
		return wrapper.Rules, nil
	}

	var rules []models.AlertRule
	if err := loader.Load(ctx, path, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// RulesWatcher hot-reloads the engine's rule set whenever the rules file
// changes on disk. Reloads are replace-all: a reload that fails to parse
// or validate leaves the current rule set untouched.
type RulesWatcher struct {
	path   string
	engine *Engine
	loader config.ConfigLoader
	logger logger.Logger

	watcher  *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRulesWatcher creates a watcher for path feeding engine.
func NewRulesWatcher(path string, engine *Engine, log logger.Logger) *RulesWatcher {
	return &RulesWatcher{
		path:   path,
		engine: engine,
		loader: config.NewFileConfigLoader(log),
		logger: log,
		stop:   make(chan struct{}),
	}
}

// Start performs the initial load, then watches the file's directory.
// Watching the directory rather than the file survives the
// write-to-temp-then-rename pattern editors and config pushers use.
func (w *RulesWatcher) Start(ctx context.Context) error {
	if err := w.reload(ctx); err != nil {
		return err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("failed to watch rules directory '%s': %w", dir, err)
	}

	w.watcher = fsWatcher
	w.logger.Info().Str("path", w.path).Msg("Watching alert rules file")

	w.wg.Add(1)

	go w.run(ctx)

	return nil
}

func (w *RulesWatcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer func() { _ = w.watcher.Close() }()

	var debounce *time.Timer

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := w.reload(context.Background()); err != nil {
					w.logger.Error().
						Err(err).
						Str("path", w.path).
						Msg("Failed to reload alert rules, keeping current set")
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.Error().Err(err).Msg("Rules watcher error")
		}
	}
}

func (w *RulesWatcher) reload(ctx context.Context) error {
	rules, err := loadRulesFile(ctx, w.loader, w.path)
	if err != nil {
		return err
	}

	if err := w.engine.ReplaceRules(rules); err != nil {
		return err
	}

	w.logger.Info().Str("path", w.path).Int("rules", len(rules)).Msg("Alert rules loaded")

	return nil
}

// Stop halts the watch loop and waits for it to exit.
func (w *RulesWatcher) Stop(_ context.Context) error {
	w.stopOnce.Do(func() {
		close(w.stop)
	})

	w.wg.Wait()

	return nil
}
