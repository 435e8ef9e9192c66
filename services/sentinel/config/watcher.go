// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler receives the new configuration after a successful
// reload. Handlers run on the watcher goroutine and should return
// quickly.
type ReloadHandler func(cfg *Config)

// Watcher hot-reloads a config file on change.
//
// # Description
//
// Watches the config file's directory (editors replace files rather
// than write in place, so watching the file alone misses renames) and
// reloads after a debounce window. A reload that fails validation is
// logged and discarded; the previous config stays active. Only a
// config that passes the full Validate pass ever reaches handlers.
//
// # Thread Safety
//
// Safe for concurrent use. Current() may be called from any goroutine.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	current  *Config
	handlers []ReloadHandler
}

// NewWatcher creates a watcher seeded with the given active config.
func NewWatcher(path string, current *Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		logger:   logger,
		current:  current,
	}
}

// OnReload registers a handler invoked after each successful reload.
func (w *Watcher) OnReload(h ReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Current returns the active configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches until ctx is cancelled. It blocks; callers start it on
// its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-fire:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous config",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.mu.Lock()
	w.current = cfg
	handlers := make([]ReloadHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	for _, h := range handlers {
		h(cfg)
	}
}
