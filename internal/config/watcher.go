// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads the alarm limits whenever the config file changes.
type Watcher struct {
	path     string
	log      zerolog.Logger
	onChange func(rdac.Limits)
	delay    time.Duration

	fs *fsnotify.Watcher

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher starts watching the directory holding path. onChange runs on
// a timer goroutine after each debounced change that parses cleanly.
func NewWatcher(path string, log zerolog.Logger, onChange func(rdac.Limits)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic rename-on-save is seen
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:     path,
		log:      log.With().Str("component", "config-watcher").Logger(),
		onChange: onChange,
		delay:    DefaultDebounce,
		fs:       fs,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	limits, err := LoadLimits(w.path)
	if err != nil {
		// Keep the previous limits until the file is valid again
		w.log.Warn().Err(err).Msg("reload failed")
		return
	}
	w.log.Info().Str("path", w.path).Msg("limits reloaded")
	w.onChange(limits)
}
