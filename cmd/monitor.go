// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"sync/atomic"

	"github.com/enginemonitor/rdacmon/internal/config"
	"github.com/enginemonitor/rdacmon/pkg/rdac"
)

// liveLimits holds alarm limits that the config watcher may swap at any time.
type liveLimits struct {
	p atomic.Pointer[rdac.Limits]
}

func newLiveLimits(l rdac.Limits) *liveLimits {
	ll := &liveLimits{}
	ll.Store(l)
	return ll
}

func (ll *liveLimits) Load() rdac.Limits {
	return *ll.p.Load()
}

func (ll *liveLimits) Store(l rdac.Limits) {
	ll.p.Store(&l)
}

// Validate checks ev against the current limits. Status events never carry
// anomalies.
func (ll *liveLimits) Validate(ev rdac.Event) []rdac.ValidationError {
	re, ok := ev.(*rdac.ReadingEvent)
	if !ok {
		return nil
	}
	return rdac.ValidateReading(re.Reading, ll.Load())
}

// watchLimits reloads limits from the config file until ctx ends. A missing
// config directory only disables reloading.
func watchLimits(ctx context.Context, ll *liveLimits) {
	w, err := config.NewWatcher(cfg.Path(), logger, func(l rdac.Limits) {
		ll.Store(l)
		logger.Info().Msg("alarm limits reloaded")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("limit hot reload disabled")
		return
	}
	go w.Run(ctx)
}

// observation is what the monitor learned from one event.
type observation struct {
	event     rdac.Event
	anomalies []rdac.ValidationError

	// synced is set on the status that follows the first reading
	synced bool

	// fault marks a status worth showing to the operator
	fault bool
}

// monitor tracks link synchronisation, statistics and the latest reading of
// each type for error_detection.
type monitor struct {
	stats        *rdac.Statistics
	synchronized bool
	announced    bool
	invalidBytes int
	latest       [rdac.MsgThermocouple + 1]rdac.Reading
}

func newMonitor() *monitor {
	return &monitor{stats: rdac.NewStatistics()}
}

// observe folds one event into the monitor. Faults before the first reading
// are only counted as invalid bytes, since a receiver joining the link
// mid-frame always sees some.
func (m *monitor) observe(ev rdac.Event, anomalies []rdac.ValidationError) observation {
	obs := observation{event: ev, anomalies: anomalies}

	switch e := ev.(type) {
	case *rdac.ReadingEvent:
		m.synchronized = true
		m.latest[e.Reading.Type()] = e.Reading
		m.stats.Update(ev, anomalies)

	case *rdac.StatusEvent:
		if !m.synchronized {
			m.invalidBytes += e.Skipped
			return obs
		}
		// Bytes skipped ahead of the first frame ride on its OK status
		if !m.announced && e.Result == rdac.ResultComplete {
			m.announced = true
			m.invalidBytes += e.Skipped
			obs.synced = true
			return obs
		}
		m.stats.Update(ev, nil)
		obs.fault = isFault(e)
	}
	return obs
}

// isFault reports whether a status event indicates lost or corrupted data.
// A pass that ends on a partial preamble without skipping anything is normal
// for chunked reads.
func isFault(e *rdac.StatusEvent) bool {
	switch e.Result {
	case rdac.ResultComplete, rdac.ResultIncomplete:
		return false
	case rdac.ResultNoStartPattern:
		return e.Skipped > 0
	}
	return true
}
