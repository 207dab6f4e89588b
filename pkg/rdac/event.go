// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import "time"

// Severity grades a status event for display.
type Severity int

// Severity values
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lower-case severity name
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a Stream. It is either a *StatusEvent or a *ReadingEvent.
type Event interface {
	Timestamp() time.Time
}

// StatusEvent reports link health after a pipeline pass.
type StatusEvent struct {
	Time        time.Time
	Text        string
	Severity    Severity
	Result      Result
	MessageType MessageType // selector involved, 0 if none
	Skipped     int         // bytes dropped since the previous status event
}

// Timestamp implements Event.
func (e *StatusEvent) Timestamp() time.Time { return e.Time }

// ReadingEvent carries one decoded reading.
type ReadingEvent struct {
	Time    time.Time
	Reading Reading
}

// Timestamp implements Event.
func (e *ReadingEvent) Timestamp() time.Time { return e.Time }

// Handler receives events in emission order.
type Handler func(Event)
