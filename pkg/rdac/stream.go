// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// State is the stream driver state between Feed calls.
type State int

// Stream states
const (
	StateIdle         State = iota // no bytes buffered
	StateAccumulating              // bytes buffered, no frame start yet
	StateSyncWaiting               // frame start found, frame incomplete
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateSyncWaiting:
		return "SYNC_WAITING"
	default:
		return "UNKNOWN"
	}
}

// Status texts
const (
	statusNoStart = "No start pattern found yet"
	statusInvalid = "Found pattern not valid"
	statusOK      = "Everything OK - Last update: "
)

// Stream drives the synchronize, classify and decode pipeline over an
// accumulating byte buffer. A Stream is owned by a single goroutine.
type Stream struct {
	buf      *Buffer
	mode     SyncMode
	now      func() time.Time
	handlers []Handler
	state    State

	lastReception [MsgThermocouple + 1]time.Time
	pendingSkip   int // bytes dropped but not yet reported
}

// Option configures a Stream.
type Option func(*Stream)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Stream) {
		s.now = now
	}
}

// WithMaxBuffer bounds the number of buffered bytes (0 = unbounded).
func WithMaxBuffer(n int) Option {
	return func(s *Stream) {
		s.buf = NewBuffer(n)
	}
}

// WithSyncMode selects how frame starts are recognised.
func WithSyncMode(m SyncMode) Option {
	return func(s *Stream) {
		s.mode = m
	}
}

// NewStream creates a stream driver.
func NewStream(opts ...Option) *Stream {
	s := &Stream{
		buf:  NewBuffer(DefaultMaxBufferSize),
		mode: SyncPreamble,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers h to receive every event emitted by Feed.
func (s *Stream) Subscribe(h Handler) {
	s.handlers = append(s.handlers, h)
}

// Feed appends p to the buffer and runs the pipeline until no further
// complete frame can be extracted. The emitted events are returned in order
// and also delivered to subscribed handlers.
func (s *Stream) Feed(p []byte) []Event {
	var events []Event
	emit := func(ev Event) {
		events = append(events, ev)
		for _, h := range s.handlers {
			h(ev)
		}
	}

	if dropped := s.buf.Append(p); dropped > 0 {
		emit(&StatusEvent{
			Time:     s.now(),
			Text:     fmt.Sprintf("Receive buffer full, dropped %d bytes", dropped),
			Severity: SeverityWarning,
			Result:   ResultOverflow,
			Skipped:  dropped,
		})
	}

	decoded := false
	for {
		found, skipped := s.mode.scan(s.buf)
		s.pendingSkip += skipped

		if !found {
			if s.buf.Len() == 0 {
				s.state = StateIdle
			} else {
				s.state = StateAccumulating
			}
			// Leftovers after a decoded frame are normal, not a sync loss
			if !decoded || s.pendingSkip > 0 {
				emit(s.status(statusNoStart, SeverityError, ResultNoStartPattern, 0))
			}
			return events
		}

		result, msgType := Classify(s.buf)
		switch result {
		case ResultIncomplete:
			s.state = StateSyncWaiting
			return events

		case ResultComplete:
			reading, err := Decode(msgType, s.buf)
			if err != nil {
				s.buf.Discard(1)
				emit(s.status(fmt.Sprintf("%s (%v)", statusInvalid, err), SeverityWarning, ResultInvalidType, msgType))
				continue
			}
			now := s.now()
			s.lastReception[msgType] = now
			emit(&ReadingEvent{Time: now, Reading: reading})
			ok := s.status(statusOK+now.Format("15:04:05.000"), SeverityInfo, ResultComplete, msgType)
			ok.Time = now
			emit(ok)
			decoded = true

		default:
			emit(s.status(fmt.Sprintf("%s (%s)", statusInvalid, result), SeverityWarning, result, msgType))
		}
	}
}

// status builds a status event and hands over the pending skip count.
func (s *Stream) status(text string, sev Severity, result Result, t MessageType) *StatusEvent {
	ev := &StatusEvent{
		Time:        s.now(),
		Text:        text,
		Severity:    sev,
		Result:      result,
		MessageType: t,
		Skipped:     s.pendingSkip,
	}
	s.pendingSkip = 0
	return ev
}

// Write feeds p to the stream so it can sit behind io.Copy or io.MultiWriter.
func (s *Stream) Write(p []byte) (int, error) {
	s.Feed(p)
	return len(p), nil
}

// Pump reads from r and feeds the stream until ctx is cancelled or r fails.
// io.EOF ends the pump without error.
func (s *Stream) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read link: %w", err)
		}
	}
}

// LastReception returns when a frame of type t was last decoded.
func (s *Stream) LastReception(t MessageType) (time.Time, bool) {
	if !t.Known() {
		return time.Time{}, false
	}
	ts := s.lastReception[t]
	return ts, !ts.IsZero()
}

// State returns the driver state after the last Feed.
func (s *Stream) State() State {
	return s.state
}

// Buffered returns the number of bytes waiting in the buffer.
func (s *Stream) Buffered() int {
	return s.buf.Len()
}

// Reset drops all buffered bytes, as when the connection is replaced.
// Reception timestamps are kept.
func (s *Stream) Reset() {
	s.buf.Reset()
	s.pendingSkip = 0
	s.state = StateIdle
}
