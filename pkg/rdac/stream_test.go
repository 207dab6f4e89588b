// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2025, 6, 1, 14, 3, 7, 250*int(time.Millisecond), time.UTC)

func newTestStream(opts ...Option) *Stream {
	return NewStream(append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func statusAt(t *testing.T, events []Event, i int) *StatusEvent {
	t.Helper()
	if i >= len(events) {
		t.Fatalf("expected event %d, only %d events", i, len(events))
	}
	st, ok := events[i].(*StatusEvent)
	if !ok {
		t.Fatalf("event %d: expected *StatusEvent, got %T", i, events[i])
	}
	return st
}

func readingAt(t *testing.T, events []Event, i int) *ReadingEvent {
	t.Helper()
	if i >= len(events) {
		t.Fatalf("expected event %d, only %d events", i, len(events))
	}
	re, ok := events[i].(*ReadingEvent)
	if !ok {
		t.Fatalf("event %d: expected *ReadingEvent, got %T", i, events[i])
	}
	return re
}

func TestStream_SingleFrame(t *testing.T) {
	s := newTestStream()
	events := s.Feed(rpmFrame306)

	if len(events) != 2 {
		t.Fatalf("expected reading + status, got %d events", len(events))
	}
	re := readingAt(t, events, 0)
	if rpm := re.Reading.(*RPMReading); !almostEqual(rpm.RPM, 306.1, 0.05) {
		t.Errorf("expected ~306.1 RPM, got %f", rpm.RPM)
	}
	st := statusAt(t, events, 1)
	if st.Severity != SeverityInfo || st.Result != ResultComplete {
		t.Errorf("expected info/COMPLETE, got %s/%s", st.Severity, st.Result)
	}
	if st.Text != "Everything OK - Last update: 14:03:07.250" {
		t.Errorf("unexpected status text %q", st.Text)
	}
	if s.Buffered() != 0 || s.State() != StateIdle {
		t.Errorf("expected empty idle stream, got %d bytes %s", s.Buffered(), s.State())
	}
	ts, ok := s.LastReception(MsgRPMPulse)
	if !ok || !ts.Equal(fixedTime) {
		t.Errorf("reception time not recorded: %v %v", ts, ok)
	}
	if _, ok := s.LastReception(MsgThermocouple); ok {
		t.Error("thermocouple never received")
	}
}

func TestStream_EnvironmentFrameConverted(t *testing.T) {
	s := newTestStream()
	events := s.Feed(EncodeEnvironment(EnvRecord{
		OilTemp:          -12,
		OilPressure:      100,
		Voltage:          1800,
		InternalTemp:     2150,
		CHT1:             -525,
		CHT2:             180,
		ManifoldPressure: 29,
	}))

	if len(events) != 2 {
		t.Fatalf("expected reading + status, got %d events", len(events))
	}
	env, ok := readingAt(t, events, 0).Reading.(*EnvElectrical)
	if !ok {
		t.Fatalf("expected *EnvElectrical, got %T", events[0].(*ReadingEvent).Reading)
	}
	checks := []struct {
		name     string
		got, exp float64
	}{
		{"inside air", env.InsideAirTemp, 21.5},
		{"outside air", env.OutsideAirTemp, -5.25},
		{"cht2", env.CHT2, 180},
		{"oil temp", env.OilTemp, -12},
		{"oil pressure", env.OilPressure, 1.9403814},
		{"voltage", env.Voltage, 13.3463631},
		{"manifold", env.ManifoldPressure, 29},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.exp, 1e-6) {
			t.Errorf("%s: expected %f, got %f", c.name, c.exp, c.got)
		}
	}
	if st := statusAt(t, events, 1); st.Result != ResultComplete || st.MessageType != MsgEnvironment {
		t.Errorf("expected COMPLETE for ENVIRONMENT, got %s/%d", st.Result, st.MessageType)
	}
	if _, ok := s.LastReception(MsgEnvironment); !ok {
		t.Error("environment reception time not recorded")
	}
}

func TestStream_MultipleFramesInOrder(t *testing.T) {
	s := newTestStream()
	data := concat(
		EncodeFuelVoltage(FuelVoltageRecord{Volts: 800}),
		EncodeEnvironment(EnvRecord{OilPressure: 200}),
		rpmFrame306,
		EncodeThermocouple(ThermocoupleRecord{}),
	)
	events := s.Feed(data)

	if len(events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(events))
	}
	for i := 0; i < 4; i++ {
		re := readingAt(t, events, i*2)
		if re.Reading.Type() != MessageType(i+1) {
			t.Errorf("reading %d: expected type %d, got %d", i, i+1, re.Reading.Type())
		}
		if st := statusAt(t, events, i*2+1); st.MessageType != MessageType(i+1) {
			t.Errorf("status %d: expected type %d, got %d", i, i+1, st.MessageType)
		}
	}
}

func TestStream_GarbageBeforeFrame(t *testing.T) {
	s := newTestStream()
	events := s.Feed(concat([]byte{0xAA, 0xBB, 0xCC}, rpmFrame306))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	readingAt(t, events, 0)
	if st := statusAt(t, events, 1); st.Skipped != 3 {
		t.Errorf("expected 3 skipped bytes, got %d", st.Skipped)
	}
}

func TestStream_OnlyGarbage(t *testing.T) {
	s := newTestStream()
	events := s.Feed([]byte{0x11, 0x22, 0x33, 0x44})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	st := statusAt(t, events, 0)
	if st.Severity != SeverityError || st.Result != ResultNoStartPattern {
		t.Errorf("expected error/NO_START_PATTERN, got %s/%s", st.Severity, st.Result)
	}
	if st.Text != "No start pattern found yet" || st.Skipped != 2 {
		t.Errorf("unexpected status %q skipped=%d", st.Text, st.Skipped)
	}
	if s.Buffered() != 2 || s.State() != StateAccumulating {
		t.Errorf("expected 2 bytes accumulating, got %d %s", s.Buffered(), s.State())
	}
}

func TestStream_CorruptThenValid(t *testing.T) {
	corrupt := append([]byte(nil), rpmFrame306...)
	corrupt[5] = 0x00

	s := newTestStream()
	events := s.Feed(concat(corrupt, rpmFrame306))

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	st := statusAt(t, events, 0)
	if st.Severity != SeverityWarning || st.Result != ResultInvalidChecksumA {
		t.Errorf("expected warning/INVALID_CHECKSUM_A, got %s/%s", st.Severity, st.Result)
	}
	if !strings.HasPrefix(st.Text, "Found pattern not valid") {
		t.Errorf("unexpected text %q", st.Text)
	}
	readingAt(t, events, 1)
	if ok := statusAt(t, events, 2); ok.Skipped != 6 {
		t.Errorf("expected 6 skipped bytes, got %d", ok.Skipped)
	}
}

func TestStream_ByteAtATime(t *testing.T) {
	s := newTestStream()
	var readings int
	for i, b := range rpmFrame306 {
		events := s.Feed([]byte{b})
		for _, ev := range events {
			if _, ok := ev.(*ReadingEvent); ok {
				readings++
			}
		}
		if i >= 2 && i < len(rpmFrame306)-1 {
			if len(events) != 0 || s.State() != StateSyncWaiting {
				t.Errorf("byte %d: expected silent sync wait, got %d events %s", i, len(events), s.State())
			}
		}
	}
	if readings != 1 {
		t.Errorf("expected 1 reading, got %d", readings)
	}
}

func TestStream_PartialFrameWaits(t *testing.T) {
	s := newTestStream()
	frame := EncodeEnvironment(EnvRecord{})
	if events := s.Feed(frame[:5]); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if s.State() != StateSyncWaiting || s.Buffered() != 5 {
		t.Fatalf("expected sync wait with 5 bytes, got %s %d", s.State(), s.Buffered())
	}
	events := s.Feed(frame[5:])
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	readingAt(t, events, 0)
}

func TestStream_StrictModeIgnoresOtherSelectors(t *testing.T) {
	s := newTestStream(WithSyncMode(SyncStrict))
	events := s.Feed(rpmFrame306)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if st := statusAt(t, events, 0); st.Result != ResultNoStartPattern {
		t.Errorf("expected NO_START_PATTERN, got %s", st.Result)
	}

	events = s.Feed(EncodeFuelVoltage(FuelVoltageRecord{}))
	found := false
	for _, ev := range events {
		if re, ok := ev.(*ReadingEvent); ok && re.Reading.Type() == MsgFuelVoltage {
			found = true
		}
	}
	if !found {
		t.Error("strict mode should still decode type-1 frames")
	}
}

func TestStream_Overflow(t *testing.T) {
	s := newTestStream(WithMaxBuffer(10))
	events := s.Feed(make([]byte, 20))
	st := statusAt(t, events, 0)
	if st.Result != ResultOverflow || st.Skipped != 10 {
		t.Errorf("expected OVERFLOW of 10 bytes, got %s %d", st.Result, st.Skipped)
	}
}

func TestStream_SubscribersSeeSameOrder(t *testing.T) {
	s := newTestStream()
	var seen []Event
	s.Subscribe(func(ev Event) { seen = append(seen, ev) })

	data := concat([]byte{0x00}, rpmFrame306, rpmFrame306)
	events := s.Feed(data)
	if len(seen) != len(events) {
		t.Fatalf("handler saw %d events, Feed returned %d", len(seen), len(events))
	}
	for i := range events {
		if seen[i] != events[i] {
			t.Errorf("event %d differs", i)
		}
	}
}

func TestStream_WriteAndReset(t *testing.T) {
	s := newTestStream()
	n, err := s.Write(rpmFrame306[:4])
	if err != nil || n != 4 {
		t.Fatalf("write returned %d, %v", n, err)
	}
	s.Reset()
	if s.Buffered() != 0 || s.State() != StateIdle {
		t.Errorf("reset left %d bytes in %s", s.Buffered(), s.State())
	}
}

func TestStream_Pump(t *testing.T) {
	s := newTestStream()
	var readings int
	s.Subscribe(func(ev Event) {
		if _, ok := ev.(*ReadingEvent); ok {
			readings++
		}
	})

	r := bytes.NewReader(concat(rpmFrame306, EncodeThermocouple(ThermocoupleRecord{})))
	if err := s.Pump(context.Background(), r); err != nil {
		t.Fatalf("pump failed: %v", err)
	}
	if readings != 2 {
		t.Errorf("expected 2 readings, got %d", readings)
	}
}

func TestStream_PumpCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestStream().Pump(ctx, bytes.NewReader(rpmFrame306))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFormatEvent(t *testing.T) {
	events := newTestStream().Feed(concat([]byte{0x01}, rpmFrame306))
	reading := FormatEvent(events[0])
	if !strings.Contains(reading, "RPM_PULSE (0x03)") || !strings.Contains(reading, "RPM: 306") {
		t.Errorf("unexpected reading line %q", reading)
	}
	status := FormatEvent(events[1])
	if !strings.Contains(status, "[INFO] Everything OK") || !strings.Contains(status, "skipped 1 bytes") {
		t.Errorf("unexpected status line %q", status)
	}
	if FormatHex([]byte{0x05, 0x02, 0xAB}) != "05 02 AB" {
		t.Error("unexpected hex formatting")
	}
}
