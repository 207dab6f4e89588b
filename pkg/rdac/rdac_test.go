// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// rpmFrame306 is a type-3 frame carrying 15586 ticks (306.1 RPM)
var rpmFrame306 = []byte{0x05, 0x02, 0x03, 0xE2, 0x3C, 0x76, 0xCB}

func bufferOf(data ...byte) *Buffer {
	b := NewBuffer(0)
	b.Append(data)
	return b
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_KnownFrame(t *testing.T) {
	if got := ChecksumA(rpmFrame306); got != 0x76 {
		t.Errorf("ChecksumA: expected 0x76, got 0x%02X", got)
	}
	if got := ChecksumB(rpmFrame306); got != 0xCB {
		t.Errorf("ChecksumB: expected 0xCB, got 0x%02X", got)
	}
}

func TestChecksum_IgnoresTrailingBytes(t *testing.T) {
	frame := append([]byte(nil), rpmFrame306...)
	frame[5], frame[6] = 0xFF, 0xFF
	if ChecksumA(frame) != 0x76 || ChecksumB(frame) != 0xCB {
		t.Error("checksum bytes must not be part of the sum")
	}
}

func TestChecksum_ShortFrameYieldsSeed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"start only", []byte{0x05, 0x02, 0x01}},
		{"four bytes", []byte{0x05, 0x02, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChecksumA(tt.frame); got != checksumSeedA {
				t.Errorf("ChecksumA: expected seed 0x55, got 0x%02X", got)
			}
			if got := ChecksumB(tt.frame); got != checksumSeedB {
				t.Errorf("ChecksumB: expected seed 0xAA, got 0x%02X", got)
			}
		})
	}
}

func TestChecksum_Wraps(t *testing.T) {
	frame := []byte{0x05, 0x02, 0xFF, 0xFF, 0xFF, 0, 0}
	// 0x55 + 0x2FD = 0x352
	if got := ChecksumA(frame); got != 0x52 {
		t.Errorf("expected 0x52, got 0x%02X", got)
	}
}

// ============================================================
// Buffer Tests
// ============================================================

func TestBuffer_DiscardFront(t *testing.T) {
	b := bufferOf(1, 2, 3, 4, 5)
	if n := b.Discard(2); n != 2 {
		t.Fatalf("expected 2 discarded, got %d", n)
	}
	if !bytes.Equal(b.Peek(10), []byte{3, 4, 5}) {
		t.Errorf("unexpected contents % X", b.Peek(10))
	}
	if n := b.Discard(10); n != 3 || b.Len() != 0 {
		t.Errorf("expected full drain, discarded %d, %d left", n, b.Len())
	}
}

func TestBuffer_LimitDropsOldest(t *testing.T) {
	b := NewBuffer(4)
	if dropped := b.Append([]byte{1, 2, 3}); dropped != 0 {
		t.Fatalf("unexpected drop %d", dropped)
	}
	if dropped := b.Append([]byte{4, 5, 6}); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	if !bytes.Equal(b.Peek(4), []byte{3, 4, 5, 6}) {
		t.Errorf("unexpected contents % X", b.Peek(4))
	}
}

// ============================================================
// Synchronizer Tests
// ============================================================

func TestFindStart(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		found   bool
		remains int
	}{
		{"pattern at front", []byte{0x05, 0x02, 0x01, 0x10}, true, 4},
		{"garbage before pattern", []byte{0x00, 0xFF, 0x05, 0x02, 0x01}, true, 3},
		{"too short", []byte{0x05, 0x02}, false, 2},
		{"no pattern", []byte{0x10, 0x20, 0x30, 0x40, 0x50}, false, 2},
		{"other selector is not the pattern", []byte{0x05, 0x02, 0x03}, false, 2},
		{"overlapping preamble", []byte{0x05, 0x05, 0x02, 0x01}, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bufferOf(tt.data...)
			if got := FindStart(b); got != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, got)
			}
			if b.Len() != tt.remains {
				t.Errorf("expected %d bytes left, got %d", tt.remains, b.Len())
			}
			if tt.found && (b.At(0) != StartByte0 || b.At(1) != StartByte1 || b.At(2) != StartByte2) {
				t.Errorf("pattern not at offset 0: % X", b.Peek(3))
			}
		})
	}
}

func TestSyncPreamble_LeavesSelectorToClassifier(t *testing.T) {
	for sel := byte(0); sel < 8; sel++ {
		b := bufferOf(0xAA, 0x05, 0x02, sel)
		found, skipped := SyncPreamble.Scan(b)
		if !found || skipped != 1 {
			t.Errorf("selector 0x%02X: expected found after 1 skipped, got %v/%d", sel, found, skipped)
		}
		result, _ := Classify(b)
		if known := sel >= 1 && sel <= 4; known == (result == ResultInvalidType) {
			t.Errorf("selector 0x%02X: unexpected %s", sel, result)
		}
	}
}

func TestParseSyncMode(t *testing.T) {
	if m, ok := ParseSyncMode("strict"); !ok || m != SyncStrict {
		t.Error("strict not parsed")
	}
	if m, ok := ParseSyncMode(""); !ok || m != SyncPreamble {
		t.Error("empty should default to selector")
	}
	if _, ok := ParseSyncMode("bogus"); ok {
		t.Error("bogus mode accepted")
	}
}

// ============================================================
// Classifier Tests
// ============================================================

func TestClassify_Complete(t *testing.T) {
	b := bufferOf(rpmFrame306...)
	result, msgType := Classify(b)
	if result != ResultComplete || msgType != MsgRPMPulse {
		t.Fatalf("expected COMPLETE/RPM_PULSE, got %s/%d", result, msgType)
	}
	if b.Len() != len(rpmFrame306) {
		t.Error("complete frame must stay buffered until decoded")
	}
}

func TestClassify_IncompleteLeavesBuffer(t *testing.T) {
	frame := EncodeFuelVoltage(FuelVoltageRecord{Flow1: 1})
	b := bufferOf(frame[:40]...)
	result, msgType := Classify(b)
	if result != ResultIncomplete || msgType != MsgFuelVoltage {
		t.Fatalf("expected INCOMPLETE/FUEL_VOLTAGE, got %s/%d", result, msgType)
	}
	if !bytes.Equal(b.Peek(40), frame[:40]) {
		t.Error("incomplete classification mutated the buffer")
	}
}

func TestClassify_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		result Result
		err    error
	}{
		{"unknown type", []byte{0x05, 0x02, 0x09, 0x00, 0x00, 0x00, 0x00}, ResultInvalidType, ErrInvalidType},
		{"checksum A", []byte{0x05, 0x02, 0x03, 0xE2, 0x3C, 0x77, 0xCB}, ResultInvalidChecksumA, ErrChecksumA},
		{"checksum B", []byte{0x05, 0x02, 0x03, 0xE2, 0x3C, 0x76, 0xCC}, ResultInvalidChecksumB, ErrChecksumB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bufferOf(tt.data...)
			result, _ := Classify(b)
			if result != tt.result {
				t.Fatalf("expected %s, got %s", tt.result, result)
			}
			if b.Len() != len(tt.data)-1 {
				t.Errorf("expected exactly one byte discarded, %d left", b.Len())
			}
			if !errors.Is(result.Err(), tt.err) {
				t.Errorf("expected %v, got %v", tt.err, result.Err())
			}
			if !result.Invalid() {
				t.Error("result should be invalid")
			}
		})
	}
}

func TestResult_CompleteHasNoError(t *testing.T) {
	if ResultComplete.Err() != nil {
		t.Error("complete result must not map to an error")
	}
	if ResultIncomplete.Invalid() {
		t.Error("incomplete is not an invalid result")
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecode_RPM(t *testing.T) {
	tests := []struct {
		name  string
		ticks uint16
		rpm   float64
	}{
		{"running", 15586, 306.1224},
		{"slowest running", 30000, 159.0408},
		{"stopped", 30001, 0},
		{"max ticks", 65535, 0},
		{"zero ticks", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := DecodeFrame(EncodeRPMPulse(PulseRecord{Ticks: tt.ticks}))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			rpm, ok := reading.(*RPMReading)
			if !ok {
				t.Fatalf("expected *RPMReading, got %T", reading)
			}
			if rpm.Ticks != tt.ticks || !almostEqual(rpm.RPM, tt.rpm, 0.001) {
				t.Errorf("expected %.4f RPM, got %.4f", tt.rpm, rpm.RPM)
			}
		})
	}
}

func TestDecode_ConsumesFrame(t *testing.T) {
	b := bufferOf(append(append([]byte(nil), rpmFrame306...), 0x05, 0x02)...)
	reading, err := Decode(MsgRPMPulse, b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if reading.Type() != MsgRPMPulse {
		t.Errorf("unexpected type %d", reading.Type())
	}
	if b.Len() != 2 {
		t.Errorf("expected 2 bytes left, got %d", b.Len())
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(MessageType(9), bufferOf(rpmFrame306...)); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
	b := bufferOf(rpmFrame306[:5]...)
	if _, err := Decode(MsgRPMPulse, b); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
	if b.Len() != 5 {
		t.Error("failed decode must not consume bytes")
	}
	if _, err := DecodeFrame(append(rpmFrame306, 0x00)); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestDecode_FuelVoltage(t *testing.T) {
	frame := EncodeFuelVoltage(FuelVoltageRecord{
		Flow1:       10,
		PulseRatio1: 65535,
		PulseRatio2: 12,
		OilTemp:     -5,
		Volts:       800,
	})
	if len(frame) != FrameSizeFuelVoltage {
		t.Fatalf("expected %d byte frame, got %d", FrameSizeFuelVoltage, len(frame))
	}
	reading, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	fv := reading.(*FuelVoltage)
	if fv.FuelFlow != 9000 {
		t.Errorf("expected fuel flow 9000, got %f", fv.FuelFlow)
	}
	if !almostEqual(fv.Voltage, 13.9, 1e-9) {
		t.Errorf("expected 13.9 V, got %f", fv.Voltage)
	}
	if fv.Record.PulseRatio1 != 0 || fv.Record.PulseRatio2 != 12 {
		t.Errorf("pulse ratio sentinel not replaced: %d/%d", fv.Record.PulseRatio1, fv.Record.PulseRatio2)
	}
	if fv.Record.OilTemp != -5 {
		t.Errorf("signed oil temp lost: %d", fv.Record.OilTemp)
	}
}

func TestDecode_Environment(t *testing.T) {
	frame := EncodeEnvironment(EnvRecord{
		OilTemp:          -12,
		OilPressure:      100,
		Voltage:          1800,
		InternalTemp:     2150,
		CHT1:             -525,
		CHT2:             180,
		ManifoldPressure: 29,
	})
	reading, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	env := reading.(*EnvElectrical)

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
}

func TestDecode_OilPressureClamped(t *testing.T) {
	reading, err := DecodeFrame(EncodeEnvironment(EnvRecord{OilPressure: 0}))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p := reading.(*EnvElectrical).OilPressure; p != 0 {
		t.Errorf("expected clamped 0, got %f", p)
	}
}

func TestDecode_Thermocouple(t *testing.T) {
	var rec ThermocoupleRecord
	for i := range rec.Slots {
		rec.Slots[i] = uint16(100 * (i + 1))
	}
	reading, err := DecodeFrame(EncodeThermocouple(rec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	tc := reading.(*Thermocouple)
	if tc.EGT != [EGTChannels]float64{100, 200, 300, 400} {
		t.Errorf("unexpected EGT %v", tc.EGT)
	}
	if tc.CHT != [CHTChannels]float64{500, 600, 700, 800} {
		t.Errorf("unexpected CHT %v", tc.CHT)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeRPMPulse_KnownBytes(t *testing.T) {
	frame := EncodeRPMPulse(PulseRecord{Ticks: 15586})
	if !bytes.Equal(frame, rpmFrame306) {
		t.Errorf("expected % X, got % X", rpmFrame306, frame)
	}
}

func TestEncodeFrame_Errors(t *testing.T) {
	if _, err := EncodeFrame(MessageType(0), nil); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
	if _, err := EncodeFrame(MsgRPMPulse, []byte{1, 2, 3}); err == nil {
		t.Error("expected record size error")
	}
}

func TestEncodeFrame_PassesClassifier(t *testing.T) {
	frames := [][]byte{
		EncodeFuelVoltage(FuelVoltageRecord{Flow1: 42, Volts: 790}),
		EncodeEnvironment(EnvRecord{OilPressure: 300}),
		EncodeRPMPulse(PulseRecord{Ticks: 9000}),
		EncodeThermocouple(ThermocoupleRecord{}),
	}
	for i, frame := range frames {
		result, msgType := Classify(bufferOf(frame...))
		if result != ResultComplete || msgType != MessageType(i+1) {
			t.Errorf("frame %d: expected COMPLETE/%d, got %s/%d", i, i+1, result, msgType)
		}
	}
}

func TestTicksForRPM(t *testing.T) {
	for _, rpm := range []float64{600, 1000, 2400, 2700} {
		reading, err := DecodeFrame(EncodeRPMPulse(PulseRecord{Ticks: TicksForRPM(rpm)}))
		if err != nil {
			t.Fatalf("rpm %.0f: %v", rpm, err)
		}
		got := reading.(*RPMReading).RPM
		if math.Abs(got-rpm) > 1 {
			t.Errorf("rpm %.0f: decoded %.2f", rpm, got)
		}
	}

	for _, rpm := range []float64{0, -5, 10} {
		if ticks := TicksForRPM(rpm); ticks != 0 {
			t.Errorf("rpm %.0f: expected 0 ticks, got %d", rpm, ticks)
		}
	}
}
