// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"fmt"
	"math"
)

// Decode consumes one frame of type t from the front of b and returns the
// decoded reading. The caller must have received ResultComplete from
// Classify for the same buffer state.
func Decode(t MessageType, b *Buffer) (Reading, error) {
	size := FrameSize(t)
	if size == 0 {
		return nil, fmt.Errorf("decode type 0x%02X: %w", uint8(t), ErrInvalidType)
	}
	if b.Len() < size {
		return nil, fmt.Errorf("decode type 0x%02X: have %d bytes, need %d: %w", uint8(t), b.Len(), size, ErrIncomplete)
	}
	reading, err := DecodeFrame(b.Peek(size))
	if err != nil {
		return nil, err
	}
	b.Discard(size)
	return reading, nil
}

// DecodeFrame decodes a complete frame. The frame length must match the
// selector at offset 2; checksums are not re-checked.
func DecodeFrame(frame []byte) (Reading, error) {
	if len(frame) < StartPatternSize {
		return nil, fmt.Errorf("frame too short: %d bytes: %w", len(frame), ErrIncomplete)
	}
	t := MessageType(frame[2])
	size := FrameSize(t)
	if size == 0 {
		return nil, fmt.Errorf("frame type 0x%02X: %w", uint8(t), ErrInvalidType)
	}
	if len(frame) != size {
		return nil, fmt.Errorf("frame type 0x%02X: length %d, want %d", uint8(t), len(frame), size)
	}

	offset, n := recordSpan(t)
	record := frame[offset : offset+n]

	switch t {
	case MsgFuelVoltage:
		return decodeFuelVoltage(parseFuelVoltageRecord(record)), nil
	case MsgEnvironment:
		return decodeEnvironment(parseEnvRecord(record)), nil
	case MsgRPMPulse:
		return decodeRPM(parsePulseRecord(record)), nil
	default:
		return decodeThermocouple(parseThermocoupleRecord(record)), nil
	}
}

func decodeFuelVoltage(r FuelVoltageRecord) *FuelVoltage {
	if r.PulseRatio1 == pulseRatioNoSignal {
		r.PulseRatio1 = 0
	}
	if r.PulseRatio2 == pulseRatioNoSignal {
		r.PulseRatio2 = 0
	}
	return &FuelVoltage{
		FuelFlow: float64(r.Flow1) * 3600.0 / fuelSampleSeconds,
		Voltage:  math.Round(float64(r.Volts)/voltsDivisor) * 0.1,
		Record:   r,
	}
}

func decodeEnvironment(r EnvRecord) *EnvElectrical {
	oilPressure := oilPressureGain*float64(r.OilPressure) - oilPressureOffset
	if oilPressure < 0 {
		oilPressure = 0
	}
	return &EnvElectrical{
		InsideAirTemp:    float64(r.InternalTemp) / centiDegrees,
		OutsideAirTemp:   float64(r.CHT1) / centiDegrees,
		CHT2:             float64(r.CHT2),
		OilTemp:          float64(r.OilTemp),
		OilPressure:      oilPressure,
		Voltage:          (float64(r.Voltage) + envVoltageOffset) * envVoltageScale,
		ManifoldPressure: float64(r.ManifoldPressure),
	}
}

func decodeRPM(r PulseRecord) *RPMReading {
	// Long gaps mean the engine is stopped; zero ticks would divide by zero
	if r.Ticks > rpmStoppedTicks || r.Ticks == 0 {
		return &RPMReading{Ticks: r.Ticks}
	}
	return &RPMReading{
		Ticks: r.Ticks,
		RPM:   rpmFudge / float64(r.Ticks),
	}
}

func decodeThermocouple(r ThermocoupleRecord) *Thermocouple {
	t := &Thermocouple{}
	for i := 0; i < EGTChannels; i++ {
		t.EGT[i] = float64(r.Slots[i])
	}
	for i := 0; i < CHTChannels; i++ {
		t.CHT[i] = float64(r.Slots[thermocoupleCHTFirst+i])
	}
	return t
}
