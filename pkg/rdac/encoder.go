// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"fmt"
	"math"
)

// EncodeFrame builds a complete wire frame of type t around a raw record.
// The record must be exactly the record size of t. Both checksums are
// computed and written to the last two bytes; for type 1 this overwrites
// the final two record bytes, matching what the unit sends.
func EncodeFrame(t MessageType, record []byte) ([]byte, error) {
	size := FrameSize(t)
	if size == 0 {
		return nil, fmt.Errorf("encode type 0x%02X: %w", uint8(t), ErrInvalidType)
	}
	offset, n := recordSpan(t)
	if len(record) != n {
		return nil, fmt.Errorf("encode type 0x%02X: record is %d bytes, want %d", uint8(t), len(record), n)
	}

	frame := make([]byte, size)
	frame[0] = StartByte0
	frame[1] = StartByte1
	frame[2] = byte(t)
	copy(frame[offset:], record)

	frame[size-2] = ChecksumA(frame)
	frame[size-1] = ChecksumB(frame)
	return frame, nil
}

// EncodeFuelVoltage builds a type-1 frame.
func EncodeFuelVoltage(r FuelVoltageRecord) []byte {
	return mustEncode(MsgFuelVoltage, r.Marshal())
}

// EncodeEnvironment builds a type-2 frame.
func EncodeEnvironment(r EnvRecord) []byte {
	return mustEncode(MsgEnvironment, r.Marshal())
}

// EncodeRPMPulse builds a type-3 frame.
func EncodeRPMPulse(r PulseRecord) []byte {
	return mustEncode(MsgRPMPulse, r.Marshal())
}

// EncodeThermocouple builds a type-4 frame.
func EncodeThermocouple(r ThermocoupleRecord) []byte {
	return mustEncode(MsgThermocouple, r.Marshal())
}

// TicksForRPM returns the pulse interval a type-3 record carries for rpm.
// Speeds too low to measure encode as zero ticks, which decodes as stopped.
func TicksForRPM(rpm float64) uint16 {
	if rpm <= 0 {
		return 0
	}
	ticks := math.Round(rpmFudge / rpm)
	if ticks > rpmStoppedTicks {
		return 0
	}
	return uint16(ticks)
}

// mustEncode is only used with records produced by Marshal, whose sizes
// always match.
func mustEncode(t MessageType, record []byte) []byte {
	frame, err := EncodeFrame(t, record)
	if err != nil {
		panic(err)
	}
	return frame
}
