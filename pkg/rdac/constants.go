// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rdac decodes the RDAC engine-sensor serial link.
//
// The RDAC unit streams fixed-length binary frames with no escaping and no
// end marker. Every frame starts with the preamble 0x05 0x02 followed by a
// message type selector, carries a fixed-layout little-endian record and ends
// with two additive checksums. The decoder keeps an accumulating buffer,
// resynchronizes one byte at a time after any fault and emits typed readings.
package rdac

// Start pattern
const (
	StartByte0 = 0x05
	StartByte1 = 0x02
	StartByte2 = 0x01 // also the type-1 selector
)

// StartPatternSize is the number of bytes the synchronizer inspects.
const StartPatternSize = 3

// Checksum seeds
const (
	checksumSeedA = 0x55
	checksumSeedB = 0xAA
)

// checksumStart is the first byte index covered by both checksums.
const checksumStart = 2

// MessageType is the selector byte at frame offset 2.
type MessageType uint8

// Message types
const (
	MsgFuelVoltage  MessageType = 0x01
	MsgEnvironment  MessageType = 0x02
	MsgRPMPulse     MessageType = 0x03
	MsgThermocouple MessageType = 0x04
)

// Frame lengths including header and both checksum bytes
const (
	FrameSizeFuelVoltage  = 66
	FrameSizeEnvironment  = 23
	FrameSizeRPMPulse     = 7
	FrameSizeThermocouple = 29
)

// MaxFrameSize is the longest frame on the link.
const MaxFrameSize = FrameSizeFuelVoltage

// Record placement within a frame
const (
	recordOffsetFuelVoltage  = 4
	recordSizeFuelVoltage    = 62
	recordOffsetEnvironment  = 3
	recordSizeEnvironment    = 18
	recordOffsetRPMPulse     = 3
	recordSizeRPMPulse       = 2
	recordOffsetThermocouple = 3
	recordSizeThermocouple   = 24
)

// Number of thermocouple channels of each kind
const (
	EGTChannels          = 4
	CHTChannels          = 4
	ThermocoupleSlots    = recordSizeThermocouple / 2
	thermocoupleCHTFirst = EGTChannels
)

// Conversion constants
const (
	pulseRatioNoSignal = 65535

	voltsDivisor = 5.73758

	fuelSampleSeconds = 4.0

	envVoltageOffset = 115.0
	envVoltageScale  = 0.0069693802

	oilPressureGain   = 0.3320318366
	oilPressureOffset = 31.2628022226

	centiDegrees = 100.0

	rpmFudge        = (6000.0 / 19.6) * 15586.0
	rpmStoppedTicks = 30000
)

// DefaultMaxBufferSize bounds the stream buffer when no option overrides it.
const DefaultMaxBufferSize = 4096

// FrameSize returns the total frame length for t, or 0 if t is unknown.
func FrameSize(t MessageType) int {
	switch t {
	case MsgFuelVoltage:
		return FrameSizeFuelVoltage
	case MsgEnvironment:
		return FrameSizeEnvironment
	case MsgRPMPulse:
		return FrameSizeRPMPulse
	case MsgThermocouple:
		return FrameSizeThermocouple
	default:
		return 0
	}
}

// Known reports whether t is one of the four RDAC message types.
func (t MessageType) Known() bool {
	return FrameSize(t) != 0
}

// recordSpan returns the record offset and size for t.
func recordSpan(t MessageType) (offset, size int) {
	switch t {
	case MsgFuelVoltage:
		return recordOffsetFuelVoltage, recordSizeFuelVoltage
	case MsgEnvironment:
		return recordOffsetEnvironment, recordSizeEnvironment
	case MsgRPMPulse:
		return recordOffsetRPMPulse, recordSizeRPMPulse
	case MsgThermocouple:
		return recordOffsetThermocouple, recordSizeThermocouple
	default:
		return 0, 0
	}
}
