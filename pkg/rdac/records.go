// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import "encoding/binary"

// The records below mirror the fixed layouts the RDAC firmware writes into
// each frame. All multi-byte fields are little-endian; every field is read
// from an explicit offset.

// FuelVoltageRecord is the type-1 record (frame offset 4, 62 bytes).
// Only the first 32 bytes carry named channels; the remainder is not
// interpreted.
type FuelVoltageRecord struct {
	Flow1        uint16 `json:"flow1"`        // pulses per 4 s sampling window
	PulseRatio1  uint16 `json:"pulse_ratio1"` // 65535 = no signal
	Flow2        uint16 `json:"flow2"`
	PulseRatio2  uint16 `json:"pulse_ratio2"`
	OilTemp      int16  `json:"oil_temp"`
	OilPress     uint16 `json:"oil_press"`
	Aux1         uint16 `json:"aux1"`
	Aux2         uint16 `json:"aux2"`
	FuelPress    uint16 `json:"fuel_press"`
	Coolant      int16  `json:"coolant"`
	FuelLevel1   uint16 `json:"fuel_level1"`
	FuelLevel2   uint16 `json:"fuel_level2"`
	RPM1         uint16 `json:"rpm1"`
	RPM2         uint16 `json:"rpm2"`
	InternalTemp int16  `json:"internal_temp"`
	Volts        uint16 `json:"volts"`
}

func parseFuelVoltageRecord(d []byte) FuelVoltageRecord {
	le := binary.LittleEndian
	return FuelVoltageRecord{
		Flow1:        le.Uint16(d[0:2]),
		PulseRatio1:  le.Uint16(d[2:4]),
		Flow2:        le.Uint16(d[4:6]),
		PulseRatio2:  le.Uint16(d[6:8]),
		OilTemp:      int16(le.Uint16(d[8:10])),
		OilPress:     le.Uint16(d[10:12]),
		Aux1:         le.Uint16(d[12:14]),
		Aux2:         le.Uint16(d[14:16]),
		FuelPress:    le.Uint16(d[16:18]),
		Coolant:      int16(le.Uint16(d[18:20])),
		FuelLevel1:   le.Uint16(d[20:22]),
		FuelLevel2:   le.Uint16(d[22:24]),
		RPM1:         le.Uint16(d[24:26]),
		RPM2:         le.Uint16(d[26:28]),
		InternalTemp: int16(le.Uint16(d[28:30])),
		Volts:        le.Uint16(d[30:32]),
	}
}

// Marshal returns the 62-byte wire form of the record.
func (r FuelVoltageRecord) Marshal() []byte {
	d := make([]byte, recordSizeFuelVoltage)
	le := binary.LittleEndian
	le.PutUint16(d[0:2], r.Flow1)
	le.PutUint16(d[2:4], r.PulseRatio1)
	le.PutUint16(d[4:6], r.Flow2)
	le.PutUint16(d[6:8], r.PulseRatio2)
	le.PutUint16(d[8:10], uint16(r.OilTemp))
	le.PutUint16(d[10:12], r.OilPress)
	le.PutUint16(d[12:14], r.Aux1)
	le.PutUint16(d[14:16], r.Aux2)
	le.PutUint16(d[16:18], r.FuelPress)
	le.PutUint16(d[18:20], uint16(r.Coolant))
	le.PutUint16(d[20:22], r.FuelLevel1)
	le.PutUint16(d[22:24], r.FuelLevel2)
	le.PutUint16(d[24:26], r.RPM1)
	le.PutUint16(d[26:28], r.RPM2)
	le.PutUint16(d[28:30], uint16(r.InternalTemp))
	le.PutUint16(d[30:32], r.Volts)
	return d
}

// EnvRecord is the type-2 record (frame offset 3, 18 bytes).
type EnvRecord struct {
	OilTemp          int16
	OilPressure      uint16 // raw sender counts
	FuelLevel1       uint16
	FuelLevel2       uint16
	Voltage          uint16 // raw ADC counts
	InternalTemp     int16  // 1/100 degree
	CHT1             int16  // 1/100 degree, wired to the outside air probe
	CHT2             int16
	ManifoldPressure uint16
}

func parseEnvRecord(d []byte) EnvRecord {
	le := binary.LittleEndian
	return EnvRecord{
		OilTemp:          int16(le.Uint16(d[0:2])),
		OilPressure:      le.Uint16(d[2:4]),
		FuelLevel1:       le.Uint16(d[4:6]),
		FuelLevel2:       le.Uint16(d[6:8]),
		Voltage:          le.Uint16(d[8:10]),
		InternalTemp:     int16(le.Uint16(d[10:12])),
		CHT1:             int16(le.Uint16(d[12:14])),
		CHT2:             int16(le.Uint16(d[14:16])),
		ManifoldPressure: le.Uint16(d[16:18]),
	}
}

// Marshal returns the 18-byte wire form of the record.
func (r EnvRecord) Marshal() []byte {
	d := make([]byte, recordSizeEnvironment)
	le := binary.LittleEndian
	le.PutUint16(d[0:2], uint16(r.OilTemp))
	le.PutUint16(d[2:4], r.OilPressure)
	le.PutUint16(d[4:6], r.FuelLevel1)
	le.PutUint16(d[6:8], r.FuelLevel2)
	le.PutUint16(d[8:10], r.Voltage)
	le.PutUint16(d[10:12], uint16(r.InternalTemp))
	le.PutUint16(d[12:14], uint16(r.CHT1))
	le.PutUint16(d[14:16], uint16(r.CHT2))
	le.PutUint16(d[16:18], r.ManifoldPressure)
	return d
}

// PulseRecord is the type-3 record (frame offset 3, 2 bytes).
type PulseRecord struct {
	Ticks uint16 // timer ticks between ignition pulses
}

func parsePulseRecord(d []byte) PulseRecord {
	return PulseRecord{Ticks: binary.LittleEndian.Uint16(d[0:2])}
}

// Marshal returns the 2-byte wire form of the record.
func (r PulseRecord) Marshal() []byte {
	d := make([]byte, recordSizeRPMPulse)
	binary.LittleEndian.PutUint16(d, r.Ticks)
	return d
}

// ThermocoupleRecord is the type-4 record (frame offset 3, 24 bytes):
// twelve u16 slots, 0-3 EGT, 4-7 CHT, 8-11 unused.
type ThermocoupleRecord struct {
	Slots [ThermocoupleSlots]uint16
}

func parseThermocoupleRecord(d []byte) ThermocoupleRecord {
	var r ThermocoupleRecord
	for i := range r.Slots {
		r.Slots[i] = binary.LittleEndian.Uint16(d[i*2 : i*2+2])
	}
	return r
}

// Marshal returns the 24-byte wire form of the record.
func (r ThermocoupleRecord) Marshal() []byte {
	d := make([]byte, recordSizeThermocouple)
	for i, v := range r.Slots {
		binary.LittleEndian.PutUint16(d[i*2:i*2+2], v)
	}
	return d
}
