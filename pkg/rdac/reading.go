// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

// Reading is a decoded, unit-converted RDAC message.
// The concrete type is one of *FuelVoltage, *EnvElectrical, *RPMReading or
// *Thermocouple.
type Reading interface {
	Type() MessageType
}

// FuelVoltage is decoded from a type-1 frame.
type FuelVoltage struct {
	FuelFlow float64 `json:"fuel_flow"` // pulses per hour as reported by the flow sender
	Voltage  float64 `json:"voltage"`   // volts, one decimal

	// Record holds the raw channels with the pulse-ratio sentinel already
	// replaced by zero.
	Record FuelVoltageRecord `json:"record"`
}

// Type implements Reading.
func (*FuelVoltage) Type() MessageType { return MsgFuelVoltage }

// EnvElectrical is decoded from a type-2 frame.
type EnvElectrical struct {
	InsideAirTemp    float64 `json:"inside_air_temp"`
	OutsideAirTemp   float64 `json:"outside_air_temp"`
	CHT2             float64 `json:"cht2"`
	OilTemp          float64 `json:"oil_temp"`
	OilPressure      float64 `json:"oil_pressure"` // never negative
	Voltage          float64 `json:"voltage"`
	ManifoldPressure float64 `json:"manifold_pressure"`
}

// Type implements Reading.
func (*EnvElectrical) Type() MessageType { return MsgEnvironment }

// RPMReading is decoded from a type-3 frame.
type RPMReading struct {
	Ticks uint16  `json:"ticks"`
	RPM   float64 `json:"rpm"` // 0 when the engine is stopped
}

// Type implements Reading.
func (*RPMReading) Type() MessageType { return MsgRPMPulse }

// Thermocouple is decoded from a type-4 frame.
type Thermocouple struct {
	EGT [EGTChannels]float64 `json:"egt"`
	CHT [CHTChannels]float64 `json:"cht"`
}

// Type implements Reading.
func (*Thermocouple) Type() MessageType { return MsgThermocouple }
