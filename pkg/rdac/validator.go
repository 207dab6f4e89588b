// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import "fmt"

// AnomalyType represents different kinds of implausible readings
type AnomalyType int

const (
	AnomalyHighRPM AnomalyType = iota
	AnomalyHighEGT
	AnomalyHighCHT
	AnomalyOilTemp
	AnomalyOilPressure
	AnomalyVoltage
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyHighRPM:
		return "HIGH_RPM"
	case AnomalyHighEGT:
		return "HIGH_EGT"
	case AnomalyHighCHT:
		return "HIGH_CHT"
	case AnomalyOilTemp:
		return "OIL_TEMP"
	case AnomalyOilPressure:
		return "OIL_PRESSURE"
	case AnomalyVoltage:
		return "VOLTAGE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a reading outside its configured limits
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Limits are the alarm thresholds a reading is checked against.
type Limits struct {
	MaxRPM         float64 `yaml:"max_rpm" toml:"max_rpm"`
	MaxEGT         float64 `yaml:"max_egt" toml:"max_egt"`
	MaxCHT         float64 `yaml:"max_cht" toml:"max_cht"`
	MaxOilTemp     float64 `yaml:"max_oil_temp" toml:"max_oil_temp"`
	MinOilPressure float64 `yaml:"min_oil_pressure" toml:"min_oil_pressure"`
	MaxOilPressure float64 `yaml:"max_oil_pressure" toml:"max_oil_pressure"`
	MinVoltage     float64 `yaml:"min_voltage" toml:"min_voltage"`
	MaxVoltage     float64 `yaml:"max_voltage" toml:"max_voltage"`
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxRPM:         2800,
		MaxEGT:         900,
		MaxCHT:         250,
		MaxOilTemp:     130,
		MinOilPressure: 0,
		MaxOilPressure: 7,
		MinVoltage:     11.5,
		MaxVoltage:     15,
	}
}

// ValidateReading checks a decoded reading against l.
// Returns a slice of validation errors (empty if the reading is plausible).
// A zero limit disables its check.
func ValidateReading(r Reading, l Limits) []ValidationError {
	errors := []ValidationError{}

	switch v := r.(type) {
	case *FuelVoltage:
		errors = append(errors, checkVoltage(v.Voltage, l)...)

	case *EnvElectrical:
		if l.MaxOilTemp > 0 && v.OilTemp > l.MaxOilTemp {
			errors = append(errors, ValidationError{
				Type:    AnomalyOilTemp,
				Message: fmt.Sprintf("Oil temperature %.0f above %.0f", v.OilTemp, l.MaxOilTemp),
				Details: map[string]interface{}{"oil_temp": v.OilTemp, "max": l.MaxOilTemp},
			})
		}
		if v.OilPressure < l.MinOilPressure || (l.MaxOilPressure > 0 && v.OilPressure > l.MaxOilPressure) {
			errors = append(errors, ValidationError{
				Type: AnomalyOilPressure,
				Message: fmt.Sprintf("Oil pressure %.2f outside [%.2f-%.2f]",
					v.OilPressure, l.MinOilPressure, l.MaxOilPressure),
				Details: map[string]interface{}{"oil_pressure": v.OilPressure, "min": l.MinOilPressure, "max": l.MaxOilPressure},
			})
		}
		if l.MaxCHT > 0 && v.CHT2 > l.MaxCHT {
			errors = append(errors, ValidationError{
				Type:    AnomalyHighCHT,
				Message: fmt.Sprintf("CHT2 %.0f above %.0f", v.CHT2, l.MaxCHT),
				Details: map[string]interface{}{"channel": 2, "cht": v.CHT2, "max": l.MaxCHT},
			})
		}
		errors = append(errors, checkVoltage(v.Voltage, l)...)

	case *RPMReading:
		if l.MaxRPM > 0 && v.RPM > l.MaxRPM {
			errors = append(errors, ValidationError{
				Type:    AnomalyHighRPM,
				Message: fmt.Sprintf("High RPM detected (rpm=%.0f, max %.0f)", v.RPM, l.MaxRPM),
				Details: map[string]interface{}{"rpm": v.RPM, "ticks": v.Ticks, "max": l.MaxRPM},
			})
		}

	case *Thermocouple:
		for i, egt := range v.EGT {
			if l.MaxEGT > 0 && egt > l.MaxEGT {
				errors = append(errors, ValidationError{
					Type:    AnomalyHighEGT,
					Message: fmt.Sprintf("EGT%d %.0f above %.0f", i+1, egt, l.MaxEGT),
					Details: map[string]interface{}{"channel": i + 1, "egt": egt, "max": l.MaxEGT},
				})
			}
		}
		for i, cht := range v.CHT {
			if l.MaxCHT > 0 && cht > l.MaxCHT {
				errors = append(errors, ValidationError{
					Type:    AnomalyHighCHT,
					Message: fmt.Sprintf("CHT%d %.0f above %.0f", i+1, cht, l.MaxCHT),
					Details: map[string]interface{}{"channel": i + 1, "cht": cht, "max": l.MaxCHT},
				})
			}
		}
	}

	return errors
}

func checkVoltage(volts float64, l Limits) []ValidationError {
	low := l.MinVoltage > 0 && volts < l.MinVoltage
	high := l.MaxVoltage > 0 && volts > l.MaxVoltage
	if !low && !high {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyVoltage,
		Message: fmt.Sprintf("Bus voltage %.1f V outside [%.1f-%.1f]", volts, l.MinVoltage, l.MaxVoltage),
		Details: map[string]interface{}{"voltage": volts, "min": l.MinVoltage, "max": l.MaxVoltage},
	}}
}
