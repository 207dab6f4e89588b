// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"fmt"
	"strings"
)

// FormatEvent formats an event into a human-readable line (or lines for readings)
func FormatEvent(ev Event) string {
	timestamp := ev.Timestamp().Format("15:04:05.000")

	switch e := ev.(type) {
	case *ReadingEvent:
		t := e.Reading.Type()
		result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatMessageType(t), uint8(t), FrameSize(t))
		return result + FormatReading(e.Reading)

	case *StatusEvent:
		result := fmt.Sprintf("[%s] [%s] %s", timestamp, strings.ToUpper(e.Severity.String()), e.Text)
		if e.Skipped > 0 {
			result += fmt.Sprintf(" (skipped %d bytes)", e.Skipped)
		}
		return result + "\n"
	}

	return fmt.Sprintf("[%s] unknown event %T\n", timestamp, ev)
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(t MessageType) string {
	switch t {
	case MsgFuelVoltage:
		return "FUEL_VOLTAGE"
	case MsgEnvironment:
		return "ENVIRONMENT"
	case MsgRPMPulse:
		return "RPM_PULSE"
	case MsgThermocouple:
		return "THERMOCOUPLE"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
}

// FormatReading formats the decoded values of a reading, one line per group
func FormatReading(r Reading) string {
	switch v := r.(type) {
	case *FuelVoltage:
		return fmt.Sprintf("  Fuel Flow: %.0f, Voltage: %.1f V, Pulse Ratio: %d/%d\n",
			v.FuelFlow, v.Voltage, v.Record.PulseRatio1, v.Record.PulseRatio2)

	case *EnvElectrical:
		result := fmt.Sprintf("  Inside Air: %.2f°C, Outside Air: %.2f°C, CHT2: %.0f\n",
			v.InsideAirTemp, v.OutsideAirTemp, v.CHT2)
		result += fmt.Sprintf("  Oil: %.0f°, %.2f bar, Voltage: %.2f V, MAP: %.0f\n",
			v.OilTemp, v.OilPressure, v.Voltage, v.ManifoldPressure)
		return result

	case *RPMReading:
		if v.RPM == 0 {
			return fmt.Sprintf("  RPM: 0 (stopped, ticks=%d)\n", v.Ticks)
		}
		return fmt.Sprintf("  RPM: %.0f (ticks=%d)\n", v.RPM, v.Ticks)

	case *Thermocouple:
		return fmt.Sprintf("  EGT: %s\n  CHT: %s\n", formatChannels(v.EGT[:]), formatChannels(v.CHT[:]))
	}

	return ""
}

// FormatHex renders bytes as space separated hex pairs
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func formatChannels(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d=%.0f", i+1, v)
	}
	return strings.Join(parts, " ")
}
