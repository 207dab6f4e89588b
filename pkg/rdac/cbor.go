// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Events cross process boundaries (WebSocket hub, MQTT) as a two element
// CBOR array: [kind, payload_map]. Kind 0 is a status event; kinds 1-4 are
// readings of the matching message type. Map keys are small integers.
//
//	status:       0 => time-ms, 1 => text, 2 => severity, 3 => result,
//	              4 => message type, 5 => skipped
//	FUEL_VOLTAGE: 0 => time-ms, 1 => fuel flow, 2 => voltage, 3 => record bytes
//	ENVIRONMENT:  0 => time-ms, 1 => inside air, 2 => outside air, 3 => cht2,
//	              4 => oil temp, 5 => oil pressure, 6 => voltage, 7 => map
//	RPM_PULSE:    0 => time-ms, 1 => ticks, 2 => rpm
//	THERMOCOUPLE: 0 => time-ms, 1 => [egt...], 2 => [cht...]
const eventKindStatus = 0

// MarshalEvent encodes an event into its CBOR wire form
func MarshalEvent(ev Event) ([]byte, error) {
	var kind uint64
	m := map[int]interface{}{0: ev.Timestamp().UnixMilli()}

	switch e := ev.(type) {
	case *StatusEvent:
		kind = eventKindStatus
		m[1] = e.Text
		m[2] = int64(e.Severity)
		m[3] = int64(e.Result)
		m[4] = uint64(e.MessageType)
		m[5] = int64(e.Skipped)

	case *ReadingEvent:
		kind = uint64(e.Reading.Type())
		switch r := e.Reading.(type) {
		case *FuelVoltage:
			m[1] = r.FuelFlow
			m[2] = r.Voltage
			m[3] = r.Record.Marshal()
		case *EnvElectrical:
			m[1] = r.InsideAirTemp
			m[2] = r.OutsideAirTemp
			m[3] = r.CHT2
			m[4] = r.OilTemp
			m[5] = r.OilPressure
			m[6] = r.Voltage
			m[7] = r.ManifoldPressure
		case *RPMReading:
			m[1] = uint64(r.Ticks)
			m[2] = r.RPM
		case *Thermocouple:
			m[1] = r.EGT[:]
			m[2] = r.CHT[:]
		default:
			return nil, fmt.Errorf("unsupported reading %T", e.Reading)
		}

	default:
		return nil, fmt.Errorf("unsupported event %T", ev)
	}

	data, err := cbor.Marshal([]interface{}{kind, m})
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalEvent decodes an event produced by MarshalEvent
func UnmarshalEvent(data []byte) (Event, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	kind, ok := msg[0].(uint64)
	if !ok {
		return nil, fmt.Errorf("expected uint for event kind, got %T", msg[0])
	}
	m, err := toIntMap(msg[1])
	if err != nil {
		return nil, err
	}

	ms, _ := getMapInt(m, 0)
	ts := time.UnixMilli(ms)

	if kind == eventKindStatus {
		text, _ := m[1].(string)
		sev, _ := getMapInt(m, 2)
		result, _ := getMapInt(m, 3)
		msgType, _ := getMapInt(m, 4)
		skipped, _ := getMapInt(m, 5)
		return &StatusEvent{
			Time:        ts,
			Text:        text,
			Severity:    Severity(sev),
			Result:      Result(result),
			MessageType: MessageType(msgType),
			Skipped:     int(skipped),
		}, nil
	}

	var reading Reading
	switch MessageType(kind) {
	case MsgFuelVoltage:
		raw, _ := m[3].([]byte)
		if len(raw) != recordSizeFuelVoltage {
			return nil, fmt.Errorf("fuel/voltage record: %d bytes, want %d", len(raw), recordSizeFuelVoltage)
		}
		r := &FuelVoltage{Record: parseFuelVoltageRecord(raw)}
		r.FuelFlow, _ = getMapFloat(m, 1)
		r.Voltage, _ = getMapFloat(m, 2)
		reading = r

	case MsgEnvironment:
		r := &EnvElectrical{}
		r.InsideAirTemp, _ = getMapFloat(m, 1)
		r.OutsideAirTemp, _ = getMapFloat(m, 2)
		r.CHT2, _ = getMapFloat(m, 3)
		r.OilTemp, _ = getMapFloat(m, 4)
		r.OilPressure, _ = getMapFloat(m, 5)
		r.Voltage, _ = getMapFloat(m, 6)
		r.ManifoldPressure, _ = getMapFloat(m, 7)
		reading = r

	case MsgRPMPulse:
		ticks, _ := getMapInt(m, 1)
		r := &RPMReading{Ticks: uint16(ticks)}
		r.RPM, _ = getMapFloat(m, 2)
		reading = r

	case MsgThermocouple:
		r := &Thermocouple{}
		if err := getMapFloats(m, 1, r.EGT[:]); err != nil {
			return nil, fmt.Errorf("egt: %w", err)
		}
		if err := getMapFloats(m, 2, r.CHT[:]); err != nil {
			return nil, fmt.Errorf("cht: %w", err)
		}
		reading = r

	default:
		return nil, fmt.Errorf("unknown event kind %d", kind)
	}

	return &ReadingEvent{Time: ts, Reading: reading}, nil
}

// toIntMap converts a decoded CBOR map to integer keys
func toIntMap(v interface{}) (map[int]interface{}, error) {
	raw, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected map payload, got %T", v)
	}
	m := make(map[int]interface{}, len(raw))
	for key, val := range raw {
		switch k := key.(type) {
		case uint64:
			m[int(k)] = val
		case int64:
			m[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return m, nil
}

func getMapInt(m map[int]interface{}, key int) (int64, bool) {
	switch val := m[key].(type) {
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	}
	return 0, false
}

func getMapFloat(m map[int]interface{}, key int) (float64, bool) {
	switch val := m[key].(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

func getMapFloats(m map[int]interface{}, key int, dst []float64) error {
	list, ok := m[key].([]interface{})
	if !ok {
		return fmt.Errorf("expected array, got %T", m[key])
	}
	if len(list) != len(dst) {
		return fmt.Errorf("expected %d values, got %d", len(dst), len(list))
	}
	for i, item := range list {
		f, ok := getMapFloat(map[int]interface{}{0: item}, 0)
		if !ok {
			return fmt.Errorf("value %d: unexpected %T", i, item)
		}
		dst[i] = f
	}
	return nil
}
