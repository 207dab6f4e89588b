// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func rpmEvent() *rdac.ReadingEvent {
	reading, err := rdac.DecodeFrame(rdac.EncodeRPMPulse(rdac.PulseRecord{Ticks: 1000}))
	if err != nil {
		panic(err)
	}
	return &rdac.ReadingEvent{Time: time.UnixMilli(1_700_000_000_000), Reading: reading}
}

func TestHub_BroadcastsCBOR(t *testing.T) {
	h := New(zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Publish(rpmEvent(), nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("expected binary message, got %d", msgType)
	}
	ev, err := rdac.UnmarshalEvent(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	re, ok := ev.(*rdac.ReadingEvent)
	if !ok || re.Reading.(*rdac.RPMReading).Ticks != 1000 {
		t.Errorf("unexpected event %+v", ev)
	}

	conn.Close()
	waitForClients(t, h, 0)
}

func TestHub_Latest(t *testing.T) {
	h := New(zerolog.Nop())
	ev := rpmEvent()
	h.Publish(ev, rdac.ValidateReading(ev.Reading, rdac.DefaultLimits()))
	h.Publish(&rdac.StatusEvent{Time: ev.Time, Text: "Everything OK", Severity: rdac.SeverityInfo}, nil)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/latest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Readings []struct {
			Type      string                 `json:"type"`
			Stamp     int64                  `json:"stamp"`
			Reading   map[string]interface{} `json:"reading"`
			Anomalies []string               `json:"anomalies"`
		} `json:"readings"`
		Status   string `json:"status"`
		Severity string `json:"severity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(body.Readings) != 1 || body.Readings[0].Type != "RPM_PULSE" {
		t.Fatalf("unexpected readings %+v", body.Readings)
	}
	if body.Readings[0].Reading["ticks"] != float64(1000) {
		t.Errorf("unexpected reading %v", body.Readings[0].Reading)
	}
	if _, ok := body.Readings[0].Reading["rpm"]; !ok {
		t.Errorf("reading lacks rpm: %v", body.Readings[0].Reading)
	}
	if len(body.Readings[0].Anomalies) != 1 {
		t.Errorf("expected high RPM anomaly, got %v", body.Readings[0].Anomalies)
	}
	if body.Status != "Everything OK" || body.Severity != "info" {
		t.Errorf("unexpected status %q/%q", body.Status, body.Severity)
	}

	resp2, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET stats failed: %v", err)
	}
	defer resp2.Body.Close()
	stats, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(stats), "RPM_PULSE:") {
		t.Errorf("stats missing frame counts:\n%s", stats)
	}
}

func TestHub_LatestRejectsPost(t *testing.T) {
	h := New(zerolog.Nop())
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/latest", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHub_LatestUsesSnakeCaseFields(t *testing.T) {
	h := New(zerolog.Nop())
	stamp := time.UnixMilli(1_700_000_000_000)
	frames := [][]byte{
		rdac.EncodeFuelVoltage(rdac.FuelVoltageRecord{Flow1: 30, PulseRatio1: 65535, Volts: 792}),
		rdac.EncodeEnvironment(rdac.EnvRecord{OilPressure: 100, ManifoldPressure: 24}),
		rdac.EncodeThermocouple(rdac.ThermocoupleRecord{}),
	}
	for _, frame := range frames {
		reading, err := rdac.DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		h.Publish(&rdac.ReadingEvent{Time: stamp, Reading: reading}, nil)
	}

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/latest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Readings []struct {
			Type    string                 `json:"type"`
			Reading map[string]interface{} `json:"reading"`
		} `json:"readings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(body.Readings) != 3 {
		t.Fatalf("expected 3 readings, got %+v", body.Readings)
	}

	want := map[string][]string{
		"FUEL_VOLTAGE": {"fuel_flow", "voltage", "record"},
		"ENVIRONMENT":   {"inside_air_temp", "outside_air_temp", "cht2", "oil_temp", "oil_pressure", "voltage", "manifold_pressure"},
		"THERMOCOUPLE": {"egt", "cht"},
	}
	for _, r := range body.Readings {
		keys, ok := want[r.Type]
		if !ok {
			t.Errorf("unexpected reading type %q", r.Type)
			continue
		}
		for _, k := range keys {
			if _, ok := r.Reading[k]; !ok {
				t.Errorf("%s: missing %q in %v", r.Type, k, r.Reading)
			}
		}
		if r.Type == "FUEL_VOLTAGE" {
			record, _ := r.Reading["record"].(map[string]interface{})
			if record["pulse_ratio1"] != float64(0) || record["flow1"] != float64(30) {
				t.Errorf("unexpected record %v", record)
			}
		}
	}
}
