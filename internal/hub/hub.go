// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hub fans decoded RDAC events out to WebSocket clients and keeps
// the latest reading of each type for HTTP polling.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// clientBuffer is the number of queued frames before a slow client starts
// missing events.
const clientBuffer = 64

// Hub broadcasts CBOR-encoded events to every connected WebSocket client.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	stateMu sync.RWMutex
	latest  map[rdac.MessageType]Snapshot
	status  *rdac.StatusEvent
	stats   *rdac.Statistics
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Snapshot is the JSON view of the most recent reading of one type.
type Snapshot struct {
	Type      string       `json:"type"`
	Stamp     int64        `json:"stamp"` // Unix ms
	Reading   rdac.Reading `json:"reading"`
	Anomalies []string     `json:"anomalies,omitempty"`
}

// Latest is the body of GET /api/latest.
type Latest struct {
	Readings []Snapshot `json:"readings"`
	Status   string     `json:"status,omitempty"`
	Severity string     `json:"severity,omitempty"`
	Stamp    int64      `json:"stamp"`
}

// New creates a hub with no clients.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "hub").Logger(),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		latest: make(map[rdac.MessageType]Snapshot),
		stats:  rdac.NewStatistics(),
	}
}

// Handler returns the HTTP routes served by the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/latest", h.handleLatest)
	mux.HandleFunc("/api/stats", h.handleStats)
	return mux
}

// Publish records ev and broadcasts it to all clients.
// Safe for concurrent use with the HTTP handlers.
func (h *Hub) Publish(ev rdac.Event, anomalies []rdac.ValidationError) {
	h.stateMu.Lock()
	h.stats.Update(ev, anomalies)
	switch e := ev.(type) {
	case *rdac.ReadingEvent:
		snap := Snapshot{
			Type:    rdac.FormatMessageType(e.Reading.Type()),
			Stamp:   e.Time.UnixMilli(),
			Reading: e.Reading,
		}
		for _, a := range anomalies {
			snap.Anomalies = append(snap.Anomalies, a.Message)
		}
		h.latest[e.Reading.Type()] = snap
	case *rdac.StatusEvent:
		h.status = e
	}
	h.stateMu.Unlock()

	data, err := rdac.MarshalEvent(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	h.broadcast(data)
}

// Clients returns the number of connected WebSocket clients.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.log.Info().Str("remote", r.RemoteAddr).Int("clients", total).Msg("client connected")

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine keeps control frames flowing and detects disconnects
	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, client)
			total := len(h.clients)
			h.clientsMu.Unlock()
			close(client.send)
			h.log.Info().Str("remote", r.RemoteAddr).Int("clients", total).Msg("client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.stateMu.RLock()
	body := Latest{Stamp: time.Now().UnixMilli()}
	for t := rdac.MsgFuelVoltage; t <= rdac.MsgThermocouple; t++ {
		if snap, ok := h.latest[t]; ok {
			body.Readings = append(body.Readings, snap)
		}
	}
	if h.status != nil {
		body.Status = h.status.Text
		body.Severity = h.status.Severity.String()
	}
	h.stateMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("write latest")
	}
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	h.stateMu.Lock()
	summary := h.stats.String()
	h.stateMu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(summary))
}

// Serve runs an HTTP server for handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
