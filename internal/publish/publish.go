// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards decoded RDAC events to an MQTT broker.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/enginemonitor/rdacmon/internal/config"
	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/rs/zerolog"
)

const (
	appID          = "rdacmon"
	publishTimeout = 2 * time.Second

	// queueSize is the number of encoded events held while the broker is
	// slow. Events beyond it are dropped.
	queueSize = 256
)

// publishClient is the subset of paho.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher sends CBOR-encoded events to per-kind topics.
type Publisher struct {
	client publishClient
	prefix string
	qos    byte
	retain bool
	log    zerolog.Logger

	queue     chan outgoing
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

type outgoing struct {
	topic   string
	payload []byte
}

// ClientOptions builds paho options from the broker URL. mqtt:// and bare
// host:port are treated as tcp://; credentials in the URL are applied.
func ClientOptions(cfg config.MQTTConfig) (*paho.ClientOptions, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	u, err := url.Parse(broker)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("broker url %q has no host", cfg.Broker)
	}
	scheme := u.Scheme
	if scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetClientID(ClientID(cfg.ClientID))
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	return opts, nil
}

// ClientID returns configured if set, otherwise an id derived from the
// machine id so restarts reuse the same broker session.
func ClientID(configured string) string {
	if configured != "" {
		return configured
	}
	if id, err := machineid.ProtectedID(appID); err == nil && len(id) >= 12 {
		return appID + "-" + id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return appID + "-" + host
	}
	return appID
}

// New connects to the broker described by cfg.
func New(ctx context.Context, cfg config.MQTTConfig, log zerolog.Logger) (*Publisher, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("component", "mqtt").Logger()
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("connection lost")
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("connected")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	for !token.WaitTimeout(100 * time.Millisecond) {
		if ctx.Err() != nil {
			client.Disconnect(0)
			return nil, ctx.Err()
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return newPublisher(client, cfg, log), nil
}

func newPublisher(client publishClient, cfg config.MQTTConfig, log zerolog.Logger) *Publisher {
	p := &Publisher{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
		queue:  make(chan outgoing, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// run drains the queue until Close.
func (p *Publisher) run() {
	defer close(p.done)
	for m := range p.queue {
		if err := p.send(m.topic, m.payload); err != nil {
			p.log.Warn().Err(err).Msg("publish failed")
		}
	}
}

// Topic returns the topic an event is published on:
// <prefix>/status or <prefix>/reading/<type>.
func Topic(prefix string, ev rdac.Event) string {
	suffix := "status"
	if re, ok := ev.(*rdac.ReadingEvent); ok {
		suffix = "reading/" + strings.ToLower(rdac.FormatMessageType(re.Reading.Type()))
	}
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// Publish encodes ev and sends it, waiting briefly for the broker.
func (p *Publisher) Publish(ev rdac.Event) error {
	payload, err := rdac.MarshalEvent(ev)
	if err != nil {
		return err
	}
	return p.send(Topic(p.prefix, ev), payload)
}

func (p *Publisher) send(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Handler returns an rdac.Handler that queues every event for the
// background sender. It never waits on the broker; when the queue is
// full the event is dropped and counted. Do not call it after Close.
func (p *Publisher) Handler() rdac.Handler {
	return func(ev rdac.Event) {
		payload, err := rdac.MarshalEvent(ev)
		if err != nil {
			p.log.Error().Err(err).Msg("encode event")
			return
		}
		select {
		case p.queue <- outgoing{Topic(p.prefix, ev), payload}:
		default:
			if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
				p.log.Warn().Uint64("dropped", n).Msg("broker too slow, dropping events")
			}
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close flushes the queue for at most publishTimeout, then disconnects
// from the broker.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		select {
		case <-p.done:
		case <-time.After(publishTimeout):
			p.log.Warn().Int("pending", len(p.queue)).Msg("flush timed out")
		}
		p.client.Disconnect(250)
	})
}
