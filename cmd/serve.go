// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/enginemonitor/rdacmon/internal/hub"
	"github.com/enginemonitor/rdacmon/internal/publish"
	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/spf13/cobra"
)

var (
	serveListen     string
	serveMQTTBroker string
	serveRetry      time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Decode the link and fan events out to WebSocket and MQTT clients",
	Long: `Decode the RDAC link continuously and republish every event.

Events are encoded as CBOR and broadcast as binary messages to WebSocket
clients connected to /ws. The latest reading of each type is available as
JSON from /api/latest and link statistics as text from /api/stats.

When an MQTT broker is configured, each event is also published under
<topic_prefix>/status or <topic_prefix>/reading/<type>.

A lost serial or WebSocket link is reopened after --retry. Replay files are
decoded once and the server keeps running until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (default from config)")
	serveCmd.Flags().StringVar(&serveMQTTBroker, "mqtt-broker", "", "MQTT broker URL (default from config)")
	serveCmd.Flags().DurationVar(&serveRetry, "retry", 2*time.Second, "Delay before reopening a lost link")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Server.ListenAddr = serveListen
	}
	if serveMQTTBroker != "" {
		cfg.MQTT.Broker = serveMQTTBroker
	}

	ctx, stop := signalContext()
	defer stop()

	limits := newLiveLimits(cfg.Limits)
	watchLimits(ctx, limits)

	h := hub.New(logger)
	handlers := []rdac.Handler{func(ev rdac.Event) {
		h.Publish(ev, limits.Validate(ev))
	}}

	if cfg.MQTT.Broker != "" {
		pub, err := publish.New(ctx, cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		handlers = append(handlers, pub.Handler())
	}

	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		runLink(ctx, handlers)
	}()

	err := hub.Serve(ctx, cfg.Server.ListenAddr, h.Handler(), logger)
	stop()
	<-linkDone
	return err
}

// runLink keeps a decoder attached to the configured link until ctx ends.
func runLink(ctx context.Context, handlers []rdac.Handler) {
	log := logger.With().Str("component", "link").Logger()

	stream := newStream()
	for _, h := range handlers {
		stream.Subscribe(h)
	}

	for {
		err := pumpOnce(ctx, stream)
		if ctx.Err() != nil {
			return
		}
		if replayPath != "" {
			log.Info().Str("file", replayPath).Msg("replay finished")
			return
		}
		log.Warn().Err(err).Dur("retry", serveRetry).Msg("link lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(serveRetry):
		}
		stream.Reset()
	}
}

// pumpOnce opens the link and decodes it until it fails.
func pumpOnce(ctx context.Context, stream *rdac.Stream) error {
	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	closeOnDone(connCtx, conn)

	logger.Info().Str("connection", connInfo).Msg("link open")
	if err := stream.Pump(connCtx, conn); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", connInfo, ErrConnectionClosed)
}
