// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/enginemonitor/rdacmon/internal/config"
	"github.com/enginemonitor/rdacmon/internal/logging"
	"github.com/enginemonitor/rdacmon/pkg/rdac"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Capture replay
	replayPath string

	// Decoder and logging flags
	syncMode  string
	logLevel  string
	logFormat string
)

// Resolved by the root PersistentPreRunE before any command runs
var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rdacmon",
	Short: "RDAC engine telemetry link monitor",
	Long: `rdacmon - A CLI tool for decoding and monitoring the RDAC engine-sensor
serial link.

Provides commands for raw frame logging, link error detection, connectivity
checks, event fan-out to WebSocket and MQTT clients and a frame simulator.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]
  Replay:    --replay capture.bin

Settings are read from ~/.rdacmon/config.yaml (override with --config), then
from .env files and RDAC_* environment variables. Explicit flags win.

For WebSocket authentication, the password is read from the RDAC_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&replayPath, "replay", "", "Decode a raw capture file instead of a live link")

	rootCmd.PersistentFlags().StringVar(&syncMode, "sync-mode", "", "Frame start matching: preamble or strict")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console or json)")
}

// loadSettings reads the config file and lets explicitly set flags override it.
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	// An explicit link flag replaces whichever link the file selected
	if flags.Changed("port") {
		loaded.Link.Port = portName
		loaded.Link.URL = ""
	}
	if flags.Changed("baud") {
		loaded.Link.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.Link.URL = wsURL
		loaded.Link.Port = ""
	}
	if flags.Changed("username") {
		loaded.Link.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.Link.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("sync-mode") {
		loaded.Decoder.SyncMode = syncMode
	}
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Logging.Format = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	logger, err = logging.New(loaded.Logging.Level, loaded.Logging.Format, os.Stderr)
	if err != nil {
		return err
	}
	cfg = loaded
	logger.Debug().Str("config", configPath).Str("sync_mode", cfg.SyncMode().String()).Msg("settings loaded")
	return nil
}

// newStream creates a decoder stream configured from the loaded settings.
func newStream() *rdac.Stream {
	return rdac.NewStream(
		rdac.WithSyncMode(cfg.SyncMode()),
		rdac.WithMaxBuffer(cfg.Decoder.MaxBuffer),
	)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func exitf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}
