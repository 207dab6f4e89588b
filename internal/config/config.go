// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads rdacmon settings from a YAML or TOML file, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/enginemonitor/rdacmon/pkg/rdac"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all rdacmon configuration.
type Config struct {
	Link    LinkConfig    `yaml:"link" toml:"link"`
	Decoder DecoderConfig `yaml:"decoder" toml:"decoder"`
	Limits  rdac.Limits   `yaml:"limits" toml:"limits"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	MQTT    MQTTConfig    `yaml:"mqtt" toml:"mqtt"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	path string
}

// LinkConfig selects the byte source. Port and URL are mutually exclusive.
type LinkConfig struct {
	Port        string `yaml:"port" toml:"port"`
	Baud        int    `yaml:"baud" toml:"baud"`
	URL         string `yaml:"url" toml:"url"`
	Username    string `yaml:"username" toml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`
}

type DecoderConfig struct {
	SyncMode  string `yaml:"sync_mode" toml:"sync_mode"`   // "preamble" or "strict"
	MaxBuffer int    `yaml:"max_buffer" toml:"max_buffer"` // bytes, 0 = unbounded
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker" toml:"broker"` // empty disables publishing
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	ClientID    string `yaml:"client_id" toml:"client_id"` // empty derives one from the machine id
	QoS         byte   `yaml:"qos" toml:"qos"`
	Retain      bool   `yaml:"retain" toml:"retain"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" or "json"
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			Baud: 9600,
		},
		Decoder: DecoderConfig{
			SyncMode:  rdac.SyncPreamble.String(),
			MaxBuffer: rdac.DefaultMaxBufferSize,
		},
		Limits: rdac.DefaultLimits(),
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "rdacmon",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns ~/.rdacmon/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".rdacmon", "config.yaml")
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// .env next to the config first, then the working directory
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SyncMode returns the parsed decoder sync mode.
func (c *Config) SyncMode() rdac.SyncMode {
	mode, _ := rdac.ParseSyncMode(c.Decoder.SyncMode)
	return mode
}

// Validate checks values that would otherwise fail later at connect time.
func (c *Config) Validate() error {
	if _, ok := rdac.ParseSyncMode(c.Decoder.SyncMode); !ok {
		return fmt.Errorf("decoder.sync_mode: unknown mode %q", c.Decoder.SyncMode)
	}
	if c.Decoder.MaxBuffer != 0 && c.Decoder.MaxBuffer < rdac.MaxFrameSize {
		return fmt.Errorf("decoder.max_buffer: %d is smaller than a frame (%d)", c.Decoder.MaxBuffer, rdac.MaxFrameSize)
	}
	if c.Link.Baud <= 0 {
		return fmt.Errorf("link.baud: must be positive, got %d", c.Link.Baud)
	}
	if c.Link.Port != "" && c.Link.URL != "" {
		return fmt.Errorf("link: port and url are mutually exclusive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos: must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Variables already present in the environment win.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: RDAC_PORT, RDAC_BAUD, RDAC_URL, RDAC_USERNAME, RDAC_SYNC_MODE,
// LISTEN_ADDR, MQTT_BROKER, MQTT_TOPIC_PREFIX, LOG_LEVEL, LOG_FORMAT
//
// RDAC_PORT and RDAC_URL each replace the whole link, so the other field from
// the file is cleared. Setting both is reported by Validate.
func (c *Config) applyEnvOverrides() {
	port, url := os.Getenv("RDAC_PORT"), os.Getenv("RDAC_URL")
	if port != "" || url != "" {
		c.Link.Port, c.Link.URL = port, url
	}
	if v := os.Getenv("RDAC_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Link.Baud = n
		}
	}
	if v := os.Getenv("RDAC_USERNAME"); v != "" {
		c.Link.Username = v
	}
	if v := os.Getenv("RDAC_SYNC_MODE"); v != "" {
		c.Decoder.SyncMode = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_TOPIC_PREFIX"); v != "" {
		c.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// isTOML reports whether path selects the TOML format. Anything else is YAML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, data []byte, v interface{}) error {
	if isTOML(path) {
		return toml.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func marshal(path string, v interface{}) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(v)
	}
	return yaml.Marshal(v)
}

// Save writes the config to its file in the format its extension selects,
// creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	data, err := marshal(c.path, c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}

// LoadLimits reads only the limits section of a config file, starting from
// the defaults. Used by the watcher on reload.
func LoadLimits(path string) (rdac.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rdac.Limits{}, fmt.Errorf("read config: %w", err)
	}
	var partial struct {
		Limits rdac.Limits `yaml:"limits" toml:"limits"`
	}
	partial.Limits = rdac.DefaultLimits()
	if err := unmarshal(path, data, &partial); err != nil {
		return rdac.Limits{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return partial.Limits, nil
}
