// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the xbusmon TOML configuration file
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/xbusmon/pkg/logging"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

// XpressNet line settings
const (
	DefaultBaud             = 62500
	DefaultInterByteTimeout = 5 * time.Millisecond
)

// Unknown frame handling
const (
	UnknownFramesFail        = "fail"
	UnknownFramesPassthrough = "passthrough"
)

// Config holds the runtime settings of the monitor
type Config struct {
	Port             string
	Baud             int
	URL              string
	Username         string
	NoSSLVerify      bool
	InitialVersion   xpressnet.Version
	InterByteTimeout time.Duration
	UnknownFrames    string
	LogLevel         string
	LogNoColor       bool
	MetricsAddr      string
}

type fileConfig struct {
	Port             string  `toml:"port"`
	Baud             int     `toml:"baud"`
	URL              string  `toml:"url"`
	Username         string  `toml:"username"`
	NoSSLVerify      bool    `toml:"no_ssl_verify"`
	InitialVersion   float64 `toml:"initial_version"`
	InterByteTimeout string  `toml:"interbyte_timeout"`
	UnknownFrames    string  `toml:"unknown_frames"`
	LogLevel         string  `toml:"log_level"`
	LogNoColor       bool    `toml:"log_no_color"`
	MetricsAddr      string  `toml:"metrics_addr"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Baud:             DefaultBaud,
		InitialVersion:   xpressnet.DefaultVersion,
		InterByteTimeout: DefaultInterByteTimeout,
		UnknownFrames:    UnknownFramesFail,
		LogLevel:         "info",
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("no_ssl_verify") {
		cfg.NoSSLVerify = raw.NoSSLVerify
	}
	if meta.IsDefined("initial_version") {
		v, err := xpressnet.ParseVersion(fmt.Sprintf("%.1f", raw.InitialVersion))
		if err != nil {
			return Config{}, fmt.Errorf("parse initial_version: %w", err)
		}
		cfg.InitialVersion = v
	}
	if meta.IsDefined("interbyte_timeout") {
		s := strings.TrimSpace(raw.InterByteTimeout)
		if s == "0" {
			cfg.InterByteTimeout = 0
		} else {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, fmt.Errorf("parse interbyte_timeout: %w", err)
			}
			cfg.InterByteTimeout = d
		}
	}
	if meta.IsDefined("unknown_frames") {
		cfg.UnknownFrames = strings.ToLower(strings.TrimSpace(raw.UnknownFrames))
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_no_color") {
		cfg.LogNoColor = raw.LogNoColor
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings for consistency
func (c Config) Validate() error {
	var errs []error
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if c.InterByteTimeout < 0 {
		errs = append(errs, fmt.Errorf("interbyte_timeout must not be negative, got %s", c.InterByteTimeout))
	}
	if c.InitialVersion < xpressnet.VersionMin || c.InitialVersion > xpressnet.VersionMax {
		errs = append(errs, fmt.Errorf("initial_version %s out of range", c.InitialVersion))
	}
	switch c.UnknownFrames {
	case UnknownFramesFail, UnknownFramesPassthrough:
	default:
		errs = append(errs, fmt.Errorf("unknown_frames must be %q or %q, got %q",
			UnknownFramesFail, UnknownFramesPassthrough, c.UnknownFrames))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Port != "" && c.URL != "" {
		errs = append(errs, errors.New("port and url are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// DecoderOptions returns the decoder options selected by the settings
func (c Config) DecoderOptions() xpressnet.Options {
	return xpressnet.Options{Passthrough: c.UnknownFrames == UnknownFramesPassthrough}
}
