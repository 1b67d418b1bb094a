// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/config"
	"github.com/Thermoquad/xbusmon/pkg/logging"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Runtime flags
	configPath  string
	logLevel    string
	versionHint string

	// Resolved settings, set by loadSettings before every command
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "xbusmon",
	Short: "XpressNet Bus Monitor",
	Long: `xbusmon - A CLI tool for monitoring and analyzing XpressNet model railway bus traffic.

Decodes the byte stream between a command station and its throttles and
accessory decoders, reports checksum, parity and framing errors, and tracks
the layout state the command station announces.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 62500]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a TOML file given with --config. Flags that are
set explicitly override the file.

For WebSocket authentication, the password is read from the XBUSMON_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&versionHint, "version-hint", "", "Protocol version assumed until the command station reports one (e.g. 3.6)")
}

// loadSettings merges defaults, the config file and explicit flags, then
// builds the logger
func loadSettings(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Port = portName
	}
	if flags.Changed("baud") {
		c.Baud = baudRate
	}
	if flags.Changed("url") {
		c.URL = wsURL
	}
	if flags.Changed("username") {
		c.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("version-hint") {
		v, err := xpressnet.ParseVersion(versionHint)
		if err != nil {
			return fmt.Errorf("invalid --version-hint: %w", err)
		}
		c.InitialVersion = v
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.New(logging.Options{Level: c.LogLevel, NoColor: c.LogNoColor})
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
// The log level may also be set with the XBUSMON_LOG_LEVEL environment variable.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
