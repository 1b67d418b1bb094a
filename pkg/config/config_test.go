// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xbusmon.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 62500, cfg.Baud)
	require.Equal(t, xpressnet.Version(3.6), cfg.InitialVersion)
	require.Equal(t, 5*time.Millisecond, cfg.InterByteTimeout)
	require.Equal(t, UnknownFramesFail, cfg.UnknownFrames)
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.DecoderOptions().Passthrough)
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
port = " /dev/ttyUSB0 "
initial_version = 3.0
interbyte_timeout = "10ms"
unknown_frames = "Passthrough"
metrics_addr = "127.0.0.1:9108"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", cfg.Port)
	require.Equal(t, 62500, cfg.Baud)
	require.Equal(t, xpressnet.Version(3.0), cfg.InitialVersion)
	require.Equal(t, 10*time.Millisecond, cfg.InterByteTimeout)
	require.Equal(t, UnknownFramesPassthrough, cfg.UnknownFrames)
	require.Equal(t, "127.0.0.1:9108", cfg.MetricsAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.DecoderOptions().Passthrough)
}

func TestLoadDisablesTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `interbyte_timeout = "0"`))
	require.NoError(t, err)
	require.Zero(t, cfg.InterByteTimeout)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"bad duration":    `interbyte_timeout = "soon"`,
		"bad frames mode": `unknown_frames = "drop"`,
		"bad log level":   `log_level = "loud"`,
		"negative baud":   `baud = -1`,
		"version range":   `initial_version = 120.0`,
		"unknown key":     `parity = "even"`,
		"port and url":    "port = \"/dev/ttyUSB0\"\nurl = \"ws://bridge/ws\"",
		"malformed toml":  `port = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
