// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewWritesConsoleLines(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", NoColor: true, Writer: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("port", "/dev/ttyUSB0").Msg("connected")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "connected")
	require.Contains(t, out, "app=xbusmon")
	require.Contains(t, out, "port=/dev/ttyUSB0")
}

func TestNewEnvironmentOverride(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", NoColor: true, Writer: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("visible")
	require.Contains(t, buf.String(), "visible")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}
