// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/xbusmon/pkg/railway"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

func TestParseHexArgs(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []byte
	}{
		{"separate", []string{"E1", "62", "22", "00", "40"}, []byte{0xE1, 0x62, 0x22, 0x00, 0x40}},
		{"joined", []string{"60610160"}, []byte{0x60, 0x61, 0x01, 0x60}},
		{"prefixed list", []string{"0xE1,0x62,0x21,0x23,0x60"}, []byte{0xE1, 0x62, 0x21, 0x23, 0x60}},
		{"single digits", []string{"60", "61", "1", "60"}, []byte{0x60, 0x61, 0x01, 0x60}},
		{"colons", []string{"e1:61:80:e1"}, []byte{0xE1, 0x61, 0x80, 0xE1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseHexArgs(tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := parseHexArgs([]string{"zz"})
	require.Error(t, err)
	_, err = parseHexArgs([]string{","})
	require.Error(t, err)
}

func TestCatalogYAML(t *testing.T) {
	entries := catalogEntries(xpressnet.DefaultCatalog().All())
	require.Len(t, entries, xpressnet.DefaultCatalog().Len())

	var buf bytes.Buffer
	require.NoError(t, writeCatalogYAML(&buf, entries))

	var parsed catalogFile
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &parsed))
	require.Equal(t, "xpressnet", parsed.Protocol)
	require.Equal(t, entries, parsed.Definitions)

	byName := map[string]catalogEntry{}
	for _, e := range parsed.Definitions {
		byName[e.Name] = e
	}
	feedback := byName[xpressnet.MsgBroadcastFeedbackExtended.String()]
	require.Equal(t, "0100----", feedback.Header)
	require.Equal(t, "N", feedback.Data)
	require.Equal(t, "broadcast", feedback.Scope)
	require.Equal(t, "3.6+", feedback.Versions)

	poll := byName[xpressnet.MsgFeedbackPoll.String()]
	require.Empty(t, poll.Header)
	require.False(t, poll.Checksum)
}

func TestCatalogTable(t *testing.T) {
	out := renderCatalogTable(catalogEntries(xpressnet.DefaultCatalog().All()))
	require.True(t, strings.Contains(out, "IDENTIFIER"))
	require.True(t, strings.Contains(out, xpressnet.MsgStateLZ.String()))
}

func TestMonitorWaitsForSync(t *testing.T) {
	mon := newMonitor(true)
	at := time.Unix(1700000000, 0)

	// A corrupted call, a feedback poll, then a complete broadcast
	events := mon.feed([]byte{0x22, 0xA0, 0x60, 0x61, 0x01, 0x60}, at)
	require.Len(t, events, 1)
	require.True(t, events[0].synced)
	require.Equal(t, 1, events[0].skipped)
	require.Equal(t, xpressnet.MsgBroadcastAllOn, events[0].result.Message.Name())

	// After sync every result is reported
	events = mon.feed([]byte{0xC1}, at)
	require.Len(t, events, 1)
	require.Error(t, events[0].result.Err)
	require.Equal(t, uint64(1), mon.stats.ParityErrors)
	require.Equal(t, railway.PowerOn, mon.layout.Snapshot().Power)
}

func TestMonitorFeedsVersionBack(t *testing.T) {
	mon := newMonitor(false)
	at := time.Unix(1700000000, 0)
	require.Equal(t, cfg.InitialVersion, mon.stream.Version())

	mon.feed([]byte{0xE1, 0x63, 0x21, 0x30, 0x00, 0x72}, at)
	require.Equal(t, xpressnet.Version(3.0), mon.stream.Version())
}

func TestFormatElapsed(t *testing.T) {
	require.Equal(t, "0 seconds", formatElapsed(0))
	require.Equal(t, "1 second", formatElapsed(time.Second))
	require.Equal(t, "2 minutes and 5 seconds", formatElapsed(125*time.Second))
	require.Equal(t, "1 day, 1 hour, and 1 minute", formatElapsed(25*time.Hour+time.Minute))
}

func TestFormatLayout(t *testing.T) {
	mon := newMonitor(false)
	at := time.Unix(1700000000, 0)
	mon.feed([]byte{0xE1, 0x42, 0x03, 0x21, 0x60, 0xE1, 0x61, 0x80, 0xE1}, at)

	out := formatLayout(mon.layout.Snapshot())
	require.True(t, strings.Contains(out, "Switch   13: left"))
	require.True(t, strings.Contains(out, "Transmission errors: 1"))
}

func TestModelHandlesEvents(t *testing.T) {
	m := initialModel("Serial: test", false, xpressnet.DefaultVersion)
	mon := newMonitor(true)
	at := time.Unix(1700000000, 0)

	for _, ev := range mon.feed([]byte{0x60, 0x61, 0x01, 0x60, 0xE1, 0x62, 0x22, 0x02, 0x00}, at) {
		next, _ := m.Update(busDataMsg{event: ev})
		m = next.(model)
	}
	next, _ := m.Update(layoutMsg{state: mon.layout.Snapshot(), version: mon.stream.Version()})
	m = next.(model)

	require.True(t, m.synchronized)
	require.Equal(t, uint64(2), m.stats.TotalFrames)
	require.Equal(t, uint64(1), m.stats.ChecksumErrors)
	require.NotNil(t, m.layout)

	view := m.View()
	require.True(t, strings.Contains(view, "Synchronized"))
	require.True(t, strings.Contains(view, "Power:"))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.True(t, next.(model).quitting)
	require.NotNil(t, cmd)
}

func TestReadChunks(t *testing.T) {
	conn := io.NopCloser(bytes.NewReader([]byte{0x60, 0x61, 0x01, 0x60}))
	chunks, errc := readChunks(context.Background(), conn)

	var got []byte
	for c := range chunks {
		require.False(t, c.at.IsZero())
		got = append(got, c.data...)
	}
	require.Equal(t, []byte{0x60, 0x61, 0x01, 0x60}, got)
	require.ErrorIs(t, <-errc, io.EOF)
	require.NoError(t, readError(context.Background(), closedErr(io.EOF)))
}

func TestReadChunksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errc := readChunks(ctx, io.NopCloser(bytes.NewReader(nil)))
	require.ErrorIs(t, <-errc, context.Canceled)
}

func closedErr(err error) <-chan error {
	c := make(chan error, 1)
	c <- err
	return c
}

func TestReadErrorReportsFailures(t *testing.T) {
	err := readError(context.Background(), closedErr(io.ErrUnexpectedEOF))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMonitorSwitchesVersionMidChunk(t *testing.T) {
	mon := newMonitor(false)
	at := time.Unix(1700000000, 0)

	// A v3.0 version report followed by a function state reply that needs 3.6
	events := mon.feed([]byte{
		0xE1, 0x63, 0x21, 0x30, 0x00, 0x72,
		0xE1, 0xE3, 0x52, 0x00, 0x00, 0xB1,
	}, at)
	require.Len(t, events, 2)
	require.NoError(t, events[0].result.Err)
	require.Equal(t, xpressnet.MsgSoftwareVersionReport30, events[0].result.Message.Name())
	require.ErrorIs(t, events[1].result.Err, xpressnet.ErrNoMatchingDefinition)
	require.Equal(t, xpressnet.Version(3.0), mon.stream.Version())
}

func TestMonitorVersionHintForOldStations(t *testing.T) {
	saved := cfg.InitialVersion
	t.Cleanup(func() { cfg.InitialVersion = saved })
	frame := []byte{0xE1, 0x62, 0x21, 0x23, 0x60}
	at := time.Unix(1700000000, 0)

	// Version 2.3 reports are outside the default version range
	events := newMonitor(false).feed(frame, at)
	require.Len(t, events, 1)
	require.ErrorIs(t, events[0].result.Err, xpressnet.ErrNoMatchingDefinition)

	cfg.InitialVersion = 2.3
	mon := newMonitor(false)
	events = mon.feed(frame, at)
	require.Len(t, events, 1)
	require.NoError(t, events[0].result.Err)
	require.Equal(t, xpressnet.MsgSoftwareVersionReport23, events[0].result.Message.Name())
	require.Equal(t, xpressnet.Version(2.3), mon.layout.Snapshot().Station.Version)
}
