// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/Thermoquad/xbusmon/pkg/busmetrics"
	"github.com/Thermoquad/xbusmon/pkg/railway"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

// busEvent is one decode result after sync tracking
type busEvent struct {
	result    xpressnet.Result
	anomalies []xpressnet.ValidationError
	synced    bool // this result synchronized the monitor
	skipped   int  // decode errors dropped before sync, set with synced
}

// monitor decodes bus bytes and keeps statistics and the layout model.
// Decode errors before the first valid framed message are dropped when
// waitForSync is set: they come from joining the bus mid-frame.
type monitor struct {
	stream      *xpressnet.Stream
	layout      *railway.Layout
	stats       *xpressnet.Statistics
	waitForSync bool
	synced      bool
	skipped     int
}

func newMonitor(waitForSync bool) *monitor {
	m := &monitor{
		stats:       xpressnet.NewStatistics(),
		waitForSync: waitForSync,
	}
	m.stream = xpressnet.NewStream(
		xpressnet.NewDecoder(nil, cfg.DecoderOptions()),
		xpressnet.WithVersion(cfg.InitialVersion),
		xpressnet.WithInterByteTimeout(cfg.InterByteTimeout),
		xpressnet.WithLogger(logger),
	)
	m.layout = railway.NewLayout(m)
	busmetrics.SetProtocolVersion(cfg.InitialVersion)
	return m
}

// SetVersion forwards the reported station version to the stream
func (m *monitor) SetVersion(v xpressnet.Version) {
	m.stream.SetVersion(v)
	busmetrics.SetProtocolVersion(v)
}

// feed decodes a chunk received at the given time. Each result is applied
// to the layout before the next byte, so a version report switches the
// decoder for the rest of the chunk.
func (m *monitor) feed(data []byte, at time.Time) []busEvent {
	busmetrics.RecordBytes(len(data))
	var out []busEvent
	for _, b := range data {
		msg, err := m.stream.Feed(b, at)
		if msg == nil && err == nil {
			continue
		}
		if ev, ok := m.handle(xpressnet.Result{Message: msg, Err: err}); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (m *monitor) handle(r xpressnet.Result) (busEvent, bool) {
	if m.waitForSync && !m.synced {
		if r.Err != nil || r.Message == nil || r.Message.IsBare() {
			if r.Err != nil {
				m.skipped++
			}
			return busEvent{}, false
		}
	}

	ev := busEvent{result: r}
	if m.waitForSync && !m.synced {
		m.synced = true
		ev.synced = true
		ev.skipped = m.skipped
	}

	if r.Message != nil {
		ev.anomalies = xpressnet.ValidateMessage(r.Message)
		m.layout.Apply(r.Message)
	}
	m.stats.Update(r.Message, r.Err, ev.anomalies)
	busmetrics.RecordResult(r, ev.anomalies)
	return ev, true
}

// serveMetrics exposes the metrics endpoint when metrics_addr is set
func serveMetrics(ctx context.Context) {
	if cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := busmetrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
		}
	}()
}
