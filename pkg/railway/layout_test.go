// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package railway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

type recordingSink struct {
	versions []xpressnet.Version
}

func (r *recordingSink) SetVersion(v xpressnet.Version) {
	r.versions = append(r.versions, v)
}

// feed decodes frames at the given version and applies every message
func feed(t *testing.T, l *Layout, v xpressnet.Version, frames ...[]byte) []bool {
	t.Helper()
	s := xpressnet.NewStream(xpressnet.NewDecoder(nil, xpressnet.Options{}), xpressnet.WithVersion(v))
	var applied []bool
	at := time.Unix(1700000000, 0)
	for _, f := range frames {
		for _, r := range s.FeedBytes(f, at) {
			if r.Message != nil {
				applied = append(applied, l.Apply(r.Message))
			}
		}
	}
	return applied
}

func TestPowerBroadcasts(t *testing.T) {
	l := NewLayout(nil)
	require.Equal(t, PowerUnknown, l.Snapshot().Power)

	feed(t, l, 3.6, []byte{0x60, 0x61, 0x01, 0x60})
	require.Equal(t, PowerOn, l.Snapshot().Power)

	feed(t, l, 3.6, []byte{0x60, 0x81, 0x00, 0x81})
	require.Equal(t, PowerEmergencyStop, l.Snapshot().Power)

	feed(t, l, 3.6, []byte{0x60, 0x61, 0x00, 0x61})
	require.Equal(t, PowerOff, l.Snapshot().Power)
	require.Equal(t, "off", l.Snapshot().Power.String())
}

func TestStationStatus(t *testing.T) {
	l := NewLayout(nil)
	applied := feed(t, l, 3.6, []byte{0xE1, 0x62, 0x22, 0x02, 0x42})
	require.Equal(t, []bool{true}, applied)

	snap := l.Snapshot()
	require.True(t, snap.Station.HasStatus)
	require.True(t, snap.Station.Status.EmergencyStop)
	require.Equal(t, PowerEmergencyStop, snap.Power)
}

func TestSoftwareVersionNotifiesSink(t *testing.T) {
	sink := &recordingSink{}
	l := NewLayout(sink)
	feed(t, l, 3.6, []byte{0xE1, 0x63, 0x21, 0x30, 0x00, 0x72})

	snap := l.Snapshot()
	require.True(t, snap.Station.HasVersion)
	require.Equal(t, xpressnet.Version(3.0), snap.Station.Version)
	require.True(t, snap.Station.HasType)
	require.Equal(t, byte(xpressnet.StationLZ100), snap.Station.Type)
	require.Equal(t, []xpressnet.Version{3.0}, sink.versions)
}

func TestStreamAsVersionSink(t *testing.T) {
	s := xpressnet.NewStream(xpressnet.NewDecoder(nil, xpressnet.Options{}), xpressnet.WithVersion(3.6))
	l := NewLayout(s)
	at := time.Unix(1700000000, 0)
	for _, r := range s.FeedBytes([]byte{0xE1, 0x63, 0x21, 0x30, 0x00, 0x72}, at) {
		l.Apply(r.Message)
	}
	require.Equal(t, xpressnet.Version(3.0), s.Version())
}

func TestFeedbackInputs(t *testing.T) {
	l := NewLayout(nil)
	// Module 5, upper nibble, inputs 1 and 3 occupied
	feed(t, l, 3.6, []byte{0x60, 0x42, 0x05, 0x55, 0x12})

	snap := l.Snapshot()
	require.Equal(t, map[int]bool{45: true, 46: false, 47: true, 48: false}, snap.Feedback)
	require.Empty(t, snap.Switches)
}

func TestSwitchInfo(t *testing.T) {
	l := NewLayout(nil)
	feed(t, l, 3.6, []byte{0xE1, 0x42, 0x03, 0x21, 0x60})

	snap := l.Snapshot()
	require.Len(t, snap.Switches, 2)
	require.Equal(t, Left, snap.Switches[13].Position)
	require.Equal(t, NotSwitched, snap.Switches[14].Position)
	require.Equal(t, xpressnet.ReceiverSwitchFeedback, snap.Switches[13].Receiver)
	require.False(t, snap.Switches[13].Moving)
}

func TestLocoReports(t *testing.T) {
	l := NewLayout(nil)
	feed(t, l, 3.6, []byte{0xE1, 0xE4, 0x02, 0x85, 0x10, 0x00, 0x73})

	snap := l.Snapshot()
	loco, ok := snap.DeviceLocos[1]
	require.True(t, ok)
	require.Equal(t, xpressnet.SpeedSteps28, loco.SpeedSteps)
	require.True(t, loco.Forward)
	require.Equal(t, 7, loco.Speed)
	require.Equal(t, uint32(1), loco.Functions)
	require.Empty(t, snap.Locos)

	feed(t, l, 2.3, []byte{0xE1, 0x84, 0x03, 0x05, 0x10, 0x00, 0x92})
	snap = l.Snapshot()
	loco, ok = snap.Locos[3]
	require.True(t, ok)
	require.False(t, loco.Occupied)
	require.False(t, loco.Forward)
	require.Equal(t, 4, loco.Speed)
}

func TestStationErrors(t *testing.T) {
	l := NewLayout(nil)
	feed(t, l, 3.6, []byte{0xE1, 0x61, 0x80, 0xE1}, []byte{0xE1, 0x61, 0x80, 0xE1})

	snap := l.Snapshot()
	require.Equal(t, uint64(2), snap.TransmissionErrors)
	require.NotNil(t, snap.LastError)
	require.Equal(t, xpressnet.MsgTransmissionError, snap.LastError.Name)
	require.Equal(t, byte(0x80), snap.LastError.Code)
}

func TestIgnoredMessages(t *testing.T) {
	l := NewLayout(nil)
	applied := feed(t, l, 3.6,
		[]byte{0x43},                         // bare call
		[]byte{0xE1, 0x62, 0x22, 0x02, 0x00}, // bad checksum
	)
	require.Equal(t, []bool{false, false}, applied)
	require.False(t, l.Apply(nil))

	snap := l.Snapshot()
	require.Zero(t, snap.Applied)
	require.False(t, snap.Station.HasStatus)
}

func TestSnapshotIsolation(t *testing.T) {
	l := NewLayout(nil)
	feed(t, l, 3.6, []byte{0x60, 0x42, 0x05, 0x55, 0x12}, []byte{0xE1, 0x61, 0x80, 0xE1})

	snap := l.Snapshot()
	snap.Feedback[45] = false
	snap.LastError.Code = 0

	again := l.Snapshot()
	require.True(t, again.Feedback[45])
	require.Equal(t, byte(0x80), again.LastError.Code)
	require.Equal(t, uint64(2), again.Applied)
}

func TestConcurrentSnapshots(t *testing.T) {
	l := NewLayout(nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.Snapshot()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		feed(t, l, 3.6, []byte{0x60, 0x42, 0x05, 0x55, 0x12})
	}
	wg.Wait()
	require.Equal(t, uint64(100), l.Snapshot().Applied)
}
