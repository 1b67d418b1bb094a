// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package railway accumulates decoded bus messages into a model of the
// layout: track power, command station, switches, feedback inputs and
// locomotives.
package railway

import (
	"sync"
	"time"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

// VersionSink receives the command station version when it is reported
type VersionSink interface {
	SetVersion(v xpressnet.Version)
}

// Power is the track power state announced by broadcasts
type Power int

// Power states
const (
	PowerUnknown Power = iota
	PowerOn
	PowerOff           // emergency off, track voltage removed
	PowerEmergencyStop // all locomotives stopped, track voltage on
	PowerProgramming
)

// String returns the power state name
func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	case PowerEmergencyStop:
		return "emergency stop"
	case PowerProgramming:
		return "programming"
	default:
		return "unknown"
	}
}

// SwitchPosition is the reported position of a turnout
type SwitchPosition int

// Switch positions (two bits per switch in a feedback nibble)
const (
	NotSwitched SwitchPosition = iota
	Left
	Right
	Invalid
)

// String returns the position name
func (p SwitchPosition) String() string {
	switch p {
	case NotSwitched:
		return "not switched"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "invalid"
	}
}

// Switch is the state of one turnout
type Switch struct {
	Address  int
	Position SwitchPosition
	Moving   bool
	Receiver xpressnet.ReceiverType
}

// Station is what is known about the command station
type Station struct {
	Version    xpressnet.Version
	HasVersion bool
	Type       byte
	HasType    bool
	Status     xpressnet.Status
	HasStatus  bool
}

// StationError is the last error reported by the command station
type StationError struct {
	Name xpressnet.MessageName
	Code byte
	At   time.Time
}

// State is a snapshot of the layout
type State struct {
	Power              Power
	Station            Station
	Switches           map[int]Switch
	Feedback           map[int]bool
	Locos              map[uint16]xpressnet.Loco // reports that carry the loco address
	DeviceLocos        map[uint8]xpressnet.Loco  // last loco info sent to each bus device
	LastError          *StationError
	TransmissionErrors uint64
	Applied            uint64
	LastUpdate         time.Time
}

// Layout accumulates messages into State. It is safe for one writer and any
// number of concurrent readers.
type Layout struct {
	mu    sync.RWMutex
	state State
	sink  VersionSink
}

// NewLayout creates an empty layout. sink may be nil.
func NewLayout(sink VersionSink) *Layout {
	return &Layout{
		state: State{
			Switches:    make(map[int]Switch),
			Feedback:    make(map[int]bool),
			Locos:       make(map[uint16]xpressnet.Loco),
			DeviceLocos: make(map[uint8]xpressnet.Loco),
		},
		sink: sink,
	}
}

// Apply updates the layout from one message. Messages with an invalid
// checksum and bare calls are ignored. It reports whether the message
// changed the layout.
func (l *Layout) Apply(m *xpressnet.Message) bool {
	if m == nil || m.IsBare() || !m.ChecksumValid() {
		return false
	}

	l.mu.Lock()
	applied, version := l.apply(m)
	if applied {
		l.state.Applied++
		l.state.LastUpdate = m.Timestamp()
	}
	l.mu.Unlock()

	// Outside the lock: the sink may call back into readers
	if version != nil && l.sink != nil {
		l.sink.SetVersion(*version)
	}
	return applied
}

func (l *Layout) apply(m *xpressnet.Message) (bool, *xpressnet.Version) {
	s := &l.state
	switch m.Name() {
	case xpressnet.MsgBroadcastAllOn:
		s.Power = PowerOn
	case xpressnet.MsgBroadcastAllOff:
		s.Power = PowerOff
	case xpressnet.MsgBroadcastAllLocoOff:
		s.Power = PowerEmergencyStop
	case xpressnet.MsgBroadcastProgrammingMode:
		s.Power = PowerProgramming

	case xpressnet.MsgSoftwareVersionReport23, xpressnet.MsgSoftwareVersionReport30:
		info, err := xpressnet.SoftwareVersion(m)
		if err != nil {
			return false, nil
		}
		s.Station.Version = info.Version
		s.Station.HasVersion = true
		if info.HasType {
			s.Station.Type = info.StationType
			s.Station.HasType = true
		}
		return true, &info.Version

	case xpressnet.MsgStateLZ:
		st, err := xpressnet.StationStatus(m)
		if err != nil {
			return false, nil
		}
		s.Station.Status = st
		s.Station.HasStatus = true
		switch {
		case st.EmergencyOff:
			s.Power = PowerOff
		case st.EmergencyStop:
			s.Power = PowerEmergencyStop
		case st.ServiceMode:
			s.Power = PowerProgramming
		default:
			s.Power = PowerOn
		}

	case xpressnet.MsgBroadcastFeedback, xpressnet.MsgBroadcastFeedbackExtended, xpressnet.MsgSwitchInfo:
		pairs, err := xpressnet.FeedbackPairs(m)
		if err != nil {
			return false, nil
		}
		for _, p := range pairs {
			l.applyPair(p)
		}

	case xpressnet.MsgLocoInfoNormalV30:
		loco, err := xpressnet.LocoInfo(m)
		if err != nil {
			return false, nil
		}
		s.DeviceLocos[m.Address()] = loco

	case xpressnet.MsgLocoFreeV15, xpressnet.MsgLocoOccupiedV15, xpressnet.MsgLocoFreeV23, xpressnet.MsgLocoOccupiedV23:
		loco, err := xpressnet.LocoInfo(m)
		if err != nil {
			return false, nil
		}
		s.Locos[loco.Address] = loco
		s.DeviceLocos[m.Address()] = loco

	case xpressnet.MsgTransmissionError:
		s.TransmissionErrors++
		l.setError(m)
	case xpressnet.MsgLZBusy, xpressnet.MsgCommandNotFound, xpressnet.MsgLZErrorsV30:
		l.setError(m)

	default:
		return false, nil
	}
	return true, nil
}

// applyPair stores one feedback address/info pair. Switch receivers carry two
// turnouts per nibble, feedback modules four inputs.
func (l *Layout) applyPair(p xpressnet.FeedbackPair) {
	switch p.Type {
	case xpressnet.ReceiverSwitchNoFeedback, xpressnet.ReceiverSwitchFeedback:
		base := p.Group()*2 + 1
		for i := 0; i < 2; i++ {
			addr := base + i
			l.state.Switches[addr] = Switch{
				Address:  addr,
				Position: SwitchPosition((p.States >> (2 * i)) & 0x03),
				Moving:   p.Moving,
				Receiver: p.Type,
			}
		}
	case xpressnet.ReceiverFeedbackModule:
		base := p.Group()*4 + 1
		for i := 0; i < 4; i++ {
			l.state.Feedback[base+i] = p.States&(1<<i) != 0
		}
	}
}

func (l *Layout) setError(m *xpressnet.Message) {
	code, err := xpressnet.ErrorCode(m)
	if err != nil {
		return
	}
	l.state.LastError = &StationError{Name: m.Name(), Code: code, At: m.Timestamp()}
}

// Snapshot returns a deep copy of the current state
func (l *Layout) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.state
	s.Switches = make(map[int]Switch, len(l.state.Switches))
	for k, v := range l.state.Switches {
		s.Switches[k] = v
	}
	s.Feedback = make(map[int]bool, len(l.state.Feedback))
	for k, v := range l.state.Feedback {
		s.Feedback[k] = v
	}
	s.Locos = make(map[uint16]xpressnet.Loco, len(l.state.Locos))
	for k, v := range l.state.Locos {
		s.Locos[k] = v
	}
	s.DeviceLocos = make(map[uint8]xpressnet.Loco, len(l.state.DeviceLocos))
	for k, v := range l.state.DeviceLocos {
		s.DeviceLocos[k] = v
	}
	if l.state.LastError != nil {
		e := *l.state.LastError
		s.LastError = &e
	}
	return s
}
