// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"fmt"
)

// Payload view errors
var (
	ErrWrongMessage  = errors.New("xpressnet: message does not carry this payload")
	ErrShortPayload  = errors.New("xpressnet: payload too short")
	ErrOddPairCount  = errors.New("xpressnet: feedback payload has an odd byte count")
	ErrInvalidStatus = errors.New("xpressnet: invalid payload value")
)

// SoftwareInfo is the content of a software version report
type SoftwareInfo struct {
	Version     Version
	StationType byte
	HasType     bool // false for reports before 3.0
}

// SoftwareVersion decodes SOFTWARE_VERSION_V23 and SOFTWARE_VERSION_V30
func SoftwareVersion(m *Message) (SoftwareInfo, error) {
	switch m.Name() {
	case MsgSoftwareVersionReport23, MsgSoftwareVersionReport30:
	default:
		return SoftwareInfo{}, fmt.Errorf("%w: %s", ErrWrongMessage, m.Name())
	}
	p := m.Payload()
	if len(p) < 1 {
		return SoftwareInfo{}, ErrShortPayload
	}
	v, err := VersionFromBCD(p[0])
	if err != nil {
		return SoftwareInfo{}, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	info := SoftwareInfo{Version: v}
	if m.Name() == MsgSoftwareVersionReport30 && len(p) >= 2 {
		info.StationType = p[1]
		info.HasType = true
	}
	return info, nil
}

// StationTypeName returns a readable station type
func StationTypeName(t byte) string {
	switch t {
	case StationLZ100:
		return "LZ100"
	case StationLH200:
		return "LH200"
	case StationDPC:
		return "DPC"
	case StationLZV100:
		return "LZV100"
	default:
		return fmt.Sprintf("unknown(0x%02X)", t)
	}
}

// Station status bits (STATE_LZ data byte)
const (
	statusEmergencyOff  = 0x01
	statusEmergencyStop = 0x02
	statusManualStart   = 0x04
	statusServiceMode   = 0x08
	statusPowerUp       = 0x40
	statusRAMError      = 0x80
)

// Status is the command station status
type Status struct {
	EmergencyOff  bool
	EmergencyStop bool
	ManualStart   bool
	ServiceMode   bool
	PoweringUp    bool
	RAMError      bool
}

// StationStatus decodes STATE_LZ
func StationStatus(m *Message) (Status, error) {
	if m.Name() != MsgStateLZ {
		return Status{}, fmt.Errorf("%w: %s", ErrWrongMessage, m.Name())
	}
	p := m.Payload()
	if len(p) < 1 {
		return Status{}, ErrShortPayload
	}
	s := p[0]
	return Status{
		EmergencyOff:  s&statusEmergencyOff != 0,
		EmergencyStop: s&statusEmergencyStop != 0,
		ManualStart:   s&statusManualStart != 0,
		ServiceMode:   s&statusServiceMode != 0,
		PoweringUp:    s&statusPowerUp != 0,
		RAMError:      s&statusRAMError != 0,
	}, nil
}

// ReceiverType is the kind of device behind a feedback address
type ReceiverType uint8

// Receiver types (TT bits of a feedback info byte)
const (
	ReceiverSwitchNoFeedback ReceiverType = iota
	ReceiverSwitchFeedback
	ReceiverFeedbackModule
	ReceiverReserved
)

// String returns the receiver type name
func (r ReceiverType) String() string {
	switch r {
	case ReceiverSwitchNoFeedback:
		return "switch"
	case ReceiverSwitchFeedback:
		return "switch+feedback"
	case ReceiverFeedbackModule:
		return "feedback"
	default:
		return "reserved"
	}
}

// FeedbackPair is one address/info pair of a feedback message.
// The info byte is laid out as I TT N ZZZZ.
type FeedbackPair struct {
	Address     byte
	Moving      bool // I: switch has not reached its end position
	Type        ReceiverType
	UpperNibble bool // N: States covers inputs 5-8 instead of 1-4
	States      byte // ZZZZ
}

// Group returns the base index of the four inputs or the two switches the
// pair describes
func (p FeedbackPair) Group() int {
	g := int(p.Address) * 2
	if p.UpperNibble {
		g++
	}
	return g
}

// FeedbackPairs decodes BC_FEEDBACK, BC_FEEDBACK_EXTENDED and SWITCH_INFO
func FeedbackPairs(m *Message) ([]FeedbackPair, error) {
	switch m.Name() {
	case MsgBroadcastFeedback, MsgBroadcastFeedbackExtended, MsgSwitchInfo:
	default:
		return nil, fmt.Errorf("%w: %s", ErrWrongMessage, m.Name())
	}
	p := m.Payload()
	if len(p)%2 != 0 {
		return nil, ErrOddPairCount
	}
	pairs := make([]FeedbackPair, 0, len(p)/2)
	for i := 0; i+1 < len(p); i += 2 {
		info := p[i+1]
		pairs = append(pairs, FeedbackPair{
			Address:     p[i],
			Moving:      info&0x80 != 0,
			Type:        ReceiverType((info >> 5) & 0x03),
			UpperNibble: info&0x10 != 0,
			States:      info & 0x0F,
		})
	}
	return pairs, nil
}

// SpeedSteps is a locomotive speed step mode
type SpeedSteps int

// Speed step modes; the value is the number of steps
const (
	SpeedStepsUnknown SpeedSteps = 0
	SpeedSteps14      SpeedSteps = 14
	SpeedSteps27      SpeedSteps = 27
	SpeedSteps28      SpeedSteps = 28
	SpeedSteps128     SpeedSteps = 128
)

// speedStepsFromMode decodes the FFF bits of a loco identifier byte
func speedStepsFromMode(mode byte) (SpeedSteps, bool) {
	switch mode & 0x07 {
	case 0:
		return SpeedSteps14, true
	case 1:
		return SpeedSteps27, true
	case 2:
		return SpeedSteps28, true
	case 4:
		return SpeedSteps128, true
	default:
		return SpeedStepsUnknown, false
	}
}

// Loco is the state of one locomotive as reported by the station
type Loco struct {
	Address       uint16 // only set by reports that carry the address
	HasAddress    bool
	Occupied      bool
	SpeedSteps    SpeedSteps
	Forward       bool
	Speed         int // 0 stop; 1..steps
	EmergencyStop bool
	Functions     uint32 // bit n = function Fn
}

// DecodeSpeed converts an RVVVVVVV speed byte for the given step mode
func DecodeSpeed(steps SpeedSteps, b byte) (forward bool, speed int, estop bool) {
	forward = b&0x80 != 0
	switch steps {
	case SpeedSteps27, SpeedSteps28:
		// 000 C VVVV with C as the least significant step bit
		v := int(b&0x0F)<<1 | int(b>>4)&0x01
		switch {
		case v <= 1:
			return forward, 0, false
		case v <= 3:
			return forward, 0, true
		default:
			return forward, v - 3, false
		}
	}
	mask := byte(0x7F)
	if steps == SpeedSteps14 {
		mask = 0x0F
	}
	switch v := int(b & mask); v {
	case 0:
		return forward, 0, false
	case 1:
		return forward, 0, true
	default:
		return forward, v - 1, false
	}
}

// functionsF0F12 decodes the two function group bytes (0 0 0 F0 F4 F3 F2 F1)
// and (F12 .. F5)
func functionsF0F12(g1, g2 byte) uint32 {
	var f uint32
	if g1&0x10 != 0 {
		f |= 1
	}
	f |= uint32(g1&0x0F) << 1
	f |= uint32(g2) << 5
	return f
}

// LocoInfo decodes LOCO_INFO_V30 and the pre-3.0 loco free/occupied reports
func LocoInfo(m *Message) (Loco, error) {
	p := m.Payload()
	switch m.Name() {
	case MsgLocoInfoNormalV30:
		if len(p) < 3 {
			return Loco{}, ErrShortPayload
		}
		id, _ := m.Identifier()
		steps, ok := speedStepsFromMode(id)
		if !ok {
			return Loco{}, fmt.Errorf("%w: speed step mode %d", ErrInvalidStatus, id&0x07)
		}
		fwd, speed, estop := DecodeSpeed(steps, p[0])
		return Loco{
			Occupied:      id&0x08 != 0,
			SpeedSteps:    steps,
			Forward:       fwd,
			Speed:         speed,
			EmergencyStop: estop,
			Functions:     functionsF0F12(p[1], p[2]),
		}, nil

	case MsgLocoFreeV15, MsgLocoOccupiedV15, MsgLocoFreeV23, MsgLocoOccupiedV23:
		if len(p) < 3 {
			return Loco{}, ErrShortPayload
		}
		l := Loco{
			Address:    uint16(p[0]),
			HasAddress: true,
			Occupied:   m.Name() == MsgLocoOccupiedV15 || m.Name() == MsgLocoOccupiedV23,
			SpeedSteps: SpeedSteps14,
		}
		l.Forward, l.Speed, l.EmergencyStop = DecodeSpeed(SpeedSteps14, p[1])
		var g2 byte
		if len(p) >= 4 {
			g2 = p[3]
		}
		l.Functions = functionsF0F12(p[2], g2)
		return l, nil

	default:
		return Loco{}, fmt.Errorf("%w: %s", ErrWrongMessage, m.Name())
	}
}

// ErrorCode returns the error code of a station error report: the
// identifier byte for TRANSMISSION_ERROR, LZ_BUSY and COMMAND_NOT_FOUND, the
// low identifier nibble for LZ_ERROR_V30
func ErrorCode(m *Message) (byte, error) {
	id, ok := m.Identifier()
	switch m.Name() {
	case MsgTransmissionError, MsgLZBusy, MsgCommandNotFound:
	case MsgLZErrorsV30:
		id &= 0x0F
	default:
		return 0, fmt.Errorf("%w: %s", ErrWrongMessage, m.Name())
	}
	if !ok {
		return 0, ErrShortPayload
	}
	return id, nil
}
