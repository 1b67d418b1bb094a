// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"fmt"
)

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyChecksum AnomalyType = iota
	AnomalyOddFeedbackPairs
	AnomalyInvalidVersion
	AnomalyUnknownStation
	AnomalyUnknownSpeedSteps
	AnomalyReservedReceiver
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyChecksum:
		return "checksum"
	case AnomalyOddFeedbackPairs:
		return "odd_feedback_pairs"
	case AnomalyInvalidVersion:
		return "invalid_version"
	case AnomalyUnknownStation:
		return "unknown_station"
	case AnomalyUnknownSpeedSteps:
		return "unknown_speed_steps"
	case AnomalyReservedReceiver:
		return "reserved_receiver"
	default:
		return "unknown"
	}
}

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks a decoded message for suspicious content.
// Returns a slice of validation errors (empty if the message looks sane).
func ValidateMessage(m *Message) []ValidationError {
	errs := []ValidationError{}

	if !m.ChecksumValid() {
		errs = append(errs, ValidationError{
			Type:    AnomalyChecksum,
			Message: fmt.Sprintf("%s checksum 0x%02X does not match frame", m.Name(), m.Checksum()),
			Details: map[string]interface{}{"checksum": m.Checksum()},
		})
	}

	switch m.Name() {
	case MsgBroadcastFeedback, MsgBroadcastFeedbackExtended, MsgSwitchInfo:
		errs = append(errs, validateFeedback(m)...)
	case MsgSoftwareVersionReport23, MsgSoftwareVersionReport30:
		errs = append(errs, validateSoftwareVersion(m)...)
	case MsgLocoInfoNormalV30:
		errs = append(errs, validateLocoInfo(m)...)
	}

	return errs
}

func validateFeedback(m *Message) []ValidationError {
	pairs, err := FeedbackPairs(m)
	if errors.Is(err, ErrOddPairCount) {
		return []ValidationError{{
			Type:    AnomalyOddFeedbackPairs,
			Message: fmt.Sprintf("%s carries %d data bytes, expected address/info pairs", m.Name(), len(m.Payload())),
			Details: map[string]interface{}{"length": len(m.Payload())},
		}}
	}
	errs := []ValidationError{}
	for _, p := range pairs {
		if p.Type == ReceiverReserved {
			errs = append(errs, ValidationError{
				Type:    AnomalyReservedReceiver,
				Message: fmt.Sprintf("feedback address %d reports reserved receiver type", p.Address),
				Details: map[string]interface{}{"address": p.Address},
			})
		}
	}
	return errs
}

func validateSoftwareVersion(m *Message) []ValidationError {
	info, err := SoftwareVersion(m)
	if err != nil {
		var raw byte
		if p := m.Payload(); len(p) > 0 {
			raw = p[0]
		}
		return []ValidationError{{
			Type:    AnomalyInvalidVersion,
			Message: fmt.Sprintf("invalid BCD version byte 0x%02X", raw),
			Details: map[string]interface{}{"raw": raw},
		}}
	}
	if info.HasType {
		switch info.StationType {
		case StationLZ100, StationLH200, StationDPC, StationLZV100:
		default:
			return []ValidationError{{
				Type:    AnomalyUnknownStation,
				Message: fmt.Sprintf("unknown station type 0x%02X", info.StationType),
				Details: map[string]interface{}{"type": info.StationType},
			}}
		}
	}
	return nil
}

func validateLocoInfo(m *Message) []ValidationError {
	id, _ := m.Identifier()
	if _, ok := speedStepsFromMode(id); !ok {
		return []ValidationError{{
			Type:    AnomalyUnknownSpeedSteps,
			Message: fmt.Sprintf("unknown speed step mode %d", id&0x07),
			Details: map[string]interface{}{"mode": id & 0x07},
		}}
	}
	return nil
}
