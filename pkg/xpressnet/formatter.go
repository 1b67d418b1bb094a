// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"fmt"
	"strings"
)

// FormatBytes formats bytes as space-separated hex
func FormatBytes(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatMessage formats a message into a human-readable string
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp().Format("15:04:05.000")
	target := fmt.Sprintf("addr=%d", m.Address())
	if m.IsBroadcast() {
		target = "broadcast"
	}

	result := fmt.Sprintf("[%s] %s %s [%s]", timestamp, m.Name(), target, FormatBytes(m.Raw()))
	if !m.IsBare() && !m.ChecksumValid() {
		result += " CHECKSUM MISMATCH"
	}
	result += "\n"

	if details := FormatPayload(m); details != "" {
		result += details
	}
	return result
}

// FormatPayload formats the decoded payload of known messages. It returns
// an empty string for messages without a payload view.
func FormatPayload(m *Message) string {
	switch m.Name() {
	case MsgSoftwareVersionReport23, MsgSoftwareVersionReport30:
		info, err := SoftwareVersion(m)
		if err != nil {
			return fmt.Sprintf("  (%v)\n", err)
		}
		if info.HasType {
			return fmt.Sprintf("  Version: %s, Station: %s\n", info.Version, StationTypeName(info.StationType))
		}
		return fmt.Sprintf("  Version: %s\n", info.Version)

	case MsgStateLZ:
		st, err := StationStatus(m)
		if err != nil {
			return fmt.Sprintf("  (%v)\n", err)
		}
		return fmt.Sprintf("  EmergencyOff: %v, EmergencyStop: %v, ServiceMode: %v, ManualStart: %v\n",
			st.EmergencyOff, st.EmergencyStop, st.ServiceMode, st.ManualStart)

	case MsgBroadcastFeedback, MsgBroadcastFeedbackExtended, MsgSwitchInfo:
		pairs, err := FeedbackPairs(m)
		if err != nil {
			return fmt.Sprintf("  (%v)\n", err)
		}
		var sb strings.Builder
		for _, p := range pairs {
			moving := ""
			if p.Moving {
				moving = " moving"
			}
			fmt.Fprintf(&sb, "  Group %d: %s states=%04b%s\n", p.Group(), p.Type, p.States, moving)
		}
		return sb.String()

	case MsgLocoInfoNormalV30, MsgLocoFreeV15, MsgLocoOccupiedV15, MsgLocoFreeV23, MsgLocoOccupiedV23:
		l, err := LocoInfo(m)
		if err != nil {
			return fmt.Sprintf("  (%v)\n", err)
		}
		dir := "rev"
		if l.Forward {
			dir = "fwd"
		}
		addr := ""
		if l.HasAddress {
			addr = fmt.Sprintf("Loco %d, ", l.Address)
		}
		return fmt.Sprintf("  %sSpeed: %d/%d %s, Occupied: %v, Functions: 0x%04X\n",
			addr, l.Speed, l.SpeedSteps, dir, l.Occupied, l.Functions)

	case MsgTransmissionError, MsgLZBusy, MsgCommandNotFound, MsgLZErrorsV30:
		code, err := ErrorCode(m)
		if err != nil {
			return fmt.Sprintf("  (%v)\n", err)
		}
		return fmt.Sprintf("  Code: 0x%02X\n", code)

	case MsgUnimplemented:
		return fmt.Sprintf("  Data: [%s]\n", FormatBytes(m.Payload()))
	}
	return ""
}

// FormatError formats a decode failure with its raw bytes
func FormatError(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return "DECODE ERROR: " + de.Error()
	}
	return "ERROR: " + err.Error()
}
