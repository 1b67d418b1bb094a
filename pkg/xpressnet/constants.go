// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xpressnet decodes traffic on an XpressNet model-railway control bus.
//
// The bus is a half-duplex multidrop RS-485 line. The command station polls
// peer devices with single call bytes; some calls are followed by a framed
// message (header byte, optional identifier byte, data bytes, XOR checksum).
// Frames are not self-delimiting, so the decoder narrows a catalog of known
// message shapes byte by byte until exactly one shape remains.
package xpressnet

// Call byte layout: P TT AAAAA
const (
	ParityBit   = 0x80
	TypeMask    = 0x60
	AddressMask = 0x1F
	typeShift   = 5
)

// Two-bit call type codes (bits 5-6 of the call byte)
const (
	TypeRequestResend = 0b00
	TypeFeedback      = 0b01
	TypeSendRequest   = 0b10
	TypeMessage       = 0b11
)

// Frame size limits
const (
	// MaxBodySize is the largest header+identifier+data+checksum run the
	// decoder accepts. A header nibble can announce at most 15 bytes.
	MaxBodySize = 18

	// headerNibbleMask selects the length nibble of variable-length headers.
	headerNibbleMask = 0x0F
)

// Station types reported by SoftwareVersionReport30
const (
	StationLZ100  = 0x00
	StationLH200  = 0x01
	StationDPC    = 0x02
	StationLZV100 = 0x10
)

// CallKind classifies a call byte
type CallKind int

// Call kind values
const (
	CallSendRequest CallKind = iota
	CallRequestResend
	CallFramedMessage
	CallFeedbackPoll
	CallUnknown
)

// String returns the call kind name
func (k CallKind) String() string {
	switch k {
	case CallSendRequest:
		return "SEND_REQUEST"
	case CallRequestResend:
		return "REQUEST_RESEND"
	case CallFramedMessage:
		return "FRAMED_MESSAGE"
	case CallFeedbackPoll:
		return "FEEDBACK_POLL"
	case CallUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// MessageName identifies one message shape of the catalog.
// MsgUnimplemented is used for structurally valid frames that no
// definition describes (passthrough mode only).
type MessageName int

// Message names
const (
	MsgUnimplemented MessageName = iota

	// Bare calls
	MsgNormalRequest
	MsgRequestAcknowledge
	MsgFeedbackPoll
	MsgReserved

	// Broadcasts
	MsgBroadcastAllOn
	MsgBroadcastAllOff
	MsgBroadcastAllLocoOff
	MsgBroadcastProgrammingMode
	MsgBroadcastFeedback
	MsgBroadcastFeedbackExtended

	// Station information
	MsgServiceValueReport
	MsgSoftwareVersionReport23
	MsgSoftwareVersionReport30
	MsgStateLZ
	MsgExtendedVersionInformation
	MsgPoMEventReport
	MsgModelTime
	MsgTransmissionError
	MsgLZBusy
	MsgCommandNotFound
	MsgLZErrorsV30

	// Accessories
	MsgSwitchInfo
	MsgSwitchInfoExtended

	// Locomotives
	MsgLocoFreeV15
	MsgLocoOccupiedV15
	MsgLocoFreeV23
	MsgLocoOccupiedV23
	MsgLocoInfoNormalV30
	MsgLocoFunctionStateUpperV36
	MsgLocoFunctionStateUpperUpperV40
	MsgLocoInfoMultipleLocos
	MsgLocoInfoMultipleLocosBase
	MsgLocoInfoDoubleLocos
	MsgLocoInUseV30
	MsgLocoFunctionStateF0F12V30
	MsgLocoFunctionStateF13F28V36
	MsgLocoFunctionStateF29F68V40
	MsgLocoInfoSearchV30
)

var messageNames = map[MessageName]string{
	MsgUnimplemented:                  "UNIMPLEMENTED",
	MsgNormalRequest:                  "NORMAL_REQUEST",
	MsgRequestAcknowledge:             "REQUEST_ACKNOWLEDGE",
	MsgFeedbackPoll:                   "FEEDBACK_POLL",
	MsgReserved:                       "RESERVED",
	MsgBroadcastAllOn:                 "BC_ALL_ON",
	MsgBroadcastAllOff:                "BC_ALL_OFF",
	MsgBroadcastAllLocoOff:            "BC_ALL_LOCO_OFF",
	MsgBroadcastProgrammingMode:       "BC_PROGRAMMING_MODE",
	MsgBroadcastFeedback:              "BC_FEEDBACK",
	MsgBroadcastFeedbackExtended:      "BC_FEEDBACK_EXTENDED",
	MsgServiceValueReport:             "SERVICE_VALUE_REPORT",
	MsgSoftwareVersionReport23:        "SOFTWARE_VERSION_V23",
	MsgSoftwareVersionReport30:        "SOFTWARE_VERSION_V30",
	MsgStateLZ:                        "STATE_LZ",
	MsgExtendedVersionInformation:     "EXTENDED_VERSION_INFO",
	MsgPoMEventReport:                 "POM_EVENT_REPORT",
	MsgModelTime:                      "MODEL_TIME",
	MsgTransmissionError:              "TRANSMISSION_ERROR",
	MsgLZBusy:                         "LZ_BUSY",
	MsgCommandNotFound:                "COMMAND_NOT_FOUND",
	MsgLZErrorsV30:                    "LZ_ERROR_V30",
	MsgSwitchInfo:                     "SWITCH_INFO",
	MsgSwitchInfoExtended:             "SWITCH_INFO_EXTENDED",
	MsgLocoFreeV15:                    "LOCO_FREE_V15",
	MsgLocoOccupiedV15:                "LOCO_OCCUPIED_V15",
	MsgLocoFreeV23:                    "LOCO_FREE_V23",
	MsgLocoOccupiedV23:                "LOCO_OCCUPIED_V23",
	MsgLocoInfoNormalV30:              "LOCO_INFO_V30",
	MsgLocoFunctionStateUpperV36:      "LOCO_FUNC_STATE_F13_F28_V36",
	MsgLocoFunctionStateUpperUpperV40: "LOCO_FUNC_STATE_F29_F68_V40",
	MsgLocoInfoMultipleLocos:          "LOCO_INFO_MTR",
	MsgLocoInfoMultipleLocosBase:      "LOCO_INFO_MTR_BASE",
	MsgLocoInfoDoubleLocos:            "LOCO_INFO_DTR",
	MsgLocoInUseV30:                   "LOCO_IN_USE_V30",
	MsgLocoFunctionStateF0F12V30:      "LOCO_FUNC_MODE_F0_F12_V30",
	MsgLocoFunctionStateF13F28V36:     "LOCO_FUNC_MODE_F13_F28_V36",
	MsgLocoFunctionStateF29F68V40:     "LOCO_FUNC_MODE_F29_F68_V40",
	MsgLocoInfoSearchV30:              "LOCO_SEARCH_V30",
}

// String returns the upper-case wire name of the message
func (n MessageName) String() string {
	if s, ok := messageNames[n]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseMessageName looks up a message name by its wire name
func ParseMessageName(s string) (MessageName, bool) {
	for n, name := range messageNames {
		if name == s {
			return n, true
		}
	}
	return MsgUnimplemented, false
}
