// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"fmt"
	"math/bits"
	"time"
)

// CallFrame is the classification of one call byte
type CallFrame struct {
	Kind        CallKind
	Address     uint8
	Raw         byte
	ReceivedAt  time.Time
	Broadcast   bool
	ParityValid bool
}

// TypeCode returns the two-bit call type (bits 5-6)
func (c CallFrame) TypeCode() uint8 {
	return typeCode(c.Raw)
}

// String returns a short description of the call
func (c CallFrame) String() string {
	if c.Broadcast {
		return fmt.Sprintf("%s (0x%02X) broadcast", c.Kind, c.Raw)
	}
	return fmt.Sprintf("%s (0x%02X) addr=%d", c.Kind, c.Raw, c.Address)
}

func typeCode(b byte) uint8 {
	return (b & TypeMask) >> typeShift
}

// ParityValid reports whether the parity bit of a call byte agrees with the
// population count of the whole byte: bit 7 must equal "count is even".
// This is the convention observed on the bus, not textbook even parity.
func ParityValid(b byte) bool {
	even := bits.OnesCount8(b)%2 == 0
	return (b&ParityBit != 0) == even
}

// ClassifyCall classifies a single call byte. It has no side effects.
func ClassifyCall(b byte, at time.Time) (CallFrame, error) {
	parityOK := ParityValid(b)
	tc := typeCode(b)
	address := b & AddressMask
	broadcast := address == 0

	frame := CallFrame{
		Address:     address,
		Raw:         b,
		ReceivedAt:  at,
		Broadcast:   broadcast,
		ParityValid: parityOK,
	}

	// Order matters: broadcast framed messages relax the parity requirement
	switch {
	case tc == TypeSendRequest && parityOK:
		frame.Kind = CallSendRequest
	case tc == TypeRequestResend && parityOK && !broadcast:
		frame.Kind = CallRequestResend
	case tc == TypeFeedback && parityOK && broadcast:
		frame.Kind = CallFeedbackPoll
	case tc == TypeMessage && broadcast:
		frame.Kind = CallFramedMessage
	case tc == TypeMessage && parityOK && !broadcast:
		frame.Kind = CallFramedMessage
	case tc == TypeFeedback && parityOK:
		frame.Kind = CallUnknown
	case !parityOK:
		return CallFrame{}, fmt.Errorf("%w: call byte 0x%02X", ErrParity, b)
	default:
		return CallFrame{}, fmt.Errorf("%w: call byte 0x%02X", ErrUnclassifiedCall, b)
	}

	return frame, nil
}

// IsBare reports whether the call kind carries no frame after the call byte
func (k CallKind) IsBare() bool {
	return k != CallFramedMessage
}
