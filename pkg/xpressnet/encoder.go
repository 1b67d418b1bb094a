// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"fmt"
	"math/bits"
)

// EncodeCall builds a call byte for the given type code and address.
// The observed parity rule only accepts bytes whose low seven bits have an
// odd population count, so some type/address pairs cannot be encoded.
// Broadcast framed calls are exempt from the parity check.
func EncodeCall(typeCode, address uint8) (byte, error) {
	if typeCode > TypeMessage {
		return 0, fmt.Errorf("invalid call type code %d", typeCode)
	}
	if address > AddressMask {
		return 0, fmt.Errorf("invalid call address %d (max %d)", address, AddressMask)
	}
	b := typeCode<<typeShift | address
	if bits.OnesCount8(b)%2 == 1 {
		return b | ParityBit, nil
	}
	if typeCode == TypeMessage && address == 0 {
		return b, nil
	}
	return 0, fmt.Errorf("%w: type %02b address %d has no valid parity", ErrParity, typeCode, address)
}

// EncodeFrame returns call followed by body and its XOR checksum
func EncodeFrame(call byte, body ...byte) []byte {
	frame := make([]byte, 0, len(body)+2)
	frame = append(frame, call)
	frame = append(frame, body...)
	return append(frame, CalculateChecksum(body))
}
