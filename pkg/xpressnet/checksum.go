// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

// CalculateChecksum computes the XOR checksum of the given frame bytes
// (header, identifier and data, without the call byte)
func CalculateChecksum(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// VerifyChecksum reports whether the last byte of frame is the XOR of the
// bytes before it
func VerifyChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 1
	return CalculateChecksum(frame[:n]) == frame[n]
}

// AppendChecksum returns frame with its XOR checksum appended
func AppendChecksum(frame []byte) []byte {
	return append(frame, CalculateChecksum(frame))
}
