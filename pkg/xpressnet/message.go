// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import "time"

// Message represents one decoded bus message: a bare call byte, or a call
// byte followed by a framed message
type Message struct {
	name          MessageName
	def           *Definition
	call          CallFrame
	header        byte
	hasHeader     bool
	identifier    byte
	hasIdentifier bool
	payload       []byte
	checksum      byte
	checksumValid bool
	raw           []byte
}

// Name returns the message name
func (m *Message) Name() MessageName {
	return m.name
}

// Definition returns the matched definition, nil for unimplemented frames
func (m *Message) Definition() *Definition {
	return m.def
}

// Call returns the call byte classification
func (m *Message) Call() CallFrame {
	return m.call
}

// Header returns the header byte, if any
func (m *Message) Header() (byte, bool) {
	return m.header, m.hasHeader
}

// Identifier returns the identifier byte, if any
func (m *Message) Identifier() (byte, bool) {
	return m.identifier, m.hasIdentifier
}

// Payload returns the data bytes, excluding header, identifier and checksum
func (m *Message) Payload() []byte {
	return m.payload
}

// Checksum returns the received checksum byte
func (m *Message) Checksum() byte {
	return m.checksum
}

// ChecksumValid reports whether the checksum matched. Bare calls carry no
// checksum and always report true.
func (m *Message) ChecksumValid() bool {
	return m.checksumValid
}

// Raw returns all bytes of the message, call byte first
func (m *Message) Raw() []byte {
	return m.raw
}

// Timestamp returns the receive time of the call byte
func (m *Message) Timestamp() time.Time {
	return m.call.ReceivedAt
}

// IsBroadcast reports whether the call was addressed to all devices
func (m *Message) IsBroadcast() bool {
	return m.call.Broadcast
}

// Address returns the call byte address
func (m *Message) Address() uint8 {
	return m.call.Address
}

// IsBare reports whether the message is a call byte without a frame
func (m *Message) IsBare() bool {
	return !m.hasHeader
}
