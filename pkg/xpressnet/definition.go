// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import "fmt"

// Scope restricts a call pattern to broadcast or directed calls
type Scope int

// Scope values
const (
	ScopeAny Scope = iota
	ScopeBroadcast
	ScopeDirected
)

// String returns the scope name
func (s Scope) String() string {
	switch s {
	case ScopeBroadcast:
		return "broadcast"
	case ScopeDirected:
		return "directed"
	default:
		return "any"
	}
}

func (s Scope) admits(broadcast bool) bool {
	switch s {
	case ScopeBroadcast:
		return broadcast
	case ScopeDirected:
		return !broadcast
	default:
		return true
	}
}

func (s Scope) overlaps(o Scope) bool {
	return s == ScopeAny || o == ScopeAny || s == o
}

// CallPattern describes the call bytes a definition may follow
type CallPattern struct {
	Type        uint8 // two-bit type code
	CheckParity bool
	Scope       Scope
}

// Matches reports whether the call frame is structurally consistent with the pattern
func (p CallPattern) Matches(c CallFrame) bool {
	if c.TypeCode() != p.Type {
		return false
	}
	if p.CheckParity && !c.ParityValid {
		return false
	}
	return p.Scope.admits(c.Broadcast)
}

func (p CallPattern) overlaps(o CallPattern) bool {
	return p.Type == o.Type && p.Scope.overlaps(o.Scope)
}

// ByteMatch matches a byte against a value under a mask.
// Bits cleared in Mask are payload and ignored.
type ByteMatch struct {
	Value byte
	Mask  byte
}

// Exact returns a match on all eight bits
func Exact(v byte) *ByteMatch {
	return &ByteMatch{Value: v, Mask: 0xFF}
}

// Masked returns a match on the bits set in mask
func Masked(v, mask byte) *ByteMatch {
	return &ByteMatch{Value: v & mask, Mask: mask}
}

// Matches reports whether b satisfies the match
func (m ByteMatch) Matches(b byte) bool {
	return b&m.Mask == m.Value&m.Mask
}

// Partial reports whether some bits are ignored
func (m ByteMatch) Partial() bool {
	return m.Mask != 0xFF
}

// String formats the match as a bit template, '-' for ignored bits
func (m ByteMatch) String() string {
	if !m.Partial() {
		return fmt.Sprintf("0x%02X", m.Value)
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bit := byte(0x80 >> i)
		switch {
		case m.Mask&bit == 0:
			out[i] = '-'
		case m.Value&bit != 0:
			out[i] = '1'
		default:
			out[i] = '0'
		}
	}
	return string(out)
}

// coincide reports whether some byte satisfies both matches.
// A nil match accepts every byte.
func coincide(a, b *ByteMatch) bool {
	if a == nil || b == nil {
		return true
	}
	return (a.Value^b.Value)&a.Mask&b.Mask == 0
}

// DataLength is the number of data bytes of a definition, either fixed or
// taken from the low nibble of the header byte.
type DataLength struct {
	count      int
	fromHeader bool
}

// Fixed returns a fixed data length
func Fixed(n int) DataLength {
	return DataLength{count: n}
}

// FromHeaderNibble returns a data length announced by the header's low nibble
func FromHeaderNibble() DataLength {
	return DataLength{fromHeader: true}
}

// Variable reports whether the length depends on the header byte
func (l DataLength) Variable() bool {
	return l.fromHeader
}

// Resolve returns the data byte count for the given header byte
func (l DataLength) Resolve(header byte) int {
	if l.fromHeader {
		return int(header & headerNibbleMask)
	}
	return l.count
}

// String formats the length
func (l DataLength) String() string {
	if l.fromHeader {
		return "N"
	}
	return fmt.Sprintf("%d", l.count)
}

// Definition describes one message shape
type Definition struct {
	Name       MessageName
	Call       CallPattern
	Header     *ByteMatch
	Identifier *ByteMatch
	Data       DataLength
	Versions   VersionRange
	Checksum   bool
}

// Bare reports whether the message consists of the call byte only
func (d *Definition) Bare() bool {
	return d.Header == nil
}

// BodyLength returns the number of bytes following the call byte:
// header, identifier, data and checksum.
func (d *Definition) BodyLength(header byte) int {
	if d.Bare() {
		return 0
	}
	n := 1 + d.Data.Resolve(header)
	if d.Identifier != nil {
		n++
	}
	if d.Checksum {
		n++
	}
	return n
}

// collides reports whether two definitions can match the same bytes
// under overlapping version ranges.
func (d *Definition) collides(o *Definition) bool {
	return d.Call.overlaps(o.Call) &&
		coincide(d.Header, o.Header) &&
		coincide(d.Identifier, o.Identifier) &&
		d.Versions.Overlaps(o.Versions)
}
