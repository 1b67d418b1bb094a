// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"time"
)

// State is a decoder state machine state
type State int

// Decoder states. Emit and Fail are terminal; the next byte restarts at
// StateWaitingForCall.
const (
	StateWaitingForCall State = iota
	StateWaitingForHeader
	StateWaitingForIdentifier
	StateWaitingForData
	StateProcessingData
	StateEmit
	StateFail
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateWaitingForCall:
		return "WaitingForCall"
	case StateWaitingForHeader:
		return "WaitingForHeader"
	case StateWaitingForIdentifier:
		return "WaitingForIdentifier"
	case StateWaitingForData:
		return "WaitingForData"
	case StateProcessingData:
		return "ProcessingData"
	case StateEmit:
		return "Emit"
	case StateFail:
		return "Fail"
	default:
		return "Invalid"
	}
}

// Options control decoder behaviour
type Options struct {
	// Passthrough emits frames that match no definition as MsgUnimplemented,
	// using the low header nibble as the data length, instead of failing.
	Passthrough bool
}

// Decoder implements the XpressNet frame assembly state machine
type Decoder struct {
	catalog    *Catalog
	opts       Options
	state      State
	candidates *CandidateSet
	call       CallFrame
	raw        []byte // call byte first
	need       int    // bytes still expected, checksum included
	unknown    bool   // collecting an unimplemented frame
}

// NewDecoder creates a decoder over the catalog. A nil catalog selects the
// built-in one.
func NewDecoder(c *Catalog, opts Options) *Decoder {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Decoder{
		catalog:    c,
		opts:       opts,
		state:      StateWaitingForCall,
		candidates: NewCandidateSet(c),
		raw:        make([]byte, 0, MaxBodySize+1),
	}
}

// Reset discards any in-flight frame
func (d *Decoder) Reset() {
	d.state = StateWaitingForCall
	d.raw = d.raw[:0]
	d.need = 0
	d.unknown = false
	d.call = CallFrame{}
}

// State returns the current state
func (d *Decoder) State() State {
	return d.state
}

// InFlight reports whether a frame is partially decoded
func (d *Decoder) InFlight() bool {
	switch d.state {
	case StateWaitingForHeader, StateWaitingForIdentifier, StateWaitingForData, StateProcessingData:
		return true
	default:
		return false
	}
}

// DecodeByte processes a single byte through the state machine.
//
// It returns (nil, nil) while more bytes are needed, a message when a frame
// completes, or a *DecodeError on failure. A completed frame with a bad
// checksum returns both the message and an error wrapping ErrChecksum.
func (d *Decoder) DecodeByte(b byte, at time.Time, v Version) (*Message, error) {
	if d.state == StateEmit || d.state == StateFail {
		d.Reset()
	}

	switch d.state {
	case StateWaitingForCall:
		return d.onCall(b, at, v)

	case StateWaitingForHeader:
		d.raw = append(d.raw, b)
		if d.unknown {
			return d.continueUnknown(v)
		}
		d.candidates.ApplyHeader(b)
		if d.candidates.Len() == 0 {
			return d.noMatch(v)
		}
		if d.candidates.needsIdentifier() {
			d.state = StateWaitingForIdentifier
			return nil, nil
		}
		return d.resolveLength(v)

	case StateWaitingForIdentifier:
		d.raw = append(d.raw, b)
		d.candidates.ApplyIdentifier(b)
		if d.candidates.Len() == 0 {
			return d.noMatch(v)
		}
		return d.resolveLength(v)

	case StateWaitingForData:
		d.raw = append(d.raw, b)
		d.need--
		if d.need > 0 {
			return nil, nil
		}
		d.state = StateProcessingData
		return d.process(v)

	default:
		return nil, d.fail(errors.New("xpressnet: invalid decoder state"), nil)
	}
}

func (d *Decoder) onCall(b byte, at time.Time, v Version) (*Message, error) {
	d.raw = append(d.raw[:0], b)
	call, err := ClassifyCall(b, at)
	if err != nil {
		return nil, d.fail(err, nil)
	}
	d.call = call
	d.candidates.Seed(call)

	if !call.Kind.IsBare() {
		if d.candidates.Len() == 0 && d.opts.Passthrough {
			d.unknown = true
		}
		d.state = StateWaitingForHeader
		return nil, nil
	}

	d.candidates.ApplyVersion(v)
	def, err := d.candidates.Finalize()
	if err != nil {
		return nil, d.fail(err, d.candidates.Names())
	}
	d.state = StateEmit
	return &Message{
		name:          def.Name,
		def:           def,
		call:          call,
		checksumValid: true,
		raw:           []byte{b},
	}, nil
}

// noMatch handles an emptied candidate set after the header or identifier
func (d *Decoder) noMatch(v Version) (*Message, error) {
	if !d.opts.Passthrough {
		return nil, d.fail(ErrNoMatchingDefinition, nil)
	}
	d.unknown = true
	return d.continueUnknown(v)
}

// continueUnknown sizes an unimplemented frame from its header nibble
func (d *Decoder) continueUnknown(v Version) (*Message, error) {
	header := d.raw[1]
	body := 1 + int(header&headerNibbleMask) + 1
	return d.expect(body, v)
}

// resolveLength fixes the number of remaining bytes once the survivors
// agree on it, applying the version early when they do not
func (d *Decoder) resolveLength(v Version) (*Message, error) {
	header := d.raw[1]
	n, ok := d.candidates.remaining(header)
	if !ok {
		d.candidates.ApplyVersion(v)
		if d.candidates.Len() == 0 {
			return nil, d.fail(ErrNoMatchingDefinition, nil)
		}
		n, ok = d.candidates.remaining(header)
		if !ok {
			return nil, d.fail(ErrAmbiguousDefinition, d.candidates.Names())
		}
	}
	return d.expect(n+1, v)
}

// expect waits for the rest of a body of the given total size
func (d *Decoder) expect(body int, v Version) (*Message, error) {
	if body > MaxBodySize {
		return nil, d.fail(ErrFrameOverflow, nil)
	}
	d.need = body - (len(d.raw) - 1)
	if d.need > 0 {
		d.state = StateWaitingForData
		return nil, nil
	}
	d.state = StateProcessingData
	return d.process(v)
}

func (d *Decoder) process(v Version) (*Message, error) {
	if d.unknown {
		return d.finish(nil, MsgUnimplemented)
	}
	d.candidates.ApplyVersion(v)
	def, err := d.candidates.Finalize()
	if err != nil {
		return nil, d.fail(err, d.candidates.Names())
	}
	return d.finish(def, def.Name)
}

// finish builds the message from the collected bytes and checks the checksum
func (d *Decoder) finish(def *Definition, name MessageName) (*Message, error) {
	raw := make([]byte, len(d.raw))
	copy(raw, d.raw)
	body := raw[1:]

	m := &Message{
		name:      name,
		def:       def,
		call:      d.call,
		header:    body[0],
		hasHeader: true,
		raw:       raw,
	}

	start := 1
	if def != nil && def.Identifier != nil {
		m.identifier = body[1]
		m.hasIdentifier = true
		start = 2
	}

	end := len(body)
	if def == nil || def.Checksum {
		end--
		m.checksum = body[end]
		m.checksumValid = CalculateChecksum(body[:end]) == m.checksum
	} else {
		m.checksumValid = true
	}
	m.payload = body[start:end]

	if !m.checksumValid {
		return m, d.fail(ErrChecksum, nil)
	}
	d.state = StateEmit
	return m, nil
}

func (d *Decoder) fail(err error, candidates []MessageName) error {
	raw := make([]byte, len(d.raw))
	copy(raw, d.raw)
	e := &DecodeError{Err: err, State: d.state, Raw: raw, Candidates: candidates}
	d.state = StateFail
	return e
}
