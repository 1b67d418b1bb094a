// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"sort"
)

const highNibble = 0xF0

var (
	callSendRequest  = CallPattern{Type: TypeSendRequest, CheckParity: true, Scope: ScopeAny}
	callResend       = CallPattern{Type: TypeRequestResend, CheckParity: true, Scope: ScopeDirected}
	callFeedbackPoll = CallPattern{Type: TypeFeedback, CheckParity: true, Scope: ScopeBroadcast}
	callReserved     = CallPattern{Type: TypeFeedback, CheckParity: true, Scope: ScopeDirected}
	callBroadcastMsg = CallPattern{Type: TypeMessage, Scope: ScopeBroadcast}
	callDirectedMsg  = CallPattern{Type: TypeMessage, CheckParity: true, Scope: ScopeDirected}
	feedbackHeader   = Masked(0x40, highNibble)
)

// definitions is the built-in message table. Order is for stable iteration
// only; the candidate filter decides which definition applies.
var definitions = []Definition{
	// Bare calls
	{Name: MsgNormalRequest, Call: callSendRequest, Versions: AllVersions},
	{Name: MsgRequestAcknowledge, Call: callResend, Versions: AllVersions},
	{Name: MsgFeedbackPoll, Call: callFeedbackPoll, Versions: AllVersions},
	{Name: MsgReserved, Call: callReserved, Versions: AllVersions},

	// Broadcasts
	{Name: MsgBroadcastAllOff, Call: callBroadcastMsg, Header: Exact(0x61), Identifier: Exact(0x00), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgBroadcastAllOn, Call: callBroadcastMsg, Header: Exact(0x61), Identifier: Exact(0x01), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgBroadcastProgrammingMode, Call: callBroadcastMsg, Header: Exact(0x61), Identifier: Exact(0x02), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgBroadcastAllLocoOff, Call: callBroadcastMsg, Header: Exact(0x81), Identifier: Exact(0x00), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgBroadcastFeedback, Call: callBroadcastMsg, Header: feedbackHeader, Data: FromHeaderNibble(), Versions: Until(3.5), Checksum: true},
	{Name: MsgBroadcastFeedbackExtended, Call: callBroadcastMsg, Header: feedbackHeader, Data: FromHeaderNibble(), Versions: Since(3.6), Checksum: true},

	// Station information
	{Name: MsgTransmissionError, Call: callDirectedMsg, Header: Exact(0x61), Identifier: Exact(0x80), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgLZBusy, Call: callDirectedMsg, Header: Exact(0x61), Identifier: Exact(0x81), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgCommandNotFound, Call: callDirectedMsg, Header: Exact(0x61), Identifier: Exact(0x82), Data: Fixed(0), Versions: AllVersions, Checksum: true},
	{Name: MsgStateLZ, Call: callDirectedMsg, Header: Exact(0x62), Identifier: Exact(0x22), Data: Fixed(1), Versions: AllVersions, Checksum: true},
	{Name: MsgSoftwareVersionReport23, Call: callDirectedMsg, Header: Exact(0x62), Identifier: Exact(0x21), Data: Fixed(1), Versions: Until(2.3), Checksum: true},
	{Name: MsgSoftwareVersionReport30, Call: callDirectedMsg, Header: Exact(0x63), Identifier: Exact(0x21), Data: Fixed(2), Versions: Since(3.0), Checksum: true},
	// 0x10 register/paged mode, 0x14 direct CV mode
	{Name: MsgServiceValueReport, Call: callDirectedMsg, Header: Exact(0x63), Identifier: Masked(0x10, 0xFB), Data: Fixed(2), Versions: AllVersions, Checksum: true},
	{Name: MsgPoMEventReport, Call: callDirectedMsg, Header: Exact(0x64), Identifier: Exact(0x24), Data: Fixed(3), Versions: Since(3.6), Checksum: true},
	{Name: MsgModelTime, Call: callDirectedMsg, Header: Exact(0x64), Identifier: Exact(0x25), Data: Fixed(3), Versions: Since(4.0), Checksum: true},
	{Name: MsgExtendedVersionInformation, Call: callDirectedMsg, Header: Exact(0x67), Data: Fixed(7), Versions: Since(3.8), Checksum: true},
	{Name: MsgLZErrorsV30, Call: callDirectedMsg, Header: Exact(0xE1), Identifier: Masked(0x80, highNibble), Data: Fixed(0), Versions: Since(3.0), Checksum: true},

	// Accessories
	{Name: MsgSwitchInfo, Call: callDirectedMsg, Header: Exact(0x42), Data: Fixed(2), Versions: AllVersions, Checksum: true},
	{Name: MsgSwitchInfoExtended, Call: callDirectedMsg, Header: Exact(0x43), Data: Fixed(3), Versions: Since(3.8), Checksum: true},

	// Locomotives up to 2.3 carry their own address
	{Name: MsgLocoFreeV15, Call: callDirectedMsg, Header: Exact(0x83), Data: Fixed(3), Versions: Until(1.5), Checksum: true},
	{Name: MsgLocoOccupiedV15, Call: callDirectedMsg, Header: Exact(0xA3), Data: Fixed(3), Versions: Until(1.5), Checksum: true},
	{Name: MsgLocoFreeV23, Call: callDirectedMsg, Header: Exact(0x84), Data: Fixed(4), Versions: Between(2.0, 2.3), Checksum: true},
	{Name: MsgLocoOccupiedV23, Call: callDirectedMsg, Header: Exact(0xA4), Data: Fixed(4), Versions: Between(2.0, 2.3), Checksum: true},

	// Locomotives from 3.0; the low identifier bits carry payload in partial matches
	{Name: MsgLocoInfoMultipleLocosBase, Call: callDirectedMsg, Header: Exact(0xE2), Identifier: Masked(0x20, highNibble), Data: Fixed(1), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoInfoSearchV30, Call: callDirectedMsg, Header: Exact(0xE3), Identifier: Masked(0x30, highNibble), Data: Fixed(2), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoInUseV30, Call: callDirectedMsg, Header: Exact(0xE3), Identifier: Exact(0x40), Data: Fixed(2), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoFunctionStateF0F12V30, Call: callDirectedMsg, Header: Exact(0xE3), Identifier: Exact(0x50), Data: Fixed(2), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoFunctionStateUpperV36, Call: callDirectedMsg, Header: Exact(0xE3), Identifier: Exact(0x52), Data: Fixed(2), Versions: Since(3.6), Checksum: true},
	{Name: MsgLocoInfoNormalV30, Call: callDirectedMsg, Header: Exact(0xE4), Identifier: Masked(0x00, highNibble), Data: Fixed(3), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoFunctionStateF13F28V36, Call: callDirectedMsg, Header: Exact(0xE4), Identifier: Exact(0x51), Data: Fixed(3), Versions: Since(3.6), Checksum: true},
	{Name: MsgLocoInfoMultipleLocos, Call: callDirectedMsg, Header: Exact(0xE5), Identifier: Masked(0x10, highNibble), Data: Fixed(4), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoInfoDoubleLocos, Call: callDirectedMsg, Header: Exact(0xE6), Identifier: Masked(0x60, highNibble), Data: Fixed(5), Versions: Since(3.0), Checksum: true},
	{Name: MsgLocoFunctionStateUpperUpperV40, Call: callDirectedMsg, Header: Exact(0xE6), Identifier: Exact(0x53), Data: Fixed(5), Versions: Since(4.0), Checksum: true},
	{Name: MsgLocoFunctionStateF29F68V40, Call: callDirectedMsg, Header: Exact(0xE6), Identifier: Exact(0x54), Data: Fixed(5), Versions: Since(4.0), Checksum: true},
}

// Catalog is an immutable, validated set of message definitions
type Catalog struct {
	defs   []Definition
	byName map[MessageName]*Definition
}

var defaultCatalog = mustCatalog(definitions)

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func mustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic("xpressnet: invalid built-in catalog: " + err.Error())
	}
	return c
}

// NewCatalog validates and copies the definitions.
// Collisions are returned as joined *IntegrityError values.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]Definition, len(defs)),
		byName: make(map[MessageName]*Definition, len(defs)),
	}
	copy(c.defs, defs)
	for i := range c.defs {
		c.byName[c.defs[i].Name] = &c.defs[i]
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that no two definitions can match the same bytes under
// overlapping version ranges.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[MessageName]bool, len(c.defs))
	for i := range c.defs {
		a := &c.defs[i]
		if seen[a.Name] {
			errs = append(errs, &IntegrityError{A: a.Name, B: a.Name, Reason: "duplicate name"})
		}
		seen[a.Name] = true
		if a.Versions.Min > a.Versions.Max {
			errs = append(errs, &IntegrityError{A: a.Name, B: a.Name, Reason: "empty version range"})
		}
		for j := i + 1; j < len(c.defs); j++ {
			b := &c.defs[j]
			if a.collides(b) {
				errs = append(errs, &IntegrityError{A: a.Name, B: b.Name, Reason: "overlapping version ranges"})
			}
		}
	}
	return errors.Join(errs...)
}

// All returns the definitions in stable order
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Lookup returns the definition with the given name
func (c *Catalog) Lookup(name MessageName) (*Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Names returns all message names sorted by value
func (c *Catalog) Names() []MessageName {
	names := make([]MessageName, 0, len(c.defs))
	for i := range c.defs {
		names = append(names, c.defs[i].Name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
