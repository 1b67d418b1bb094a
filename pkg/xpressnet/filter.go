// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

// CandidateSet is the shrinking set of definitions still consistent with the
// bytes of one in-flight frame. Every Apply method only removes members.
type CandidateSet struct {
	catalog *Catalog
	members []*Definition
}

// NewCandidateSet returns an empty set over the catalog
func NewCandidateSet(c *Catalog) *CandidateSet {
	return &CandidateSet{
		catalog: c,
		members: make([]*Definition, 0, c.Len()),
	}
}

// Seed replaces the set with every definition whose call pattern matches
func (s *CandidateSet) Seed(call CallFrame) {
	s.members = s.members[:0]
	for i := range s.catalog.defs {
		d := &s.catalog.defs[i]
		if d.Call.Matches(call) {
			s.members = append(s.members, d)
		}
	}
}

// ApplyHeader keeps definitions without a header or whose header matches b
func (s *CandidateSet) ApplyHeader(b byte) {
	s.retain(func(d *Definition) bool {
		return d.Header == nil || d.Header.Matches(b)
	})
}

// ApplyIdentifier keeps definitions without an identifier or whose
// identifier matches b under its mask
func (s *CandidateSet) ApplyIdentifier(b byte) {
	s.retain(func(d *Definition) bool {
		return d.Identifier == nil || d.Identifier.Matches(b)
	})
}

// ApplyVersion keeps definitions whose version range contains v
func (s *CandidateSet) ApplyVersion(v Version) {
	s.retain(func(d *Definition) bool {
		return d.Versions.Contains(v)
	})
}

// Finalize returns the only surviving definition
func (s *CandidateSet) Finalize() (*Definition, error) {
	switch len(s.members) {
	case 0:
		return nil, ErrNoMatchingDefinition
	case 1:
		return s.members[0], nil
	default:
		return nil, ErrAmbiguousDefinition
	}
}

// Len returns the number of surviving definitions
func (s *CandidateSet) Len() int {
	return len(s.members)
}

// Names returns the surviving definition names in catalog order
func (s *CandidateSet) Names() []MessageName {
	names := make([]MessageName, len(s.members))
	for i, d := range s.members {
		names[i] = d.Name
	}
	return names
}

// needsIdentifier reports whether any survivor carries an identifier byte
func (s *CandidateSet) needsIdentifier() bool {
	for _, d := range s.members {
		if d.Identifier != nil {
			return true
		}
	}
	return false
}

// remaining returns the number of bytes still expected after the header when
// all survivors agree on it
func (s *CandidateSet) remaining(header byte) (int, bool) {
	if len(s.members) == 0 {
		return 0, false
	}
	n := s.members[0].BodyLength(header)
	for _, d := range s.members[1:] {
		if d.BodyLength(header) != n {
			return 0, false
		}
	}
	return n - 1, true
}

func (s *CandidateSet) retain(keep func(*Definition) bool) {
	out := s.members[:0]
	for _, d := range s.members {
		if keep(d) {
			out = append(out, d)
		}
	}
	s.members = out
}
