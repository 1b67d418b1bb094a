// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failures. All are local to one frame; the decoder resynchronizes
// on the next call byte.
var (
	ErrParity               = errors.New("xpressnet: call byte parity error")
	ErrUnclassifiedCall     = errors.New("xpressnet: unclassified call byte")
	ErrNoMatchingDefinition = errors.New("xpressnet: no matching definition")
	ErrAmbiguousDefinition  = errors.New("xpressnet: ambiguous definition")
	ErrChecksum             = errors.New("xpressnet: checksum mismatch")
	ErrFrameOverflow        = errors.New("xpressnet: frame exceeds maximum size")
)

// DecodeError describes a failed frame decode
type DecodeError struct {
	Err        error         // a sentinel above, possibly wrapped
	State      State         // state in which the failure occurred
	Raw        []byte        // bytes consumed for the frame, call byte first
	Candidates []MessageName // surviving candidates, set for ambiguity failures
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v in %s", e.Err, e.State)
	if len(e.Raw) > 0 {
		sb.WriteString(" [")
		sb.WriteString(FormatBytes(e.Raw))
		sb.WriteString("]")
	}
	if len(e.Candidates) > 0 {
		names := make([]string, len(e.Candidates))
		for i, n := range e.Candidates {
			names[i] = n.String()
		}
		fmt.Fprintf(&sb, " candidates: %s", strings.Join(names, ", "))
	}
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IntegrityError reports two catalog definitions that can match the same
// bytes under overlapping version ranges.
type IntegrityError struct {
	A, B   MessageName
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.A == e.B {
		return fmt.Sprintf("xpressnet: catalog: %s: %s", e.A, e.Reason)
	}
	return fmt.Sprintf("xpressnet: catalog: %s collides with %s: %s", e.A, e.B, e.Reason)
}
