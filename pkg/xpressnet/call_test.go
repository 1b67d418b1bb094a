// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyCall(t *testing.T) {
	tests := []struct {
		name      string
		b         byte
		kind      CallKind
		address   uint8
		broadcast bool
	}{
		{"send request", 0b01000011, CallSendRequest, 3, false},
		{"request resend", 0b00000001, CallRequestResend, 1, false},
		{"feedback poll", 0b00100000, CallFeedbackPoll, 0, true},
		{"reserved", 0b00100011, CallUnknown, 3, false},
		{"framed directed", 0b11100001, CallFramedMessage, 1, false},
		{"framed directed parity clear", 0b01100001, CallFramedMessage, 1, false},
		{"framed broadcast", 0b01100000, CallFramedMessage, 0, true},
	}

	at := time.Unix(1700000000, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ClassifyCall(tt.b, at)
			if err != nil {
				t.Fatalf("ClassifyCall(0x%02X) error: %v", tt.b, err)
			}
			if c.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", c.Kind, tt.kind)
			}
			if c.Address != tt.address {
				t.Errorf("Address = %d, want %d", c.Address, tt.address)
			}
			if c.Broadcast != tt.broadcast {
				t.Errorf("Broadcast = %v, want %v", c.Broadcast, tt.broadcast)
			}
			if c.Raw != tt.b {
				t.Errorf("Raw = 0x%02X, want 0x%02X", c.Raw, tt.b)
			}
			if !c.ReceivedAt.Equal(at) {
				t.Errorf("ReceivedAt = %v, want %v", c.ReceivedAt, at)
			}
		})
	}
}

func TestClassifyCall_ParityError(t *testing.T) {
	_, err := ClassifyCall(0b01000001, time.Now())
	if !errors.Is(err, ErrParity) {
		t.Fatalf("expected ErrParity, got %v", err)
	}
}

func TestClassifyCall_BroadcastFramedRelaxesParity(t *testing.T) {
	for _, b := range []byte{0x60, 0xE0} {
		c, err := ClassifyCall(b, time.Now())
		if err != nil {
			t.Fatalf("ClassifyCall(0x%02X) error: %v", b, err)
		}
		if c.Kind != CallFramedMessage || !c.Broadcast {
			t.Errorf("ClassifyCall(0x%02X) = %s, want broadcast framed message", b, c)
		}
		if c.ParityValid {
			t.Errorf("ClassifyCall(0x%02X) parity reported valid", b)
		}
	}
}

func TestClassifyCall_AllBytesDeterministic(t *testing.T) {
	at := time.Unix(0, 0)
	for i := 0; i < 256; i++ {
		b := byte(i)
		c1, err1 := ClassifyCall(b, at)
		c2, err2 := ClassifyCall(b, at)
		if c1 != c2 {
			t.Errorf("0x%02X: frames differ: %v vs %v", b, c1, c2)
		}
		if (err1 == nil) != (err2 == nil) || (err1 != nil && err1.Error() != err2.Error()) {
			t.Errorf("0x%02X: errors differ: %v vs %v", b, err1, err2)
		}
		if err1 != nil && !errors.Is(err1, ErrParity) && !errors.Is(err1, ErrUnclassifiedCall) {
			t.Errorf("0x%02X: unexpected error %v", b, err1)
		}
		if err1 == nil && c1.Broadcast != (b&AddressMask == 0) {
			t.Errorf("0x%02X: broadcast flag inconsistent with address", b)
		}
	}
}

func TestParityValid_IgnoresParityBitValue(t *testing.T) {
	// Under the observed rule only the low seven bits decide validity
	for i := 0; i < 128; i++ {
		b := byte(i)
		if ParityValid(b) != ParityValid(b|ParityBit) {
			t.Errorf("0x%02X and 0x%02X disagree", b, b|ParityBit)
		}
	}
}

func TestEncodeCall(t *testing.T) {
	tests := []struct {
		name     string
		typeCode uint8
		address  uint8
		want     byte
		wantErr  bool
	}{
		{"send request addr 3", TypeSendRequest, 3, 0xC3, false},
		{"resend addr 1", TypeRequestResend, 1, 0x81, false},
		{"feedback poll", TypeFeedback, 0, 0xA0, false},
		{"framed broadcast", TypeMessage, 0, 0x60, false},
		{"framed addr 1", TypeMessage, 1, 0xE1, false},
		{"framed addr 3 has no valid parity", TypeMessage, 3, 0, true},
		{"address out of range", TypeSendRequest, 32, 0, true},
		{"type out of range", 4, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCall(tt.typeCode, tt.address)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got 0x%02X", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeCall = 0x%02X, want 0x%02X", got, tt.want)
			}
			c, err := ClassifyCall(got, time.Now())
			if err != nil {
				t.Fatalf("encoded call 0x%02X does not classify: %v", got, err)
			}
			if c.Address != tt.address || c.TypeCode() != tt.typeCode {
				t.Errorf("classified %s, want type %d address %d", c, tt.typeCode, tt.address)
			}
		})
	}
}
