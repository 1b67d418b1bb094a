// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, v Version, frame ...byte) *Message {
	t.Helper()
	m, err := decodeAll(t, NewDecoder(nil, Options{}), v, frame...)
	if err != nil {
		t.Fatalf("decode %X: %v", frame, err)
	}
	return m
}

func TestSoftwareVersion(t *testing.T) {
	m := mustDecode(t, 3.6, EncodeFrame(0xE1, 0x63, 0x21, 0x36, 0x10)...)
	info, err := SoftwareVersion(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Version != 3.6 || !info.HasType || info.StationType != StationLZV100 {
		t.Errorf("info = %+v", info)
	}

	m = mustDecode(t, 2.3, EncodeFrame(0xE1, 0x62, 0x21, 0x23)...)
	info, err = SoftwareVersion(m)
	if err != nil || info.Version != 2.3 || info.HasType {
		t.Errorf("v2.3 info = %+v, %v", info, err)
	}

	m = mustDecode(t, 3.6, EncodeFrame(0xE1, 0x63, 0x21, 0x3F, 0x00)...)
	if _, err := SoftwareVersion(m); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected invalid BCD error, got %v", err)
	}

	m = mustDecode(t, 3.6, 0x43)
	if _, err := SoftwareVersion(m); !errors.Is(err, ErrWrongMessage) {
		t.Errorf("expected ErrWrongMessage, got %v", err)
	}
}

func TestStationStatus(t *testing.T) {
	m := mustDecode(t, 3.6, EncodeFrame(0xE1, 0x62, 0x22, 0x0A)...)
	st, err := StationStatus(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.EmergencyOff || !st.EmergencyStop || st.ManualStart || !st.ServiceMode {
		t.Errorf("status = %+v", st)
	}
}

func TestFeedbackPairs(t *testing.T) {
	// address 5 switch with feedback moving, upper nibble, states 0b0101;
	// address 6 feedback module, lower nibble, states 0b0011
	m := mustDecode(t, 3.6, EncodeFrame(0x60, 0x44, 0x05, 0xB5, 0x06, 0x43)...)
	pairs, err := FeedbackPairs(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []FeedbackPair{
		{Address: 5, Moving: true, Type: ReceiverSwitchFeedback, UpperNibble: true, States: 0x05},
		{Address: 6, Moving: false, Type: ReceiverFeedbackModule, UpperNibble: false, States: 0x03},
	}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, pairs[i], want[i])
		}
	}
	if pairs[0].Group() != 11 || pairs[1].Group() != 12 {
		t.Errorf("groups = %d, %d", pairs[0].Group(), pairs[1].Group())
	}

	m = mustDecode(t, 3.6, EncodeFrame(0x60, 0x43, 0x01, 0x02, 0x03)...)
	if _, err := FeedbackPairs(m); !errors.Is(err, ErrOddPairCount) {
		t.Errorf("expected ErrOddPairCount, got %v", err)
	}
}

func TestLocoInfo(t *testing.T) {
	m := mustDecode(t, 3.6, EncodeFrame(0xE1, 0xE4, 0x04, 0x85, 0x10, 0x01)...)
	l, err := LocoInfo(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.SpeedSteps != SpeedSteps128 || !l.Forward || l.Speed != 4 || l.EmergencyStop || l.Occupied {
		t.Errorf("loco = %+v", l)
	}
	if l.Functions != 0x21 {
		t.Errorf("Functions = 0x%X, want F0 and F5 (0x21)", l.Functions)
	}

	m = mustDecode(t, 3.6, EncodeFrame(0xE1, 0xE4, 0x0A, 0x01, 0x00, 0x00)...)
	l, err = LocoInfo(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.SpeedSteps != SpeedSteps28 || !l.Occupied || !l.EmergencyStop || l.Forward {
		t.Errorf("loco = %+v", l)
	}

	m = mustDecode(t, 2.0, EncodeFrame(0xE1, 0xA4, 0x03, 0x83, 0x00, 0x00)...)
	l, err = LocoInfo(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.HasAddress || l.Address != 3 || !l.Occupied || l.Speed != 2 {
		t.Errorf("v2 loco = %+v", l)
	}

	m = mustDecode(t, 3.6, EncodeFrame(0xE1, 0xE4, 0x03, 0x00, 0x00, 0x00)...)
	if _, err := LocoInfo(m); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected speed step error, got %v", err)
	}
}

func TestDecodeSpeed(t *testing.T) {
	tests := []struct {
		steps SpeedSteps
		b     byte
		fwd   bool
		speed int
		estop bool
	}{
		{SpeedSteps128, 0x80, true, 0, false},
		{SpeedSteps128, 0x01, false, 0, true},
		{SpeedSteps128, 0xFF, true, 126, false},
		{SpeedSteps14, 0x8F, true, 14, false},
		{SpeedSteps28, 0x02, false, 1, false},
		{SpeedSteps28, 0x12, false, 2, false},
		{SpeedSteps28, 0x1F, false, 28, false},
		{SpeedSteps28, 0x11, false, 0, true},
	}
	for _, tt := range tests {
		fwd, speed, estop := DecodeSpeed(tt.steps, tt.b)
		if fwd != tt.fwd || speed != tt.speed || estop != tt.estop {
			t.Errorf("DecodeSpeed(%d, 0x%02X) = %v %d %v, want %v %d %v",
				tt.steps, tt.b, fwd, speed, estop, tt.fwd, tt.speed, tt.estop)
		}
	}
}

func TestErrorCode(t *testing.T) {
	m := mustDecode(t, 3.6, EncodeFrame(0xE1, 0x61, 0x80)...)
	if code, err := ErrorCode(m); err != nil || code != 0x80 {
		t.Errorf("TRANSMISSION_ERROR code = 0x%02X, %v", code, err)
	}
	m = mustDecode(t, 3.6, EncodeFrame(0xE1, 0xE1, 0x83)...)
	if code, err := ErrorCode(m); err != nil || code != 0x03 {
		t.Errorf("LZ_ERROR_V30 code = 0x%02X, %v", code, err)
	}
}

func TestFormatMessage(t *testing.T) {
	m := mustDecode(t, 3.6, EncodeFrame(0xE1, 0x63, 0x21, 0x36, 0x00)...)
	out := FormatMessage(m)
	for _, want := range []string{"SOFTWARE_VERSION_V30", "addr=1", "E1 63 21 36 00", "Version: 3.6", "LZ100"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatMessage missing %q:\n%s", want, out)
		}
	}

	bc := mustDecode(t, 3.6, EncodeFrame(0x60, 0x61, 0x01)...)
	if out := FormatMessage(bc); !strings.Contains(out, "BC_ALL_ON broadcast") {
		t.Errorf("FormatMessage = %q", out)
	}
}

func TestFormatError(t *testing.T) {
	_, err := decodeAll(t, NewDecoder(nil, Options{}), 3.6, 0xE1, 0x55)
	out := FormatError(err)
	if !strings.Contains(out, "no matching definition") || !strings.Contains(out, "[E1 55]") {
		t.Errorf("FormatError = %q", out)
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name  string
		v     Version
		frame []byte
		want  []AnomalyType
	}{
		{"clean loco info", 3.6, EncodeFrame(0xE1, 0xE4, 0x04, 0x85, 0x10, 0x01), nil},
		{"odd feedback", 3.6, EncodeFrame(0x60, 0x43, 0x01, 0x02, 0x03), []AnomalyType{AnomalyOddFeedbackPairs}},
		{"reserved receiver", 3.6, EncodeFrame(0x60, 0x42, 0x01, 0x60), []AnomalyType{AnomalyReservedReceiver}},
		{"bad BCD", 3.6, EncodeFrame(0xE1, 0x63, 0x21, 0x3F, 0x00), []AnomalyType{AnomalyInvalidVersion}},
		{"unknown station", 3.6, EncodeFrame(0xE1, 0x63, 0x21, 0x36, 0x77), []AnomalyType{AnomalyUnknownStation}},
		{"unknown speed steps", 3.6, EncodeFrame(0xE1, 0xE4, 0x05, 0x00, 0x00, 0x00), []AnomalyType{AnomalyUnknownSpeedSteps}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateMessage(mustDecode(t, tt.v, tt.frame...))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d anomalies %v, want %v", len(got), got, tt.want)
			}
			for i := range tt.want {
				if got[i].Type != tt.want[i] {
					t.Errorf("anomaly %d = %s, want %s", i, got[i].Type, tt.want[i])
				}
			}
		})
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	stream := NewStream(NewDecoder(nil, Options{}))

	chunk := []byte{0x43, 0x41}
	chunk = append(chunk, EncodeFrame(0x60, 0x61, 0x01)...)
	chunk = append(chunk, 0xE1, 0x55)
	chunk = append(chunk, 0x60, 0x43, 0x01, 0x02, 0x03, 0x42) // bad checksum
	chunk = append(chunk, EncodeFrame(0x60, 0x43, 0x01, 0x02, 0x03)...)

	for _, r := range stream.FeedBytes(chunk, time.Now()) {
		var verrs []ValidationError
		if r.Err == nil {
			verrs = ValidateMessage(r.Message)
		}
		s.Update(r.Message, r.Err, verrs)
	}

	if s.TotalFrames != 6 {
		t.Errorf("TotalFrames = %d, want 6", s.TotalFrames)
	}
	if s.ValidFrames != 2 || s.Polls != 1 {
		t.Errorf("ValidFrames = %d, Polls = %d", s.ValidFrames, s.Polls)
	}
	if s.ParityErrors != 1 || s.NoMatch != 1 || s.ChecksumErrors != 1 {
		t.Errorf("errors: parity=%d nomatch=%d checksum=%d", s.ParityErrors, s.NoMatch, s.ChecksumErrors)
	}
	if s.Anomalies != 1 || s.AnomalyByType[AnomalyOddFeedbackPairs] != 1 {
		t.Errorf("anomalies = %d %v", s.Anomalies, s.AnomalyByType)
	}
	if s.Errors() != 3 {
		t.Errorf("Errors = %d, want 3", s.Errors())
	}
	if top := s.TopMessages(1); len(top) != 1 {
		t.Errorf("TopMessages = %v", top)
	}

	out := s.String()
	for _, want := range []string{"Total Frames:", "Parity Errors:", "Checksum Errors:", "odd_feedback_pairs"} {
		if !strings.Contains(out, want) {
			t.Errorf("String missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || len(s.MessagesPerName) != 0 {
		t.Error("Reset left counters")
	}
}
