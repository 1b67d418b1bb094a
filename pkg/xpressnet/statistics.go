// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Statistics tracks decode outcomes and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	Polls           uint64 // bare call bytes
	ChecksumErrors  uint64
	ParityErrors    uint64
	Unclassified    uint64
	NoMatch         uint64
	Ambiguous       uint64
	Overflows       uint64
	Unimplemented   uint64
	Anomalies       uint64
	AnomalyByType   map[AnomalyType]uint64
	MessagesPerName map[MessageName]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:       now,
		LastUpdateTime:  now,
		AnomalyByType:   make(map[AnomalyType]uint64),
		MessagesPerName: make(map[MessageName]uint64),
	}
}

// Update records one decode outcome: a message, an error, or both for a
// checksum failure
func (s *Statistics) Update(m *Message, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrChecksum):
			s.ChecksumErrors++
		case errors.Is(decodeErr, ErrParity):
			s.ParityErrors++
		case errors.Is(decodeErr, ErrUnclassifiedCall):
			s.Unclassified++
		case errors.Is(decodeErr, ErrNoMatchingDefinition):
			s.NoMatch++
		case errors.Is(decodeErr, ErrAmbiguousDefinition):
			s.Ambiguous++
		case errors.Is(decodeErr, ErrFrameOverflow):
			s.Overflows++
		}
		return
	}
	if m == nil {
		return
	}

	s.MessagesPerName[m.Name()]++
	if m.IsBare() {
		s.Polls++
	}
	if m.Name() == MsgUnimplemented {
		s.Unimplemented++
	}

	if len(validationErrors) > 0 {
		s.Anomalies++
		for _, v := range validationErrors {
			s.AnomalyByType[v.Type]++
		}
		return
	}
	s.ValidFrames++
}

// Errors returns the number of failed decodes
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.ParityErrors + s.Unclassified + s.NoMatch + s.Ambiguous + s.Overflows
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()+s.Anomalies) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", s.LastUpdateTime.Sub(s.StartTime).Seconds())
	fmt.Fprintf(&sb, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&sb, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))
	fmt.Fprintf(&sb, "  Polls:           %6d\n", s.Polls)

	lines := []struct {
		label string
		n     uint64
	}{
		{"Checksum Errors:", s.ChecksumErrors},
		{"Parity Errors:  ", s.ParityErrors},
		{"Unclassified:   ", s.Unclassified},
		{"No Match:       ", s.NoMatch},
		{"Ambiguous:      ", s.Ambiguous},
		{"Overflows:      ", s.Overflows},
		{"Unimplemented:  ", s.Unimplemented},
	}
	for _, l := range lines {
		if l.n > 0 {
			fmt.Fprintf(&sb, "%s %8d (%.1f%%)\n", l.label, l.n, percent(l.n))
		}
	}

	if s.Anomalies > 0 {
		fmt.Fprintf(&sb, "Anomalies:       %8d (%.1f%%)\n", s.Anomalies, percent(s.Anomalies))
		types := make([]AnomalyType, 0, len(s.AnomalyByType))
		for t := range s.AnomalyByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fmt.Fprintf(&sb, "  %-20s %5d\n", t.String()+":", s.AnomalyByType[t])
		}
	}

	fmt.Fprintf(&sb, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&sb, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	sb.WriteString("================================\n")
	return sb.String()
}

// TopMessages returns the n most frequent message names
func (s *Statistics) TopMessages(n int) []MessageName {
	names := make([]MessageName, 0, len(s.MessagesPerName))
	for name := range s.MessagesPerName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.MessagesPerName[names[i]], s.MessagesPerName[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if n >= 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
