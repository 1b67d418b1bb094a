// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of one decode step that produced output
type Result struct {
	Message *Message
	Err     error
}

// Stream feeds bus bytes into a Decoder. It owns the protocol version the
// decoder works with and discards frames interrupted by a silent gap on the
// line. A Stream must only be used from one goroutine.
type Stream struct {
	decoder  *Decoder
	version  Version
	timeout  time.Duration
	last     time.Time
	logger   zerolog.Logger
	observer func(Result)
}

// StreamOption configures a Stream
type StreamOption func(*Stream)

// WithVersion sets the initial protocol version
func WithVersion(v Version) StreamOption {
	return func(s *Stream) { s.version = v }
}

// WithInterByteTimeout sets the gap after which an in-flight frame is
// discarded. Zero disables the check.
func WithInterByteTimeout(d time.Duration) StreamOption {
	return func(s *Stream) { s.timeout = d }
}

// WithLogger sets the diagnostics logger
func WithLogger(l zerolog.Logger) StreamOption {
	return func(s *Stream) { s.logger = l }
}

// WithObserver registers a callback invoked for every result
func WithObserver(fn func(Result)) StreamOption {
	return func(s *Stream) { s.observer = fn }
}

// NewStream creates a stream over the decoder
func NewStream(d *Decoder, opts ...StreamOption) *Stream {
	s := &Stream{
		decoder: d,
		version: DefaultVersion,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version returns the protocol version used for decoding
func (s *Stream) Version() Version {
	return s.version
}

// SetVersion updates the protocol version. It is called by the layout model
// when the station reports its software version.
func (s *Stream) SetVersion(v Version) {
	if v != s.version {
		s.logger.Info().Str("from", s.version.String()).Str("to", v.String()).Msg("protocol version changed")
	}
	s.version = v
}

// Decoder returns the underlying decoder
func (s *Stream) Decoder() *Decoder {
	return s.decoder
}

// Feed decodes one byte received at the given time. It returns (nil, nil)
// while a frame is incomplete.
func (s *Stream) Feed(b byte, at time.Time) (*Message, error) {
	if s.timeout > 0 && s.decoder.InFlight() && !s.last.IsZero() && at.Sub(s.last) > s.timeout {
		s.logger.Debug().
			Str("state", s.decoder.State().String()).
			Dur("gap", at.Sub(s.last)).
			Msg("discarding interrupted frame")
		s.decoder.Reset()
	}
	s.last = at

	m, err := s.decoder.DecodeByte(b, at, s.version)
	if err != nil && errors.Is(err, ErrAmbiguousDefinition) {
		var de *DecodeError
		if errors.As(err, &de) {
			names := make([]string, len(de.Candidates))
			for i, n := range de.Candidates {
				names[i] = n.String()
			}
			s.logger.Error().
				Strs("candidates", names).
				Str("version", s.version.String()).
				Str("raw", FormatBytes(de.Raw)).
				Msg("ambiguous message definitions, catalog defect")
		}
	}
	if (m != nil || err != nil) && s.observer != nil {
		s.observer(Result{Message: m, Err: err})
	}
	return m, err
}

// FeedBytes decodes a chunk received at the given time and returns the
// results in order. Every byte of the chunk carries the same timestamp, so
// the inter-byte timeout only sees gaps between chunks, never inside one.
// The whole chunk is decoded with the version current at the call; callers
// that act on version reports mid-chunk should use Feed.
func (s *Stream) FeedBytes(p []byte, at time.Time) []Result {
	var out []Result
	for _, b := range p {
		m, err := s.Feed(b, at)
		if m != nil || err != nil {
			out = append(out, Result{Message: m, Err: err})
		}
	}
	return out
}

// Write implements io.Writer so a transport can copy straight into the
// stream. Results are delivered to the observer.
func (s *Stream) Write(p []byte) (int, error) {
	s.FeedBytes(p, time.Now())
	return len(p), nil
}
