// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture reads and writes recordings of raw bus bytes.
//
// A capture file is a CBOR sequence: one header item followed by one item
// per chunk read from the transport. Items use integer keys.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// File format identification
const (
	Magic   = "XBUSCAP"
	Version = 1
)

// ErrBadHeader is returned for files that are not xbusmon captures
var ErrBadHeader = errors.New("capture: not an xbusmon capture")

// Header describes a capture
type Header struct {
	Port    string
	Baud    int
	Started time.Time
}

// Record is one chunk of bytes with its receive time
type Record struct {
	At   time.Time
	Data []byte
}

type wireHeader struct {
	Magic   string `cbor:"0,keyasint"`
	Version uint   `cbor:"1,keyasint"`
	Port    string `cbor:"2,keyasint,omitempty"`
	Baud    int    `cbor:"3,keyasint,omitempty"`
	Started int64  `cbor:"4,keyasint"` // unix nanoseconds
}

type wireRecord struct {
	At   int64  `cbor:"0,keyasint"` // unix nanoseconds
	Data []byte `cbor:"1,keyasint"`
}

// Writer appends records to a capture
type Writer struct {
	buf *bufio.Writer
	enc *cbor.Encoder
}

// NewWriter writes the header and returns a writer for the records
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	buf := bufio.NewWriter(w)
	enc := cbor.NewEncoder(buf)
	err := enc.Encode(wireHeader{
		Magic:   Magic,
		Version: Version,
		Port:    h.Port,
		Baud:    h.Baud,
		Started: h.Started.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return &Writer{buf: buf, enc: enc}, nil
}

// Write appends one record. Empty chunks are skipped.
func (w *Writer) Write(at time.Time, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := w.enc.Encode(wireRecord{At: at.UnixNano(), Data: data}); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}
	return nil
}

// Flush writes buffered records to the underlying writer
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Reader reads records from a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(bufio.NewReader(r))
	var h wireHeader
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("capture: unsupported version %d", h.Version)
	}
	return &Reader{
		dec: dec,
		header: Header{
			Port:    h.Port,
			Baud:    h.Baud,
			Started: time.Unix(0, h.Started),
		},
	}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec wireRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: read record: %w", err)
	}
	return Record{At: time.Unix(0, rec.At), Data: rec.Data}, nil
}
