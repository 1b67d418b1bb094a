// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	started := time.Unix(1700000000, 123456789)

	w, err := NewWriter(&buf, Header{Port: "/dev/ttyUSB0", Baud: 62500, Started: started})
	require.NoError(t, err)
	require.NoError(t, w.Write(started.Add(time.Millisecond), []byte{0x43}))
	require.NoError(t, w.Write(started.Add(2*time.Millisecond), nil))
	require.NoError(t, w.Write(started.Add(3*time.Millisecond), []byte{0x60, 0x61, 0x01, 0x60}))
	require.NoError(t, w.Flush())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", r.Header().Port)
	require.Equal(t, 62500, r.Header().Baud)
	require.True(t, r.Header().Started.Equal(started))

	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, []byte{0x43}, rec.Data)
	require.True(t, rec.At.Equal(started.Add(time.Millisecond)))

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x61, 0x01, 0x60}, rec.Data)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsForeignData(t *testing.T) {
	data, err := cbor.Marshal(map[int]interface{}{0: "PCAP", 1: 1})
	require.NoError(t, err)
	_, err = NewReader(bytes.NewReader(data))
	require.True(t, errors.Is(err, ErrBadHeader))

	_, err = NewReader(bytes.NewReader(nil))
	require.True(t, errors.Is(err, ErrBadHeader))
}

func TestReaderRejectsNewerVersion(t *testing.T) {
	data, err := cbor.Marshal(wireHeader{Magic: Magic, Version: Version + 1})
	require.NoError(t, err)
	_, err = NewReader(bytes.NewReader(data))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrBadHeader))
}

func TestReaderTruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{Started: time.Unix(0, 0)})
	require.NoError(t, err)
	require.NoError(t, w.Write(time.Unix(1, 0), []byte{1, 2, 3, 4}))
	require.NoError(t, w.Flush())

	truncated := buf.Bytes()[:buf.Len()-2]
	r, err := NewReader(bytes.NewReader(truncated))
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	require.False(t, errors.Is(err, io.EOF))
}
