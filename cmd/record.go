// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/capture"
)

var (
	recordOut      string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record raw bus bytes to a capture file",
	Long: `Record the raw byte stream of the connection to a capture file.

Every chunk read from the transport is stored with its receive time, so a
replay decodes with the same gaps between bytes as the live bus. Recording
stops after --duration, or on Ctrl+C when no duration is given.

Valid messages are counted while recording to show that the bus is alive.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Capture file to write (required)")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 records until interrupted)")
	_ = recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	defer f.Close()

	source := cfg.Port
	if cfg.URL != "" {
		source = cfg.URL
	}
	w, err := capture.NewWriter(f, capture.Header{Port: source, Baud: cfg.Baud, Started: time.Now()})
	if err != nil {
		return err
	}

	fmt.Printf("xbusmon - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", recordOut)
	if recordDuration > 0 {
		fmt.Printf("Duration: %s\n", recordDuration)
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	mon := newMonitor(true)
	chunks, errc := readChunks(ctx, conn)
	var bytesWritten, messages int

	finish := func(readErr error) error {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush capture: %w", err)
		}
		logger.Info().
			Str("file", recordOut).
			Int("bytes", bytesWritten).
			Int("messages", messages).
			Msg("recording finished")
		return readErr
	}

	for {
		select {
		case <-ctx.Done():
			return finish(nil)

		case c, ok := <-chunks:
			if !ok {
				return finish(readError(ctx, errc))
			}
			if err := w.Write(c.at, c.data); err != nil {
				return err
			}
			bytesWritten += len(c.data)
			for _, ev := range mon.feed(c.data, c.at) {
				if ev.result.Err == nil {
					messages++
				}
			}
		}
	}
}
