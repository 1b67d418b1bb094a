// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded bus traffic in human-readable format",
	Long: `Continuously decode and display XpressNet messages as they arrive.

Each message is shown with timestamp, message name, target address, raw bytes
and decoded payload data. Decode failures are shown with the bytes collected
for the failed frame.

When metrics_addr is set in the configuration file, Prometheus counters are
served on /metrics while the command runs.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("xbusmon - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Protocol version: %s (until reported)\n", cfg.InitialVersion)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	serveMetrics(ctx)

	mon := newMonitor(false)
	chunks, errc := readChunks(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case c, ok := <-chunks:
			if !ok {
				return readError(ctx, errc)
			}
			for _, ev := range mon.feed(c.data, c.at) {
				printResult(ev.result)
			}
		}
	}
}

// printResult prints a message, a failure, or both for a checksum mismatch
func printResult(r xpressnet.Result) {
	if r.Message != nil {
		fmt.Print(xpressnet.FormatMessage(r.Message))
		return
	}
	if r.Err != nil {
		fmt.Printf("[ERROR] %s\n", xpressnet.FormatError(r.Err))
	}
}

// readError returns the terminal read error, or nil when the connection was
// closed or the command cancelled
func readError(ctx context.Context, errc <-chan error) error {
	err := <-errc
	if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
		logger.Info().Msg("connection closed")
		return nil
	}
	return fmt.Errorf("read failed: %w", err)
}
