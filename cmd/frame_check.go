// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var (
	frameCheckTimeout int
)

var frameCheckCmd = &cobra.Command{
	Use:   "frame_check",
	Short: "Test connection by waiting for a valid XpressNet message",
	Long: `Wait for a valid framed XpressNet message on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any framed
message from the command station whose checksum is correct. Polls and other
single-byte calls do not count, and decode errors are ignored while the
monitor synchronizes with the bus.

Exit codes:
  0 - Message received before timeout
  1 - Timeout reached without receiving a valid message
  2 - Connection error

Useful for testing the wiring of a bus interface or a WebSocket bridge.`,
	RunE: runFrameCheck,
}

func init() {
	rootCmd.AddCommand(frameCheckCmd)
	frameCheckCmd.Flags().IntVar(&frameCheckTimeout, "timeout", 10, "Timeout in seconds to wait for a message")
}

func runFrameCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbusmon - Frame Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameCheckTimeout)
	fmt.Printf("Waiting for valid XpressNet message...\n\n")

	mon := newMonitor(true)
	chunks, errc := readChunks(ctx, conn)
	deadline := time.After(time.Duration(frameCheckTimeout) * time.Second)

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				fmt.Fprintf(os.Stderr, "Read error: %v\n", <-errc)
				conn.Close()
				os.Exit(2)
			}
			for _, ev := range mon.feed(c.data, c.at) {
				if !ev.synced {
					continue
				}
				reportFrame(ev)
				conn.Close()
				os.Exit(0)
			}

		case <-deadline:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid message received within %d seconds\n", frameCheckTimeout)
			conn.Close()
			os.Exit(1)

		case <-ctx.Done():
			return nil
		}
	}
}

func reportFrame(ev busEvent) {
	msg := ev.result.Message
	if ev.skipped > 0 {
		fmt.Printf("(skipped %d invalid frames before sync)\n", ev.skipped)
	}
	fmt.Printf("SUCCESS: Received valid message\n")
	fmt.Printf("  Name: %s\n", msg.Name())
	if msg.IsBroadcast() {
		fmt.Printf("  Target: broadcast\n")
	} else {
		fmt.Printf("  Target: address %d\n", msg.Address())
	}
	fmt.Printf("  Length: %d bytes\n", len(msg.Raw()))
	fmt.Printf("  Checksum: 0x%02X\n", msg.Checksum())
	fmt.Printf("  Raw: %s\n", xpressnet.FormatBytes(msg.Raw()))
}
