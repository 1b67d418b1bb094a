// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	linkCheckDuration int
	linkCheckGap      time.Duration
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability without decoding",
	Long: `Listen on the connection without decoding and report the raw data received.

Every chunk is logged as hex with its arrival time. Silent periods longer
than --gap are reported, since the command station polls continuously and a
quiet bus points at wiring or bridge problems. Useful for debugging
connection stability issues of serial adapters and WebSocket bridges.

Exit codes:
  0 - Test completed normally
  1 - Test failed (connection lost or no data at all)
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
	linkCheckCmd.Flags().DurationVar(&linkCheckGap, "gap", 500*time.Millisecond, "Report silent periods longer than this")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbusmon - Link Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	chunks, errc := readChunks(ctx, conn)

	start := time.Now()
	end := start.Add(time.Duration(linkCheckDuration) * time.Second)
	var last time.Time
	bytesReceived, chunksReceived, gaps := 0, 0, 0
	var longestGap time.Duration

	results := func() {
		elapsed := time.Since(start)
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
		fmt.Printf("Chunks received: %d\n", chunksReceived)
		fmt.Printf("Bytes received: %d (%.0f bytes/s)\n", bytesReceived, float64(bytesReceived)/elapsed.Seconds())
		fmt.Printf("Gaps over %v: %d (longest %v)\n", linkCheckGap, gaps, longestGap.Round(time.Millisecond))
	}

	fmt.Printf("Listening for data...\n\n")

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	deadline := time.NewTimer(time.Until(end))
	defer deadline.Stop()

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), <-errc)
				results()
				fmt.Printf("Result: FAILED (connection error)\n")
				conn.Close()
				os.Exit(1)
			}
			if !last.IsZero() {
				if gap := c.at.Sub(last); gap > linkCheckGap {
					gaps++
					if gap > longestGap {
						longestGap = gap
					}
					fmt.Printf("[%s] Bus silent for %v\n", c.at.Format("15:04:05.000"), gap.Round(time.Millisecond))
				}
			}
			last = c.at
			bytesReceived += len(c.data)
			chunksReceived++
			fmt.Printf("[%s] Received %d bytes: % X\n", c.at.Format("15:04:05.000"), len(c.data), c.data)

		case <-heartbeat.C:
			if last.IsZero() || time.Since(last) > time.Second {
				fmt.Printf("[%s] Still connected, no data... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), time.Until(end).Seconds())
			}

		case <-deadline.C:
			results()
			if bytesReceived == 0 {
				fmt.Printf("Result: FAILED (no data received)\n")
				conn.Close()
				os.Exit(1)
			}
			fmt.Printf("Result: PASSED (connection stable)\n")
			return nil

		case <-ctx.Done():
			results()
			return nil
		}
	}
}
