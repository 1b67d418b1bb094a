// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track decode errors, malformed frames and anomalous values with statistics.

This command validates each frame and detects:
  - Parity errors on call bytes
  - Checksum errors and frames no message definition matches
  - Anomalous content (odd feedback pairs, invalid BCD versions, unknown
    station types, unknown speed step modes, reserved receiver types)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Decode errors seen before the first valid framed message are counted but not
reported: they come from joining the bus in the middle of a frame. The
terminal UI also shows the layout state announced by the command station.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	serveMetrics(ctx)

	if useTUI {
		return runTUIMode(ctx, conn, connInfo)
	}
	return runTextMode(ctx, conn, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(at time.Time, err error) {
	timestamp := at.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31m%s\033[0m\n", timestamp, xpressnet.FormatError(err))
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printVersionReport prints a command station version report
func printVersionReport(msg *xpressnet.Message) {
	timestamp := msg.Timestamp().Format("15:04:05.000")
	info, err := xpressnet.SoftwareVersion(msg)
	if err != nil {
		return
	}
	station := "unknown station"
	if info.HasType {
		station = xpressnet.StationTypeName(info.StationType)
	}
	fmt.Printf("[%s] \033[1;32mSOFTWARE_VERSION:\033[0m %s version %s, decoding with it from now on\n\n",
		timestamp, station, info.Version)
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(msg *xpressnet.Message, errors []xpressnet.ValidationError) {
	timestamp := msg.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s [%s]\n", timestamp, msg.Name(), xpressnet.FormatBytes(msg.Raw()))
	if msg.ChecksumValid() {
		fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")
	} else {
		fmt.Printf("  Checksum: \033[1;31mMISMATCH\033[0m\n")
	}

	for i, err := range errors {
		switch err.Type {
		case xpressnet.AnomalyChecksum:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case xpressnet.AnomalyOddFeedbackPairs:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if length, ok := err.Details["length"].(int); ok {
				fmt.Printf("    Data bytes: %d (must be even)\n", length)
			}

		case xpressnet.AnomalyInvalidVersion:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if raw, ok := err.Details["raw"].(byte); ok {
				fmt.Printf("    Nibbles: %d.%d (each must be 0-9)\n", raw>>4, raw&0x0F)
			}

		case xpressnet.AnomalyUnknownStation:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case xpressnet.AnomalyUnknownSpeedSteps:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if mode, ok := err.Details["mode"].(byte); ok {
				fmt.Printf("    Mode=%d (valid: 0, 1, 2, 4)\n", mode)
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, conn Connection, connInfo string) error {
	mon := newMonitor(true)

	m := initialModel(connInfo, showAll, cfg.InitialVersion)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	chunks, errc := readChunks(ctx, conn)
	go func() {
		// The monitor is owned by this goroutine; the model only sees
		// events and layout snapshots
		for c := range chunks {
			events := mon.feed(c.data, c.at)
			for _, ev := range events {
				p.Send(busDataMsg{event: ev})
			}
			if len(events) > 0 {
				p.Send(layoutMsg{state: mon.layout.Snapshot(), version: mon.stream.Version()})
			}
		}
		err := <-errc
		if ctx.Err() == nil {
			p.Send(connectionLostMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, conn Connection, connInfo string) error {
	fmt.Printf("xbusmon - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	mon := newMonitor(true)
	chunks, errc := readChunks(ctx, conn)

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(mon.stats.String())
			return nil

		case c, ok := <-chunks:
			if !ok {
				return readError(ctx, errc)
			}
			for _, ev := range mon.feed(c.data, c.at) {
				printEvent(ev, c.at)
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(mon.stats.String())
			fmt.Println()
		}
	}
}

func printEvent(ev busEvent, at time.Time) {
	if ev.synced {
		if ev.skipped > 0 {
			fmt.Printf("[SYNC] Synchronized after skipping %d invalid frames\n\n", ev.skipped)
		} else {
			fmt.Printf("[SYNC] Synchronized\n\n")
		}
	}

	msg := ev.result.Message
	switch {
	case ev.result.Err != nil && msg == nil:
		printDecodeError(at, ev.result.Err)
	case len(ev.anomalies) > 0:
		printValidationErrors(msg, ev.anomalies)
	case msg.Name() == xpressnet.MsgSoftwareVersionReport23 || msg.Name() == xpressnet.MsgSoftwareVersionReport30:
		// Always print version reports, they change how frames decode
		printVersionReport(msg)
	case showAll:
		fmt.Print(xpressnet.FormatMessage(msg))
	}
}
