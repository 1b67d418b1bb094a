// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbusmon/pkg/capture"
	"github.com/Thermoquad/xbusmon/pkg/railway"
	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var (
	replayStats bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file",
	Long: `Decode a capture file written by the record command.

Bytes are decoded with their recorded receive times, so frames interrupted
by a silent gap on the live bus are discarded the same way they were live.
The output matches raw_log. With --stats, a statistics summary and the final
layout state follow the messages.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics and layout state at the end")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}
	h := r.Header()
	fmt.Printf("xbusmon - Replay\n")
	fmt.Printf("Capture: %s (%s, recorded %s)\n\n", args[0], h.Port, h.Started.Format("2006-01-02 15:04:05"))

	mon := newMonitor(false)
	for {
		if err := cmd.Context().Err(); err != nil {
			return nil
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for _, ev := range mon.feed(rec.Data, rec.At) {
			printResult(ev.result)
		}
	}

	if mon.stream.Decoder().InFlight() {
		fmt.Printf("(capture ends inside a %s frame)\n", mon.stream.Decoder().State())
	}

	if replayStats {
		fmt.Println()
		fmt.Print(mon.stats.String())
		fmt.Println()
		fmt.Print(formatLayout(mon.layout.Snapshot()))
	}
	return nil
}

// formatLayout renders the layout state as plain text
func formatLayout(l railway.State) string {
	var b strings.Builder
	b.WriteString("=== Layout ===\n")
	fmt.Fprintf(&b, "Power:    %s\n", l.Power)
	if l.Station.HasVersion {
		station := l.Station.Version.String()
		if l.Station.HasType {
			station = xpressnet.StationTypeName(l.Station.Type) + " " + station
		}
		fmt.Fprintf(&b, "Station:  %s\n", station)
	}

	addrs := make([]int, 0, len(l.Switches))
	for a := range l.Switches {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	for _, a := range addrs {
		sw := l.Switches[a]
		moving := ""
		if sw.Moving {
			moving = " (moving)"
		}
		fmt.Fprintf(&b, "Switch %4d: %s%s\n", a, sw.Position, moving)
	}

	inputs := make([]int, 0, len(l.Feedback))
	for in := range l.Feedback {
		inputs = append(inputs, in)
	}
	sort.Ints(inputs)
	for _, in := range inputs {
		state := "free"
		if l.Feedback[in] {
			state = "occupied"
		}
		fmt.Fprintf(&b, "Input  %4d: %s\n", in, state)
	}

	locos := make([]int, 0, len(l.Locos))
	for a := range l.Locos {
		locos = append(locos, int(a))
	}
	sort.Ints(locos)
	for _, a := range locos {
		fmt.Fprintf(&b, "Loco   %4d: %s\n", a, formatLoco(l.Locos[uint16(a)]))
	}

	devices := make([]int, 0, len(l.DeviceLocos))
	for d := range l.DeviceLocos {
		devices = append(devices, int(d))
	}
	sort.Ints(devices)
	for _, d := range devices {
		fmt.Fprintf(&b, "Device %4d: %s\n", d, formatLoco(l.DeviceLocos[uint8(d)]))
	}

	if l.LastError != nil {
		fmt.Fprintf(&b, "Last error: %s (0x%02X)\n", l.LastError.Name, l.LastError.Code)
	}
	fmt.Fprintf(&b, "Transmission errors: %d\n", l.TransmissionErrors)
	b.WriteString("==============\n")
	return b.String()
}

func formatLoco(l xpressnet.Loco) string {
	dir := "reverse"
	if l.Forward {
		dir = "forward"
	}
	speed := fmt.Sprintf("speed %d/%d", l.Speed, l.SpeedSteps)
	if l.EmergencyStop {
		speed = "emergency stop"
	}
	s := fmt.Sprintf("%s %s, functions 0x%X", dir, speed, l.Functions)
	if l.Occupied {
		s += ", occupied"
	}
	return s
}
