// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX...",
	Short: "Decode bytes given on the command line",
	Long: `Decode a byte sequence given as hex on the command line.

Bytes may be given as separate arguments or run together, with optional
0x prefixes, spaces, colons or commas:

  xbusmon decode E1 62 22 00 40
  xbusmon decode 60610160
  xbusmon decode --version-hint 2.3 0xE1,0x62,0x21,0x23,0x60

Frames are decoded with the protocol version from --version-hint (or the
configuration), and software version reports in the input switch it just as
on the live bus. The command fails when any frame fails to decode.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// parseHexArgs joins the arguments and decodes them as hex
func parseHexArgs(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool {
			return r == ' ' || r == ',' || r == ':' || r == '\t'
		}) {
			field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
			// "0" and "7" stand for single bytes
			if len(field) == 1 {
				field = "0" + field
			}
			sb.WriteString(field)
		}
	}

	data, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no bytes to decode")
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHexArgs(args)
	if err != nil {
		return err
	}

	mon := newMonitor(false)
	failures := 0
	for _, ev := range mon.feed(data, time.Now()) {
		printResult(ev.result)
		if ev.result.Err != nil {
			failures++
		}
	}

	if d := mon.stream.Decoder(); d.InFlight() {
		fmt.Printf("(input ends inside a frame, decoder waiting in %s)\n", d.State())
		failures++
	}
	if failures > 0 {
		return fmt.Errorf("%d frame(s) failed to decode", failures)
	}
	return nil
}
