// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// xbusmon - XpressNet Bus Monitor
//
// A CLI tool for monitoring and decoding XpressNet model railway bus
// traffic in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/xbusmon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
