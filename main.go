// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rdacmon - RDAC engine telemetry link monitor
//
// A CLI tool for decoding the RDAC sensor-acquisition serial link into
// validated sensor readings and republishing them.

package main

import (
	"os"

	"github.com/enginemonitor/rdacmon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
