// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/dotandev/fwsign/internal/cmd"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

func main() {
	cmd.Version = Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
