// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotandev/fwsign/internal/config"
	"github.com/dotandev/fwsign/internal/logger"
	"github.com/dotandev/fwsign/internal/updater"
)

// Global flag variables
var (
	VerboseFlag bool

	// cfg is loaded once in the persistent pre-run and shared by the
	// subcommands.
	cfg = config.DefaultConfig()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fwsign",
	Short: "Sign firmware ELF images in place",
	Long: `fwsign embeds a cryptographic signature into the placeholder section of a
compiled firmware ELF image, producing a tamper-evident artifact the
bootloader can verify.

The pipeline converts the ELF to its flat in-memory binary, computes its
SHA-256 digest, signs it with either a locally stored key or a remote
signing service, and rewrites the reserved section with the signature
block.

Examples:
  fwsign sign fw.elf /keys/fw.pem .signature "objcopy -O binary -R .signature"
  fwsign sign fw.elf "https://sign.example.com/api?key=fw" .signature elf2bin
  fwsign inspect fw.elf
  fwsign history --limit 10`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		if VerboseFlag {
			cfg.LogLevel = "debug"
		}
		logger.SetLevel(parseLevel(cfg.LogLevel))

		checkForUpdatesAsync()
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// checkForUpdatesAsync runs the update check in a goroutine to not
// block the signing run.
func checkForUpdatesAsync() {
	go func() {
		updater.NewChecker(Version).CheckForUpdates()
	}()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&VerboseFlag,
		"verbose", "v",
		false,
		"Enable debug tracing of the signing pipeline",
	)
}
