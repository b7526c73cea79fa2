// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/fwsign/internal/audit"
	"github.com/dotandev/fwsign/internal/logger"
	"github.com/dotandev/fwsign/internal/pipeline"
	"github.com/dotandev/fwsign/internal/signer"
	"github.com/dotandev/fwsign/internal/telemetry"
)

var noAuditFlag bool

var signCmd = &cobra.Command{
	Use:   "sign <elfPath> <signingKey> <sectionName> <elf2binCmd>",
	Short: "Sign a firmware ELF image in place",
	Long: `Sign computes a signature over the flat binary image derived from the ELF
and writes the signature block into the named placeholder section.

signingKey is either a path to a local private key (signed via the
openssl backend) or an https:// signing service URL (authenticated with
the credential in the ` + signer.AuthEnvVar + ` environment variable, user:password
form).

elf2binCmd is the external command producing the flat binary; the ELF
path and an output path are appended to it. The command must exclude or
clear the placeholder section.

Example:
  fwsign sign fw.elf /keys/fw.pem .signature "objcopy -O binary -R .signature"`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		elfPath, keyRef, sectionName, convertCmd := args[0], args[1], args[2], args[3]

		ctx := context.Background()
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.TelemetryEnabled,
			ExporterURL: cfg.TelemetryEndpoint,
			ServiceName: "fwsign",
		})
		if err != nil {
			return err
		}
		defer shutdown()

		opts := pipeline.Options{
			ElfPath:        elfPath,
			KeyRef:         keyRef,
			SectionName:    sectionName,
			ConvertCommand: convertCmd,
			Signer: signer.New(keyRef, signer.Options{
				Timeout: time.Duration(cfg.RemoteTimeoutSeconds) * time.Second,
			}),
		}

		if cfg.AuditEnabled && !noAuditFlag {
			store, err := audit.OpenDefault()
			if err != nil {
				// The audit trail is best-effort; a broken local
				// database must not block a release signing run.
				logger.Logger.Warn("audit store unavailable", "error", err)
			} else {
				defer store.Close()
				opts.Audit = store
			}
		}

		res, err := pipeline.Run(ctx, opts)
		if err != nil {
			return err
		}

		color.Green("Signed %s", elfPath)
		color.New(color.Faint).Printf("  section %s, image %d bytes, sha256 %s, %s key\n",
			res.Section, res.ImageSize, res.Digest, res.SignerKind)
		return nil
	},
}

func init() {
	signCmd.Flags().BoolVar(&noAuditFlag, "no-audit", false, "Skip recording this run in the local audit history")
	rootCmd.AddCommand(signCmd)
}
