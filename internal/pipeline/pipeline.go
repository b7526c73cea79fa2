// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the firmware signing sequence: parse the ELF
// container, locate the placeholder section, materialize the flat
// image, sign its digest, and patch the signature block back into the
// container. Every stage either produces validated input for the next
// or fails the whole run; nothing is written to disk before the last
// stage.
package pipeline

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dotandev/fwsign/internal/audit"
	"github.com/dotandev/fwsign/internal/elf"
	"github.com/dotandev/fwsign/internal/errors"
	"github.com/dotandev/fwsign/internal/image"
	"github.com/dotandev/fwsign/internal/logger"
	"github.com/dotandev/fwsign/internal/signer"
	"github.com/dotandev/fwsign/internal/telemetry"
)

// Options configures one pipeline run.
type Options struct {
	ElfPath        string
	KeyRef         string
	SectionName    string
	ConvertCommand string

	// Signer overrides the strategy selected from KeyRef. Tests use
	// this to avoid real openssl or network access.
	Signer signer.Signer

	// Materializer overrides the external conversion command.
	Materializer image.Materializer

	// Audit, when set, records the run (including failures).
	Audit *audit.Store
}

// Result reports what was signed, for CLI output and the audit trail.
type Result struct {
	Section    string
	ImageSize  int64
	Digest     string
	SignerKind string
}

// Run executes the pipeline. On any error the container file on disk
// is left untouched.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.Start(ctx, "sign_firmware")
	span.SetAttributes(
		attribute.String("elf.path", opts.ElfPath),
		attribute.String("elf.section", opts.SectionName),
	)
	defer span.End()

	sgn := opts.Signer
	if sgn == nil {
		sgn = signer.New(opts.KeyRef, signer.Options{})
	}
	mat := opts.Materializer
	if mat == nil {
		mat = image.NewCommandMaterializer(opts.ConvertCommand, nil)
	}

	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		recordAudit(opts, sgn.Kind(), res, err)
	}()

	logger.Logger.Info("signing firmware image",
		"elf", opts.ElfPath, "section", opts.SectionName, "signer", sgn.Kind())

	// Parse and validate the container before spending any work on
	// conversion or signing.
	raw, readErr := os.ReadFile(opts.ElfPath)
	if readErr != nil {
		return nil, errors.WrapConfig("failed to read ELF container", readErr)
	}
	f, err := elf.Parse(raw)
	if err != nil {
		return nil, err
	}
	sec, err := f.Section(opts.SectionName)
	if err != nil {
		return nil, err
	}

	// The placeholder must fit the signature block exactly. Checking
	// up front keeps "file unchanged on failure" trivially true and
	// avoids a pointless signing round trip.
	if err := f.CheckReplacement(sec, make([]byte, signer.BlockSize)); err != nil {
		return nil, err
	}

	ctx, matSpan := tracer.Start(ctx, "materialize_image")
	flat, err := mat.Materialize(ctx, opts.ElfPath)
	matSpan.End()
	if err != nil {
		return nil, err
	}
	defer flat.Remove()
	span.SetAttributes(
		attribute.Int64("image.size_bytes", flat.Size),
		attribute.String("image.sha256", flat.HexDigest()),
	)

	ctx, signSpan := tracer.Start(ctx, "sign_digest")
	signSpan.SetAttributes(attribute.String("signer.kind", sgn.Kind()))
	block, err := sgn.Sign(ctx, signer.Request{ImagePath: flat.Path, Digest: flat.Digest})
	signSpan.End()
	if err != nil {
		return nil, err
	}

	patched, err := f.Patch(sec, block.Encode())
	if err != nil {
		return nil, err
	}
	if err := elf.WriteFile(opts.ElfPath, patched); err != nil {
		return nil, err
	}

	logger.Logger.Info("signature written",
		"section", opts.SectionName, "image_length", flat.Size, "sha256", flat.HexDigest())

	return &Result{
		Section:    opts.SectionName,
		ImageSize:  flat.Size,
		Digest:     flat.HexDigest(),
		SignerKind: sgn.Kind(),
	}, nil
}

func recordAudit(opts Options, kind string, res *Result, runErr error) {
	if opts.Audit == nil {
		return
	}
	run := &audit.Run{
		ElfPath:    opts.ElfPath,
		Section:    opts.SectionName,
		SignerKind: kind,
		KeyRef:     opts.KeyRef,
		Status:     audit.StatusSigned,
	}
	if res != nil {
		run.ImageSize = res.ImageSize
		run.Digest = res.Digest
	}
	if runErr != nil {
		run.Status = audit.StatusFailed
		run.ErrorMsg = runErr.Error()
	}
	if err := opts.Audit.Record(run); err != nil {
		logger.Logger.Warn("failed to record audit entry", "error", err)
	}
}
