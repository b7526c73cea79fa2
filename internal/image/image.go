// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package image derives the flat, device-loadable memory image from an
// ELF container by driving the external conversion tool, and computes
// the digest that gets signed.
package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dotandev/fwsign/internal/errors"
	"github.com/dotandev/fwsign/internal/logger"
)

// Flat is a materialized flat image: its location on disk, byte length
// and SHA-256 digest. The digest is what both signing strategies
// operate on.
type Flat struct {
	Path   string
	Size   int64
	Digest [32]byte
}

// HexDigest returns the digest as a lowercase hex string.
func (f *Flat) HexDigest() string {
	return hex.EncodeToString(f.Digest[:])
}

// Remove deletes the temporary flat image file.
func (f *Flat) Remove() {
	if f.Path != "" {
		os.Remove(f.Path)
	}
}

// Materializer produces the flat image for a container. The command
// variant is the production implementation; tests substitute fakes so
// the pipeline runs without external tools.
type Materializer interface {
	Materialize(ctx context.Context, elfPath string) (*Flat, error)
}

// Runner executes the conversion command. Injectable for tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logger.Logger.Error("conversion command failed", "cmd", name, "stderr", stderr.String())
		return err
	}
	return nil
}

// CommandMaterializer runs an external elf-to-binary command of the
// form `cmd [flags] <elfPath> <outputPath>`. The command is expected
// to exclude or clear the signature placeholder section, so the bytes
// being signed never contain the signature itself.
type CommandMaterializer struct {
	// Command is the conversion command line, e.g.
	// "arm-none-eabi-objcopy -O binary -R .signature". The container
	// path and output path are appended as the final two arguments.
	Command string

	runner Runner
}

func NewCommandMaterializer(command string, runner Runner) *CommandMaterializer {
	if runner == nil {
		runner = execRunner{}
	}
	return &CommandMaterializer{Command: command, runner: runner}
}

// Materialize converts the container to its flat memory image in a
// temporary file and digests it. The conversion tool cannot write to a
// pipe, hence the tempfile.
func (m *CommandMaterializer) Materialize(ctx context.Context, elfPath string) (*Flat, error) {
	fields := strings.Fields(m.Command)
	if len(fields) == 0 {
		return nil, errors.WrapExternalTool(m.Command, fmt.Errorf("empty conversion command"))
	}

	tmp, err := os.CreateTemp("", "fwsign-*.bin")
	if err != nil {
		return nil, errors.WrapExternalTool(fields[0], err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	args := append(fields[1:], elfPath, tmpName)
	logger.Logger.Debug("generating flat image", "cmd", fields[0], "args", args)

	if err := m.runner.Run(ctx, fields[0], args...); err != nil {
		os.Remove(tmpName)
		return nil, errors.WrapExternalTool(m.Command, err)
	}

	flat, err := digestFile(tmpName)
	if err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	if flat.Size == 0 {
		os.Remove(tmpName)
		return nil, errors.WrapExternalTool(m.Command, fmt.Errorf("conversion produced no output"))
	}

	logger.Logger.Debug("flat image ready", "length", flat.Size, "sha256", flat.HexDigest())
	return flat, nil
}

func digestFile(path string) (*Flat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapExternalTool("read flat image", err)
	}
	return &Flat{
		Path:   path,
		Size:   int64(len(data)),
		Digest: sha256.Sum256(data),
	}, nil
}
