// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"bytes"
	"context"
	"encoding/asn1"
	"math/big"
	"os/exec"

	"github.com/dotandev/fwsign/internal/errors"
	"github.com/dotandev/fwsign/internal/logger"
)

// CommandRunner executes an external command and returns its stdout.
// The concrete runner uses os/exec; tests substitute a fake so no real
// openssl invocation is needed.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		logger.Logger.Error("command failed", "cmd", name, "stderr", stderr.String())
	}
	return out, err
}

// LocalSigner signs with a locally stored private key through the
// openssl command line backend.
type LocalSigner struct {
	KeyPath string
	runner  CommandRunner
}

func NewLocalSigner(keyPath string, runner CommandRunner) *LocalSigner {
	if runner == nil {
		runner = execRunner{}
	}
	return &LocalSigner{KeyPath: keyPath, runner: runner}
}

func (s *LocalSigner) Kind() string { return "local" }

// ecdsaSignature is the DER SEQUENCE of two INTEGERs produced by the
// openssl dgst backend.
type ecdsaSignature struct {
	R, S *big.Int
}

// Sign hashes and signs the flat image with the local key, then
// re-encodes the DER (r, s) pair as a fixed-width signature block.
func (s *LocalSigner) Sign(ctx context.Context, req Request) (*Block, error) {
	logger.Logger.Debug("signing with local key", "key", s.KeyPath, "image", req.ImagePath)

	out, err := s.runner.Output(ctx, "openssl", "dgst", "-sha256", "-sign", s.KeyPath, req.ImagePath)
	if err != nil {
		return nil, errors.WrapExternalTool("openssl dgst", err)
	}

	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(out, &sig)
	if err != nil {
		return nil, errors.WrapSignatureDecode(err)
	}
	if len(rest) != 0 {
		return nil, errors.WrapSignatureDecode(asn1.SyntaxError{Msg: "trailing data after signature"})
	}

	return NewBlock(sig.R, sig.S)
}
