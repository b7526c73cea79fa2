// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is. Each one maps to a
// distinct failure kind of the signing pipeline so callers (and
// automated tooling wrapping the CLI) can branch on the kind.
var (
	ErrBadFormat         = errors.New("malformed ELF container")
	ErrSectionNotFound   = errors.New("section not found")
	ErrAmbiguousSection  = errors.New("ambiguous section name")
	ErrSizeMismatch      = errors.New("section size mismatch")
	ErrExternalTool      = errors.New("external tool failed")
	ErrMissingCredential = errors.New("signing service credentials missing")
	ErrRemoteSigning     = errors.New("remote signing failed")
	ErrSignatureLength   = errors.New("signature has wrong length")
	ErrSignatureDecode   = errors.New("failed to decode signature")
	ErrIntegerTooLarge   = errors.New("signature integer too large")
	ErrPersist           = errors.New("failed to persist container")
	ErrConfig            = errors.New("configuration error")
)

// Wrap functions for consistent error wrapping

func WrapBadFormat(field string) error {
	return fmt.Errorf("%w: %s", ErrBadFormat, field)
}

func WrapSectionNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrSectionNotFound, name)
}

func WrapAmbiguousSection(name string, count int) error {
	return fmt.Errorf("%w: %q matches %d sections", ErrAmbiguousSection, name, count)
}

func WrapSizeMismatch(name string, want, got int) error {
	return fmt.Errorf("%w: section %q holds %d bytes, replacement is %d", ErrSizeMismatch, name, want, got)
}

func WrapExternalTool(cmd string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalTool, cmd, err)
}

func WrapMissingCredential(envVar string) error {
	return fmt.Errorf("%w: %s not exported from environment", ErrMissingCredential, envVar)
}

func WrapRemoteSigning(status int) error {
	return fmt.Errorf("%w: HTTP %d returned by service", ErrRemoteSigning, status)
}

func WrapSignatureLength(got, want int) error {
	return fmt.Errorf("%w: %d != %d", ErrSignatureLength, got, want)
}

func WrapSignatureDecode(err error) error {
	return fmt.Errorf("%w: %w", ErrSignatureDecode, err)
}

func WrapIntegerTooLarge(name string, bits int) error {
	return fmt.Errorf("%w: %s does not fit in %d bits", ErrIntegerTooLarge, name, bits)
}

func WrapPersist(err error) error {
	return fmt.Errorf("%w: %w", ErrPersist, err)
}

func WrapConfig(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
	}
	return fmt.Errorf("%w: %s", ErrConfig, msg)
}
