// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package signer produces the signature block for a flat firmware
// image. Two interchangeable strategies exist: LocalSigner shells out
// to a local asymmetric-key backend, RemoteSigner calls an HTTPS
// signing service. The strategy is selected once at startup from the
// shape of the key reference.
package signer

import (
	"context"
	"strings"
	"time"
)

// Request carries the signable image: the materialized flat image on
// disk for the local backend, and its SHA-256 digest for the remote
// service.
type Request struct {
	ImagePath string
	Digest    [32]byte
}

// Signer is the common capability of both signing strategies.
type Signer interface {
	// Sign produces a signature block over the flat image.
	Sign(ctx context.Context, req Request) (*Block, error)

	// Kind returns the strategy name, "local" or "remote".
	Kind() string
}

// Options tune strategy construction. The zero value is usable.
type Options struct {
	// Timeout bounds the remote service round trip. Defaults to
	// DefaultRemoteTimeout.
	Timeout time.Duration

	// Runner overrides the local command execution, for tests.
	Runner CommandRunner
}

// New selects a strategy from the key reference: an https:// URL means
// the remote signing service, anything else is a local key path.
func New(keyRef string, opts Options) Signer {
	if strings.HasPrefix(keyRef, "https://") {
		return NewRemoteSigner(keyRef, opts.Timeout)
	}
	return NewLocalSigner(keyRef, opts.Runner)
}
