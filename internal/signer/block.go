// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"math/big"

	"github.com/dotandev/fwsign/internal/errors"
)

// Signature algorithm tags. The placeholder section is filled with
// TagNone by the build; the pipeline only ever writes the ECDSA tag.
const (
	TagNone                 byte = 0x00
	TagECDSASHA256SECP224R1 byte = 0x01
)

// ComponentSize is the fixed width of each signature component:
// ceil(224 curve order bits / 8).
const ComponentSize = 28

// BlockSize is the total encoded size of a signature block. It must
// match the size of the placeholder section reserved by the linker
// script: one tag byte, three alignment bytes, then r and s.
const BlockSize = 1 + 3 + 2*ComponentSize

// Block is the fixed-format signature block written into the
// placeholder section. R and S are big-endian, left-zero-padded.
type Block struct {
	Tag byte
	Pad [3]byte
	R   [ComponentSize]byte
	S   [ComponentSize]byte
}

// NewBlock assembles an ECDSA block from the raw signature integers.
// Values wider than the component width cannot come from a valid
// secp224r1 signature and are rejected.
func NewBlock(r, s *big.Int) (*Block, error) {
	b := &Block{Tag: TagECDSASHA256SECP224R1}
	if r.Sign() < 0 || r.BitLen() > 8*ComponentSize {
		return nil, errors.WrapIntegerTooLarge("r", 8*ComponentSize)
	}
	if s.Sign() < 0 || s.BitLen() > 8*ComponentSize {
		return nil, errors.WrapIntegerTooLarge("s", 8*ComponentSize)
	}
	r.FillBytes(b.R[:])
	s.FillBytes(b.S[:])
	return b, nil
}

// DecodeBlock parses an already-assembled block, e.g. the verbatim
// response of the remote signing service.
func DecodeBlock(raw []byte) (*Block, error) {
	if len(raw) != BlockSize {
		return nil, errors.WrapSignatureLength(len(raw), BlockSize)
	}
	b := &Block{Tag: raw[0]}
	copy(b.Pad[:], raw[1:4])
	copy(b.R[:], raw[4:4+ComponentSize])
	copy(b.S[:], raw[4+ComponentSize:])
	return b, nil
}

// Encode serializes the block into its on-device layout.
func (b *Block) Encode() []byte {
	out := make([]byte, 0, BlockSize)
	out = append(out, b.Tag)
	out = append(out, b.Pad[:]...)
	out = append(out, b.R[:]...)
	out = append(out, b.S[:]...)
	return out
}
