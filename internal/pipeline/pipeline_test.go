// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/dotandev/fwsign/internal/audit"
	"github.com/dotandev/fwsign/internal/elf"
	"github.com/dotandev/fwsign/internal/elf/elftest"
	"github.com/dotandev/fwsign/internal/errors"
	"github.com/dotandev/fwsign/internal/image"
	"github.com/dotandev/fwsign/internal/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatMaterializer emulates the external conversion tool: it parses
// the container and concatenates every allocated section except the
// signature placeholder, which is what the real elf2bin command does.
type flatMaterializer struct {
	exclude string
	calls   int
}

func (m *flatMaterializer) Materialize(ctx context.Context, elfPath string) (*image.Flat, error) {
	m.calls++

	raw, err := os.ReadFile(elfPath)
	if err != nil {
		return nil, err
	}
	f, err := elf.Parse(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, s := range f.Sections {
		if s.Name == m.exclude || s.Name == "" || s.Name == ".shstrtab" {
			continue
		}
		buf.Write(raw[s.Offset : s.Offset+s.Size])
	}

	tmp, err := os.CreateTemp("", "fwsign-test-*.bin")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	return &image.Flat{
		Path:   tmp.Name(),
		Size:   int64(buf.Len()),
		Digest: sha256.Sum256(buf.Bytes()),
	}, nil
}

// fixedSigner returns a canned block and remembers the digest it saw.
type fixedSigner struct {
	block  *signer.Block
	err    error
	digest [32]byte
	calls  int
}

func (s *fixedSigner) Sign(ctx context.Context, req signer.Request) (*signer.Block, error) {
	s.calls++
	s.digest = req.Digest
	return s.block, s.err
}

func (s *fixedSigner) Kind() string { return "fake" }

func writeImage(t *testing.T, sigSize int) string {
	t.Helper()
	raw := elftest.Build(
		elftest.Section{Name: ".text", Data: []byte("reset vector and code")},
		elftest.Section{Name: ".sig", Data: make([]byte, sigSize)},
	)
	path := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func testBlock(t *testing.T) *signer.Block {
	t.Helper()
	r, _ := new(big.Int).SetString("1111111111111111111111111111111111111111111111111111cafe", 16)
	s, _ := new(big.Int).SetString("2222222222222222222222222222222222222222222222222222beef", 16)
	b, err := signer.NewBlock(r, s)
	require.NoError(t, err)
	return b
}

func TestRunSignsPlaceholderSection(t *testing.T) {
	path := writeImage(t, signer.BlockSize)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	sgn := &fixedSigner{block: testBlock(t)}
	mat := &flatMaterializer{exclude: ".sig"}

	res, err := Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".sig",
		Signer:       sgn,
		Materializer: mat,
	})
	require.NoError(t, err)

	assert.Equal(t, ".sig", res.Section)
	assert.Equal(t, "fake", res.SignerKind)
	assert.NotZero(t, res.ImageSize)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, len(orig), len(got), "file length must not change")

	f, err := elf.Parse(got)
	require.NoError(t, err)
	sec, err := f.Section(".sig")
	require.NoError(t, err)

	sig := got[sec.Offset : sec.Offset+sec.Size]
	assert.Equal(t, signer.TagECDSASHA256SECP224R1, sig[0])
	assert.NotEqual(t, make([]byte, signer.ComponentSize), sig[4:4+signer.ComponentSize], "r must be non-zero")

	// Only the placeholder bytes may differ.
	for i := range got {
		inside := uint32(i) >= sec.Offset && uint32(i) < sec.Offset+sec.Size
		if !inside && got[i] != orig[i] {
			t.Fatalf("byte %d outside the section changed", i)
		}
	}
}

func TestRunSignedDigestMatchesReextraction(t *testing.T) {
	path := writeImage(t, signer.BlockSize)

	sgn := &fixedSigner{block: testBlock(t)}
	mat := &flatMaterializer{exclude: ".sig"}

	_, err := Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".sig",
		Signer:       sgn,
		Materializer: mat,
	})
	require.NoError(t, err)

	// Re-extracting the flat image (signature section excluded) must
	// reproduce the digest that was signed.
	flat, err := mat.Materialize(context.Background(), path)
	require.NoError(t, err)
	defer flat.Remove()
	assert.Equal(t, sgn.digest, flat.Digest)
}

func TestRunBadMagicLeavesFileUntouched(t *testing.T) {
	path := writeImage(t, signer.BlockSize)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[3] = 'G'
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	mat := &flatMaterializer{exclude: ".sig"}
	_, err = Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".sig",
		Signer:       &fixedSigner{block: testBlock(t)},
		Materializer: mat,
	})
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "magic mismatch")
	assert.Zero(t, mat.calls)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRunWrongPlaceholderSizeFailsEarly(t *testing.T) {
	path := writeImage(t, signer.BlockSize-1)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	sgn := &fixedSigner{block: testBlock(t)}
	mat := &flatMaterializer{exclude: ".sig"}

	_, err = Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".sig",
		Signer:       sgn,
		Materializer: mat,
	})
	require.ErrorIs(t, err, errors.ErrSizeMismatch)

	// Nothing downstream of the size check may run.
	assert.Zero(t, mat.calls)
	assert.Zero(t, sgn.calls)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestRunMissingSection(t *testing.T) {
	path := writeImage(t, signer.BlockSize)

	_, err := Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".no_such_section",
		Signer:       &fixedSigner{block: testBlock(t)},
		Materializer: &flatMaterializer{exclude: ".sig"},
	})
	require.ErrorIs(t, err, errors.ErrSectionNotFound)
}

func TestRunSignerFailureLeavesFileUntouched(t *testing.T) {
	path := writeImage(t, signer.BlockSize)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "https://svc/sign?key=fw",
		SectionName:  ".sig",
		Signer:       &fixedSigner{err: errors.WrapRemoteSigning(503)},
		Materializer: &flatMaterializer{exclude: ".sig"},
	})
	require.ErrorIs(t, err, errors.ErrRemoteSigning)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestRunRecordsAuditTrail(t *testing.T) {
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	path := writeImage(t, signer.BlockSize)
	_, err = Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".sig",
		Signer:       &fixedSigner{block: testBlock(t)},
		Materializer: &flatMaterializer{exclude: ".sig"},
		Audit:        store,
	})
	require.NoError(t, err)

	// A failed run is recorded too.
	_, err = Run(context.Background(), Options{
		ElfPath:      path,
		KeyRef:       "/keys/fw.pem",
		SectionName:  ".missing",
		Signer:       &fixedSigner{block: testBlock(t)},
		Materializer: &flatMaterializer{exclude: ".sig"},
		Audit:        store,
	})
	require.ErrorIs(t, err, errors.ErrSectionNotFound)

	runs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, audit.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMsg, "section not found")
	assert.Equal(t, audit.StatusSigned, runs[1].Status)
	assert.NotEmpty(t, runs[1].Digest)
}
