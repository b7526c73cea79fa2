// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package elf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/dotandev/fwsign/internal/elf/elftest"
	"github.com/dotandev/fwsign/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigImage() []byte {
	return elftest.Build(
		elftest.Section{Name: ".text", Data: []byte("firmware code")},
		elftest.Section{Name: ".signature", Data: make([]byte, 60)},
	)
}

func TestParseResolvesSectionNames(t *testing.T) {
	f, err := Parse(sigImage())
	require.NoError(t, err)

	var names []string
	for _, s := range f.Sections {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, ".text")
	assert.Contains(t, names, ".signature")
	assert.Contains(t, names, ".shstrtab")
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw := sigImage()
	raw[3] = 'G'

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "magic mismatch")
}

func TestParseRejectsWrongClass(t *testing.T) {
	raw := sigImage()
	raw[4] = 2 // ELFCLASS64

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "32-bit")
}

func TestParseRejectsBigEndian(t *testing.T) {
	raw := sigImage()
	raw[5] = 2 // ELFDATA2MSB

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	raw := sigImage()
	raw[6] = 0

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "version 1")
}

func TestParseRejectsTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	require.ErrorIs(t, err, errors.ErrBadFormat)
}

func TestParseRejectsTablePastEOF(t *testing.T) {
	raw := sigImage()
	binary.LittleEndian.PutUint32(raw[0x20:], uint32(len(raw))) // shoff at EOF, entries past it

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "section header table")
}

func TestParseRejectsStrtabIndexOutOfRange(t *testing.T) {
	raw := sigImage()
	binary.LittleEndian.PutUint16(raw[0x32:], 0xffff)

	_, err := Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "name index")
}

func TestParseRejectsSectionDataPastEOF(t *testing.T) {
	raw := sigImage()
	f, err := Parse(raw)
	require.NoError(t, err)

	sec, err := f.Section(".signature")
	require.NoError(t, err)

	// Corrupt this section's size field in place.
	shoff := binary.LittleEndian.Uint32(raw[0x20:])
	entry := shoff + uint32(sec.Index)*40
	binary.LittleEndian.PutUint32(raw[entry+20:], uint32(len(raw)))

	_, err = Parse(raw)
	require.ErrorIs(t, err, errors.ErrBadFormat)
	assert.Contains(t, err.Error(), "section data")
}

func TestParseDoesNotMutateInput(t *testing.T) {
	raw := sigImage()
	orig := append([]byte(nil), raw...)

	_, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(orig, raw))
}

func TestSectionNotFound(t *testing.T) {
	f, err := Parse(sigImage())
	require.NoError(t, err)

	_, err = f.Section(".missing")
	require.ErrorIs(t, err, errors.ErrSectionNotFound)
}

func TestSectionAmbiguous(t *testing.T) {
	raw := elftest.Build(
		elftest.Section{Name: ".signature", Data: make([]byte, 60)},
		elftest.Section{Name: ".signature", Data: make([]byte, 60)},
	)
	f, err := Parse(raw)
	require.NoError(t, err)

	_, err = f.Section(".signature")
	require.ErrorIs(t, err, errors.ErrAmbiguousSection)
	assert.Contains(t, err.Error(), "2 sections")
}

func TestCheckReplacementSizeMismatch(t *testing.T) {
	f, err := Parse(sigImage())
	require.NoError(t, err)
	sec, err := f.Section(".signature")
	require.NoError(t, err)

	err = f.CheckReplacement(sec, make([]byte, 59))
	require.ErrorIs(t, err, errors.ErrSizeMismatch)

	err = f.CheckReplacement(sec, make([]byte, 61))
	require.ErrorIs(t, err, errors.ErrSizeMismatch)

	require.NoError(t, f.CheckReplacement(sec, make([]byte, 60)))
}

func TestPatchReplacesOnlyTargetBytes(t *testing.T) {
	raw := sigImage()
	f, err := Parse(raw)
	require.NoError(t, err)
	sec, err := f.Section(".signature")
	require.NoError(t, err)

	sig := bytes.Repeat([]byte{0xab}, 60)
	patched, err := f.Patch(sec, sig)
	require.NoError(t, err)

	require.Equal(t, len(raw), len(patched), "file length must not change")
	assert.Equal(t, sig, patched[sec.Offset:sec.Offset+sec.Size])

	for i := range patched {
		inside := uint32(i) >= sec.Offset && uint32(i) < sec.Offset+sec.Size
		if !inside && patched[i] != raw[i] {
			t.Fatalf("byte %d outside the section changed", i)
		}
	}
}

func TestPatchLeavesOriginalBufferIntact(t *testing.T) {
	raw := sigImage()
	orig := append([]byte(nil), raw...)
	f, err := Parse(raw)
	require.NoError(t, err)
	sec, err := f.Section(".signature")
	require.NoError(t, err)

	_, err = f.Patch(sec, bytes.Repeat([]byte{0xcd}, 60))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(orig, f.Raw()))
}

func TestWriteFileReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.elf")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o755))

	require.NoError(t, WriteFile(path, []byte("new content")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))

	// No temp files may be left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestWriteFileFailsOnMissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "no", "such", "dir", "fw.elf"), []byte("x"))
	require.ErrorIs(t, err, errors.ErrPersist)
}

func TestStringAtStopsAtTableBounds(t *testing.T) {
	// A name offset pointing past the string table resolves to "".
	raw := sigImage()
	f, err := Parse(raw)
	require.NoError(t, err)

	strtab := f.Sections[len(f.Sections)-1]
	require.Equal(t, ".shstrtab", strtab.Name)
	assert.Equal(t, "", stringAt(raw, strtab, strtab.Size+100))
}
