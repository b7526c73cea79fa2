// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package elf reads and rewrites the 32-bit little-endian ELF images
// produced by the firmware build. It deliberately implements only the
// slice of the format the signing pipeline needs: the file header, the
// section header table and the section name string table. Anything
// outside that slice (program headers, symbols, relocations) is
// carried through untouched as raw bytes.
package elf

import (
	"bytes"
	"encoding/binary"

	"github.com/dotandev/fwsign/internal/errors"
)

// Fixed offsets into the ELF32 file header.
const (
	offMagic     = 0x00
	offClass     = 0x04
	offData      = 0x05
	offVersion   = 0x06
	offShoff     = 0x20
	offShentsize = 0x2e
	offShnum     = 0x30
	offShstrndx  = 0x32

	headerSize = 0x34

	// Section header entry fields we read. An entry is normally 40
	// bytes; we only require it to be large enough to reach sh_size.
	offShName      = 0
	offShOffset    = 16
	offShSize      = 20
	minShEntrySize = offShSize + 4
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Section is a named, bounded byte range within the container.
type Section struct {
	Index      int
	NameOffset uint32
	Name       string
	Offset     uint32
	Size       uint32
}

// File is a parsed container: the raw bytes plus the validated section
// table. The raw buffer is owned by the File and never mutated; Patch
// returns a fresh buffer.
type File struct {
	raw      []byte
	Sections []Section
}

// Parse validates the ELF header and reads the section table. It
// returns ErrBadFormat naming the violated invariant for anything the
// pipeline cannot sign: wrong magic, 64-bit or big-endian images,
// unknown versions, or a section table that does not fit the file.
func Parse(raw []byte) (*File, error) {
	if len(raw) < headerSize {
		return nil, errors.WrapBadFormat("file shorter than ELF header")
	}
	if !bytes.Equal(raw[offMagic:offMagic+4], elfMagic) {
		return nil, errors.WrapBadFormat("magic mismatch")
	}
	if raw[offClass] != 1 {
		return nil, errors.WrapBadFormat("only 32-bit ELF files are supported")
	}
	if raw[offData] != 1 {
		return nil, errors.WrapBadFormat("only little-endian ELF files are supported")
	}
	if raw[offVersion] != 1 {
		return nil, errors.WrapBadFormat("only ELF version 1 is supported")
	}

	shoff := uint64(binary.LittleEndian.Uint32(raw[offShoff:]))
	shentsize := uint64(binary.LittleEndian.Uint16(raw[offShentsize:]))
	shnum := uint64(binary.LittleEndian.Uint16(raw[offShnum:]))
	shstrndx := uint64(binary.LittleEndian.Uint16(raw[offShstrndx:]))

	if shentsize < minShEntrySize {
		return nil, errors.WrapBadFormat("section header entry too small")
	}
	if shoff+shnum*shentsize > uint64(len(raw)) {
		return nil, errors.WrapBadFormat("section header table runs past end of file")
	}
	if shstrndx >= shnum {
		return nil, errors.WrapBadFormat("section name index out of range")
	}

	sections := make([]Section, 0, shnum)
	for i := uint64(0); i < shnum; i++ {
		entry := raw[shoff+i*shentsize:]
		s := Section{
			Index:      int(i),
			NameOffset: binary.LittleEndian.Uint32(entry[offShName:]),
			Offset:     binary.LittleEndian.Uint32(entry[offShOffset:]),
			Size:       binary.LittleEndian.Uint32(entry[offShSize:]),
		}
		if uint64(s.Offset)+uint64(s.Size) > uint64(len(raw)) {
			return nil, errors.WrapBadFormat("section data runs past end of file")
		}
		sections = append(sections, s)
	}

	// Resolve section names from the string table section, stopping
	// at the table's bounds even when the terminator is missing.
	strtab := sections[shstrndx]
	for i := range sections {
		sections[i].Name = stringAt(raw, strtab, sections[i].NameOffset)
	}

	return &File{raw: raw, Sections: sections}, nil
}

func stringAt(raw []byte, strtab Section, nameOffset uint32) string {
	if nameOffset >= strtab.Size {
		return ""
	}
	start := strtab.Offset + nameOffset
	end := strtab.Offset + strtab.Size
	b := raw[start:end]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Raw returns the container bytes. Callers must not mutate them.
func (f *File) Raw() []byte {
	return f.raw
}

// Size returns the container length in bytes.
func (f *File) Size() int {
	return len(f.raw)
}
