// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package elftest builds minimal 32-bit little-endian ELF images for
// tests. The images carry a null section, the caller's sections and a
// trailing .shstrtab, which is enough for the signing pipeline.
package elftest

import "encoding/binary"

const (
	headerSize  = 0x34
	shEntrySize = 40
)

// Section describes one section of a synthetic image.
type Section struct {
	Name string
	Data []byte
}

// Build assembles an ELF image containing the given sections. Section
// data is laid out after the header in argument order, followed by the
// string table and the section header table.
func Build(secs ...Section) []byte {
	// String table: leading NUL, then every name NUL-terminated.
	strtab := []byte{0}
	nameOff := make([]uint32, len(secs))
	for i, s := range secs {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}
	strtabNameOff := uint32(len(strtab))
	strtab = append(strtab, ".shstrtab"...)
	strtab = append(strtab, 0)

	// Data layout.
	dataOff := make([]uint32, len(secs))
	off := uint32(headerSize)
	for i, s := range secs {
		dataOff[i] = off
		off += uint32(len(s.Data))
	}
	strtabOff := off
	off += uint32(len(strtab))
	shoff := off

	shnum := len(secs) + 2 // null + sections + .shstrtab
	total := int(shoff) + shnum*shEntrySize

	out := make([]byte, total)
	copy(out, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	binary.LittleEndian.PutUint32(out[0x20:], shoff)
	binary.LittleEndian.PutUint16(out[0x2e:], shEntrySize)
	binary.LittleEndian.PutUint16(out[0x30:], uint16(shnum))
	binary.LittleEndian.PutUint16(out[0x32:], uint16(shnum-1))

	for i, s := range secs {
		copy(out[dataOff[i]:], s.Data)
	}
	copy(out[strtabOff:], strtab)

	putEntry := func(index int, nameOff, off, size uint32) {
		entry := out[int(shoff)+index*shEntrySize:]
		binary.LittleEndian.PutUint32(entry[0:], nameOff)
		binary.LittleEndian.PutUint32(entry[16:], off)
		binary.LittleEndian.PutUint32(entry[20:], size)
	}

	// Entry 0 stays all-zero (the conventional null section).
	for i, s := range secs {
		putEntry(i+1, nameOff[i], dataOff[i], uint32(len(s.Data)))
	}
	putEntry(shnum-1, strtabNameOff, strtabOff, uint32(len(strtab)))

	return out
}
