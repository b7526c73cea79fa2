// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package elf

import (
	"os"
	"path/filepath"

	"github.com/dotandev/fwsign/internal/errors"
)

// Section returns the single section with the given name. A missing
// name is ErrSectionNotFound; more than one match is
// ErrAmbiguousSection. Duplicate names are rejected outright rather
// than silently taking one of the matches, since a linker script that
// reserves the placeholder twice is a build misconfiguration.
func (f *File) Section(name string) (*Section, error) {
	var found *Section
	count := 0
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			found = &f.Sections[i]
			count++
		}
	}
	switch count {
	case 0:
		return nil, errors.WrapSectionNotFound(name)
	case 1:
		return found, nil
	default:
		return nil, errors.WrapAmbiguousSection(name, count)
	}
}

// CheckReplacement verifies that data fits the section exactly. The
// placeholder region is sized at link time; the replacement must never
// grow or shrink it.
func (f *File) CheckReplacement(sec *Section, data []byte) error {
	if uint32(len(data)) != sec.Size {
		return errors.WrapSizeMismatch(sec.Name, int(sec.Size), len(data))
	}
	return nil
}

// Patch returns a copy of the container with the section's bytes
// replaced. The original buffer is left untouched and the file length
// never changes.
func (f *File) Patch(sec *Section, data []byte) ([]byte, error) {
	if err := f.CheckReplacement(sec, data); err != nil {
		return nil, err
	}
	out := make([]byte, len(f.raw))
	copy(out, f.raw)
	copy(out[sec.Offset:], data)
	return out, nil
}

// WriteFile persists a patched container. The content is written to a
// temporary file in the same directory and renamed over the original,
// so a crash mid-write leaves the previous container intact.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.WrapPersist(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapPersist(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapPersist(err)
	}

	// Preserve the original file mode when it exists; firmware images
	// are often marked executable by the build.
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.WrapPersist(err)
	}
	return nil
}
