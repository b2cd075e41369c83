// Zaparoo Nextion
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Nextion.
//
// Zaparoo Nextion is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Nextion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Nextion.  If not, see <http://www.gnu.org/licenses/>.

// Package helpers provides fixtures shared by tests across packages.
package helpers

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOSFS creates a filesystem helper using the real filesystem (for integration tests)
func NewOSFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewOsFs(),
	}
}

// CreateTFTFile writes a size byte file with a repeating pattern and
// returns its content.
func (h *FSHelper) CreateTFTFile(path string, size int) ([]byte, error) {
	data := Payload(size)
	if err := h.writeFile(path, data); err != nil {
		return nil, err
	}
	return data, nil
}

// CreateStoreImage writes an EEPROM image of size bytes, erased except for
// value stored at offset.
func (h *FSHelper) CreateStoreImage(path string, size, offset int, value string) error {
	if offset+len(value) >= size {
		return fmt.Errorf("value does not fit at offset %d in %d bytes", offset, size)
	}
	img := make([]byte, size)
	for i := range img {
		img[i] = 0xFF
	}
	copy(img[offset:], value)
	img[offset+len(value)] = 0
	return h.writeFile(path, img)
}

func (h *FSHelper) writeFile(path string, data []byte) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists
func (h *FSHelper) FileExists(path string) bool {
	exists, err := afero.Exists(h.Fs, path)
	return err == nil && exists
}

// ReadFile reads a file's content
func (h *FSHelper) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}
