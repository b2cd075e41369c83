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

package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStore keeps records in an EEPROM-style image file. A slot is a byte
// offset into the image; unwritten space reads as erased.
type FileStore struct {
	fs   afero.Fs
	path string
}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, path: path}
}

func (s *FileStore) Get(slot int) (Record, error) {
	if slot < 0 {
		return Record{}, fmt.Errorf("invalid slot: %d", slot)
	}

	r := EmptyRecord()

	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	} else if err != nil {
		return r, fmt.Errorf("failed to open store image: %w", err)
	}
	defer func() { _ = f.Close() }()

	n, err := f.ReadAt(r[:], int64(slot))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return EmptyRecord(), fmt.Errorf("failed to read slot %d: %w", slot, err)
	}
	// a short image reads as erased past its end
	for i := n; i < RecordSize; i++ {
		r[i] = Erased
	}
	return r, nil
}

func (s *FileStore) Put(slot int, r Record) error {
	if slot < 0 {
		return fmt.Errorf("invalid slot: %d", slot)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	f, err := s.fs.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open store image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat store image: %w", err)
	}

	// fill any gap before the slot with erased bytes
	if gap := int64(slot) - info.Size(); gap > 0 {
		pad := make([]byte, gap)
		for i := range pad {
			pad[i] = Erased
		}
		if _, err := f.WriteAt(pad, info.Size()); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to pad store image: %w", err)
		}
	}

	if _, err := f.WriteAt(r[:], int64(slot)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write slot %d: %w", slot, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close store image: %w", err)
	}
	return nil
}
