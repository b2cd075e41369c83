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

// Package store persists the Last-Modified value of the last installed
// download, so the next check can ask the server for changes only.
//
// Values live in fixed 32 byte records addressed by slot, laid out the way
// they would be in EEPROM: NUL terminated text, or 0xFF in the first byte
// for a slot that was never written.
package store

import "bytes"

const (
	RecordSize = 32
	// Erased is the first byte of a record that holds no value.
	Erased byte = 0xff
)

// Record is one fixed-size slot.
type Record [RecordSize]byte

// EmptyRecord returns an erased record.
func EmptyRecord() Record {
	var r Record
	for i := range r {
		r[i] = Erased
	}
	return r
}

// NewRecord stores s, truncated to RecordSize-1 bytes, NUL terminated.
func NewRecord(s string) Record {
	var r Record
	n := copy(r[:RecordSize-1], s)
	r[n] = 0
	return r
}

// Value returns the stored text; false if the record was never written.
func (r Record) Value() (string, bool) {
	if r[0] == Erased {
		return "", false
	}
	end := bytes.IndexByte(r[:], 0)
	if end < 0 {
		end = RecordSize
	}
	return string(r[:end]), true
}

// Store is a persistent key-value store of records.
type Store interface {
	Get(slot int) (Record, error)
	Put(slot int, r Record) error
}
