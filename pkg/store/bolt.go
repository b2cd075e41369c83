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
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

const BucketMetadata = "metadata"

// BoltStore keeps records in a bbolt database, one key per slot.
type BoltStore struct {
	bdb *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketMetadata))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise bolt database: %w", err)
	}

	return &BoltStore{bdb: db}, nil
}

func (s *BoltStore) Close() error {
	if err := s.bdb.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	return nil
}

func slotKey(slot int) []byte {
	return []byte("slot:" + strconv.Itoa(slot))
}

func (s *BoltStore) Get(slot int) (Record, error) {
	r := EmptyRecord()
	err := s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketMetadata))
		if b == nil {
			return fmt.Errorf("bucket %q does not exist", BucketMetadata)
		}
		if v := b.Get(slotKey(slot)); v != nil {
			copy(r[:], v)
		}
		return nil
	})
	if err != nil {
		return EmptyRecord(), fmt.Errorf("failed to view bolt database: %w", err)
	}
	return r, nil
}

func (s *BoltStore) Put(slot int, r Record) error {
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketMetadata))
		if b == nil {
			return fmt.Errorf("bucket %q does not exist", BucketMetadata)
		}
		if err := b.Put(slotKey(slot), r[:]); err != nil {
			return fmt.Errorf("failed to put slot %d: %w", slot, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update bolt database: %w", err)
	}
	return nil
}
