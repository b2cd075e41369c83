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

package download

import (
	"crypto/md5" //nolint:gosec // diagnostic digest compared against md5sum on the server
	"encoding/hex"
	"hash"

	"github.com/rs/zerolog/log"
)

// BlockObserver sees every block as it is handed to the display.
type BlockObserver interface {
	Begin(total int)
	Block(offset int, data []byte)
	Complete(total int)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) Begin(int)         {}
func (NopObserver) Block(int, []byte) {}
func (NopObserver) Complete(int)      {}

// MD5Observer hashes the uploaded payload and logs the digest once the
// upload completes. Compare it with md5sum of the file on the server when
// the display reports a checksum error.
type MD5Observer struct {
	h   hash.Hash
	sum string
}

func (o *MD5Observer) Begin(int) {
	o.h = md5.New() //nolint:gosec // see import
	o.sum = ""
}

func (o *MD5Observer) Block(_ int, data []byte) {
	if o.h == nil {
		o.Begin(0)
	}
	_, _ = o.h.Write(data)
}

func (o *MD5Observer) Complete(total int) {
	if o.h == nil {
		return
	}
	o.sum = hex.EncodeToString(o.h.Sum(nil))
	log.Info().Str("md5", o.sum).Int("size", total).Msg("download: payload digest")
}

// Sum returns the digest of the last completed upload.
func (o *MD5Observer) Sum() string {
	return o.sum
}
