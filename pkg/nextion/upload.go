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

package nextion

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

var (
	ErrUploadRejected = errors.New("display rejected upload")
	ErrBlockNack      = errors.New("display did not acknowledge block")
)

// BlockFunc is called with each block before it is sent.
type BlockFunc func(offset int, block []byte)

// Upload sends size bytes from r to the display in BlockSize blocks,
// waiting for the acknowledgment of each. It blocks until done and is meant
// for one-shot uploads of a local file; the download state machine streams
// through the pipeline instead.
func (d *Driver) Upload(ctx context.Context, r io.Reader, size, baud int, onBlock BlockFunc) error {
	if size <= 0 {
		return fmt.Errorf("invalid upload size: %d", size)
	}

	if !d.BeginUpload(size, baud) {
		return ErrUploadRejected
	}

	buf := make([]byte, BlockSize)
	offset := 0
	for offset < size {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload cancelled at %d/%d: %w", offset, size, err)
		}

		n := min(BlockSize, size-offset)
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fmt.Errorf("failed to read block at offset %d: %w", offset, err)
		}

		if onBlock != nil {
			onBlock(offset, buf[:n])
		}

		if !d.WriteChunkAndAwaitAck(buf[:n]) {
			return fmt.Errorf("%w at offset %d", ErrBlockNack, offset)
		}

		offset += n
		log.Debug().Int("offset", offset).Int("size", size).Msg("nextion: block acknowledged")
	}

	log.Info().Int("size", size).Msg("nextion: upload complete")
	return nil
}
