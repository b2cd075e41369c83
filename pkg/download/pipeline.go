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
	"github.com/ZaparooProject/zaparoo-nextion/pkg/bufpool"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
	"github.com/rs/zerolog/log"
)

// downloading runs one step of the relay: fill the receiving slot from the
// network while the sending slot drains to the display.
func (d *Downloader) downloading() State {
	remaining := d.progress.DataSize - d.received

	// 1. start filling the next block
	if !d.pool.Has(bufpool.RoleReceiving) && d.pool.Has(bufpool.RoleFree) && remaining > 0 {
		fill := min(remaining, bufpool.SlotSize)
		if err := d.pool.PromoteFreeToReceiving(d.received, fill); err != nil {
			return d.fail(StateCleanup, ErrAllocation, "%v", err)
		}
		d.received += fill
	}

	// 2. read from the network
	var readErr error
	if rx := d.pool.Get(bufpool.RoleReceiving); rx != nil {
		if !rx.Full() {
			var n int
			n, readErr = d.network.Read(rx.Space())
			if n > 0 {
				rx.Wrote(n)
				d.touch()
			}
		}
		if rx.Full() && !d.pool.Has(bufpool.RoleQueued) {
			if err := d.pool.PromoteReceivingToQueued(); err != nil {
				return d.fail(StateCleanup, ErrAllocation, "%v", err)
			}
		}
	}

	// 3. hand the next block to the sender
	if d.pool.Has(bufpool.RoleQueued) && !d.pool.Has(bufpool.RoleSending) {
		if err := d.pool.PromoteQueuedToSending(); err != nil {
			return d.fail(StateCleanup, ErrAllocation, "%v", err)
		}
	}

	// 4. write to the display
	if tx := d.pool.Get(bufpool.RoleSending); tx != nil {
		if next, done := d.send(tx); done {
			return next
		}
	}

	if d.outstanding() {
		if readErr != nil || !d.network.Connected() {
			return d.fail(StateRetryWait, ErrTransportUnavailable,
				"server disconnected at %d of %d bytes", d.receivedBytes(), d.progress.DataSize)
		}
	}

	if d.elapsed() >= DataTimeout {
		return d.fail(StateRetryWait, ErrProtocolTimeout, "no progress for %s at %d of %d bytes",
			DataTimeout, d.progress.DataOffset, d.progress.DataSize)
	}

	return StateDownloading
}

// send writes what the display accepts from tx. Once the whole block is
// written it waits for the acknowledgment. done is true when the state
// machine has to leave Downloading.
func (d *Downloader) send(tx *bufpool.Slot) (next State, done bool) {
	if unsent := tx.Unsent(); len(unsent) > 0 {
		if n := d.display.Write(unsent); n > 0 {
			tx.Sent(n)
			d.touch()
		}
	}
	if !tx.Drained() {
		return StateDownloading, false
	}

	d.observer.Block(tx.BaseOffset, tx.Filled())

	if !d.display.AwaitAck(nextion.AckTimeout) {
		return d.fail(StateCleanup, ErrDisplayNack, "no acknowledgment for block at offset %d", tx.BaseOffset), true
	}
	d.progress.DataOffset += tx.WriteOffset
	d.touch()

	log.Debug().Int("offset", d.progress.DataOffset).Int("size", d.progress.DataSize).Msg("download: block acknowledged")
	if d.progressLog.AllowN(d.clock.Now(), 1) {
		log.Info().
			Int("offset", d.progress.DataOffset).
			Int("size", d.progress.DataSize).
			Msgf("download: %d%% uploaded", d.progress.DataOffset*100/d.progress.DataSize)
	}

	if d.progress.DataOffset >= d.progress.DataSize {
		d.observer.Complete(d.progress.DataSize)
		if d.cfg.Persist == PersistOnComplete {
			d.saveLastModified()
		}
		d.outcome = ResultUpdated
		log.Info().Int("size", d.progress.DataSize).Msg("download: upload complete, waiting for display restart")
		return StateAwaitingRestart, true
	}

	if err := d.pool.ReturnSendingToFree(); err != nil {
		return d.fail(StateCleanup, ErrAllocation, "%v", err), true
	}
	return StateDownloading, false
}

// outstanding reports whether payload bytes are still expected from the
// network.
func (d *Downloader) outstanding() bool {
	if d.received < d.progress.DataSize {
		return true
	}
	rx := d.pool.Get(bufpool.RoleReceiving)
	return rx != nil && !rx.Full()
}

// receivedBytes is the number of payload bytes read from the network.
func (d *Downloader) receivedBytes() int {
	n := d.received
	if rx := d.pool.Get(bufpool.RoleReceiving); rx != nil {
		n -= rx.FillTarget - rx.WriteOffset
	}
	return n
}

// touch restarts the no-progress timer.
func (d *Downloader) touch() {
	d.stateTime = d.clock.Now()
}
