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

package bufpool

// Slot is one SlotSize block of the payload.
//
// Bytes [0, WriteOffset) have been received, bytes [0, ReadOffset) have been
// handed to the display. ReadOffset <= WriteOffset <= FillTarget <= SlotSize
// always holds. BaseOffset is the payload offset of Bytes[0].
type Slot struct {
	Bytes       [SlotSize]byte
	WriteOffset int
	FillTarget  int
	ReadOffset  int
	BaseOffset  int
}

// Reset empties the slot and assigns it the payload range
// [base, base+fillTarget). fillTarget is clamped to SlotSize.
func (s *Slot) Reset(base, fillTarget int) {
	if fillTarget > SlotSize {
		fillTarget = SlotSize
	}
	if fillTarget < 0 {
		fillTarget = 0
	}
	s.WriteOffset = 0
	s.ReadOffset = 0
	s.FillTarget = fillTarget
	s.BaseOffset = base
}

// Full reports whether the slot holds all the bytes it was sized for.
func (s *Slot) Full() bool {
	return s.WriteOffset == s.FillTarget
}

// Drained reports whether every byte of a full slot was handed on.
func (s *Slot) Drained() bool {
	return s.Full() && s.ReadOffset == s.WriteOffset
}

// Space returns the unfilled part of the slot up to its fill target.
func (s *Slot) Space() []byte {
	return s.Bytes[s.WriteOffset:s.FillTarget]
}

// Filled returns the received bytes.
func (s *Slot) Filled() []byte {
	return s.Bytes[:s.WriteOffset]
}

// Unsent returns received bytes not yet handed on.
func (s *Slot) Unsent() []byte {
	return s.Bytes[s.ReadOffset:s.WriteOffset]
}

// Wrote records n bytes appended to Space.
func (s *Slot) Wrote(n int) {
	s.WriteOffset = min(s.WriteOffset+max(n, 0), s.FillTarget)
}

// Sent records n bytes taken from Unsent.
func (s *Slot) Sent(n int) {
	s.ReadOffset = min(s.ReadOffset+max(n, 0), s.WriteOffset)
}
