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

// Package bufpool holds the fixed set of transfer buffers used to relay a
// download from the network to the display. Slots never get copied: moving a
// slot between pipeline stages only changes the role tag stored next to it.
package bufpool

import (
	"errors"
	"fmt"
)

const (
	// SlotSize is the Nextion upload block size. The display acknowledges
	// every SlotSize bytes, so it can't be tuned.
	SlotSize = 4096
	// MaxSlots is the number of role-tagged positions in the pool.
	MaxSlots = 4
)

var (
	ErrAllocation       = errors.New("buffer allocation failed")
	ErrAlreadyAllocated = errors.New("buffer pool already allocated")
	ErrRoleOccupied     = errors.New("buffer role already occupied")
	ErrRoleEmpty        = errors.New("buffer role is empty")
	ErrFillTarget       = errors.New("fill target out of range")
)

// Role is the pipeline stage a slot currently serves.
type Role int

const (
	RoleNone Role = iota
	RoleFree
	RoleReceiving
	RoleQueued
	RoleSending
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleFree:
		return "free"
	case RoleReceiving:
		return "receiving"
	case RoleQueued:
		return "queued"
	case RoleSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Allocator creates a new slot. It's swapped out in tests to simulate a
// device that is out of memory.
type Allocator func() (*Slot, error)

// DefaultAllocator allocates slots on the heap.
func DefaultAllocator() (*Slot, error) {
	return &Slot{}, nil
}

// Pool owns up to MaxSlots slots, at most one per role.
type Pool struct {
	alloc Allocator
	slots [MaxSlots]*Slot
	roles [MaxSlots]Role
}

// New returns an empty pool. A nil allocator uses DefaultAllocator.
func New(alloc Allocator) *Pool {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	return &Pool{alloc: alloc}
}

// AllocateAll creates the receiving and free slots. It is all or nothing:
// on failure every slot created so far is released again.
func (p *Pool) AllocateAll() error {
	if p.Count() > 0 {
		return ErrAlreadyAllocated
	}

	for i, role := range []Role{RoleReceiving, RoleFree} {
		s, err := p.alloc()
		if err != nil || s == nil {
			p.ReleaseAll()
			if err == nil {
				err = ErrAllocation
			}
			return fmt.Errorf("failed to allocate %s slot: %w", role, errors.Join(ErrAllocation, err))
		}
		s.Reset(0, SlotSize)
		p.slots[i] = s
		p.roles[i] = role
	}

	return nil
}

// ReleaseAll drops every slot held by the pool, in every role, and returns
// how many were released. Calling it on an empty pool is a no-op.
func (p *Pool) ReleaseAll() int {
	released := 0
	for i := range p.slots {
		if p.slots[i] != nil {
			released++
		}
		p.slots[i] = nil
		p.roles[i] = RoleNone
	}
	return released
}

// Count returns the number of slots currently allocated.
func (p *Pool) Count() int {
	n := 0
	for _, s := range p.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Get returns the slot in the given role, or nil.
func (p *Pool) Get(role Role) *Slot {
	i := p.index(role)
	if i < 0 {
		return nil
	}
	return p.slots[i]
}

// Has reports whether a slot is in the given role.
func (p *Pool) Has(role Role) bool {
	return p.index(role) >= 0
}

// PromoteFreeToReceiving makes the free slot the network target for the
// payload range starting at base, holding fillTarget bytes.
func (p *Pool) PromoteFreeToReceiving(base, fillTarget int) error {
	if fillTarget <= 0 || fillTarget > SlotSize {
		return fmt.Errorf("%w: %d", ErrFillTarget, fillTarget)
	}
	if err := p.move(RoleFree, RoleReceiving); err != nil {
		return err
	}
	p.Get(RoleReceiving).Reset(base, fillTarget)
	return nil
}

func (p *Pool) PromoteReceivingToQueued() error {
	return p.move(RoleReceiving, RoleQueued)
}

func (p *Pool) PromoteQueuedToSending() error {
	return p.move(RoleQueued, RoleSending)
}

func (p *Pool) ReturnSendingToFree() error {
	return p.move(RoleSending, RoleFree)
}

func (p *Pool) move(from, to Role) error {
	src := p.index(from)
	if src < 0 {
		return fmt.Errorf("%w: %s", ErrRoleEmpty, from)
	}
	if p.index(to) >= 0 {
		return fmt.Errorf("%w: %s", ErrRoleOccupied, to)
	}
	p.roles[src] = to
	return nil
}

func (p *Pool) index(role Role) int {
	if role == RoleNone {
		return -1
	}
	for i, r := range p.roles {
		if r == role && p.slots[i] != nil {
			return i
		}
	}
	return -1
}
