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

package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// StepClock is a fake clock whose Sleep advances time instead of blocking,
// so polling loops bounded by the clock finish instantly in tests.
type StepClock struct {
	*clockwork.FakeClock
}

// NewStepClock returns a StepClock starting at a fixed instant.
func NewStepClock() *StepClock {
	return &StepClock{
		FakeClock: clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
}

func (c *StepClock) Sleep(d time.Duration) {
	c.Advance(d)
}
