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

//go:build deadlock

// Package syncutil wraps the sync mutexes so a build with -tags=deadlock
// swaps in go-deadlock's detecting versions. Config and the test mocks
// lock through these types.
package syncutil

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	deadlock "github.com/sasha-s/go-deadlock"
)

const DeadlockEnabled = true

// LockTimeout is longer than the TCP dial timeout, the longest a lock
// holder legitimately blocks.
const LockTimeout = 30 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = LockTimeout
	deadlock.Opts.OnPotentialDeadlock = func() {
		log.Error().Dur("timeout", LockTimeout).Msg("potential deadlock detected")
		os.Exit(2)
	}
}

type Mutex struct {
	deadlock.Mutex
}

type RWMutex struct {
	deadlock.RWMutex
}
