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

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/download"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Ticker is the part of the Downloader the loop drives.
type Ticker interface {
	Tick(ctx context.Context)
	RequestCheck(force bool)
	IsDone() bool
	LastResult() download.Result
}

// TextSetter shows text on a display component.
type TextSetter interface {
	SetText(component, text string)
}

type LoopOptions struct {
	DoneComponent string
	DoneText      string
	Interval      time.Duration
	Check         bool
	Force         bool
	Once          bool
}

// RunLoop ticks dl every opts.Interval until ctx is done. With Once set it
// returns after the first finished attempt, with ErrUpdateFailed if that
// attempt failed.
//
//nolint:gocritic // options struct copied once at startup
func RunLoop(ctx context.Context, dl Ticker, display TextSetter, clock clockwork.Clock, opts LoopOptions) error {
	ticker := clock.NewTicker(opts.Interval)
	defer ticker.Stop()

	if opts.Check {
		dl.RequestCheck(opts.Force)
	}

	wasDone := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}

		dl.Tick(ctx)

		done := dl.IsDone()
		if done && !wasDone {
			r := dl.LastResult()
			if r.Kind == download.ResultUpdated && opts.DoneComponent != "" && display != nil {
				log.Info().Str("component", opts.DoneComponent).Msg("setting done text")
				display.SetText(opts.DoneComponent, opts.DoneText)
			}
			if opts.Once {
				if r.Kind == download.ResultFailed {
					return fmt.Errorf("%w: %w", ErrUpdateFailed, r.Err)
				}
				return nil
			}
		}
		wasDone = done
	}
}
