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

// Package download fetches a Nextion TFT file over HTTP and streams it to
// the display while it arrives.
//
// The Downloader is a cooperative state machine: the host calls Tick from
// its main loop and each call does a bounded amount of work. Two 4096 byte
// buffers alternate between the network and the serial link, so one block
// can fill while the previous one is uploaded. Failures never escape Tick;
// they end the attempt and are reported through LastResult.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/bufpool"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/httphead"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// progressLogInterval limits the info level progress lines.
const progressLogInterval = 5 * time.Second

// Option configures a Downloader.
type Option func(*Downloader)

func WithClock(clock clockwork.Clock) Option {
	return func(d *Downloader) { d.clock = clock }
}

func WithObserver(o BlockObserver) Option {
	return func(d *Downloader) { d.observer = o }
}

// WithNetworkReady sets the probe consulted before a check connects.
func WithNetworkReady(ready func() bool) Option {
	return func(d *Downloader) { d.networkReady = ready }
}

func WithPool(p *bufpool.Pool) Option {
	return func(d *Downloader) { d.pool = p }
}

// WithResultHandler is called once for every finished attempt.
func WithResultHandler(fn func(Result)) Option {
	return func(d *Downloader) { d.onResult = fn }
}

// Downloader runs the download/upload state machine. It is not safe for
// concurrent use: Tick and RequestCheck must be called from one goroutine.
type Downloader struct {
	stateTime    time.Time
	display      Display
	network      Network
	store        store.Store
	clock        clockwork.Clock
	observer     BlockObserver
	attemptErr   error
	pool         *bufpool.Pool
	networkReady func() bool
	onResult     func(Result)
	progressLog  *rate.Limiter
	current      Result
	last         Result
	lastModified string
	cfg          Config
	progress     Progress
	state        State
	outcome      ResultKind
	received     int
	force        bool
	hasLM        bool
}

// New returns a Downloader in the Idle state.
//
//nolint:gocritic // config struct copied for immutability
func New(cfg Config, display Display, network Network, st store.Store, opts ...Option) *Downloader {
	d := &Downloader{
		cfg:     cfg,
		display: display,
		network: network,
		store:   st,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.observer == nil {
		d.observer = NopObserver{}
	}
	if d.pool == nil {
		d.pool = bufpool.New(nil)
	}
	if d.networkReady == nil {
		d.networkReady = func() bool { return true }
	}
	d.progressLog = rate.NewLimiter(rate.Every(progressLogInterval), 1)
	d.stateTime = d.clock.Now()
	return d
}

// Setup waits for the display to boot and resets it to the default baud
// rate. Call it once at startup.
func (d *Downloader) Setup() {
	if d.cfg.BootWait > 0 {
		d.clock.Sleep(d.cfg.BootWait)
	}
	d.display.ProbeBaud(nextion.DefaultBaud)
}

func (d *Downloader) State() State {
	return d.state
}

func (d *Downloader) Progress() Progress {
	return d.progress
}

// HasRun reports whether any attempt was started.
func (d *Downloader) HasRun() bool {
	return d.progress.HasRun
}

// IsDone reports whether the latest attempt has finished.
func (d *Downloader) IsDone() bool {
	return d.progress.IsDone
}

// LastResult returns the outcome of the most recently finished attempt.
func (d *Downloader) LastResult() Result {
	return d.last
}

// BufferCount returns how many transfer buffers are allocated.
func (d *Downloader) BufferCount() int {
	return d.pool.Count()
}

// RequestCheck starts a new attempt. An attempt already in flight is
// aborted and its resources released first. One whose transfer is already
// over (waiting for the restart or cleaning up) is finished with the
// outcome it reached.
func (d *Downloader) RequestCheck(force bool) {
	switch d.state {
	case StateIdle, StateDone:
	case StateAwaitingRestart, StateCleanup:
		log.Info().Str("state", d.state.String()).Msg("download: finishing attempt early for new request")
		d.release()
		d.finish()
	case StateRequestingCheck, StateAwaitingHeader, StateDownloading, StateRetryWait:
		log.Warn().Str("state", d.state.String()).Msg("download: aborting attempt for new request")
		d.abort()
	}

	d.begin(force)
	d.transition(StateRequestingCheck)
}

func (d *Downloader) begin(force bool) {
	d.force = force || d.cfg.Force
	d.progress = Progress{HasRun: true}
	d.attemptErr = nil
	d.outcome = ResultNone
	d.lastModified = ""
	d.hasLM = false
	d.received = 0
	d.current = Result{
		AttemptID: uuid.New().String(),
		Started:   d.clock.Now(),
	}
	log.Info().Str("attempt", d.current.AttemptID).Bool("force", d.force).Msg("download: check requested")
}

func (d *Downloader) abort() {
	d.release()
	d.attemptErr = ErrAborted
	d.outcome = ResultAborted
	d.finish()
}

// Tick advances the state machine by one step.
func (d *Downloader) Tick(ctx context.Context) {
	var next State
	switch d.state {
	case StateIdle:
		next = d.idle()
	case StateRequestingCheck:
		next = d.requestingCheck(ctx)
	case StateAwaitingHeader:
		next = d.awaitingHeader()
	case StateDownloading:
		next = d.downloading()
	case StateAwaitingRestart:
		next = d.awaitingRestart()
	case StateRetryWait:
		next = d.retryWait()
	case StateCleanup:
		next = StateDone
	case StateDone:
		next = StateDone
	default:
		next = StateCleanup
	}
	d.transition(next)
}

func (d *Downloader) transition(next State) {
	if next == d.state {
		return
	}
	log.Debug().Str("from", d.state.String()).Str("to", next.String()).Msg("download: state change")

	d.state = next
	d.stateTime = d.clock.Now()

	switch next {
	case StateRetryWait:
		d.release()
	case StateCleanup:
		d.release()
	case StateDone:
		d.finish()
	case StateIdle, StateRequestingCheck, StateAwaitingHeader, StateDownloading, StateAwaitingRestart:
	}
}

// release frees every buffer and drops the connection.
func (d *Downloader) release() {
	if n := d.pool.ReleaseAll(); n > 0 {
		log.Debug().Int("buffers", n).Msg("download: buffers released")
	}
	if err := d.network.Stop(); err != nil {
		log.Debug().Err(err).Msg("download: error stopping network")
	}
}

// fail records why the attempt is ending and returns next.
func (d *Downloader) fail(next State, kind error, format string, args ...any) State {
	d.attemptErr = fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	log.Warn().Err(d.attemptErr).Str("next", next.String()).Msg("download: attempt failed")
	return next
}

func (d *Downloader) finish() {
	d.progress.IsDone = d.state == StateDone

	r := d.current
	r.Finished = d.clock.Now()
	r.Bytes = d.progress.DataOffset
	r.Err = d.attemptErr
	r.Kind = d.outcome
	if r.Err != nil && r.Kind != ResultAborted {
		r.Kind = ResultFailed
	}
	if r.Kind == ResultNone {
		r.Kind = ResultFailed
	}
	d.last = r

	ev := log.Info()
	if r.Kind == ResultFailed {
		ev = log.Error().Err(r.Err)
	}
	ev.Str("attempt", r.AttemptID).
		Str("result", r.Kind.String()).
		Int("bytes", r.Bytes).
		Dur("elapsed", r.Finished.Sub(r.Started)).
		Msg("download: attempt finished")

	if d.onResult != nil {
		d.onResult(r)
	}
}

func (d *Downloader) elapsed() time.Duration {
	return d.clock.Since(d.stateTime)
}

func (d *Downloader) idle() State {
	if d.cfg.CheckMode == CheckModeAuto && d.networkReady() {
		d.begin(false)
		return StateRequestingCheck
	}
	return StateIdle
}

func (d *Downloader) requestingCheck(ctx context.Context) State {
	if !d.networkReady() {
		return StateRequestingCheck
	}

	d.attemptErr = nil
	d.pool.ReleaseAll()
	if err := d.pool.AllocateAll(); err != nil {
		return d.fail(StateCleanup, ErrAllocation, "%v", err)
	}

	if _, ok := d.display.DetectBaud(); !ok {
		return d.fail(StateCleanup, ErrDisplayNotFound, "no answer at any baud rate")
	}

	if err := d.network.Connect(ctx, d.cfg.Host, d.cfg.Port); err != nil {
		return d.fail(StateRetryWait, ErrTransportUnavailable, "connect %s:%d: %v", d.cfg.Host, d.cfg.Port, err)
	}

	req := httphead.BuildRequest(d.cfg.Host, d.cfg.Path, d.ifModifiedSince())
	if _, err := d.network.Write(req); err != nil {
		return d.fail(StateRetryWait, ErrTransportUnavailable, "send request: %v", err)
	}

	d.pool.Get(bufpool.RoleReceiving).Reset(0, bufpool.SlotSize)

	log.Info().Str("host", d.cfg.Host).Int("port", d.cfg.Port).Str("path", d.cfg.Path).
		Msg("download: request sent")
	return StateAwaitingHeader
}

func (d *Downloader) ifModifiedSince() string {
	if d.force {
		log.Info().Msg("download: forced, not sending If-Modified-Since")
		return ""
	}

	r, err := d.store.Get(d.cfg.StoreSlot)
	if err != nil {
		log.Warn().Err(err).Msg("download: failed to read last modification date")
		return ""
	}

	v, ok := r.Value()
	if !ok || v == "" {
		log.Info().Msg("download: no last modification date")
		return ""
	}

	log.Info().Str("since", v).Msg("download: conditional request")
	return v
}

func (d *Downloader) saveLastModified() {
	if !d.hasLM {
		return
	}
	if err := d.store.Put(d.cfg.StoreSlot, store.NewRecord(d.lastModified)); err != nil {
		log.Warn().Err(err).Msg("download: failed to save last modification date")
		return
	}
	log.Info().Str("last_modified", d.lastModified).Msg("download: saved last modification date")
}

func (d *Downloader) awaitingHeader() State {
	if !d.network.Connected() {
		return d.fail(StateRetryWait, ErrTransportUnavailable, "server disconnected before header")
	}
	if d.elapsed() >= DataTimeout {
		return d.fail(StateRetryWait, ErrProtocolTimeout, "no response header after %s", DataTimeout)
	}

	rx := d.pool.Get(bufpool.RoleReceiving)
	if rx == nil {
		return d.fail(StateCleanup, ErrAllocation, "no receive buffer")
	}
	if len(rx.Space()) == 0 {
		return d.fail(StateCleanup, ErrHTTPStatus, "response header larger than %d bytes", bufpool.SlotSize)
	}

	n, readErr := d.network.Read(rx.Space())
	if n > 0 {
		rx.Wrote(n)
	}

	end, found := httphead.FindHeaderEnd(rx.Filled())
	if !found {
		if readErr != nil {
			return d.fail(StateRetryWait, ErrTransportUnavailable, "reading header: %v", readErr)
		}
		return StateAwaitingHeader
	}

	return d.handleHeader(rx, end)
}

func (d *Downloader) handleHeader(rx *bufpool.Slot, end int) State {
	header := rx.Filled()[:end]

	status := httphead.ParseStatusCode(header)
	d.current.Status = status
	switch status {
	case 304:
		log.Info().Msg("download: file not modified, not downloading again")
		d.outcome = ResultNotModified
		return StateCleanup
	case 200:
	default:
		return d.fail(StateCleanup, ErrHTTPStatus, "unexpected status %d", status)
	}

	d.lastModified, d.hasLM = httphead.ParseHeaderValue(header, httphead.HeaderLastModified,
		httphead.LastModifiedCapacity)
	d.current.LastModified = d.lastModified

	size := httphead.ParseContentLength(header)
	if size == 0 {
		return d.fail(StateCleanup, ErrHTTPStatus, "missing or zero Content-Length")
	}
	d.progress.DataSize = size
	d.progress.DataOffset = 0

	if d.cfg.Persist == PersistOnHeader {
		d.saveLastModified()
	}

	if !d.display.BeginUpload(size, d.cfg.UploadBaud) {
		return d.fail(StateCleanup, ErrDisplayNack, "upload start not acknowledged")
	}
	d.observer.Begin(size)

	// keep body bytes that arrived with the header at the front of the slot
	fill := min(size, bufpool.SlotSize)
	body := rx.Filled()[end:]
	keep := min(len(body), fill)
	copy(rx.Bytes[:keep], body[:keep])
	rx.Reset(0, fill)
	rx.Wrote(keep)
	d.received = fill

	log.Info().Int("size", size).Str("last_modified", d.lastModified).Msg("download: downloading")
	return StateDownloading
}

func (d *Downloader) awaitingRestart() State {
	if d.elapsed() < d.cfg.RestartWait {
		return StateAwaitingRestart
	}
	if rate, ok := d.display.DetectBaud(); ok {
		log.Info().Int("baud", rate).Msg("download: display restarted")
	} else {
		log.Warn().Msg("download: display not found after restart")
	}
	return StateCleanup
}

func (d *Downloader) retryWait() State {
	if !d.cfg.Retry {
		return StateCleanup
	}
	if d.elapsed() < RetryWaitTime {
		return StateRetryWait
	}
	d.current.Retries++
	log.Info().Int("retry", d.current.Retries).Msg("download: retrying")
	return StateRequestingCheck
}
