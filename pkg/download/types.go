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
	"context"
	"errors"
	"time"
)

const (
	// RetryWaitTime is the fixed backoff before a failed attempt is retried.
	RetryWaitTime = 30 * time.Second
	// DataTimeout is how long the server may go without sending anything.
	DataTimeout = 60 * time.Second

	DefaultPort        = 80
	DefaultUploadBaud  = 115200
	DefaultRestartWait = 4 * time.Second
)

// Failure kinds. Every failed Result wraps one of these.
var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrProtocolTimeout      = errors.New("protocol timeout")
	ErrHTTPStatus           = errors.New("http error")
	ErrDisplayNotFound      = errors.New("display not found")
	ErrDisplayNack          = errors.New("display did not acknowledge")
	ErrAllocation           = errors.New("buffer allocation failed")
	ErrAborted              = errors.New("transfer aborted")
)

// CheckMode selects what starts a check.
type CheckMode int

const (
	// CheckModeAuto starts a check as soon as the network is ready.
	CheckModeAuto CheckMode = iota
	// CheckModeManual only checks when RequestCheck is called.
	CheckModeManual
)

// PersistPolicy selects when the server's Last-Modified value is saved.
type PersistPolicy int

const (
	// PersistOnComplete saves it after the display acknowledged the last
	// block, so an interrupted upload is fetched again next time.
	PersistOnComplete PersistPolicy = iota
	// PersistOnHeader saves it as soon as a 200 response is parsed.
	PersistOnHeader
)

// Config is read once per attempt and must not change while one runs.
type Config struct {
	Host        string
	Path        string
	Port        int
	UploadBaud  int
	StoreSlot   int
	RestartWait time.Duration
	BootWait    time.Duration
	CheckMode   CheckMode
	Persist     PersistPolicy
	Force       bool
	Retry       bool
}

// DefaultConfig returns a Config with the defaults filled in; the caller
// still has to set Host and Path.
func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		UploadBaud:  DefaultUploadBaud,
		RestartWait: DefaultRestartWait,
		CheckMode:   CheckModeAuto,
		Persist:     PersistOnComplete,
	}
}

// State is a step of the transfer state machine.
type State int

const (
	StateIdle State = iota
	StateRequestingCheck
	StateAwaitingHeader
	StateDownloading
	StateAwaitingRestart
	StateRetryWait
	StateCleanup
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingCheck:
		return "requesting-check"
	case StateAwaitingHeader:
		return "awaiting-header"
	case StateDownloading:
		return "downloading"
	case StateAwaitingRestart:
		return "awaiting-restart"
	case StateRetryWait:
		return "retry-wait"
	case StateCleanup:
		return "cleanup"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress reports how far the current attempt got.
type Progress struct {
	// DataSize is the payload length, 0 until the header was parsed.
	DataSize int
	// DataOffset is the number of payload bytes acknowledged by the display.
	DataOffset int
	HasRun     bool
	IsDone     bool
}

// ResultKind is the outcome of a finished attempt.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultUpdated
	ResultNotModified
	ResultFailed
	ResultAborted
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultUpdated:
		return "updated"
	case ResultNotModified:
		return "not-modified"
	case ResultFailed:
		return "failed"
	case ResultAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result describes a finished attempt.
type Result struct {
	Started      time.Time
	Finished     time.Time
	Err          error
	AttemptID    string
	LastModified string
	Kind         ResultKind
	Status       int
	Bytes        int
	Retries      int
}

// Network is the TCP-like transport the download is fetched over.
type Network interface {
	Connect(ctx context.Context, host string, port int) error
	Connected() bool
	// Read returns immediately; 0 bytes and a nil error means nothing has
	// arrived yet.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Stop() error
}

// Display is the part of the Nextion protocol the state machine uses.
type Display interface {
	ProbeBaud(rate int) bool
	DetectBaud() (int, bool)
	BeginUpload(totalBytes, uploadBaud int) bool
	Write(p []byte) int
	AwaitAck(timeout time.Duration) bool
}
