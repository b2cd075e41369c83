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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	// DefaultWriteWindow is how much SerialPort reports as writable. The
	// kernel tty buffer absorbs at least a full block on every platform
	// we run on.
	DefaultWriteWindow = BlockSize

	readPollTimeout = time.Millisecond
)

// RawPort is the subset of serial.Port used by SerialPort (for mocking in tests).
type RawPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// RawPortFactory opens a serial device.
type RawPortFactory func(path string, mode *serial.Mode) (RawPort, error)

// DefaultRawPortFactory opens real serial ports with go.bug.st/serial.
func DefaultRawPortFactory(path string, mode *serial.Mode) (RawPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

func modeFor(rate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: rate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// SerialPort adapts a blocking serial device to the non-blocking Port the
// driver polls. Reads use a 1ms timeout and are buffered until consumed.
type SerialPort struct {
	raw         RawPort
	path        string
	pending     []byte
	scratch     [256]byte
	writeWindow int
	closed      bool
}

// OpenSerialPort opens path at DefaultBaud, 8N1. A writeWindow <= 0 uses
// DefaultWriteWindow; a nil factory uses DefaultRawPortFactory.
func OpenSerialPort(path string, writeWindow int, factory RawPortFactory) (*SerialPort, error) {
	if factory == nil {
		factory = DefaultRawPortFactory
	}
	if writeWindow <= 0 {
		writeWindow = DefaultWriteWindow
	}

	raw, err := factory(path, modeFor(DefaultBaud))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if err := raw.SetReadTimeout(readPollTimeout); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	log.Info().Str("device", path).Msg("nextion: serial port opened")

	return &SerialPort{
		raw:         raw,
		path:        path,
		writeWindow: writeWindow,
	}, nil
}

// Path returns the device path the port was opened with.
func (p *SerialPort) Path() string {
	return p.path
}

func (p *SerialPort) SetBaudRate(rate int) error {
	if p.closed {
		return errors.New("serial port closed")
	}
	if err := p.raw.SetMode(modeFor(rate)); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", rate, err)
	}
	return nil
}

func (p *SerialPort) fill() {
	if len(p.pending) > 0 || p.closed {
		return
	}
	n, err := p.raw.Read(p.scratch[:])
	if err != nil {
		log.Debug().Err(err).Str("device", p.path).Msg("nextion: serial read failed")
		return
	}
	if n > 0 {
		p.pending = append(p.pending, p.scratch[:n]...)
	}
}

func (p *SerialPort) ReadByte() (byte, bool) {
	p.fill()
	if len(p.pending) == 0 {
		return 0, false
	}
	c := p.pending[0]
	p.pending = p.pending[1:]
	return c, true
}

func (p *SerialPort) Available() bool {
	p.fill()
	return len(p.pending) > 0
}

func (p *SerialPort) AvailableForWrite() int {
	if p.closed {
		return 0
	}
	return p.writeWindow
}

func (p *SerialPort) Write(b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	n, err := p.raw.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	return n, nil
}

// Flush drops buffered input on both sides.
func (p *SerialPort) Flush() error {
	p.pending = p.pending[:0]
	if err := p.raw.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset serial input: %w", err)
	}
	return nil
}

func (p *SerialPort) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.raw.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	log.Info().Str("device", p.path).Msg("nextion: serial port closed")
	return nil
}
