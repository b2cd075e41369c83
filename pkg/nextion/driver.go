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

// Package nextion drives a Nextion HMI display over a serial port: command
// framing, baud rate detection and the TFT upload protocol.
//
// Every wait is bounded and polled against the injected clock. Nothing here
// returns a protocol error; a false result means the display didn't answer
// in time and the caller decides whether to retry.
package nextion

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Port is the raw serial transport the driver talks through.
type Port interface {
	// SetBaudRate reconfigures the port speed.
	SetBaudRate(rate int) error
	// ReadByte returns the next received byte without blocking.
	ReadByte() (byte, bool)
	// Available reports whether a byte can be read without blocking.
	Available() bool
	// AvailableForWrite is how many bytes Write will accept right now.
	AvailableForWrite() int
	Write(p []byte) (int, error)
}

// Driver implements the Nextion command and upload protocol.
type Driver struct {
	port  Port
	clock clockwork.Clock
	baud  int
}

// NewDriver returns a driver for port. A nil clock uses the real clock.
func NewDriver(port Port, clock clockwork.Clock) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Driver{
		port:  port,
		clock: clock,
	}
}

// Baud returns the rate the port was last set to, or 0 if never set.
func (d *Driver) Baud() int {
	return d.baud
}

func (d *Driver) setBaud(rate int) {
	d.baud = rate
	if err := d.port.SetBaudRate(rate); err != nil {
		log.Warn().Err(err).Int("baud", rate).Msg("nextion: failed to set baud rate")
	}
}

// discard drops anything the display sent that nobody asked for.
func (d *Driver) discard() {
	for d.port.Available() {
		if _, ok := d.port.ReadByte(); !ok {
			return
		}
	}
}

func (d *Driver) writeAll(p []byte) {
	for len(p) > 0 {
		n, err := d.port.Write(p)
		if err != nil {
			log.Debug().Err(err).Msg("nextion: write failed")
			return
		}
		if n <= 0 {
			return
		}
		p = p[n:]
	}
}

// SendCommand writes cmd followed by the 0xFF 0xFF 0xFF terminator.
// Pending input is discarded first. Write failures are not reported: the
// display doesn't acknowledge configuration commands either.
func (d *Driver) SendCommand(cmd string) {
	d.discard()
	d.writeAll([]byte(cmd))
	d.writeAll(Terminator)
}

// read collects up to limit bytes for the whole timeout window. With
// stopOnAck it returns as soon as an AckByte is seen.
func (d *Driver) read(limit int, timeout time.Duration, stopOnAck bool) ([]byte, bool) {
	start := d.clock.Now()
	var buf []byte
	sawAck := false

	for d.clock.Since(start) < timeout {
		c, ok := d.port.ReadByte()
		if !ok {
			d.clock.Sleep(pollInterval)
			continue
		}
		if len(buf) < limit {
			buf = append(buf, c)
		}
		if c == AckByte {
			sawAck = true
			if stopOnAck {
				break
			}
		}
	}

	return buf, sawAck
}

// ProbeBaud switches the port to rate and checks whether the display
// answers the connect instruction. The port is left at rate either way.
func (d *Driver) ProbeBaud(rate int) bool {
	d.setBaud(rate)

	d.SendCommand("")
	d.SendCommand(CmdConnect)

	resp, _ := d.read(ProbeReadSize, ProbeTimeout, false)
	found := bytes.Contains(resp, []byte(ConnectReply))

	log.Debug().Int("baud", rate).Bool("found", found).Msg("nextion: baud probe")
	return found
}

// DetectBaud probes BaudRates in order and stops at the first rate the
// display answers on. If none answer, the port is reset to DefaultBaud.
func (d *Driver) DetectBaud() (int, bool) {
	for _, rate := range BaudRates {
		if d.ProbeBaud(rate) {
			log.Info().Int("baud", rate).Msg("nextion: display detected")
			return rate, true
		}
	}

	d.setBaud(DefaultBaud)
	log.Warn().Msg("nextion: display not detected at any baud rate")
	return 0, false
}

// BeginUpload announces a totalBytes upload at uploadBaud, switches the port
// to that rate and waits for the display to accept.
func (d *Driver) BeginUpload(totalBytes, uploadBaud int) bool {
	log.Info().Int("size", totalBytes).Int("baud", uploadBaud).Msg("nextion: starting upload")

	d.SendCommand("")
	d.SendCommand(fmt.Sprintf("%s %d,%d,0", CmdUpload, totalBytes, uploadBaud))
	d.clock.Sleep(UploadSwitchDelay)
	d.setBaud(uploadBaud)

	return d.AwaitAck(AckTimeout)
}

// Write sends as much of p as the port accepts right now and returns the
// number of bytes written. It never blocks on a full output buffer.
func (d *Driver) Write(p []byte) int {
	n := min(len(p), d.port.AvailableForWrite())
	if n <= 0 {
		return 0
	}
	written, err := d.port.Write(p[:n])
	if err != nil {
		log.Debug().Err(err).Msg("nextion: block write failed")
	}
	return max(written, 0)
}

// AwaitAck waits up to timeout for the display's AckByte and returns as
// soon as it arrives.
func (d *Driver) AwaitAck(timeout time.Duration) bool {
	_, ok := d.read(0, timeout, true)
	return ok
}

// WriteChunkAndAwaitAck writes a whole block, then waits for its
// acknowledgment. A port that accepts nothing for AckTimeout counts as a
// missing acknowledgment.
func (d *Driver) WriteChunkAndAwaitAck(block []byte) bool {
	stalled := d.clock.Now()
	for len(block) > 0 {
		n := d.Write(block)
		if n > 0 {
			block = block[n:]
			stalled = d.clock.Now()
			continue
		}
		if d.clock.Since(stalled) >= AckTimeout {
			log.Warn().Int("remaining", len(block)).Msg("nextion: serial output stalled")
			return false
		}
		d.clock.Sleep(pollInterval)
	}
	return d.AwaitAck(AckTimeout)
}

// SetText sets the txt attribute of a text component, e.g. SetText("t0", "hi").
func (d *Driver) SetText(component, text string) {
	text = strings.ReplaceAll(text, `"`, `\"`)
	d.SendCommand(fmt.Sprintf(`%s.txt="%s"`, component, text))
}
