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
	"bytes"
	"fmt"
	"strings"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
)

const displayReply = "comok 1,30601-0,NX4832T035_011R,52,61488,DE6064B7E70C6521,16777216"

// MockDisplay emulates a Nextion display behind a serial port. It answers
// "connect" at its configured baud rate, accepts whmi-wri uploads and
// acknowledges every received block. Once the whole upload has arrived it
// goes back to command mode at BootBaud.
type MockDisplay struct {
	commands     []string
	probes       []int
	baudHistory  []int
	rx           []byte
	cmdBuf       []byte
	payload      []byte
	blockSizes   []int
	DisplayBaud  int
	BootBaud     int
	WriteWindow  int
	AckBlocks    int
	baud         int
	uploadSize   int
	uploadBaud   int
	mu           syncutil.Mutex
	Responsive   bool
	RejectUpload bool
	uploading    bool
}

// NewMockDisplay returns a responsive display listening at baud that
// acknowledges every block.
func NewMockDisplay(baud int) *MockDisplay {
	return &MockDisplay{
		DisplayBaud: baud,
		BootBaud:    baud,
		Responsive:  true,
		AckBlocks:   -1,
		WriteWindow: nextion.BlockSize,
	}
}

func (m *MockDisplay) SetBaudRate(rate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baud = rate
	m.baudHistory = append(m.baudHistory, rate)
	return nil
}

func (m *MockDisplay) ReadByte() (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rx) == 0 {
		return 0, false
	}
	c := m.rx[0]
	m.rx = m.rx[1:]
	return c, true
}

func (m *MockDisplay) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rx) > 0
}

func (m *MockDisplay) AvailableForWrite() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.WriteWindow
}

func (m *MockDisplay) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uploading {
		m.receivePayload(p)
		return len(p), nil
	}

	if m.baud != m.DisplayBaud {
		// wrong speed, the display only sees noise
		return len(p), nil
	}

	m.cmdBuf = append(m.cmdBuf, p...)
	for {
		i := bytes.Index(m.cmdBuf, nextion.Terminator)
		if i < 0 {
			break
		}
		cmd := string(m.cmdBuf[:i])
		m.cmdBuf = m.cmdBuf[i+len(nextion.Terminator):]
		m.handleCommand(cmd)
	}
	return len(p), nil
}

func (m *MockDisplay) handleCommand(cmd string) {
	if cmd == "" {
		return
	}
	m.commands = append(m.commands, cmd)

	switch {
	case cmd == nextion.CmdConnect:
		m.probes = append(m.probes, m.baud)
		if m.Responsive {
			m.rx = append(m.rx, displayReply...)
			m.rx = append(m.rx, nextion.Terminator...)
		}
	case strings.HasPrefix(cmd, nextion.CmdUpload+" "):
		var size, baud, reserved int
		_, err := fmt.Sscanf(cmd, nextion.CmdUpload+" %d,%d,%d", &size, &baud, &reserved)
		if err != nil || !m.Responsive || m.RejectUpload {
			return
		}
		m.uploading = true
		m.payload = nil
		m.blockSizes = nil
		m.uploadSize = size
		m.uploadBaud = baud
		m.DisplayBaud = baud
		m.rx = append(m.rx, nextion.AckByte)
	}
}

func (m *MockDisplay) receivePayload(p []byte) {
	m.payload = append(m.payload, p...)

	for {
		done := 0
		for _, n := range m.blockSizes {
			done += n
		}
		if done >= m.uploadSize {
			return
		}
		end := min(done+nextion.BlockSize, m.uploadSize)
		if len(m.payload) < end {
			return
		}
		m.blockSizes = append(m.blockSizes, end-done)
		if m.AckBlocks < 0 || len(m.blockSizes) <= m.AckBlocks {
			m.rx = append(m.rx, nextion.AckByte)
		}
		if end == m.uploadSize {
			// installed, the display reboots into command mode
			m.uploading = false
			m.DisplayBaud = m.BootBaud
			return
		}
	}
}

// Reboot abandons any upload in progress and returns to command mode at
// BootBaud, like a display that timed out waiting for data.
func (m *MockDisplay) Reboot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploading = false
	m.DisplayBaud = m.BootBaud
	m.rx = nil
	m.cmdBuf = nil
}

// Inject queues bytes as if the display sent them unprompted.
func (m *MockDisplay) Inject(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = append(m.rx, b...)
}

// Commands returns every non-empty instruction the display understood.
func (m *MockDisplay) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Probes returns the baud rates at which "connect" reached the display.
func (m *MockDisplay) Probes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.probes...)
}

// BaudHistory returns every baud rate the host configured, in order.
func (m *MockDisplay) BaudHistory() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.baudHistory...)
}

// Payload returns the upload bytes received so far.
func (m *MockDisplay) Payload() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.payload...)
}

// BlockSizes returns the size of every completed upload block.
func (m *MockDisplay) BlockSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.blockSizes...)
}

// Uploading reports whether an upload is in progress.
func (m *MockDisplay) Uploading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploading
}

// UploadBaud returns the baud rate requested by whmi-wri.
func (m *MockDisplay) UploadBaud() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadBaud
}
