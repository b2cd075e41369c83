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
	"errors"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers/syncutil"
	"go.bug.st/serial"
)

// MockRawPort is a scripted serial device implementing nextion.RawPort.
type MockRawPort struct {
	ReadError  error
	WriteError error
	ModeError  error
	CloseError error
	TimeoutErr error
	ReadData   []byte
	written    []byte
	modes      []serial.Mode
	ReadIndex  int
	resets     int
	timeout    time.Duration
	mu         syncutil.RWMutex
	Closed     bool
}

func NewMockRawPort() *MockRawPort {
	return &MockRawPort{}
}

// Read returns buffered data without blocking. An exhausted buffer reads
// as a timeout: 0 bytes and no error.
func (m *MockRawPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	if m.ReadIndex >= len(m.ReadData) {
		return 0, nil
	}
	n := copy(p, m.ReadData[m.ReadIndex:])
	m.ReadIndex += n
	return n, nil
}

func (m *MockRawPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *MockRawPort) SetMode(mode *serial.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ModeError != nil {
		return m.ModeError
	}
	m.modes = append(m.modes, *mode)
	return nil
}

func (m *MockRawPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeout = t
	return m.TimeoutErr
}

func (m *MockRawPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resets++
	m.ReadIndex = len(m.ReadData)
	return nil
}

func (m *MockRawPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return m.CloseError
}

// Written returns everything written to the port.
func (m *MockRawPort) Written() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.written...)
}

// Modes returns every mode set after the port was opened.
func (m *MockRawPort) Modes() []serial.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]serial.Mode(nil), m.modes...)
}

func (m *MockRawPort) ReadTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

func (m *MockRawPort) Resets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resets
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockRawPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}
