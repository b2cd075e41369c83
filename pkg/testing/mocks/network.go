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
	"context"
	"errors"
	"io"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers/syncutil"
)

var ErrNotConnected = errors.New("not connected")

// MockNetwork is a scripted network transport. Each Read returns bytes from
// the current chunk only, so a test controls exactly how the response is
// split across ticks. An empty chunk is a tick with nothing to read.
type MockNetwork struct {
	ConnectErr error
	requests   [][]byte
	Chunks     [][]byte
	host       string
	port       int
	chunk      int
	offset     int
	connects   int
	stops      int
	reads      int
	mu         syncutil.Mutex
	// CloseWhenDrained makes the server hang up once Chunks run out.
	CloseWhenDrained bool
	connected        bool
}

// NewMockNetwork returns a transport that serves chunks on every connect.
func NewMockNetwork(chunks ...[]byte) *MockNetwork {
	return &MockNetwork{Chunks: chunks}
}

func (m *MockNetwork) Connect(_ context.Context, host string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	m.host = host
	m.port = port
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	m.chunk = 0
	m.offset = 0
	return nil
}

func (m *MockNetwork) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockNetwork) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	if !m.connected {
		return 0, ErrNotConnected
	}

	if m.chunk >= len(m.Chunks) {
		if m.CloseWhenDrained {
			m.connected = false
			return 0, io.EOF
		}
		return 0, nil
	}

	cur := m.Chunks[m.chunk]
	n := copy(p, cur[m.offset:])
	m.offset += n
	if m.offset >= len(cur) {
		m.chunk++
		m.offset = 0
	}
	return n, nil
}

func (m *MockNetwork) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, ErrNotConnected
	}
	m.requests = append(m.requests, append([]byte(nil), p...))
	return len(p), nil
}

func (m *MockNetwork) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.connected = false
	return nil
}

// Hangup simulates the server closing the connection.
func (m *MockNetwork) Hangup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Requests returns every request written, one entry per Write call.
func (m *MockNetwork) Requests() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.requests...)
}

// Connects returns how many times Connect was called.
func (m *MockNetwork) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

// Stops returns how many times Stop was called.
func (m *MockNetwork) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Reads returns how many times Read was called.
func (m *MockNetwork) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Addr returns the host and port of the last Connect.
func (m *MockNetwork) Addr() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host, m.port
}
