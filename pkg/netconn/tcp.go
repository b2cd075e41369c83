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

// Package netconn is the TCP transport the downloader reads HTTP responses
// from. Reads never block for more than a millisecond so the state machine
// can poll it from its tick loop.
package netconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDialTimeout = 10 * time.Second
	pollTimeout        = time.Millisecond
	writeTimeout       = 10 * time.Second
)

var ErrNotConnected = errors.New("not connected")

// Client is a single TCP connection that can be reconnected.
type Client struct {
	conn        net.Conn
	dialer      *net.Dialer
	dialTimeout time.Duration
	mu          syncutil.Mutex
}

// NewClient returns a disconnected client. A dialTimeout <= 0 uses
// DefaultDialTimeout.
func NewClient(dialTimeout time.Duration) *Client {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Client{
		dialTimeout: dialTimeout,
		dialer: &net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		},
	}
}

// Connect dials host:port, dropping any previous connection first.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.closeLocked()

	ctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.conn = conn

	log.Debug().Str("addr", addr).Msg("netconn: connected")
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Read returns whatever arrives within a millisecond. A timeout is not an
// error; any other failure, including the server closing the connection,
// disconnects the client.
func (c *Client) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, ErrNotConnected
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		_ = c.closeLocked()
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, err := c.conn.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, nil
		}
		_ = c.closeLocked()
		return n, fmt.Errorf("connection closed: %w", err)
	}
	return n, nil
}

func (c *Client) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, fmt.Errorf("failed to set write deadline: %w", err)
	}
	n, err := c.conn.Write(p)
	if err != nil {
		_ = c.closeLocked()
		return n, fmt.Errorf("failed to write: %w", err)
	}
	return n, nil
}

// Stop closes the connection. It is safe to call when not connected.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
