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

package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSerialDevices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		goos     string
		ports    []string
		expected []string
	}{
		{
			name:     "linux adapters and uart",
			goos:     "linux",
			ports:    []string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyAMA0", "/dev/ttyACM1"},
			expected: []string{"/dev/ttyUSB0", "/dev/ttyAMA0", "/dev/ttyACM1"},
		},
		{
			name:     "darwin",
			goos:     "darwin",
			ports:    []string{"/dev/tty.Bluetooth-Incoming-Port", "/dev/tty.usbserial-1420"},
			expected: []string{"/dev/tty.usbserial-1420"},
		},
		{
			name:     "windows",
			goos:     "windows",
			ports:    []string{"COM3", "LPT1"},
			expected: []string{"COM3"},
		},
		{
			name:     "unknown os keeps everything",
			goos:     "plan9",
			ports:    []string{"/dev/eia0"},
			expected: []string{"/dev/eia0"},
		},
		{
			name:     "nothing attached",
			goos:     "linux",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, filterSerialDevices(tt.goos, tt.ports))
		})
	}
}

func TestResolveSerialPath(t *testing.T) {
	t.Parallel()

	never := func() ([]string, error) {
		t.Error("port list should not be consulted")
		return nil, nil
	}
	path, err := ResolveSerialPath("/dev/ttyUSB3", never)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", path)

	_, err = ResolveSerialPath(SerialAuto, func() ([]string, error) { return nil, nil })
	require.ErrorIs(t, err, ErrNoSerialDevice)

	_, err = ResolveSerialPath(SerialAuto, func() ([]string, error) { return nil, errors.New("denied") })
	require.Error(t, err)
}
