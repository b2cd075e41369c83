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

package nextion_test

import (
	"errors"
	"testing"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func openMock(t *testing.T, port *mocks.MockRawPort, window int) (*nextion.SerialPort, *serial.Mode) {
	t.Helper()

	var opened *serial.Mode
	sp, err := nextion.OpenSerialPort("/dev/ttyACM0", window, func(_ string, mode *serial.Mode) (nextion.RawPort, error) {
		opened = mode
		return port, nil
	})
	require.NoError(t, err)
	return sp, opened
}

func TestOpenSerialPort(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	sp, mode := openMock(t, port, 0)

	assert.Equal(t, "/dev/ttyACM0", sp.Path())
	require.NotNil(t, mode)
	assert.Equal(t, nextion.DefaultBaud, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Positive(t, port.ReadTimeout())
	assert.Equal(t, nextion.DefaultWriteWindow, sp.AvailableForWrite())
}

func TestOpenSerialPort_Errors(t *testing.T) {
	t.Parallel()

	t.Run("open fails", func(t *testing.T) {
		t.Parallel()
		_, err := nextion.OpenSerialPort("/dev/missing", 0, func(string, *serial.Mode) (nextion.RawPort, error) {
			return nil, errors.New("no such device")
		})
		require.Error(t, err)
	})

	t.Run("timeout fails", func(t *testing.T) {
		t.Parallel()
		port := mocks.NewMockRawPort()
		port.TimeoutErr = errors.New("unsupported")
		_, err := nextion.OpenSerialPort("/dev/ttyACM0", 0, func(string, *serial.Mode) (nextion.RawPort, error) {
			return port, nil
		})
		require.Error(t, err)
		assert.True(t, port.IsClosed())
	})
}

func TestSerialPort_SetBaudRate(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	sp, _ := openMock(t, port, 0)

	require.NoError(t, sp.SetBaudRate(115200))
	modes := port.Modes()
	require.Len(t, modes, 1)
	assert.Equal(t, 115200, modes[0].BaudRate)

	port.ModeError = errors.New("invalid rate")
	require.Error(t, sp.SetBaudRate(1))
}

func TestSerialPort_Read(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	port.ReadData = []byte{'a', 'b', nextion.AckByte}
	sp, _ := openMock(t, port, 0)

	require.True(t, sp.Available())
	var got []byte
	for {
		c, ok := sp.ReadByte()
		if !ok {
			break
		}
		got = append(got, c)
	}
	assert.Equal(t, []byte{'a', 'b', nextion.AckByte}, got)
	assert.False(t, sp.Available())
}

func TestSerialPort_ReadError(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	port.ReadError = errors.New("device unplugged")
	sp, _ := openMock(t, port, 0)

	_, ok := sp.ReadByte()
	assert.False(t, ok)
	assert.False(t, sp.Available())
}

func TestSerialPort_Write(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	sp, _ := openMock(t, port, 512)

	assert.Equal(t, 512, sp.AvailableForWrite())
	n, err := sp.Write([]byte("connect"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []byte("connect"), port.Written())

	port.WriteError = errors.New("broken pipe")
	_, err = sp.Write([]byte("x"))
	require.Error(t, err)
}

func TestSerialPort_Flush(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	port.ReadData = []byte("stale bytes")
	sp, _ := openMock(t, port, 0)

	require.True(t, sp.Available())
	require.NoError(t, sp.Flush())
	assert.False(t, sp.Available())
	assert.Equal(t, 1, port.Resets())
}

func TestSerialPort_Close(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	sp, _ := openMock(t, port, 0)

	require.NoError(t, sp.Close())
	require.NoError(t, sp.Close(), "closing twice is a no-op")
	assert.True(t, port.IsClosed())

	assert.Zero(t, sp.AvailableForWrite())
	_, err := sp.Write([]byte("x"))
	require.Error(t, err)
	require.Error(t, sp.SetBaudRate(9600))
}

func TestSerialPort_DriverRoundTrip(t *testing.T) {
	t.Parallel()

	port := mocks.NewMockRawPort()
	sp, _ := openMock(t, port, 0)
	d := nextion.NewDriver(sp, mocks.NewStepClock())

	// reply already waiting is discarded by the command, so nothing answers
	port.ReadData = []byte("comok 1\xff\xff\xff")
	assert.False(t, d.ProbeBaud(9600))
	assert.Equal(t, 9600, port.Modes()[0].BaudRate)
}
