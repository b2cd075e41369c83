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
	"fmt"
	"runtime"
	"strings"

	"go.bug.st/serial"
)

// SerialAuto in the config means pick the first serial adapter found.
const SerialAuto = "auto"

var ErrNoSerialDevice = errors.New("no serial device found")

// serialPrefixes are the device names USB serial adapters and on-board
// UARTs show up as.
var serialPrefixes = map[string][]string{
	"linux":   {"/dev/ttyUSB", "/dev/ttyACM", "/dev/ttyAMA", "/dev/serial"},
	"darwin":  {"/dev/tty.usbserial", "/dev/tty.usbmodem", "/dev/cu.usbserial"},
	"windows": {"COM"},
}

// PortLister returns the serial ports present on the system.
type PortLister func() ([]string, error)

// GetSerialDeviceList returns the serial ports a display can plausibly be
// attached to, in the order the system reports them.
func GetSerialDeviceList(list PortLister) ([]string, error) {
	if list == nil {
		list = serial.GetPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list: %w", err)
	}
	return filterSerialDevices(runtime.GOOS, ports), nil
}

func filterSerialDevices(goos string, ports []string) []string {
	prefixes, ok := serialPrefixes[goos]
	if !ok {
		return ports
	}

	devices := make([]string, 0, len(ports))
	for _, p := range ports {
		for _, prefix := range prefixes {
			if strings.HasPrefix(p, prefix) {
				devices = append(devices, p)
				break
			}
		}
	}
	return devices
}

// ResolveSerialPath returns path unless it is SerialAuto, in which case the
// first detected device is used.
func ResolveSerialPath(path string, list PortLister) (string, error) {
	if path != SerialAuto {
		return path, nil
	}
	devices, err := GetSerialDeviceList(list)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoSerialDevice
	}
	return devices[0], nil
}
