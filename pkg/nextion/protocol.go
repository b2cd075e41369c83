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

import "time"

// Nextion instruction set and upload protocol constants.
const (
	// CmdConnect asks the display to identify itself; it answers "comok ...".
	CmdConnect = "connect"
	// CmdUpload starts a TFT upload: whmi-wri <size>,<baud>,<reserved>
	CmdUpload = "whmi-wri"

	ConnectReply = "comok"

	// AckByte is sent by the display after it accepts an upload or a block.
	AckByte byte = 0x05

	// BlockSize is the number of payload bytes the display accepts before
	// it acknowledges.
	BlockSize = 4096
)

// Terminator ends every instruction.
var Terminator = []byte{0xff, 0xff, 0xff}

// Communication settings
const (
	DefaultBaud = 9600

	ProbeTimeout  = 100 * time.Millisecond
	ProbeReadSize = 128

	// UploadSwitchDelay is the pause between sending whmi-wri and changing
	// the port to the upload baud rate.
	UploadSwitchDelay = 50 * time.Millisecond
	AckTimeout        = 500 * time.Millisecond

	pollInterval = time.Millisecond
)

// BaudRates is the probe order used to find the display. Most displays
// ship at 9600 and are commonly reconfigured to 115200.
var BaudRates = []int{9600, 115200, 19200, 57600, 38400, 4800, 2400}
