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

// Package httphead is a minimal HTTP/1.1 response header scanner for
// devices that stream the body straight out of a fixed buffer. It finds the
// end of the header block and pulls out the status code, Content-Length and
// any single-line header value. Chunked transfer encoding and folded
// headers are not supported: the server must send a plain response with a
// Content-Length.
package httphead

import (
	"bytes"
	"strconv"
)

const (
	// Terminator ends the header block.
	Terminator = "\r\n\r\n"

	HeaderLastModified  = "Last-Modified"
	HeaderContentLength = "Content-Length"

	// LastModifiedCapacity is the stored size of a Last-Modified value,
	// including its terminator.
	LastModifiedCapacity = 32
)

// FindHeaderEnd returns the offset just past the first CR LF CR LF in buf.
func FindHeaderEnd(buf []byte) (int, bool) {
	i := bytes.Index(buf, []byte(Terminator))
	if i < 0 {
		return 0, false
	}
	return i + len(Terminator), true
}

// ParseStatusCode returns the number following the first space of the
// status line, or 0 when it is missing or malformed.
func ParseStatusCode(header []byte) int {
	sp := bytes.IndexByte(header, ' ')
	if sp < 0 {
		return 0
	}
	return leadingInt(header[sp+1:])
}

// ParseHeaderValue finds "<name>:" (case-sensitive) and returns the trimmed
// text up to the next CR. Values are cut to capacity-1 bytes, leaving room
// for the terminator of a fixed-size record; a capacity <= 0 means no limit.
// Truncation is silent.
func ParseHeaderValue(header []byte, name string, capacity int) (string, bool) {
	i := bytes.Index(header, []byte(name+":"))
	if i < 0 {
		return "", false
	}

	rest := header[i+len(name)+1:]
	if cr := bytes.IndexByte(rest, '\r'); cr >= 0 {
		rest = rest[:cr]
	}
	rest = bytes.TrimSpace(rest)

	if capacity > 0 && len(rest) > capacity-1 {
		rest = rest[:capacity-1]
	}
	return string(rest), true
}

// ParseContentLength returns the Content-Length value. Absent or
// non-numeric values give 0, which callers must treat as an unknown length.
func ParseContentLength(header []byte) int {
	v, ok := ParseHeaderValue(header, HeaderContentLength, 0)
	if !ok {
		return 0
	}
	return leadingInt([]byte(v))
}

func leadingInt(b []byte) int {
	b = bytes.TrimLeft(b, " \t")
	end := 0
	for end < len(b) && b[end] >= '0' && b[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(b[:end]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
