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

package httphead

import (
	"bytes"
	"strings"
)

// BuildRequest renders the GET request for path on host. When
// ifModifiedSince is not empty an If-Modified-Since header is added so the
// server can answer 304. The stored value is the server's own Last-Modified
// text, so " GMT" is only appended when the zone is missing.
func BuildRequest(host, path, ifModifiedSince string) []byte {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b bytes.Buffer
	b.WriteString("GET ")
	b.WriteString(path)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(host)
	b.WriteString("\r\n")
	if ifModifiedSince != "" {
		b.WriteString("If-Modified-Since: ")
		b.WriteString(ifModifiedSince)
		if !strings.HasSuffix(ifModifiedSince, "GMT") {
			b.WriteString(" GMT")
		}
		b.WriteString("\r\n")
	}
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}
