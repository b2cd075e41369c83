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
	"fmt"
	"strings"
)

const LastModified = "Wed, 21 Oct 2015 07:28:00 GMT"

// Response builds a raw HTTP response header block.
func Response(status string, headers ...string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 " + status + "\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// OKResponse is a 200 response carrying body with LastModified.
func OKResponse(body []byte) []byte {
	head := Response("200 OK",
		"Server: nginx",
		"Last-Modified: "+LastModified,
		fmt.Sprintf("Content-Length: %d", len(body)),
		"Content-Type: application/octet-stream",
	)
	return append(head, body...)
}

// Payload returns size bytes whose blocks differ from each other.
func Payload(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*7 + i/4096)
	}
	return b
}

// Split cuts data into chunks of at most n bytes.
func Split(data []byte, n int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		k := min(n, len(data))
		chunks = append(chunks, data[:k])
		data = data[k:]
	}
	return chunks
}
