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

package netconn

import (
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

var virtualInterfacePrefixes = []string{
	"docker", "veth", "br-", "virbr", "vmnet", "vboxnet", "zt", "tailscale", "wg",
}

// Ready reports whether the host has a usable network: a non-loopback
// interface that is up and has an address.
func Ready() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("netconn: failed to list interfaces")
		return false
	}
	return anyReady(ifaces, interfaceAddrs)
}

func interfaceAddrs(iface net.Interface) ([]net.Addr, error) {
	return iface.Addrs()
}

func anyReady(ifaces []net.Interface, addrs func(net.Interface) ([]net.Addr, error)) bool {
	for _, iface := range filterInterfaces(ifaces) {
		a, err := addrs(iface)
		if err != nil {
			continue
		}
		if len(a) > 0 {
			return true
		}
	}
	return false
}

// filterInterfaces keeps interfaces that are up, not loopback and not
// virtual bridges.
func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var usable []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		usable = append(usable, iface)
	}
	return usable
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
