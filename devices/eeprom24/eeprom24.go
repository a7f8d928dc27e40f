// CommandStation-DCC
// Copyright (c) 2026 The CommandStation-DCC Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of CommandStation-DCC.
//
// CommandStation-DCC is free software: you can redistribute it and/or
// modify it under the terms of the GNU General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// CommandStation-DCC is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CommandStation-DCC.  If not, see <https://www.gnu.org/licenses/>.

// Package eeprom24 reads and writes 24Cxx serial EEPROMs, which the
// command station uses to persist turnout positions and device
// configuration across power cycles. Writes are split on the device's
// page boundaries and each page is acknowledge-polled until the internal
// write cycle finishes.
package eeprom24

import (
	"errors"
	"fmt"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

// Config describes one EEPROM variant.
type Config struct {
	// Size is the array size in bytes.
	Size int
	// PageSize is the write page size in bytes, always a power of two.
	PageSize int
	// TwoByteAddr selects 16-bit memory addressing (24C32 and larger).
	// Smaller parts use one address byte plus address bits folded into
	// the device address.
	TwoByteAddr bool
}

// Standard part configurations.
var (
	Conf24C02  = Config{Size: 256, PageSize: 8}
	Conf24C08  = Config{Size: 1024, PageSize: 16}
	Conf24C32  = Config{Size: 4096, PageSize: 32, TwoByteAddr: true}
	Conf24C256 = Config{Size: 32768, PageSize: 64, TwoByteAddr: true}
)

// ackPollLimit bounds how many address probes Write issues while the
// device's internal write cycle (typically 5 ms) holds it off the bus.
const ackPollLimit = 200

// ErrOutOfRange is returned for accesses beyond the configured array.
var ErrOutOfRange = errors.New("eeprom24: access beyond end of array")

// Device is one EEPROM on the bus.
type Device struct {
	mgr  *i2cmgr.Manager
	conf Config
	addr uint8
}

// New creates a driver for the EEPROM at addr (usually 0x50) on mgr's
// bus.
func New(mgr *i2cmgr.Manager, addr uint8, conf Config) (*Device, error) {
	if conf.Size <= 0 || conf.PageSize <= 0 ||
		conf.PageSize&(conf.PageSize-1) != 0 || conf.Size%conf.PageSize != 0 {
		// The page split masks with PageSize-1, so it must be a power of
		// two, which every real 24Cxx part's page is.
		return nil, fmt.Errorf("eeprom24: invalid configuration %+v", conf)
	}
	return &Device{mgr: mgr, addr: addr, conf: conf}, nil
}

// ReadAt fills p from the array starting at off.
func (d *Device) ReadAt(p []byte, off int) error {
	if off < 0 || off+len(p) > d.conf.Size {
		return ErrOutOfRange
	}
	if len(p) == 0 {
		return nil
	}
	// Sequential reads cross page boundaries freely; one transaction per
	// device-address block is enough. Without two-byte addressing the
	// high address bits live in the device address, so reads must not
	// cross a 256-byte block.
	for len(p) > 0 {
		devaddr, mem := d.split(off)
		n := len(p)
		if !d.conf.TwoByteAddr {
			if rest := 256 - int(mem[len(mem)-1]); n > rest {
				n = rest
			}
		}
		if _, err := d.mgr.ReadSync(devaddr, p[:n], mem); err != nil {
			return err
		}
		p = p[n:]
		off += n
	}
	return nil
}

// WriteAt writes p to the array starting at off, page by page.
func (d *Device) WriteAt(p []byte, off int) error {
	if off < 0 || off+len(p) > d.conf.Size {
		return ErrOutOfRange
	}
	for len(p) > 0 {
		inPage := off & (d.conf.PageSize - 1)
		n := d.conf.PageSize - inPage
		if n > len(p) {
			n = len(p)
		}
		devaddr, mem := d.split(off)
		if err := d.mgr.WriteSync(devaddr, append(mem, p[:n]...)); err != nil {
			return err
		}
		if err := d.waitReady(devaddr); err != nil {
			return err
		}
		p = p[n:]
		off += n
	}
	return nil
}

// split derives the device address and memory-address preamble for off.
func (d *Device) split(off int) (devaddr uint8, mem []byte) {
	if d.conf.TwoByteAddr {
		return d.addr, []byte{byte(off >> 8), byte(off)}
	}
	// Address bits 8.. select banked device addresses on small parts.
	return d.addr + uint8(off>>8), []byte{byte(off)}
}

// waitReady acknowledge-polls the device until it answers its address
// again, signalling the end of the internal write cycle.
func (d *Device) waitReady(devaddr uint8) error {
	var err error
	for i := 0; i < ackPollLimit; i++ {
		err = d.mgr.WriteSync(devaddr, nil)
		if err == nil {
			return nil
		}
		if !errors.Is(err, i2cmgr.ErrNackAddress) {
			return err
		}
	}
	return fmt.Errorf("eeprom24: device stayed busy after write: %w", err)
}
