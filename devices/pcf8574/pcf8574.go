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

// Package pcf8574 drives the PCF8574 8-bit I2C port expander, the usual
// carrier for turnout outputs and track sensors. Pin writes are submitted
// asynchronously so the main loop never waits on the bus; reads are
// synchronous because the caller needs the sampled value.
package pcf8574

import (
	"fmt"
	"sync"

	"github.com/davidcutting42/CommandStation-DCC/devices"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

// DefaultAddr is the chip's base address with all address straps low.
const DefaultAddr = 0x20

// PortExpander is one PCF8574 on the bus. It keeps a shadow of the output
// register because the chip has no way to read back what was written while
// pins are driven.
type PortExpander struct {
	mgr  *i2cmgr.Manager
	addr uint8

	mu     sync.Mutex
	shadow uint8
	wbuf   [1]byte
	req    i2cmgr.Request
}

// New creates a driver for the expander at addr on mgr's bus.
func New(mgr *i2cmgr.Manager, addr uint8) *PortExpander {
	return &PortExpander{mgr: mgr, addr: addr, shadow: 0xFF}
}

// Begin implements devices.Driver. The PCF8574 only supports the standard
// 100 kHz clock, so the whole bus is held to it.
func (d *PortExpander) Begin() error {
	return d.mgr.SetBusSpeed(100_000)
}

// Write implements devices.Driver: it updates the shadow state and queues
// the new port byte without waiting for the bus. The write is submitted
// through one request block reused across calls, so a failure surfaces on
// the next Write or Flush rather than immediately.
func (d *PortExpander) Write(pin, value int) error {
	if pin < 0 || pin > 7 {
		return fmt.Errorf("pcf8574: pin %d out of range", pin)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	mask := uint8(1) << pin
	if value != 0 {
		d.shadow |= mask
	} else {
		d.shadow &^= mask
	}

	prev := d.mgr.Wait(&d.req)
	d.wbuf[0] = d.shadow
	d.req.SetWrite(d.addr, d.wbuf[:])
	d.mgr.Submit(&d.req)

	if err := prev.Err(); err != nil {
		return &i2cmgr.BusError{Op: "port write", Addr: d.addr, Err: err}
	}
	return nil
}

// Read implements devices.Driver. The pin is first written high so that
// connected equipment can pull the input low, then the port is sampled.
func (d *PortExpander) Read(pin int) (int, error) {
	if pin < 0 || pin > 7 {
		return 0, fmt.Errorf("pcf8574: pin %d out of range", pin)
	}
	mask := uint8(1) << pin

	d.mu.Lock()
	d.shadow |= mask
	out := d.shadow
	d.mu.Unlock()

	var in [1]byte
	if _, err := d.mgr.ReadSync(d.addr, in[:], []byte{out}); err != nil {
		return 0, err
	}
	if in[0]&mask != 0 {
		return 1, nil
	}
	return 0, nil
}

// Flush blocks until the last queued port write has completed and returns
// its outcome.
func (d *PortExpander) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mgr.Wait(&d.req).Err(); err != nil {
		return &i2cmgr.BusError{Op: "port write", Addr: d.addr, Err: err}
	}
	return nil
}

var _ devices.Driver = (*PortExpander)(nil)
