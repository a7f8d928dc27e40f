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

// Package oled drives SSD1306 OLED displays over the transaction
// manager. Configuration commands go out synchronously; raster data is
// streamed with a queued request so the caller can prepare the next
// frame while the previous one is still on the wire.
package oled

import (
	"errors"
	"fmt"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

// SSD1306 modules answer on one of two addresses depending on a strap
// pin.
const (
	AddrPrimary   = 0x3C
	AddrSecondary = 0x3D
)

const (
	ctrlCommand = 0x00
	ctrlData    = 0x40

	cmdSetContrast   = 0x81
	cmdInvertOff     = 0xA6
	cmdInvertOn      = 0xA7
	cmdDisplayOff    = 0xAE
	cmdDisplayOn     = 0xAF
	cmdPageStart     = 0xB0
	cmdColLowNibble  = 0x00
	cmdColHighNibble = 0x10
)

// Initialisation sequences for the two supported panel geometries. These
// never change after program start, so Begin sends them through the
// static write path without taking a defensive copy.
var (
	initSeq128x64 = []byte{
		ctrlCommand,
		cmdDisplayOff,
		0xD5, 0x80, // clock divide ratio
		0xA8, 0x3F, // multiplex 1/64
		0xD3, 0x00, // no display offset
		0x40,       // start line 0
		0x8D, 0x14, // charge pump on
		0x20, 0x02, // page addressing mode
		0xA1, 0xC8, // flip segment and COM scan for upright text
		0xDA, 0x12, // alternative COM pin config
		cmdSetContrast, 0xCF,
		0xD9, 0xF1, // pre-charge
		0xDB, 0x40, // VCOMH deselect
		0xA4, // resume from RAM
		cmdInvertOff,
		cmdDisplayOn,
	}
	initSeq128x32 = []byte{
		ctrlCommand,
		cmdDisplayOff,
		0xD5, 0x80,
		0xA8, 0x1F, // multiplex 1/32
		0xD3, 0x00,
		0x40,
		0x8D, 0x14,
		0x20, 0x02,
		0xA1, 0xC8,
		0xDA, 0x02, // sequential COM pin config
		cmdSetContrast, 0x8F,
		0xD9, 0xF1,
		0xDB, 0x40,
		0xA4,
		cmdInvertOff,
		cmdDisplayOn,
	}
)

// ErrNotFound is returned by Detect when no display answers on either
// address.
var ErrNotFound = errors.New("oled: no display found")

// Display is one SSD1306 panel.
type Display struct {
	mgr   *i2cmgr.Manager
	addr  uint8
	width int
	pages int
	init  []byte
	buf   []byte
	req   i2cmgr.Request
}

// New creates a driver for the display at addr. Supported geometries are
// 128x64 and 128x32.
func New(mgr *i2cmgr.Manager, addr uint8, width, height int) (*Display, error) {
	var seq []byte
	switch {
	case width == 128 && height == 64:
		seq = initSeq128x64
	case width == 128 && height == 32:
		seq = initSeq128x32
	default:
		return nil, fmt.Errorf("oled: unsupported geometry %dx%d", width, height)
	}
	return &Display{
		mgr:   mgr,
		addr:  addr,
		width: width,
		pages: height / 8,
		init:  seq,
	}, nil
}

// Detect probes the primary then the secondary address and returns a
// driver for the first display that responds, already initialised.
func Detect(mgr *i2cmgr.Manager, width, height int) (*Display, error) {
	for _, addr := range []uint8{AddrPrimary, AddrSecondary} {
		d, err := New(mgr, addr, width, height)
		if err != nil {
			return nil, err
		}
		err = d.Begin()
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, i2cmgr.ErrNackAddress) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Begin initialises the panel and blanks its RAM, which powers up with
// random contents.
func (d *Display) Begin() error {
	var req i2cmgr.Request
	d.mgr.WriteStatic(d.addr, d.init, &req)
	if err := d.mgr.Wait(&req).Err(); err != nil {
		return &i2cmgr.BusError{Op: "display init", Addr: d.addr, Err: err}
	}
	return d.Clear()
}

// Clear blanks the whole display.
func (d *Display) Clear() error {
	blank := make([]byte, d.width)
	for page := 0; page < d.pages; page++ {
		if err := d.SetCursor(page, 0); err != nil {
			return err
		}
		if err := d.Draw(blank); err != nil {
			return err
		}
	}
	return d.Flush()
}

// SetCursor positions the RAM pointer at the given 8-pixel page row and
// column.
func (d *Display) SetCursor(page, col int) error {
	if page < 0 || page >= d.pages || col < 0 || col >= d.width {
		return fmt.Errorf("oled: cursor (%d,%d) out of range", page, col)
	}
	if err := d.Flush(); err != nil {
		return err
	}
	cmd := []byte{
		ctrlCommand,
		cmdPageStart | byte(page),
		cmdColLowNibble | byte(col&0x0F),
		cmdColHighNibble | byte(col>>4),
	}
	return d.mgr.WriteSync(d.addr, cmd)
}

// Draw streams raster bytes at the cursor, one byte per 8-pixel column
// slice. It queues the transfer and returns immediately; a failure is
// reported by the next Draw, SetCursor or Flush call.
func (d *Display) Draw(data []byte) error {
	prev := d.mgr.Wait(&d.req)
	d.buf = append(d.buf[:0], ctrlData)
	d.buf = append(d.buf, data...)
	d.mgr.Write(d.addr, d.buf, &d.req)
	if err := prev.Err(); err != nil {
		return &i2cmgr.BusError{Op: "raster write", Addr: d.addr, Err: err}
	}
	return nil
}

// Flush waits until the last queued raster write has completed and
// returns its outcome.
func (d *Display) Flush() error {
	if err := d.mgr.Wait(&d.req).Err(); err != nil {
		return &i2cmgr.BusError{Op: "raster write", Addr: d.addr, Err: err}
	}
	return nil
}

// SetContrast adjusts panel brightness.
func (d *Display) SetContrast(level uint8) error {
	if err := d.Flush(); err != nil {
		return err
	}
	return d.mgr.WriteSync(d.addr, []byte{ctrlCommand, cmdSetContrast, level})
}

// Invert switches between normal and inverted video.
func (d *Display) Invert(on bool) error {
	if err := d.Flush(); err != nil {
		return err
	}
	cmd := byte(cmdInvertOff)
	if on {
		cmd = cmdInvertOn
	}
	return d.mgr.WriteSync(d.addr, []byte{ctrlCommand, cmd})
}
