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

//go:build !linux

package i2cdev

import (
	"errors"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

// ErrUnsupported is returned on platforms without /dev/i2c character
// devices. Use the periphbus or sc18im drivers instead.
var ErrUnsupported = errors.New("i2cdev: only supported on linux")

// Bus is a stub on non-linux platforms.
type Bus struct {
	path string
}

// New creates a stub driver; Init will fail with ErrUnsupported.
func New(path string) *Bus {
	return &Bus{path: path}
}

// ListBuses returns nil on non-linux platforms.
func ListBuses() []string {
	return nil
}

// SetNotify implements i2cmgr.InterruptSource.
func (*Bus) SetNotify(i2cmgr.NotifyFunc) {}

// Init implements i2cmgr.BusDriver.
func (*Bus) Init() error {
	return ErrUnsupported
}

// SetSpeed implements i2cmgr.BusDriver.
func (*Bus) SetSpeed(uint32) error {
	return ErrUnsupported
}

// Start implements i2cmgr.BusDriver.
func (*Bus) Start(*i2cmgr.Transfer) {}

// Step implements i2cmgr.BusDriver.
func (*Bus) Step(*i2cmgr.Transfer) i2cmgr.StepResult {
	return i2cmgr.StepNackAddress
}

// Close implements i2cmgr.BusDriver.
func (*Bus) Close() error {
	return nil
}

var _ i2cmgr.BusDriver = (*Bus)(nil)
var _ i2cmgr.InterruptSource = (*Bus)(nil)
