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

// Package devices maps the command station's flat virtual pin space onto
// the peripheral drivers that implement ranges of it. Turnout, sensor and
// output logic address everything by virtual pin and never learn which
// port expander or driver board a pin lives on.
package devices

import (
	"errors"
	"fmt"
	"sync"
)

// VPin is a virtual pin number.
type VPin uint16

// Driver is one peripheral exposing a contiguous run of virtual pins. The
// pin argument of Write and Read is the driver-local index, counted from
// the start of the run the driver was registered at.
type Driver interface {
	// Begin prepares the peripheral for use.
	Begin() error
	// Write sets an output pin. Value semantics are driver-specific;
	// digital drivers treat non-zero as high.
	Write(pin, value int) error
	// Read samples an input pin.
	Read(pin int) (int, error)
}

// ErrNoDevice is returned for virtual pins no driver is registered for.
var ErrNoDevice = errors.New("devices: no driver for pin")

type entry struct {
	drv   Driver
	first VPin
	n     int
}

// Registry is the virtual pin table. Construct one per command station
// during system setup; it is safe for concurrent use afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers drv for the n virtual pins starting at first. Ranges must
// not overlap.
func (g *Registry) Add(first VPin, n int, drv Driver) error {
	if n <= 0 {
		return fmt.Errorf("devices: invalid pin count %d", n)
	}
	if drv == nil {
		return errors.New("devices: nil driver")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last := int(first) + n - 1
	for _, e := range g.entries {
		elast := int(e.first) + e.n - 1
		if int(first) <= elast && last >= int(e.first) {
			return fmt.Errorf("devices: pins %d-%d overlap existing range %d-%d",
				first, last, e.first, elast)
		}
	}
	g.entries = append(g.entries, entry{drv: drv, first: first, n: n})
	return nil
}

// Begin initializes every registered driver, stopping at the first
// failure.
func (g *Registry) Begin() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.entries {
		if err := e.drv.Begin(); err != nil {
			return fmt.Errorf("begin driver at pin %d: %w", e.first, err)
		}
	}
	return nil
}

// Write sets the virtual pin to value.
func (g *Registry) Write(pin VPin, value int) error {
	drv, local, err := g.resolve(pin)
	if err != nil {
		return err
	}
	if err := drv.Write(local, value); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read samples the virtual pin.
func (g *Registry) Read(pin VPin) (int, error) {
	drv, local, err := g.resolve(pin)
	if err != nil {
		return 0, err
	}
	v, err := drv.Read(local)
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v, nil
}

func (g *Registry) resolve(pin VPin) (Driver, int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.entries {
		if pin >= e.first && int(pin) < int(e.first)+e.n {
			return e.drv, int(pin - e.first), nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrNoDevice, pin)
}
