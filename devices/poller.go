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

package devices

import (
	"context"
	"time"
)

// Poller samples a set of input pins on an interval and reports changes,
// which is how track sensors on port expanders feed the turnout and
// signalling logic.
type Poller struct {
	// OnChange is invoked from the polling goroutine whenever a watched
	// pin's value differs from the previous scan. The first scan only
	// establishes the baseline and fires no callbacks.
	OnChange func(pin VPin, value int)

	reg      *Registry
	pins     []VPin
	last     map[VPin]int
	interval time.Duration
}

// NewPoller creates a poller for the given pins.
func NewPoller(reg *Registry, interval time.Duration, pins ...VPin) *Poller {
	return &Poller{
		reg:      reg,
		pins:     append([]VPin(nil), pins...),
		interval: interval,
		last:     make(map[VPin]int, len(pins)),
	}
}

// Run polls until ctx is cancelled and returns ctx.Err(). Pins that fail
// to read are skipped for that scan; a sensor glitch must not stop the
// others from being watched.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.scan(true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.scan(false)
		}
	}
}

func (p *Poller) scan(baseline bool) {
	for _, pin := range p.pins {
		v, err := p.reg.Read(pin)
		if err != nil {
			continue
		}
		prev, seen := p.last[pin]
		p.last[pin] = v
		if baseline || !seen || prev == v {
			continue
		}
		if p.OnChange != nil {
			p.OnChange(pin, v)
		}
	}
}
