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

package i2cmgr

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a Manager.
type Option func(*Manager) error

// WithTimeout sets how long a transaction may stay active before Poll
// abandons it and resets the bus controller. Zero, the default, disables
// the check entirely: a transaction that never completes waits forever.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		m.timeout = d
		return nil
	}
}

// WithBusSpeed sets the bus clock applied during construction. Normally
// 100000 (standard) or 400000 (fast).
func WithBusSpeed(hz uint32) Option {
	return func(m *Manager) error {
		if hz == 0 {
			return errors.New("bus speed must be non-zero")
		}
		m.speed = hz
		return nil
	}
}

// WithClock replaces the Manager's time source, used by the timeout check.
// Tests substitute a simulated clock here.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		m.now = now
		return nil
	}
}
