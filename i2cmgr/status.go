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
	"fmt"
)

// Status is the outcome field of a Request. It is the only channel by which
// the Manager reports results; no operation on the Manager returns a
// transaction error directly.
//
// StatusOK is the zero value so that a freshly declared Request reads as
// terminal and may be submitted immediately.
type Status uint32

const (
	// StatusOK indicates the transaction completed successfully.
	StatusOK Status = iota
	// StatusPending indicates the Request is queued but not yet on the bus.
	StatusPending
	// StatusActive indicates the Request is the one currently on the bus.
	StatusActive
	// StatusNackAddress indicates no device acknowledged the address byte.
	StatusNackAddress
	// StatusNackData indicates the device refused a data byte.
	StatusNackData
	// StatusArbitrationLost indicates another master won the bus.
	StatusArbitrationLost
	// StatusTimeout indicates the transaction exceeded the Manager's timeout
	// and the bus controller was reset.
	StatusTimeout
)

// Terminal reports whether s is a final outcome. Result fields of a Request
// are only valid, and the Request only reusable, once its status is
// terminal.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusActive
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusNackAddress:
		return "nack on address"
	case StatusNackData:
		return "nack on data"
	case StatusArbitrationLost:
		return "arbitration lost"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Sentinel errors corresponding to the terminal failure statuses. The
// synchronous helpers wrap these in a *BusError; errors.Is matches either
// way.
var (
	ErrNackAddress     = errors.New("i2c: nack on address")
	ErrNackData        = errors.New("i2c: nack on data")
	ErrArbitrationLost = errors.New("i2c: arbitration lost")
	ErrTimeout         = errors.New("i2c: transaction timeout")
	ErrInFlight        = errors.New("i2c: request still in flight")
	ErrBusActive       = errors.New("i2c: bus transaction in progress")
)

// Err maps a status to its sentinel error. StatusOK maps to nil; the
// non-terminal statuses map to ErrInFlight.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNackAddress:
		return ErrNackAddress
	case StatusNackData:
		return ErrNackData
	case StatusArbitrationLost:
		return ErrArbitrationLost
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrInFlight
	}
}

// BusError carries the context of a failed synchronous transaction.
type BusError struct {
	Err  error
	Op   string
	Addr uint8
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s 0x%02X: %v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
