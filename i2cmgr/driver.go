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

// Transfer is the Manager's scratch copy of the active Request: everything
// a bus driver needs to run the transaction, detached from the Request
// itself so drivers have no lifetime coupling to caller-owned blocks beyond
// the active transaction.
//
// The Manager fills Addr, Op, Write and Read when the transaction starts.
// The driver advances Sent and Received as bytes move on the wire; the
// Manager copies Received back into the Request on completion.
type Transfer struct {
	Write    []byte
	Read     []byte
	Sent     int
	Received int
	Addr     uint8
	Op       Operation
}

// StepResult is the side channel by which a driver's Step reports the
// in-progress transaction's fate to the Manager.
type StepResult uint8

const (
	// StepOngoing means the transaction needs further interrupt steps.
	StepOngoing StepResult = iota
	// StepDone means the transaction finished successfully.
	StepDone
	// StepNackAddress means no device acknowledged the address byte.
	StepNackAddress
	// StepNackData means a data byte was not acknowledged.
	StepNackData
	// StepArbitrationLost means the controller lost a multi-master
	// arbitration.
	StepArbitrationLost
)

// BusDriver is the contract between the Manager and one physical bus
// controller. Implementations drive the chip-specific register sequencing;
// the Manager supplies all transaction state through the Transfer it passes
// to Start and Step.
//
// The Manager calls Start and Step while holding its critical section, so
// both must return promptly and must not call back into the Manager.
// Drivers that complete work asynchronously signal readiness through the
// hook installed via InterruptSource instead.
type BusDriver interface {
	// Init brings the bus controller to an idle, ready state. It must be
	// idempotent: the Manager calls it once at construction and again after
	// every timeout recovery.
	Init() error

	// SetSpeed configures the bus clock in hertz. The Manager only calls it
	// while no transaction is active.
	SetSpeed(hz uint32) error

	// Start begins the transaction described by x. Called exactly once per
	// transaction, only on the free to active transition. The driver may
	// retain x until the transaction's final Step, but never beyond it.
	Start(x *Transfer)

	// Step advances the in-progress transaction by one phase, updating
	// x.Sent and x.Received, and reports whether it is finished. Called
	// once per interrupt event delivered to Manager.HandleInterrupt.
	Step(x *Transfer) StepResult

	// Close forcibly disables the bus controller, abandoning any
	// transaction in progress. Used only during timeout recovery and always
	// followed by Init. After Close returns the driver must deliver no
	// further interrupt notifications for the abandoned transaction.
	Close() error
}

// NotifyFunc is a driver's interrupt line into the Manager. It is safe to
// call from any goroutine; the Manager serializes internally.
type NotifyFunc func()

// InterruptSource is implemented by drivers that raise completion events
// asynchronously (which is every real driver). New installs the Manager's
// interrupt entry point through it.
type InterruptSource interface {
	SetNotify(NotifyFunc)
}
