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
	"fmt"
	"sync"
)

// SimBus is a scripted BusDriver used in tests throughout this repository.
// By default every transaction completes successfully in a single step and
// the test delivers that step itself by calling Manager.HandleInterrupt.
// Setting AutoComplete makes SimBus raise its own interrupt notifications
// from a goroutine, standing in for real hardware, which is what the
// peripheral driver tests use together with the synchronous helpers.
type SimBus struct {
	// Handler, if set, is invoked on the final step of each transaction
	// that is not scripted to fail, to emulate the addressed peripheral:
	// it may inspect x.Write, fill x.Read/x.Received and return the step
	// outcome.
	Handler func(x *Transfer) StepResult

	// AutoComplete makes Start deliver the transaction's interrupt steps
	// asynchronously. Set it before the bus is handed to New.
	AutoComplete bool

	// InitErr, if set, is returned by the next Init call.
	InitErr error

	mu      sync.Mutex
	notify  NotifyFunc
	scripts [][]StepResult
	steps   []StepResult
	calls   []string
	speed   uint32
	starts  int
	inits   int
	closes  int
}

// NewSimBus creates a simulated bus driver.
func NewSimBus() *SimBus {
	return &SimBus{}
}

// QueueSteps scripts the step outcomes of one future transaction, in the
// order Step will report them. Transactions with no script complete with a
// single StepDone.
func (b *SimBus) QueueSteps(steps ...StepResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts = append(b.scripts, steps)
}

// SetNotify implements InterruptSource.
func (b *SimBus) SetNotify(fn NotifyFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = fn
}

// Init implements BusDriver.
func (b *SimBus) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.InitErr; err != nil {
		b.InitErr = nil
		return err
	}
	b.inits++
	b.calls = append(b.calls, "init")
	return nil
}

// SetSpeed implements BusDriver.
func (b *SimBus) SetSpeed(hz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = hz
	b.calls = append(b.calls, fmt.Sprintf("set-speed %d", hz))
	return nil
}

// Start implements BusDriver.
func (b *SimBus) Start(_ *Transfer) {
	b.mu.Lock()
	b.starts++
	b.calls = append(b.calls, "start")
	if len(b.scripts) > 0 {
		b.steps = b.scripts[0]
		b.scripts = b.scripts[1:]
	} else {
		b.steps = []StepResult{StepDone}
	}
	notify := b.notify
	deliver := 0
	if b.AutoComplete {
		deliver = len(b.steps)
	}
	b.mu.Unlock()

	if notify == nil {
		return
	}
	for i := 0; i < deliver; i++ {
		go notify()
	}
}

// Step implements BusDriver.
func (b *SimBus) Step(x *Transfer) StepResult {
	b.mu.Lock()
	res := StepDone
	if len(b.steps) > 0 {
		res = b.steps[0]
		b.steps = b.steps[1:]
	}
	handler := b.Handler
	b.mu.Unlock()

	if res != StepDone {
		// Ongoing steps and scripted failures bypass the peripheral
		// emulation.
		return res
	}
	if handler != nil {
		return handler(x)
	}
	x.Sent = len(x.Write)
	if x.Op == OpRead {
		x.Received = len(x.Read)
	}
	return res
}

// Close implements BusDriver.
func (b *SimBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps = nil
	b.closes++
	b.calls = append(b.calls, "close")
	return nil
}

// Starts returns how many transactions were started.
func (b *SimBus) Starts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts
}

// Inits returns how many times Init was called.
func (b *SimBus) Inits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inits
}

// Closes returns how many times Close was called.
func (b *SimBus) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Speed returns the last configured bus speed.
func (b *SimBus) Speed() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// Calls returns the lifecycle call log in order.
func (b *SimBus) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

var _ BusDriver = (*SimBus)(nil)
var _ InterruptSource = (*SimBus)(nil)
