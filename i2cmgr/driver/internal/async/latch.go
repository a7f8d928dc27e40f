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

// Package async holds the completion latch shared by bus drivers whose
// underlying OS primitive is synchronous. The driver runs the blocking
// exchange on a worker goroutine against driver-owned buffers, stores the
// outcome in the latch and raises the manager's interrupt notification; the
// manager's Step call then collects the outcome and copies received bytes
// into the transfer. Cancel invalidates the in-flight generation so a
// worker finishing after a timeout recovery is silently discarded, which is
// what the BusDriver contract demands of Close. The copy-out in Step is
// what keeps an abandoned worker off caller memory: once recovery hands a
// request's buffers back to their owner, the stuck OS call can only ever
// finish into the driver's private copy.
package async

import (
	"sync"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

// Latch is the single-transaction completion slot. The zero value is ready
// for use.
type Latch struct {
	mu     sync.Mutex
	notify i2cmgr.NotifyFunc
	gen    uint64
	res    i2cmgr.StepResult
	sent   int
	data   []byte
	done   bool
}

// SetNotify installs the manager's interrupt entry point.
func (l *Latch) SetNotify(fn i2cmgr.NotifyFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = fn
}

// Begin arms the latch for a new transaction and returns its generation
// token, which the worker passes back to Complete.
func (l *Latch) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.done = false
	return l.gen
}

// Complete stores the transaction outcome and the driver-owned slice of
// received bytes, then raises the interrupt notification, unless the
// generation has been cancelled in the meantime. It must be called without
// the manager's critical section held, i.e. from the worker goroutine
// only. data must not be touched by the worker after Complete returns.
func (l *Latch) Complete(gen uint64, res i2cmgr.StepResult, sent int, data []byte) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.res = res
	l.sent = sent
	l.data = data
	l.done = true
	notify := l.notify
	l.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Step reports the stored outcome into x, copying received bytes into
// x.Read, or returns StepOngoing if the worker has not finished. It runs
// under the manager's critical section, where x's buffers are still
// manager-owned, so this is the one place received data may legally reach
// the caller's read buffer.
func (l *Latch) Step(x *i2cmgr.Transfer) i2cmgr.StepResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		return i2cmgr.StepOngoing
	}
	x.Sent = l.sent
	x.Received = copy(x.Read, l.data)
	return l.res
}

// Cancel discards any in-flight transaction: a late Complete for the old
// generation becomes a no-op.
func (l *Latch) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.done = false
	l.data = nil
}
