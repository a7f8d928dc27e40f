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
	"time"
)

// busState is the Manager's two-state register.
type busState uint8

const (
	stateFree busState = iota
	stateActive
)

// Manager owns one physical I2C bus: a FIFO of pending Requests and the
// state machine that runs them one at a time. All public operations return
// after at most a short critical section; outcomes are delivered through
// each Request's status field.
//
// The mutex is the interrupt-exclusion primitive: every read-modify-write
// of the queue pointers, the state register and the scratch Transfer
// happens under it, whether the caller is foreground code or a driver's
// completion goroutine standing in for the interrupt handler.
type Manager struct {
	drv BusDriver
	now func() time.Time

	mu      sync.Mutex
	head    *Request
	tail    *Request
	current *Request
	xfer    Transfer
	started time.Time
	timeout time.Duration
	speed   uint32
	state   busState
}

// New constructs the Manager for one physical bus and initializes the
// driver. A timeout of zero (the default, see WithTimeout) disables timeout
// checking entirely.
func New(drv BusDriver, opts ...Option) (*Manager, error) {
	m := &Manager{
		drv: drv,
		now: time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if src, ok := drv.(InterruptSource); ok {
		src.SetNotify(m.HandleInterrupt)
	}
	if err := drv.Init(); err != nil {
		return nil, fmt.Errorf("init bus driver: %w", err)
	}
	if m.speed != 0 {
		if err := drv.SetSpeed(m.speed); err != nil {
			return nil, fmt.Errorf("set bus speed: %w", err)
		}
	}
	return m, nil
}

// Submit queues req for execution and starts it immediately if the bus is
// idle. It returns without waiting; read req.Status for the outcome. The
// Request and both its buffers must stay untouched until a terminal status
// is observed.
func (m *Manager) Submit(req *Request) {
	// Pending must be visible before the block appears on the queue, or the
	// interrupt path could complete it with a stale status. The store
	// happens-before the enqueue via the critical section below.
	req.status.Store(uint32(StatusPending))

	m.mu.Lock()
	req.next = nil
	if m.tail == nil {
		m.head = req
		m.tail = req
	} else {
		m.tail.next = req
		m.tail = req
	}
	m.mu.Unlock()

	m.tryStart()
}

// Write configures req as a plain write and submits it. If req is still in
// flight from an earlier submission, Write first blocks until it turns
// terminal, which keeps the shared-request idiom of the peripheral drivers
// safe.
func (m *Manager) Write(addr uint8, buf []byte, req *Request) {
	m.Wait(req)
	req.SetWrite(addr, buf)
	m.Submit(req)
}

// WriteStatic is Write for buffers in static memory. See OpWriteStatic.
func (m *Manager) WriteStatic(addr uint8, buf []byte, req *Request) {
	m.Wait(req)
	req.SetWriteStatic(addr, buf)
	m.Submit(req)
}

// Read configures req as a read, optionally preceded by writing wbuf, and
// submits it. Like Write it first waits out any earlier submission of req.
func (m *Manager) Read(addr uint8, rbuf, wbuf []byte, req *Request) {
	m.Wait(req)
	req.SetRead(addr, rbuf, wbuf)
	m.Submit(req)
}

// Poll drives timeout detection and queue draining. Call it every main-loop
// iteration; it is a no-op when there is nothing to do.
func (m *Manager) Poll() {
	m.checkTimeout()
	m.tryStart()
}

// HandleInterrupt is the bus interrupt entry point: it advances the active
// transaction by one step and, when the driver reports a final result,
// completes the head Request and starts the next queued one before
// returning. Drivers wired through InterruptSource call it once per bus
// event; it tolerates spurious calls.
func (m *Manager) HandleInterrupt() {
	m.mu.Lock()
	if m.state != stateActive {
		// Spurious or late event, e.g. the tail end of a transaction the
		// timeout path already abandoned.
		m.mu.Unlock()
		return
	}
	res := m.drv.Step(&m.xfer)
	if res == StepOngoing {
		m.mu.Unlock()
		return
	}
	req := m.popLocked()
	m.current = nil
	m.state = stateFree
	if req != nil {
		req.nRead = m.xfer.Received
		req.status.Store(uint32(statusFor(res)))
	}
	// Back-to-back queued transactions start from here, inside the
	// interrupt, so they cost the foreground no extra latency.
	m.startLocked()
	m.mu.Unlock()
}

// SetBusSpeed reconfigures the bus clock. It fails with ErrBusActive while
// a transaction is in progress; quiesce the queue first.
func (m *Manager) SetBusSpeed(hz uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateFree {
		return ErrBusActive
	}
	m.speed = hz
	if err := m.drv.SetSpeed(hz); err != nil {
		return fmt.Errorf("set bus speed: %w", err)
	}
	return nil
}

// Busy reports whether a transaction is active or queued.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != stateFree || m.head != nil
}

// tryStart starts the head Request if the bus is free and the queue is
// non-empty, and is a no-op otherwise. It is called speculatively after
// every enqueue, completion and timeout recovery; that pairing is what
// keeps the queue draining without a scheduler of its own.
func (m *Manager) tryStart() {
	m.mu.Lock()
	m.startLocked()
	m.mu.Unlock()
}

func (m *Manager) startLocked() {
	req := m.head
	if req == nil || m.state != stateFree {
		return
	}
	m.state = stateActive
	m.current = req
	req.status.Store(uint32(StatusActive))
	// Copy the key fields into scratch state so the driver never touches
	// the Request itself.
	m.xfer = Transfer{
		Addr:  req.addr,
		Op:    req.op,
		Write: req.wbuf,
		Read:  req.rbuf,
	}
	m.started = m.now()
	m.drv.Start(&m.xfer)
}

// checkTimeout abandons the active transaction once it has outlived the
// configured timeout. A transaction that neither completes nor errors means
// the peripheral has stopped driving the bus, so the controller is forced
// back to idle with a close/init cycle. Runs only from Poll, never from the
// interrupt path.
func (m *Manager) checkTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateActive || m.timeout <= 0 {
		return
	}
	if m.now().Sub(m.started) <= m.timeout {
		return
	}
	req := m.popLocked()
	m.current = nil
	// Shutting down and reinitializing the controller is a coarse recovery
	// that also disturbs other devices on the bus, but a wedged peripheral
	// leaves nothing finer-grained to do.
	_ = m.drv.Close()
	_ = m.drv.Init()
	m.state = stateFree
	if req != nil {
		req.status.Store(uint32(StatusTimeout))
	}
}

// popLocked removes and returns the queue head. Callers hold m.mu.
func (m *Manager) popLocked() *Request {
	req := m.head
	if req == nil {
		return nil
	}
	m.head = req.next
	if m.head == nil {
		m.tail = nil
	}
	req.next = nil
	return req
}

func statusFor(res StepResult) Status {
	switch res {
	case StepDone:
		return StatusOK
	case StepNackAddress:
		return StatusNackAddress
	case StepNackData:
		return StatusNackData
	case StepArbitrationLost:
		return StatusArbitrationLost
	default:
		// Only a driver violating the Step contract can deliver anything
		// else here; misreporting it as a bus error would hide the bug.
		panic(fmt.Sprintf("i2c: driver returned invalid step result %d", res))
	}
}
