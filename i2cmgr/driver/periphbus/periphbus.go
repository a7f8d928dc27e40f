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

// Package periphbus implements the i2cmgr bus driver contract on top of
// periph.io host buses. Each transaction runs as one kernel transfer on a
// worker goroutine; completion is raised through the manager's interrupt
// entry point.
package periphbus

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/internal/async"
)

var hostInit sync.Once

// Bus adapts a periph.io I2C bus to the i2cmgr.BusDriver contract.
type Bus struct {
	latch async.Latch

	mu   sync.Mutex
	bus  i2c.BusCloser
	name string
}

// New creates a driver for the named periph.io bus ("1", "/dev/i2c-1",
// ...). The bus itself is opened by Init, which i2cmgr.New invokes.
func New(name string) *Bus {
	return &Bus{name: name}
}

// SetNotify implements i2cmgr.InterruptSource.
func (b *Bus) SetNotify(fn i2cmgr.NotifyFunc) {
	b.latch.SetNotify(fn)
}

// Init implements i2cmgr.BusDriver. It is idempotent; after a Close it
// reopens the bus from scratch, which is the timeout-recovery path.
func (b *Bus) Init() error {
	var hostErr error
	hostInit.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return fmt.Errorf("initialize periph host: %w", hostErr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus != nil {
		return nil
	}
	bus, err := i2creg.Open(b.name)
	if err != nil {
		return fmt.Errorf("open I2C bus %q: %w", b.name, err)
	}
	b.bus = bus
	return nil
}

// SetSpeed implements i2cmgr.BusDriver.
func (b *Bus) SetSpeed(hz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return errors.New("periphbus: bus not initialized")
	}
	if err := b.bus.SetSpeed(physic.Frequency(hz) * physic.Hertz); err != nil {
		return fmt.Errorf("set speed on bus %q: %w", b.name, err)
	}
	return nil
}

// Start implements i2cmgr.BusDriver.
func (b *Bus) Start(x *i2cmgr.Transfer) {
	gen := b.latch.Begin()
	// Copy both buffers: x's slices alias caller memory, and if a timeout
	// recovery abandons the transaction the worker outlives the manager's
	// ownership of them. The kernel transfer runs entirely against these
	// driver-owned copies; Latch.Step copies received bytes back while the
	// transaction is still legitimately active.
	wbuf := append([]byte(nil), x.Write...)
	rbuf := make([]byte, len(x.Read))
	go b.run(gen, x.Addr, x.Op, wbuf, rbuf)
}

// Step implements i2cmgr.BusDriver.
func (b *Bus) Step(x *i2cmgr.Transfer) i2cmgr.StepResult {
	return b.latch.Step(x)
}

// Close implements i2cmgr.BusDriver. Any in-flight worker outcome is
// discarded so a wedged transfer cannot complete into the next
// transaction.
func (b *Bus) Close() error {
	b.latch.Cancel()

	b.mu.Lock()
	bus := b.bus
	b.bus = nil
	b.mu.Unlock()

	if bus == nil {
		return nil
	}
	if err := bus.Close(); err != nil {
		return fmt.Errorf("close I2C bus %q: %w", b.name, err)
	}
	return nil
}

func (b *Bus) run(gen uint64, addr uint8, op i2cmgr.Operation, wbuf, rbuf []byte) {
	b.mu.Lock()
	bus := b.bus
	b.mu.Unlock()
	if bus == nil {
		b.latch.Complete(gen, i2cmgr.StepNackAddress, 0, nil)
		return
	}

	var err error
	switch op {
	case i2cmgr.OpRead:
		err = bus.Tx(uint16(addr), wbuf, rbuf)
	default:
		// OpWriteStatic needs no special copy primitive on a hosted
		// platform; the tag only matters to flash-resident targets.
		err = bus.Tx(uint16(addr), wbuf, nil)
	}
	if err != nil {
		b.latch.Complete(gen, mapTxError(err), 0, nil)
		return
	}
	var data []byte
	if op == i2cmgr.OpRead {
		data = rbuf
	}
	b.latch.Complete(gen, i2cmgr.StepDone, len(wbuf), data)
}

// mapTxError folds a kernel transfer error into the step result set. The
// kernel reports an unacknowledged address as ENXIO or EREMOTEIO; anything
// else mid-transfer surfaces as a data nack.
func mapTxError(err error) i2cmgr.StepResult {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENXIO, syscall.ENODEV:
			return i2cmgr.StepNackAddress
		case syscall.EAGAIN:
			return i2cmgr.StepArbitrationLost
		}
	}
	return i2cmgr.StepNackData
}

var _ i2cmgr.BusDriver = (*Bus)(nil)
var _ i2cmgr.InterruptSource = (*Bus)(nil)
