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

//go:build linux

package i2cdev

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/internal/async"
)

const (
	// I2C_RDWR ioctl, combined write/read with repeated start.
	ioctlRdwr = 0x0707

	// i2c_msg flag: this message is a read.
	flagRead = 0x0001
)

// i2cMsg mirrors struct i2c_msg from <linux/i2c.h>.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data from <linux/i2c-dev.h>.
type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus drives a raw /dev/i2c-N character device through the I2C_RDWR ioctl.
// Each transaction is one combined kernel transfer run on a worker
// goroutine; the kernel driver performs the repeated start between the
// write and read halves of a register read.
type Bus struct {
	latch async.Latch

	mu   sync.Mutex
	path string
	fd   int
}

// New creates a driver for the given device path, e.g. "/dev/i2c-1". The
// device is opened by Init.
func New(path string) *Bus {
	return &Bus{path: path, fd: -1}
}

// ListBuses returns the /dev/i2c-* device paths present on this system.
func ListBuses() []string {
	paths, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil
	}
	return paths
}

// SetNotify implements i2cmgr.InterruptSource.
func (b *Bus) SetNotify(fn i2cmgr.NotifyFunc) {
	b.latch.SetNotify(fn)
}

// Init implements i2cmgr.BusDriver.
func (b *Bus) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd >= 0 {
		return nil
	}
	fd, err := unix.Open(b.path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.path, err)
	}
	b.fd = fd
	return nil
}

// SetSpeed implements i2cmgr.BusDriver. The kernel fixes the bus clock via
// the adapter's device-tree configuration, so there is nothing to do here.
func (*Bus) SetSpeed(uint32) error {
	return nil
}

// Start implements i2cmgr.BusDriver.
func (b *Bus) Start(x *i2cmgr.Transfer) {
	gen := b.latch.Begin()
	// The ioctl runs against driver-owned copies so that a worker
	// abandoned by timeout recovery can never finish into the caller's
	// reowned buffers; Latch.Step copies received bytes back only while
	// the transaction is still active.
	wbuf := append([]byte(nil), x.Write...)
	rbuf := make([]byte, len(x.Read))
	go b.run(gen, x.Addr, x.Op, wbuf, rbuf)
}

// Step implements i2cmgr.BusDriver.
func (b *Bus) Step(x *i2cmgr.Transfer) i2cmgr.StepResult {
	return b.latch.Step(x)
}

// Close implements i2cmgr.BusDriver.
func (b *Bus) Close() error {
	b.latch.Cancel()

	b.mu.Lock()
	fd := b.fd
	b.fd = -1
	b.mu.Unlock()

	if fd < 0 {
		return nil
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close %s: %w", b.path, err)
	}
	return nil
}

func (b *Bus) run(gen uint64, addr uint8, op i2cmgr.Operation, wbuf, rbuf []byte) {
	b.mu.Lock()
	fd := b.fd
	b.mu.Unlock()
	if fd < 0 {
		b.latch.Complete(gen, i2cmgr.StepNackAddress, 0, nil)
		return
	}

	msgs := make([]i2cMsg, 0, 2)
	if len(wbuf) > 0 || op != i2cmgr.OpRead {
		// A zero-length write is the classic presence probe.
		msgs = append(msgs, i2cMsg{addr: uint16(addr), len: uint16(len(wbuf)), buf: bufPtr(wbuf)})
	}
	if op == i2cmgr.OpRead {
		msgs = append(msgs, i2cMsg{addr: uint16(addr), flags: flagRead, len: uint16(len(rbuf)), buf: bufPtr(rbuf)})
	}

	data := rdwrData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: uint32(len(msgs)),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(msgs)
	runtime.KeepAlive(wbuf)
	runtime.KeepAlive(rbuf)

	if errno != 0 {
		b.latch.Complete(gen, mapErrno(errno), 0, nil)
		return
	}
	var rdata []byte
	if op == i2cmgr.OpRead {
		rdata = rbuf
	}
	b.latch.Complete(gen, i2cmgr.StepDone, len(wbuf), rdata)
}

func bufPtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// mapErrno folds an I2C_RDWR failure into the step result set.
func mapErrno(errno unix.Errno) i2cmgr.StepResult {
	switch errno {
	case unix.ENXIO, unix.ENODEV:
		return i2cmgr.StepNackAddress
	case unix.EAGAIN:
		return i2cmgr.StepArbitrationLost
	case unix.EREMOTEIO, unix.EIO, unix.ETIMEDOUT:
		return i2cmgr.StepNackData
	default:
		return i2cmgr.StepNackData
	}
}

var _ i2cmgr.BusDriver = (*Bus)(nil)
var _ i2cmgr.InterruptSource = (*Bus)(nil)
