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

import "sync/atomic"

// Operation is the closed set of transaction kinds a Request can describe.
type Operation uint8

const (
	// OpWrite sends the write buffer to the device.
	OpWrite Operation = iota
	// OpWriteStatic is OpWrite with the source buffer residing in static
	// (program/flash-resident) memory. It is a data tag for bus drivers
	// whose targets need a distinct copy primitive for that memory class;
	// drivers on hosted platforms treat it exactly like OpWrite.
	OpWriteStatic
	// OpRead receives into the read buffer, optionally preceded by sending
	// the write buffer under a repeated start (the register-read pattern).
	OpRead
)

// Request describes one I2C transaction and carries its outcome. The caller
// owns the Request and both buffers for the whole transaction; the Manager
// only borrows them between Submit and the terminal status store.
//
// A Request must not be resubmitted or reconfigured while its status is
// pending or active. The Manager does not detect this; violating it leaves
// queue and result state undefined. A Request whose status is terminal
// (including the zero value) may be reconfigured and submitted again.
type Request struct {
	next   *Request // queue link, meaningful only while queued
	wbuf   []byte
	rbuf   []byte
	status atomic.Uint32
	nRead  int
	addr   uint8
	op     Operation
}

// SetWrite configures a plain write of buf to the 7-bit address addr.
func (r *Request) SetWrite(addr uint8, buf []byte) {
	r.addr = addr
	r.op = OpWrite
	r.wbuf = buf
	r.rbuf = nil
}

// SetWriteStatic configures a write whose source buffer lives in static
// memory. See OpWriteStatic.
func (r *Request) SetWriteStatic(addr uint8, buf []byte) {
	r.SetWrite(addr, buf)
	r.op = OpWriteStatic
}

// SetRead configures a read of len(rbuf) bytes from addr. If wbuf is
// non-empty it is sent first under a repeated start, which is how register
// contents are read in one atomic submission. wbuf may be nil for a plain
// read.
func (r *Request) SetRead(addr uint8, rbuf, wbuf []byte) {
	r.addr = addr
	r.op = OpRead
	r.rbuf = rbuf
	r.wbuf = wbuf
}

// Status returns the current status. The load synchronizes with the
// Manager's terminal store, so once a terminal status has been observed the
// result fields and buffers are safe to read.
func (r *Request) Status() Status {
	return Status(r.status.Load())
}

// Done reports whether the Request has reached a terminal status.
func (r *Request) Done() bool {
	return r.Status().Terminal()
}

// BytesRead returns the number of bytes actually received. Valid only for
// OpRead requests after a terminal status has been observed.
func (r *Request) BytesRead() int {
	return r.nRead
}

// Addr returns the configured device address.
func (r *Request) Addr() uint8 {
	return r.addr
}

// Op returns the configured operation kind.
func (r *Request) Op() Operation {
	return r.op
}
