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

import "runtime"

// Wait blocks until req reaches a terminal status and returns it. It
// busy-polls, driving Poll on every pass so that timeout detection and
// queue draining keep running even when nothing else is pumping the
// Manager. This is the building block the synchronous helpers below and
// the peripheral drivers layer their call/response style on; the
// asynchronous core never calls it.
func (m *Manager) Wait(req *Request) Status {
	for {
		if s := req.Status(); s.Terminal() {
			return s
		}
		m.Poll()
		runtime.Gosched()
	}
}

// WriteSync performs a plain write and blocks until it completes, returning
// nil or a *BusError wrapping the failure sentinel.
func (m *Manager) WriteSync(addr uint8, buf []byte) error {
	var req Request
	req.SetWrite(addr, buf)
	m.Submit(&req)
	if err := m.Wait(&req).Err(); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// ReadSync performs a read, optionally preceded by writing wbuf, and blocks
// until it completes. It returns the number of bytes received.
func (m *Manager) ReadSync(addr uint8, rbuf, wbuf []byte) (int, error) {
	var req Request
	req.SetRead(addr, rbuf, wbuf)
	m.Submit(&req)
	if err := m.Wait(&req).Err(); err != nil {
		return req.BytesRead(), &BusError{Op: "read", Addr: addr, Err: err}
	}
	return req.BytesRead(), nil
}
