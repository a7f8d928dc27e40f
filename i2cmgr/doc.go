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

/*
Package i2cmgr provides the non-blocking I2C transaction layer used by the
command station to drive its peripherals (port expanders, displays, PWM and
servo boards) without stalling the main control loop.

Callers describe one bus transaction in a Request, submit it to a Manager,
and read the outcome from the Request once its status turns terminal. The
Manager executes exactly one transaction at a time in strict submission
order, advancing it one step per bus interrupt, and enforces an optional
timeout that recovers the bus controller after a peripheral wedges it.

Basic Usage:

	import (
	    "github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	    "github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/periphbus"
	)

	drv := periphbus.New("1")
	mgr, err := i2cmgr.New(drv, i2cmgr.WithTimeout(50*time.Millisecond))
	if err != nil {
	    log.Fatal(err)
	}

	var req i2cmgr.Request
	req.SetWrite(0x20, []byte{0xFF})
	mgr.Submit(&req)

	// ... keep calling mgr.Poll() from the main loop ...

	if req.Status().Terminal() {
	    // result available in req
	}

The Manager itself never blocks: Submit, Poll and HandleInterrupt all return
after at most a short critical section. Manager.Wait and the WriteSync and
ReadSync helpers layer a blocking call/response style on top for callers
that want one.

One Manager owns one physical bus. Construct it during system setup and
hand references to the peripheral drivers; see the devices packages for
clients built this way.
*/
package i2cmgr
