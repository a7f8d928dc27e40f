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

package async

import (
	"testing"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	"github.com/stretchr/testify/assert"
)

func TestLatch_CompleteThenStep(t *testing.T) {
	t.Parallel()

	var l Latch
	notified := 0
	l.SetNotify(func() { notified++ })

	x := i2cmgr.Transfer{Read: make([]byte, 3)}
	assert.Equal(t, i2cmgr.StepOngoing, l.Step(&x), "unarmed latch reports ongoing")

	gen := l.Begin()
	assert.Equal(t, i2cmgr.StepOngoing, l.Step(&x))

	l.Complete(gen, i2cmgr.StepDone, 2, []byte{0xDE, 0xAD, 0xBE})
	assert.Equal(t, 1, notified)
	assert.Equal(t, i2cmgr.StepDone, l.Step(&x))
	assert.Equal(t, 2, x.Sent)
	assert.Equal(t, 3, x.Received)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE}, x.Read,
		"received bytes reach the transfer only through Step")
}

func TestLatch_CancelDiscardsLateCompletion(t *testing.T) {
	t.Parallel()

	var l Latch
	notified := 0
	l.SetNotify(func() { notified++ })

	gen := l.Begin()
	l.Cancel()
	l.Complete(gen, i2cmgr.StepDone, 1, []byte{0xFF})

	x := i2cmgr.Transfer{Read: make([]byte, 1)}
	assert.Zero(t, notified, "cancelled generation must not notify")
	assert.Equal(t, i2cmgr.StepOngoing, l.Step(&x))
	assert.Equal(t, []byte{0x00}, x.Read, "discarded outcome must not reach the transfer")

	// The next generation is unaffected.
	gen = l.Begin()
	l.Complete(gen, i2cmgr.StepNackAddress, 0, nil)
	assert.Equal(t, 1, notified)
	assert.Equal(t, i2cmgr.StepNackAddress, l.Step(&x))
}
