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

package periphbus

import (
	"fmt"
	"syscall"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
)

func TestMapTxError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want i2cmgr.StepResult
	}{
		{err: syscall.ENXIO, want: i2cmgr.StepNackAddress},
		{err: syscall.ENODEV, want: i2cmgr.StepNackAddress},
		{err: syscall.EAGAIN, want: i2cmgr.StepArbitrationLost},
		{err: fmt.Errorf("tx: %w", syscall.ENXIO), want: i2cmgr.StepNackAddress},
		{err: fmt.Errorf("plain failure"), want: i2cmgr.StepNackData},
	}

	for _, tt := range tests {
		if got := mapTxError(tt.err); got != tt.want {
			t.Errorf("mapTxError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStepBeforeStartIsOngoing(t *testing.T) {
	t.Parallel()

	b := New("1")
	var x i2cmgr.Transfer
	if got := b.Step(&x); got != i2cmgr.StepOngoing {
		t.Errorf("Step() = %v, want StepOngoing", got)
	}
}

// gatedBus blocks inside Tx until released, standing in for a kernel
// transfer that only returns after the transaction has been abandoned.
type gatedBus struct {
	entered chan struct{}
	release chan struct{}
	done    chan struct{}
}

func newGatedBus() *gatedBus {
	return &gatedBus{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (g *gatedBus) String() string { return "gated" }

func (g *gatedBus) Tx(_ uint16, _, r []byte) error {
	close(g.entered)
	<-g.release
	copy(r, []byte{0xDE, 0xAD})
	close(g.done)
	return nil
}

func (*gatedBus) SetSpeed(physic.Frequency) error { return nil }

func (*gatedBus) Close() error { return nil }

// A worker stuck in Tx survives a Close-based recovery. The late kernel
// answer must land in the driver's private copy, never in the read buffer
// the caller owns again.
func TestClose_AbandonedTxLeavesCallerBufferAlone(t *testing.T) {
	t.Parallel()

	gb := newGatedBus()
	b := New("1")
	b.bus = gb
	b.SetNotify(func() {})

	rbuf := make([]byte, 2)
	x := i2cmgr.Transfer{Addr: 0x48, Op: i2cmgr.OpRead, Write: []byte{0x10}, Read: rbuf}
	b.Start(&x)

	<-gb.entered
	if err := b.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	// Recovery handed the buffer back; the caller reuses it.
	rbuf[0], rbuf[1] = 0x11, 0x22

	close(gb.release)
	select {
	case <-gb.done:
	case <-time.After(time.Second):
		t.Fatal("transfer worker never finished")
	}

	if rbuf[0] != 0x11 || rbuf[1] != 0x22 {
		t.Errorf("caller buffer = %#v, want {0x11, 0x22}", rbuf)
	}
	if got := b.Step(&x); got != i2cmgr.StepOngoing {
		t.Errorf("Step() after Close = %v, want StepOngoing", got)
	}
}
