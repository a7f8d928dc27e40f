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
	"errors"
	"testing"
	"time"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InitError(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	bus.InitErr = errors.New("controller absent")

	mgr, err := New(bus)
	require.Error(t, err)
	assert.Nil(t, mgr)
	assert.Contains(t, err.Error(), "controller absent")
}

func TestNew_AppliesBusSpeed(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus, WithBusSpeed(400_000))
	require.NoError(t, err)
	require.NotNil(t, mgr)
	assert.Equal(t, uint32(400_000), bus.Speed())
}

// Scenario: one write, one interrupt step, clean completion.
func TestSubmit_SingleWriteCompletes(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	var req Request
	req.SetWrite(0x20, []byte{0xFF})
	mgr.Submit(&req)

	assert.Equal(t, 1, bus.Starts(), "idle bus should start immediately")
	assert.Equal(t, StatusActive, req.Status())
	assert.True(t, mgr.Busy())

	mgr.HandleInterrupt()

	assert.Equal(t, StatusOK, req.Status())
	assert.False(t, mgr.Busy(), "queue should be empty and bus free")
}

// Scenario: two requests submitted back to back. Only the first start may
// come from the submit path; the second must be started by the completion
// interrupt itself.
func TestHandleInterrupt_StartsNextBeforeReturning(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	var first, second Request
	first.SetWrite(0x20, []byte{0x01})
	second.SetWrite(0x21, []byte{0x02})
	mgr.Submit(&first)
	mgr.Submit(&second)

	require.Equal(t, 1, bus.Starts(), "second submit must not start while bus active")
	assert.Equal(t, StatusPending, second.Status())

	mgr.HandleInterrupt()

	assert.Equal(t, StatusOK, first.Status())
	assert.Equal(t, 2, bus.Starts(), "completion must chain-start the next request")
	assert.Equal(t, StatusActive, second.Status())

	mgr.HandleInterrupt()
	assert.Equal(t, StatusOK, second.Status())
	assert.False(t, mgr.Busy())
}

func TestFIFOCompletionOrder(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i].SetWrite(uint8(0x10+i), []byte{byte(i)})
		mgr.Submit(&reqs[i])
	}

	for done := 1; done <= len(reqs); done++ {
		mgr.HandleInterrupt()
		for i := range reqs {
			if i < done {
				assert.Equal(t, StatusOK, reqs[i].Status(), "request %d should be done after %d interrupts", i, done)
			} else {
				assert.False(t, reqs[i].Status().Terminal(), "request %d should still be in flight after %d interrupts", i, done)
			}
		}
	}
	assert.False(t, mgr.Busy())
}

func TestPoll_IdleIsNoop(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	before := bus.Calls()
	mgr.Poll()
	mgr.Poll()

	assert.Equal(t, before, bus.Calls(), "idle polls must not touch the driver")
	assert.False(t, mgr.Busy())
}

func TestMultiStepTransaction(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	bus.QueueSteps(StepOngoing, StepOngoing, StepDone)
	mgr, err := New(bus)
	require.NoError(t, err)

	var req Request
	req.SetRead(0x48, make([]byte, 2), []byte{0x00})
	mgr.Submit(&req)

	mgr.HandleInterrupt()
	assert.Equal(t, StatusActive, req.Status())
	mgr.HandleInterrupt()
	assert.Equal(t, StatusActive, req.Status())
	mgr.HandleInterrupt()
	assert.Equal(t, StatusOK, req.Status())
	assert.Equal(t, 2, req.BytesRead())
}

func TestBusErrorsSurfaceAndQueueDrains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step StepResult
		want Status
	}{
		{name: "Nack_On_Address", step: StepNackAddress, want: StatusNackAddress},
		{name: "Nack_On_Data", step: StepNackData, want: StatusNackData},
		{name: "Arbitration_Lost", step: StepArbitrationLost, want: StatusArbitrationLost},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus := NewSimBus()
			bus.QueueSteps(tt.step)
			mgr, err := New(bus)
			require.NoError(t, err)

			var failing, trailing Request
			failing.SetWrite(0x3C, []byte{0xAA})
			trailing.SetWrite(0x20, []byte{0x55})
			mgr.Submit(&failing)
			mgr.Submit(&trailing)

			mgr.HandleInterrupt()
			assert.Equal(t, tt.want, failing.Status())

			// A single failure must not stall the queue.
			mgr.HandleInterrupt()
			assert.Equal(t, StatusOK, trailing.Status())
			assert.False(t, mgr.Busy())
		})
	}
}

// Scenario: an active read never completes; one poll past the deadline
// times it out, resets the controller and starts the next request.
func TestPoll_TimeoutRecoversBus(t *testing.T) {
	t.Parallel()

	clk := testutil.NewClock()
	bus := NewSimBus()
	mgr, err := New(bus, WithTimeout(time.Second), WithClock(clk.Now))
	require.NoError(t, err)

	var stuck, next Request
	stuck.SetRead(0x50, make([]byte, 4), []byte{0x00})
	next.SetWrite(0x20, []byte{0x01})
	mgr.Submit(&stuck)
	mgr.Submit(&next)

	// Just inside the deadline nothing happens.
	clk.Advance(time.Second)
	mgr.Poll()
	assert.Equal(t, StatusActive, stuck.Status())
	assert.Zero(t, bus.Closes())

	clk.Advance(time.Millisecond)
	mgr.Poll()

	assert.Equal(t, StatusTimeout, stuck.Status())
	calls := bus.Calls()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"close", "init", "start"}, calls[len(calls)-3:],
		"recovery must close then reinit the controller, then start the next request")
	assert.Equal(t, StatusActive, next.Status())

	mgr.HandleInterrupt()
	assert.Equal(t, StatusOK, next.Status())
	assert.False(t, mgr.Busy())
}

// A zero timeout models "wait forever": the stuck transaction must survive
// any number of polls at any simulated time.
func TestPoll_ZeroTimeoutNeverExpires(t *testing.T) {
	t.Parallel()

	clk := testutil.NewClock()
	bus := NewSimBus()
	mgr, err := New(bus, WithClock(clk.Now))
	require.NoError(t, err)

	var req Request
	req.SetWrite(0x20, []byte{0xFF})
	mgr.Submit(&req)

	for i := 0; i < 100; i++ {
		clk.Advance(time.Hour)
		mgr.Poll()
	}

	assert.Equal(t, StatusActive, req.Status())
	assert.Zero(t, bus.Closes())
	assert.Equal(t, 1, bus.Inits())
}

// Scenario: a request object is reusable once terminal, with fresh
// parameters and an independent outcome.
func TestRequest_ReusableAfterTerminal(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	var req Request
	req.SetWrite(0x20, []byte{0xFF})
	mgr.Submit(&req)
	mgr.HandleInterrupt()
	require.Equal(t, StatusOK, req.Status())

	rbuf := make([]byte, 3)
	req.SetRead(0x48, rbuf, []byte{0x07})
	mgr.Submit(&req)
	assert.Equal(t, 2, bus.Starts())

	mgr.HandleInterrupt()
	assert.Equal(t, StatusOK, req.Status())
	assert.Equal(t, 3, req.BytesRead())
	assert.False(t, mgr.Busy())
}

func TestHandleInterrupt_SpuriousIgnored(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	mgr.HandleInterrupt()
	assert.False(t, mgr.Busy())
	assert.Equal(t, []string{"init"}, bus.Calls())
}

func TestSetBusSpeed(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	mgr, err := New(bus)
	require.NoError(t, err)

	require.NoError(t, mgr.SetBusSpeed(100_000))
	assert.Equal(t, uint32(100_000), bus.Speed())

	var req Request
	req.SetWrite(0x20, []byte{0x00})
	mgr.Submit(&req)

	err = mgr.SetBusSpeed(400_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusActive)

	mgr.HandleInterrupt()
	require.NoError(t, mgr.SetBusSpeed(400_000))
}

func TestManagerWriteHelpersWaitOutPriorUse(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	bus.AutoComplete = true
	mgr, err := New(bus)
	require.NoError(t, err)

	var req Request
	mgr.Write(0x20, []byte{0x01}, &req)
	// Immediately reuse the same block; Write must wait for the first
	// submission to finish rather than corrupt the queue.
	mgr.Write(0x20, []byte{0x02}, &req)

	require.Equal(t, StatusOK, mgr.Wait(&req))
	assert.Equal(t, 2, bus.Starts())
}

func TestHandleInterrupt_InvalidStepResultPanics(t *testing.T) {
	t.Parallel()

	bus := NewSimBus()
	bus.QueueSteps(StepResult(99))
	mgr, err := New(bus)
	require.NoError(t, err)

	var req Request
	req.SetWrite(0x20, []byte{0x01})
	mgr.Submit(&req)

	assert.Panics(t, func() { mgr.HandleInterrupt() },
		"a driver outside the step result contract must not be misreported as a bus error")
}
