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

// Package sc18im implements the i2cmgr bus driver contract for the NXP
// SC18IM704 UART-to-I2C bridge, which lets the command station reach an
// I2C chain through any serial port. One bridge command frame is one bus
// transaction; the transaction result is read back from the bridge's
// I2CStat register.
package sc18im

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/internal/async"
)

// Bridge command bytes.
const (
	cmdStart    = 'S'
	cmdStop     = 'P'
	cmdRegRead  = 'R'
	cmdRegWrite = 'W'
)

// Bridge internal registers.
const (
	regI2CClkL = 0x07
	regI2CClkH = 0x08
	regI2CStat = 0x0A
)

// I2CStat values.
const (
	statOK          = 0xF0
	statNackAddress = 0xF1
	statNackData    = 0xF2
	statTimeout     = 0xF8
)

// The bridge's I2C clock divides a fixed 7.3728 MHz reference.
const refClockHz = 7_372_800

const defaultBaud = 9600

// serialPort is the slice of go.bug.st/serial.Port this driver needs;
// tests substitute a scripted implementation.
type serialPort interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Bus adapts an SC18IM704 bridge to the i2cmgr.BusDriver contract.
type Bus struct {
	latch async.Latch

	mu       sync.Mutex
	port     serialPort
	portName string
	baud     int
}

// New creates a driver for the bridge attached to the named serial port
// ("/dev/ttyUSB0", "COM3"). The port is opened by Init.
func New(portName string) *Bus {
	return &Bus{portName: portName, baud: defaultBaud}
}

// SetNotify implements i2cmgr.InterruptSource.
func (b *Bus) SetNotify(fn i2cmgr.NotifyFunc) {
	b.latch.SetNotify(fn)
}

// Init implements i2cmgr.BusDriver.
func (b *Bus) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port != nil {
		return nil
	}
	port, err := serial.Open(b.portName, &serial.Mode{BaudRate: b.baud})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", b.portName, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %q: %w", b.portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return fmt.Errorf("flush %q: %w", b.portName, err)
	}
	b.port = port
	return nil
}

// SetSpeed implements i2cmgr.BusDriver by programming the bridge's clock
// divider registers: SCL = 7.3728 MHz / (2 * (I2CClkH + I2CClkL)).
func (b *Bus) SetSpeed(hz uint32) error {
	if hz == 0 {
		return fmt.Errorf("sc18im: invalid bus speed %d", hz)
	}
	total := refClockHz / (2 * int(hz))
	half := clampDiv(total / 2)
	rest := clampDiv(total - total/2)

	b.mu.Lock()
	port := b.port
	b.mu.Unlock()
	if port == nil {
		return fmt.Errorf("sc18im: port not open")
	}
	frame := []byte{cmdRegWrite, regI2CClkL, rest, regI2CClkH, half, cmdStop}
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("program clock divider: %w", err)
	}
	return nil
}

func clampDiv(v int) byte {
	// The datasheet floors the divider halves at 5.
	if v < 5 {
		return 5
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// Start implements i2cmgr.BusDriver.
func (b *Bus) Start(x *i2cmgr.Transfer) {
	gen := b.latch.Begin()
	// The serial exchange runs against driver-owned copies: a worker
	// stuck in a port read can outlive a timeout recovery, by which time
	// x's slices are back in the caller's hands. Latch.Step copies
	// received bytes out only while the transaction is still active.
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
	port := b.port
	b.port = nil
	b.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("close serial port %q: %w", b.portName, err)
	}
	return nil
}

func (b *Bus) run(gen uint64, addr uint8, op i2cmgr.Operation, wbuf, rbuf []byte) {
	b.mu.Lock()
	port := b.port
	b.mu.Unlock()
	if port == nil {
		b.latch.Complete(gen, i2cmgr.StepNackAddress, 0, nil)
		return
	}

	var data []byte
	if op == i2cmgr.OpRead {
		if _, err := port.Write(readFrame(addr, wbuf, len(rbuf))); err != nil {
			b.latch.Complete(gen, i2cmgr.StepNackData, 0, nil)
			return
		}
		n, err := io.ReadFull(port, rbuf)
		data = rbuf[:n]
		if err != nil {
			b.latch.Complete(gen, i2cmgr.StepNackData, len(wbuf), data)
			return
		}
	} else {
		if _, err := port.Write(writeFrame(addr, wbuf)); err != nil {
			b.latch.Complete(gen, i2cmgr.StepNackData, 0, nil)
			return
		}
	}

	// The transaction's fate lives in the bridge's status register.
	res, err := b.queryStatus(port)
	if err != nil {
		b.latch.Complete(gen, i2cmgr.StepNackData, len(wbuf), data)
		return
	}
	if res != i2cmgr.StepDone {
		b.latch.Complete(gen, res, 0, nil)
		return
	}
	b.latch.Complete(gen, i2cmgr.StepDone, len(wbuf), data)
}

func (b *Bus) queryStatus(port serialPort) (i2cmgr.StepResult, error) {
	if _, err := port.Write([]byte{cmdRegRead, regI2CStat, cmdStop}); err != nil {
		return 0, err
	}
	var stat [1]byte
	if _, err := io.ReadFull(port, stat[:]); err != nil {
		return 0, err
	}
	switch stat[0] {
	case statOK:
		return i2cmgr.StepDone, nil
	case statNackAddress:
		return i2cmgr.StepNackAddress, nil
	case statNackData:
		return i2cmgr.StepNackData, nil
	case statTimeout:
		// The bridge's own bus timeout: the transfer lost arbitration or
		// the bus is held. Report it as arbitration lost; a wedge beyond
		// that is caught by the manager's timeout.
		return i2cmgr.StepArbitrationLost, nil
	default:
		return i2cmgr.StepNackData, nil
	}
}

// writeFrame builds "S <addr|W> <n> <data...> P".
func writeFrame(addr uint8, wbuf []byte) []byte {
	frame := make([]byte, 0, 4+len(wbuf))
	frame = append(frame, cmdStart, addr<<1, byte(len(wbuf)))
	frame = append(frame, wbuf...)
	return append(frame, cmdStop)
}

// readFrame builds the read command, with a repeated start after the
// register preamble when one is present:
// "S <addr|W> <wn> <wdata...> S <addr|R> <rn> P" or "S <addr|R> <rn> P".
func readFrame(addr uint8, wbuf []byte, rn int) []byte {
	frame := make([]byte, 0, 8+len(wbuf))
	if len(wbuf) > 0 {
		frame = append(frame, cmdStart, addr<<1, byte(len(wbuf)))
		frame = append(frame, wbuf...)
	}
	frame = append(frame, cmdStart, addr<<1|1, byte(rn))
	return append(frame, cmdStop)
}

var _ i2cmgr.BusDriver = (*Bus)(nil)
var _ i2cmgr.InterruptSource = (*Bus)(nil)
