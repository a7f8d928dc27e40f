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

// i2cprobe scans an I2C bus for responding devices and prints an
// i2cdetect-style address grid. It is mainly a smoke test for a wiring
// job: if the expander, display and EEPROM show up here, the command
// station will find them too.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davidcutting42/CommandStation-DCC/i2cmgr"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/i2cdev"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/periphbus"
	"github.com/davidcutting42/CommandStation-DCC/i2cmgr/driver/sc18im"
)

// Probeable 7-bit address range; 0x00-0x02 and 0x78-0x7F are reserved.
const (
	firstAddr = 0x03
	lastAddr  = 0x77
)

type config struct {
	device  *string
	speed   *uint
	timeout *time.Duration
	list    *bool
}

func parseFlags() *config {
	cfg := &config{
		device: flag.String("device", "",
			"Bus to scan: /dev/i2c-N, a serial port with an SC18IM bridge "+
				"(e.g. /dev/ttyUSB0), or a periph.io bus name. Empty lists candidates."),
		speed:   flag.Uint("speed", 0, "Bus speed in Hz (0 leaves the driver default)"),
		timeout: flag.Duration("timeout", time.Second, "Per-transaction timeout"),
		list:    flag.Bool("list", false, "List visible I2C buses and exit"),
	}
	flag.Parse()
	return cfg
}

// newDriver picks a bus driver from the device path, the same way a user
// would describe the hardware: kernel i2c-dev nodes by their /dev path,
// serial bridges by their port, anything else by periph.io bus name.
func newDriver(path string) i2cmgr.BusDriver {
	pathLower := strings.ToLower(path)
	switch {
	case strings.Contains(pathLower, "i2c"):
		return i2cdev.New(path)
	case strings.Contains(pathLower, "tty") || strings.HasPrefix(pathLower, "com"):
		return sc18im.New(path)
	default:
		return periphbus.New(path)
	}
}

func listBuses() {
	buses := i2cdev.ListBuses()
	if len(buses) == 0 {
		_, _ = fmt.Println("No /dev/i2c-* buses found.")
		return
	}
	for _, b := range buses {
		_, _ = fmt.Println(b)
	}
}

func scan(mgr *i2cmgr.Manager) ([]uint8, error) {
	var found []uint8

	_, _ = fmt.Println("     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f")
	for row := 0x00; row <= 0x70; row += 0x10 {
		_, _ = fmt.Printf("%02x:", row)
		for col := 0; col < 0x10; col++ {
			addr := uint8(row + col)
			if addr < firstAddr || addr > lastAddr {
				_, _ = fmt.Print("   ")
				continue
			}
			err := mgr.WriteSync(addr, nil)
			switch {
			case err == nil:
				_, _ = fmt.Printf(" %02x", addr)
				found = append(found, addr)
			case errors.Is(err, i2cmgr.ErrNackAddress):
				_, _ = fmt.Print(" --")
			case errors.Is(err, i2cmgr.ErrTimeout):
				_, _ = fmt.Print(" TT")
			default:
				_, _ = fmt.Println()
				return found, err
			}
		}
		_, _ = fmt.Println()
	}
	return found, nil
}

func run(cfg *config) error {
	if *cfg.list {
		listBuses()
		return nil
	}

	device := *cfg.device
	if device == "" {
		buses := i2cdev.ListBuses()
		if len(buses) == 0 {
			return errors.New("no bus given and no /dev/i2c-* buses found; see -device")
		}
		device = buses[0]
		_, _ = fmt.Printf("Scanning %s (first of %d buses)\n", device, len(buses))
	}

	opts := []i2cmgr.Option{i2cmgr.WithTimeout(*cfg.timeout)}
	if *cfg.speed > 0 {
		opts = append(opts, i2cmgr.WithBusSpeed(uint32(*cfg.speed)))
	}

	mgr, err := i2cmgr.New(newDriver(device), opts...)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}

	found, err := scan(mgr)
	if err != nil {
		return fmt.Errorf("scan %s: %w", device, err)
	}
	_, _ = fmt.Printf("\n%d device(s) found.\n", len(found))
	return nil
}

func main() {
	if err := run(parseFlags()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
