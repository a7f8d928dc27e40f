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
)

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	if StatusPending.Terminal() || StatusActive.Terminal() {
		t.Error("pending and active must not be terminal")
	}
	for _, s := range []Status{StatusOK, StatusNackAddress, StatusNackData, StatusArbitrationLost, StatusTimeout} {
		if !s.Terminal() {
			t.Errorf("%v must be terminal", s)
		}
	}
}

func TestStatusErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want   error
		status Status
	}{
		{status: StatusOK, want: nil},
		{status: StatusPending, want: ErrInFlight},
		{status: StatusActive, want: ErrInFlight},
		{status: StatusNackAddress, want: ErrNackAddress},
		{status: StatusNackData, want: ErrNackData},
		{status: StatusArbitrationLost, want: ErrArbitrationLost},
		{status: StatusTimeout, want: ErrTimeout},
	}

	for _, tt := range tests {
		if got := tt.status.Err(); !errors.Is(got, tt.want) {
			t.Errorf("%v.Err() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBusErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &BusError{Op: "read", Addr: 0x50, Err: ErrNackData}
	if !errors.Is(err, ErrNackData) {
		t.Error("BusError must unwrap to its sentinel")
	}
	if err.Error() != "i2c read 0x50: i2c: nack on data" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
