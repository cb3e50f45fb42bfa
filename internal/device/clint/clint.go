/*
rv64emu CLINT (core-local interruptor)

	Copyright (c) 2025, rv64emu contributors

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package clint implements the core-local interruptor: msip (software
// interrupt), mtimecmp and mtime (timer interrupt), at the standard
// single-hart base 0x02000000.
package clint

import (
	"fmt"

	"github.com/rcornwell/rv64emu/internal/debug"
)

const (
	BaseAddress = 0x02000000
	msipLow     = 0x02000000
	msipHigh    = 0x02000003
	mtimecmpLow = 0x02004000
	mtimecmpHigh = 0x02004007
	mtimeLow    = 0x0200bff8
	mtimeHigh   = 0x0200bfff
)

// Clint is the machine-mode timer and software interrupt device. mtime is
// a free-running counter exposed at the spec's fixed address; the
// interrupt condition compares it against mtimecmp the way the reference
// hardware does.
type Clint struct {
	mtime        uint64
	msip         uint32
	mtimecmp     uint64
	interrupting bool
	debugMask    int
}

// New returns a CLINT with mtime, msip and mtimecmp all zeroed.
func New() *Clint {
	return &Clint{}
}

// Tick advances mtime by one and latches a pending timer interrupt once
// msip's low bit is set and mtime has passed mtimecmp.
func (c *Clint) Tick() {
	c.mtime++
	if (c.msip&1) == 1 && c.mtimecmp > 0 && c.mtime > c.mtimecmp {
		c.interrupting = true
		debug.Debugf("clint", c.debugMask, debug.MaskIRQ, "timer interrupt raised at mtime=%d", c.mtime)
	}
}

// IsInterrupting reports whether a timer interrupt is pending.
func (c *Clint) IsInterrupting() bool {
	return c.interrupting
}

// ResetInterrupting clears the pending interrupt and restarts mtime,
// mirroring the one-shot compare-and-restart behavior of the reference
// timer: once delivered, the comparator must be rearmed by the guest.
func (c *Clint) ResetInterrupting() {
	c.interrupting = false
	c.mtime = 0
}

func (c *Clint) Load(address uint64) uint8 {
	switch {
	case address >= msipLow && address <= msipHigh:
		return uint8(c.msip >> (8 * (address - msipLow)))
	case address >= mtimecmpLow && address <= mtimecmpHigh:
		return uint8(c.mtimecmp >> (8 * (address - mtimecmpLow)))
	case address >= mtimeLow && address <= mtimeHigh:
		return uint8(c.mtime >> (8 * (address - mtimeLow)))
	default:
		return 0
	}
}

func (c *Clint) Store(address uint64, value uint8) {
	switch {
	case address >= msipLow && address <= msipHigh:
		shift := 8 * (address - msipLow)
		c.msip = (c.msip &^ (0xff << shift)) | (uint32(value) << shift)
	case address >= mtimecmpLow && address <= mtimecmpHigh:
		shift := 8 * (address - mtimecmpLow)
		c.mtimecmp = (c.mtimecmp &^ (0xff << shift)) | (uint64(value) << shift)
	case address >= mtimeLow && address <= mtimeHigh:
		shift := 8 * (address - mtimeLow)
		c.mtime = (c.mtime &^ (0xff << shift)) | (uint64(value) << shift)
	}
}

// Debug enables a named trace option (TRACE, IRQ, IO); see
// internal/debug for the recognized set.
func (c *Clint) Debug(option string) error {
	mask, ok := debug.OptionMask(option)
	if !ok {
		return fmt.Errorf("clint: unrecognized debug option %q", option)
	}
	c.debugMask |= mask
	return nil
}
