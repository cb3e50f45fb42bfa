/*
rv64emu 16550-subset UART

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

// Package uart implements the 16550-style subset used by the RISC-V
// reference console: receiver/transmit holding registers, interrupt
// enable/identification, line control and line status, gated by DLAB.
package uart

import (
	"fmt"

	"github.com/rcornwell/rv64emu/internal/debug"
	"github.com/rcornwell/rv64emu/internal/device"
)

const (
	rbrThr = 0x10000000 // Receiver Buffer / Transmit Holding Register.
	ier    = 0x10000001 // Interrupt Enable Register.
	iir    = 0x10000002 // Interrupt Identification Register.
	lcr    = 0x10000003 // Line Control Register.
	lsr    = 0x10000005 // Line Status Register.

	samplePeriod = 0x10000 // Ticks between input polls, matching the reference sampling rate.
)

// Uart is a single 16550-subset serial port backed by an external
// Terminal byte source/sink.
type Uart struct {
	clock        uint64
	receive      uint8
	lineStatus   uint8
	interruptEn  uint8
	interruptID  uint8
	lineControl  uint8
	interrupting bool
	terminal     device.Terminal
	debugMask    int
}

// New returns a UART wired to the given terminal, with LSR/IIR at their
// reset values (THR empty, no pending interrupt).
func New(terminal device.Terminal) *Uart {
	return &Uart{
		lineStatus:  0x20,
		interruptID: 0xf,
		terminal:    terminal,
	}
}

// dlab reports whether the divisor latch access bit is set, which
// repurposes the RBR/THR and IER addresses as baud-divisor registers
// this subset doesn't implement.
func (u *Uart) dlab() bool {
	return u.lineControl>>7 != 0
}

// Tick polls the terminal for a pending input byte once per sample
// period, latching a receive-data-available interrupt when one arrives.
func (u *Uart) Tick() {
	u.clock++
	if u.clock%samplePeriod == 0 && !u.interrupting {
		value := u.terminal.GetInput()
		if value != 0 {
			if u.interruptEn&1 != 0 {
				u.interrupting = true
				u.interruptID = 0x4
				debug.Debugf("uart", u.debugMask, debug.MaskIRQ, "data-ready interrupt raised")
			}
			u.receive = value
			u.lineStatus = 0x21
		}
	}
}

// IsInterrupting reports whether the UART currently asserts its
// interrupt line.
func (u *Uart) IsInterrupting() bool {
	return u.interrupting
}

// ResetInterrupting clears the UART's asserted interrupt line.
func (u *Uart) ResetInterrupting() {
	u.interrupting = false
}

func (u *Uart) Load(address uint64) uint8 {
	if u.dlab() && (address == rbrThr || address == ier) {
		return 0
	}
	switch address {
	case rbrThr:
		if u.interruptID&0xe == 0x4 {
			u.interruptID = 0xf
		}
		value := u.receive
		u.receive = 0
		u.lineStatus = 0x20
		return value
	case ier:
		return u.interruptEn
	case iir:
		if u.interruptID&0xe != 0x2 {
			u.interruptID = 0xf
		}
		return u.interruptID
	case lcr:
		return u.lineControl
	case lsr:
		return u.lineStatus
	default:
		return 0
	}
}

func (u *Uart) Store(address uint64, value uint8) {
	if u.dlab() && (address == rbrThr || address == ier) {
		return
	}
	switch address {
	case rbrThr:
		debug.Debugf("uart", u.debugMask, debug.MaskIO, "transmit %q", value)
		u.terminal.PutByte(value)
		if u.interruptEn&2 != 0 {
			u.interrupting = true
			u.interruptID = 0x3
		} else if u.interruptID&0xe != 0x2 {
			u.interruptID = 0xf
		}
	case ier:
		u.interruptEn = value
	case lcr:
		u.lineControl = value
	}
}

// Debug enables a named trace option (TRACE, IRQ, IO); see
// internal/debug for the recognized set.
func (u *Uart) Debug(option string) error {
	mask, ok := debug.OptionMask(option)
	if !ok {
		return fmt.Errorf("uart: unrecognized debug option %q", option)
	}
	u.debugMask |= mask
	return nil
}
