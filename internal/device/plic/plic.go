/*
rv64emu PLIC (platform-level interrupt controller)

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

// Package plic implements the platform-level interrupt controller that
// aggregates the virtio block and UART external interrupts plus the
// CLINT timer interrupt into a single claim/complete register the CPU
// polls once per tick.
package plic

import (
	"fmt"

	"github.com/rcornwell/rv64emu/internal/debug"
)

const (
	priorityBase   = 0x0c000000
	priorityTop    = 0x0c000ffc
	enableBase     = 0x0c002080
	enableTop      = 0x0c002087
	thresholdBase  = 0x0c201000
	thresholdTop   = 0x0c201003
	claimComplete  = 0x0c201004
	claimCompleteTop = 0x0c201007

	virtioIRQ = 1
	uartIRQ   = 10
)

// Source identifies which interrupt is currently latched.
type Source int

const (
	None Source = iota
	Virtio
	Uart
	Timer
)

// Plic aggregates the three interrupt sources spec.md names (virtio,
// UART, CLINT timer) by priority and enable state, surfacing the winner
// through a claim/complete register at a fixed offset.
type Plic struct {
	irq        uint32
	enabled    uint64
	threshold  uint32
	priorities [1024]uint32
	source     Source
	debugMask  int
}

// New returns a PLIC with all priorities, enables and the threshold
// zeroed, as the reference controller starts.
func New() *Plic {
	return &Plic{}
}

// Tick is a no-op placeholder for symmetry with the other MMIO devices;
// the PLIC has no free-running counter of its own.
func (p *Plic) Tick() {}

// DetectInterrupt re-evaluates which source wins given each device's
// raw interrupt-pending flag. External sources (virtio, UART) are
// compared by configured priority and masked by the programmed
// threshold; the timer only wins when no external source does, matching
// spec.md §4.4's "external interrupts take priority over the local
// timer interrupt" rule.
func (p *Plic) DetectInterrupt(virtioPending, uartPending, timerPending bool) {
	virtioPriority := p.priorities[virtioIRQ]
	uartPriority := p.priorities[uartIRQ]
	virtioEnabled := (p.enabled>>virtioIRQ)&1 == 1
	uartEnabled := (p.enabled>>uartIRQ)&1 == 1

	winner := None
	var best uint32
	if virtioPending && virtioEnabled && (winner == None || virtioPriority > best) {
		winner, best = Virtio, virtioPriority
	}
	if uartPending && uartEnabled && (winner == None || uartPriority > best) {
		winner, best = Uart, uartPriority
	}
	if winner != None && best <= p.threshold {
		winner = None
	}

	if winner == None && timerPending {
		winner = Timer
	}

	if winner != None && winner != p.source {
		debug.Debugf("plic", p.debugMask, debug.MaskIRQ, "source %d won arbitration", winner)
	}
	p.source = winner

	switch winner {
	case Virtio:
		p.irq = virtioIRQ
	case Uart:
		p.irq = uartIRQ
	}
}

// ResetInterrupt clears the latched source without touching the
// claim/complete register; the guest clears that separately by writing
// back the claimed id.
func (p *Plic) ResetInterrupt() {
	p.source = None
}

// GetInterrupt returns the currently latched source.
func (p *Plic) GetInterrupt() Source {
	return p.source
}

func (p *Plic) Load(address uint64) uint8 {
	switch {
	case address >= priorityBase && address <= priorityTop:
		index := (address - priorityBase) >> 2
		shift := (address % 4) * 8
		return uint8(p.priorities[index] >> shift)
	case address >= enableBase && address <= enableTop:
		shift := 8 * (address - enableBase)
		return uint8(p.enabled >> shift)
	case address >= thresholdBase && address <= thresholdTop:
		shift := 8 * (address - thresholdBase)
		return uint8(p.threshold >> shift)
	case address >= claimComplete && address <= claimCompleteTop:
		shift := 8 * (address - claimComplete)
		return uint8(p.irq >> shift)
	default:
		return 0
	}
}

func (p *Plic) Store(address uint64, value uint8) {
	switch {
	case address >= priorityBase && address <= priorityTop:
		index := (address - priorityBase) >> 2
		shift := (address % 4) * 8
		p.priorities[index] = (p.priorities[index] &^ (0xff << shift)) | (uint32(value) << shift)
	case address >= enableBase && address <= enableTop:
		shift := 8 * (address - enableBase)
		p.enabled = (p.enabled &^ (0xff << shift)) | (uint64(value) << shift)
	case address >= thresholdBase && address <= thresholdTop:
		shift := 8 * (address - thresholdBase)
		p.threshold = (p.threshold &^ (0xff << shift)) | (uint32(value) << shift)
	case address == claimComplete:
		if uint8(p.irq) == value {
			p.irq = 0
		}
	}
}

// Debug enables a named trace option (TRACE, IRQ, IO); see
// internal/debug for the recognized set.
func (p *Plic) Debug(option string) error {
	mask, ok := debug.OptionMask(option)
	if !ok {
		return fmt.Errorf("plic: unrecognized debug option %q", option)
	}
	p.debugMask |= mask
	return nil
}
