/*
 * rv64emu - RV64GC hart state and the tick-driven execution pipeline
 *
 * Copyright 2025, rv64emu contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package cpu implements the RV64GC (+M, +A, +Zicsr) single-hart pipeline:
// fetch, compressed-instruction expansion, decode, execute, and the trap
// and interrupt delivery that ties the hart to the MMU's peripherals.
// Nothing here drives its own clock; the embedding program calls Tick
// once per simulated cycle.
package cpu

import (
	"fmt"

	"github.com/rcornwell/rv64emu/internal/debug"
	"github.com/rcornwell/rv64emu/internal/device"
	"github.com/rcornwell/rv64emu/internal/device/plic"
	"github.com/rcornwell/rv64emu/internal/memory"
	"github.com/rcornwell/rv64emu/internal/riscv"
)

// Cpu holds all hart-visible architectural state: the integer register
// file, pc, the full CSR address space, and the MMU that fronts memory
// and every memory-mapped peripheral.
type Cpu struct {
	clock     uint64
	xlen      riscv.Xlen
	privilege riscv.Privilege
	x         [32]int64
	pc        uint64
	csr       [csrCapacity]uint64
	mmu       *memory.Mmu

	// instructionAddress is the pc the instruction currently executing
	// was fetched from. The source this is ported from reconstructs that
	// address as pc-4 when a CSR access faults, which is wrong for a
	// 2-byte compressed instruction; tracking it explicitly during fetch
	// keeps tval correct for both encodings.
	instructionAddress uint64

	debugMask int
}

// Debug enables a named trace option (TRACE, CSR, IRQ); see
// internal/debug for the recognized set.
func (c *Cpu) Debug(option string) error {
	mask, ok := debug.OptionMask(option)
	if !ok {
		return fmt.Errorf("cpu: unrecognized debug option %q", option)
	}
	c.debugMask |= mask
	return nil
}

// New constructs a hart at its RV64 reset state: machine mode, pc 0, and
// the boot-time register/CSR values Linux's earlycon expects (a1 holding
// the DTB pointer, sstatus/misa pre-seeded so early supervisor code sees a
// sane initial snapshot even before it writes its own).
func New(terminal device.Terminal) *Cpu {
	c := &Cpu{
		xlen:      riscv.Xlen64,
		privilege: riscv.PrivilegeMachine,
		mmu:       memory.New(riscv.Xlen64, terminal),
	}
	c.x[0xb] = 0x1020 // a1: DTB pointer, for Linux boot
	c.writeCSRRaw(csrSstatus, 0x200000005)
	c.writeCSRRaw(csrMisa, 0x80043100)
	return c
}

// Setup methods, called once before the first Tick.

func (c *Cpu) StoreRaw(address uint64, value uint8)         { c.mmu.StoreRaw(address, value) }
func (c *Cpu) StoreDoublewordRaw(address uint64, value uint64) {
	c.mmu.StoreDoublewordRaw(address, value)
}
func (c *Cpu) UpdatePC(value uint64) { c.pc = value }

func (c *Cpu) UpdateXlen(xlen riscv.Xlen) {
	c.xlen = xlen
	c.mmu.UpdateXlen(xlen)
}

func (c *Cpu) SetupMemory(capacity uint64)  { c.mmu.SetupMemory(capacity) }
func (c *Cpu) SetupFilesystem(data []byte)  { c.mmu.SetupFilesystem(data) }
func (c *Cpu) SetupDTB(data []byte)         { c.mmu.SetupDTB(data) }

// DebugDevice enables a named trace option on one of the MMU's attached
// devices ("clint", "plic", "uart", "virtio"); the hart itself is reached
// through Debug instead, since it has no MMU subsystem name of its own.
func (c *Cpu) DebugDevice(subsystem, option string) error {
	return c.mmu.Debug(subsystem, option)
}

// LoadWordRaw and LoadDoublewordRaw exist for test harnesses (riscv-tests
// style images) that need to inspect physical memory directly.

func (c *Cpu) LoadWordRaw(address uint64) uint32       { return c.mmu.LoadWordRaw(address) }
func (c *Cpu) LoadDoublewordRaw(address uint64) uint64 { return c.mmu.LoadDoublewordRaw(address) }

// PC reports the hart's current program counter, mainly for diagnostics.
func (c *Cpu) PC() uint64 { return c.pc }

// Privilege reports the hart's current privilege level, mainly for
// diagnostics.
func (c *Cpu) Privilege() riscv.Privilege { return c.privilege }

// Tick executes exactly one instruction (or takes the trap it faults
// with), advances every peripheral behind the MMU by one tick, and then
// delivers at most one pending interrupt. Because the devices tick before
// the interrupt check, an interrupt a device latches during this Tick is
// seen by this same Tick's interrupt check.
func (c *Cpu) Tick() {
	if err := c.tickOperate(); err != nil {
		c.handleTrap(err, false)
	}
	c.mmu.Tick()
	c.handleInterrupt()
	c.clock++
}

// tickOperate fetches one instruction, expanding it through uncompress if
// it fails to decode as a 32-bit instruction, and executes it.
func (c *Cpu) tickOperate() *riscv.Trap {
	word, err := c.fetch()
	if err != nil {
		return err
	}
	instructionAddress := c.pc
	c.instructionAddress = instructionAddress

	if inst, ok := decode(word); ok {
		debug.Debugf("cpu", c.debugMask, debug.MaskTrace, "pc=%#x word=%#08x", instructionAddress, word)
		c.pc += 4
		return c.operate(word, inst, instructionAddress)
	}

	expanded := uncompress(word & 0xffff)
	inst, ok := decode(expanded)
	if !ok {
		debug.Debugf("cpu", c.debugMask, debug.MaskTrace, "pc=%#x illegal chalf=%#04x", instructionAddress, word&0xffff)
		c.pc += 2
		return &riscv.Trap{Kind: riscv.IllegalInstruction, Value: uint64(word & 0xffff)}
	}
	debug.Debugf("cpu", c.debugMask, debug.MaskTrace, "pc=%#x chalf=%#04x", instructionAddress, word&0xffff)
	c.pc += 2
	return c.operate(expanded, inst, instructionAddress)
}

// fetch reads one 32-bit instruction word through the MMU, advancing pc
// past a faulting fetch so a repeated Tick doesn't refetch the same
// address forever.
func (c *Cpu) fetch() (uint32, *riscv.Trap) {
	word, err := c.mmu.FetchWord(c.pc)
	if err != nil {
		c.pc += 4
		return 0, err
	}
	return word, nil
}

// handleInterrupt asks the MMU's PLIC which source (if any) won
// arbitration this cycle, and delivers it as a supervisor-external or
// supervisor-timer interrupt. Delivery only actually occurs if
// handleTrap's delegation/masking logic doesn't reject it; on rejection
// the device's latch is left set so it is retried on a later tick.
func (c *Cpu) handleInterrupt() {
	switch c.mmu.DetectInterrupt() {
	case plic.None:
	case plic.Uart:
		if c.handleTrap(&riscv.Trap{Kind: riscv.SupervisorExternalInterrupt, Value: c.pc}, true) {
			c.mmu.ResetUartInterrupting()
			c.mmu.ResetInterrupt()
		}
	case plic.Timer:
		if c.handleTrap(&riscv.Trap{Kind: riscv.SupervisorTimerInterrupt, Value: c.pc}, true) {
			c.mmu.ResetClintInterrupting()
			c.mmu.ResetInterrupt()
		}
	case plic.Virtio:
		// The descriptor chain is already walked and completed by Mmu.Tick
		// as soon as the driver's QueueNotify write lands; by the time the
		// PLIC reports this source, all that remains is delivering the
		// completion interrupt itself.
		if c.handleTrap(&riscv.Trap{Kind: riscv.SupervisorExternalInterrupt, Value: c.pc}, true) {
			c.mmu.ResetDiskInterrupting()
			c.mmu.ResetInterrupt()
		}
	}
}

// handleTrap delegates a fault or interrupt to the target privilege level
// named by medeleg/mideleg (refined by sedeleg/sideleg), shifts the
// destination status register's interrupt-enable bits, and redirects pc
// to that level's trap vector. It returns false without taking any action
// when the interrupt is masked by the destination level's xIE bit or by
// privilege comparison - the caller is expected to leave the source
// latched and retry on a later tick.
func (c *Cpu) handleTrap(trap *riscv.Trap, isInterrupt bool) bool {
	currentEncoding := c.privilege.Encoding()
	cause := trap.Cause(c.xlen)

	mdeleg := c.csr[csrMedeleg]
	sdeleg := c.csr[csrSedeleg]
	if isInterrupt {
		mdeleg = c.csr[csrMideleg]
		sdeleg = c.csr[csrSideleg]
	}
	pos := cause & 0xffff

	var newPrivilege riscv.Privilege
	switch {
	case (mdeleg>>pos)&1 == 0:
		newPrivilege = riscv.PrivilegeMachine
	case (sdeleg>>pos)&1 == 0:
		newPrivilege = riscv.PrivilegeSupervisor
	default:
		newPrivilege = riscv.PrivilegeUser
	}

	var status uint64
	switch newPrivilege {
	case riscv.PrivilegeMachine:
		status = c.csr[csrMstatus]
	case riscv.PrivilegeSupervisor:
		status = c.csr[csrSstatus]
	case riscv.PrivilegeUser:
		status = c.csr[csrUstatus]
	default:
		panic("cpu: reserved privilege in trap delegation")
	}
	mie := (status >> 3) & 1
	sie := (status >> 1) & 1
	uie := status & 1

	if isInterrupt {
		interruptEncoding := trap.InterruptPrivilege().Encoding()
		switch newPrivilege {
		case riscv.PrivilegeMachine:
			if mie == 0 {
				return false
			}
		case riscv.PrivilegeSupervisor:
			if sie == 0 {
				return false
			}
		case riscv.PrivilegeUser:
			if uie == 0 {
				return false
			}
		}
		if currentEncoding > interruptEncoding {
			return false
		}
	}

	debug.Debugf("cpu", c.debugMask, debug.MaskIRQ, "trap cause=%#x -> privilege %v", cause, newPrivilege)
	c.privilege = newPrivilege
	c.mmu.UpdatePrivilegeMode(c.privilege)

	var epcAddress, causeAddress, tvalAddress, tvecAddress uint16
	switch c.privilege {
	case riscv.PrivilegeMachine:
		epcAddress, causeAddress, tvalAddress, tvecAddress = csrMepc, csrMcause, csrMtval, csrMtvec
	case riscv.PrivilegeSupervisor:
		epcAddress, causeAddress, tvalAddress, tvecAddress = csrSepc, csrScause, csrStval, csrStvec
	case riscv.PrivilegeUser:
		epcAddress, causeAddress, tvalAddress, tvecAddress = csrUepc, csrUcause, csrUtval, csrUtvec
	default:
		panic("cpu: reserved privilege in trap delegation")
	}

	epc := c.instructionAddress
	if isInterrupt {
		epc = c.pc
	}
	c.writeCSRRaw(epcAddress, epc)
	c.writeCSRRaw(causeAddress, cause)
	c.writeCSRRaw(tvalAddress, trap.Value)
	c.pc = c.csr[tvecAddress]

	switch c.privilege {
	case riscv.PrivilegeMachine:
		status := c.csr[csrMstatus]
		mie := (status >> 3) & 1
		newStatus := (status &^ 0x1888) | (mie << 7) | (currentEncoding << 11)
		c.writeCSRRaw(csrMstatus, newStatus)
	case riscv.PrivilegeSupervisor:
		status := c.csr[csrSstatus]
		sie := (status >> 1) & 1
		newStatus := (status &^ 0x122) | (sie << 5) | ((currentEncoding & 1) << 8)
		c.writeCSRRaw(csrSstatus, newStatus)
	case riscv.PrivilegeUser:
		status := c.csr[csrUstatus]
		uie := status & 1
		newStatus := (status &^ 0x11) | (uie << 4)
		c.writeCSRRaw(csrUstatus, newStatus)
	}
	return true
}

// updateAddressingMode interprets a satp write for the hart's current
// XLEN and pushes the resulting mode/root-PPN pair down to the MMU.
func (c *Cpu) updateAddressingMode(value uint64) {
	var mode memory.AddressingMode
	var ppn uint64
	if c.xlen == riscv.Xlen32 {
		if value&0x80000000 == 0 {
			mode = memory.None
		} else {
			mode = memory.SV32
		}
		ppn = value & 0x3fffff
	} else {
		switch value >> 60 {
		case 0:
			mode = memory.None
		case 8:
			mode = memory.SV39
		case 9:
			mode = memory.SV48
		default:
			panic("cpu: unknown addressing mode in satp")
		}
		ppn = value & 0xfffffffffff
	}
	c.mmu.UpdateAddressingMode(mode)
	c.mmu.UpdatePPN(ppn)
}

// signExtend widens a 32-bit hart's register value from its low 32 bits;
// it is a no-op for a 64-bit hart.
func (c *Cpu) signExtend(value int64) int64 {
	if c.xlen == riscv.Xlen64 {
		return value
	}
	if value&0x80000000 != 0 {
		return int64(uint64(value) | 0xffffffff00000000)
	}
	return int64(uint64(value) & 0xffffffff)
}

// unsignedData masks a register value down to the hart's XLEN width
// without sign extension.
func (c *Cpu) unsignedData(value int64) uint64 {
	if c.xlen == riscv.Xlen32 {
		return uint64(value) & 0xffffffff
	}
	return uint64(value)
}
