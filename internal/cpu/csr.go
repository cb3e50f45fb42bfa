/*
 * rv64emu - CSR address space and access checks
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

package cpu

import (
	"github.com/rcornwell/rv64emu/internal/debug"
	"github.com/rcornwell/rv64emu/internal/riscv"
)

const csrCapacity = 4096

const (
	csrUstatus  = 0x000
	csrUtvec    = 0x005
	csrUepc     = 0x041
	csrUcause   = 0x042
	csrUtval    = 0x043
	csrSstatus  = 0x100
	csrSedeleg  = 0x102
	csrSideleg  = 0x103
	csrStvec    = 0x105
	csrSepc     = 0x141
	csrScause   = 0x142
	csrStval    = 0x143
	csrSatp     = 0x180
	csrMstatus  = 0x300
	csrMisa     = 0x301
	csrMedeleg  = 0x302
	csrMideleg  = 0x303
	csrMtvec    = 0x305
	csrMepc     = 0x341
	csrMcause   = 0x342
	csrMtval    = 0x343
)

// hasCSRAccessPrivilege reports whether the hart's current privilege level
// meets the minimum privilege encoded in bits [9:8] of the CSR address.
func (c *Cpu) hasCSRAccessPrivilege(address uint16) bool {
	minimum := (uint64(address) >> 8) & 0x3
	return minimum <= c.privilege.Encoding()
}

// readCSR returns the raw CSR value, or an illegal-instruction trap if the
// current privilege level cannot access it.
func (c *Cpu) readCSR(address uint16) (uint64, *riscv.Trap) {
	if !c.hasCSRAccessPrivilege(address) {
		return 0, &riscv.Trap{Kind: riscv.IllegalInstruction, Value: c.instructionAddress}
	}
	return c.csr[address], nil
}

// writeCSR validates privilege, stores the value, and reacts to writes that
// have architectural side effects (today, only satp re-deriving the MMU's
// addressing mode).
func (c *Cpu) writeCSR(address uint16, value uint64) *riscv.Trap {
	if !c.hasCSRAccessPrivilege(address) {
		return &riscv.Trap{Kind: riscv.IllegalInstruction, Value: c.instructionAddress}
	}
	debug.Debugf("cpu", c.debugMask, debug.MaskCSR, "csr %#x <- %#x", address, value)
	c.writeCSRRaw(address, value)
	if address == csrSatp {
		c.updateAddressingMode(value)
	}
	return nil
}

// writeCSRRaw stores a CSR value without any privilege check or side
// effect; used by the trap pipeline and by CSR bootstrap at construction.
func (c *Cpu) writeCSRRaw(address uint16, value uint64) {
	c.csr[address] = value
}
