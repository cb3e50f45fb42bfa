/*
 * rv64emu - Shared architectural types for the RV64GC hart
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

// Package riscv holds the small set of architectural types shared between
// the CPU and the MMU so neither package has to import the other.
package riscv

// Xlen is the hart's native integer width.
type Xlen int

const (
	Xlen32 Xlen = 32
	Xlen64 Xlen = 64
)

// Privilege is a RISC-V privilege level. Reserved must never be observed
// after a transition; it exists only to detect a corrupted MPP/SPP field.
type Privilege int

const (
	PrivilegeUser Privilege = iota
	PrivilegeSupervisor
	PrivilegeReserved
	PrivilegeMachine
)

// Encoding returns the numeric encoding used in mstatus.MPP/SPP and in
// CSR privilege checks. Higher numbers are more privileged.
func (p Privilege) Encoding() uint64 {
	switch p {
	case PrivilegeUser:
		return 0
	case PrivilegeSupervisor:
		return 1
	case PrivilegeMachine:
		return 3
	default:
		panic("riscv: encoding of reserved privilege mode")
	}
}

func (p Privilege) String() string {
	switch p {
	case PrivilegeUser:
		return "U"
	case PrivilegeSupervisor:
		return "S"
	case PrivilegeMachine:
		return "M"
	default:
		return "Reserved"
	}
}
