/*
 * rv64emu - Trap type and cause encoding
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

package riscv

// TrapKind identifies a RISC-V exception or interrupt. Exceptions and
// interrupts share one pipeline; Cause distinguishes them by the top bit.
type TrapKind int

const (
	InstructionAddressMisaligned TrapKind = iota
	InstructionAccessFault
	IllegalInstruction
	Breakpoint
	LoadAddressMisaligned
	LoadAccessFault
	StoreAddressMisaligned
	StoreAccessFault
	EnvironmentCallFromUMode
	EnvironmentCallFromSMode
	EnvironmentCallFromMMode
	InstructionPageFault
	LoadPageFault
	StorePageFault
	UserSoftwareInterrupt
	SupervisorSoftwareInterrupt
	MachineSoftwareInterrupt
	UserTimerInterrupt
	SupervisorTimerInterrupt
	MachineTimerInterrupt
	UserExternalInterrupt
	SupervisorExternalInterrupt
	MachineExternalInterrupt
)

var trapNames = [...]string{
	"instruction address misaligned",
	"instruction access fault",
	"illegal instruction",
	"breakpoint",
	"load address misaligned",
	"load access fault",
	"store address misaligned",
	"store access fault",
	"environment call from U-mode",
	"environment call from S-mode",
	"environment call from M-mode",
	"instruction page fault",
	"load page fault",
	"store page fault",
	"user software interrupt",
	"supervisor software interrupt",
	"machine software interrupt",
	"user timer interrupt",
	"supervisor timer interrupt",
	"machine timer interrupt",
	"user external interrupt",
	"supervisor external interrupt",
	"machine external interrupt",
}

func (k TrapKind) String() string {
	if int(k) < 0 || int(k) >= len(trapNames) {
		return "unknown trap"
	}
	return trapNames[k]
}

// IsInterrupt reports whether the trap is an interrupt rather than a
// synchronous exception.
func (k TrapKind) IsInterrupt() bool {
	return k >= UserSoftwareInterrupt
}

// Trap is the architectural fault/interrupt sum type. It implements error
// so fallible CPU and MMU operations can return it like any other error;
// the trap pipeline receives it as a *Trap and reads its Kind directly
// rather than treating it as opaque.
type Trap struct {
	Kind  TrapKind
	Value uint64 // faulting address, bad instruction word, or 0
}

func (t *Trap) Error() string {
	return t.Kind.String()
}

// Cause computes the scause/mcause encoding for this trap at the given
// XLEN: interrupts have the top bit of XLEN set.
func (t *Trap) Cause(xlen Xlen) uint64 {
	interruptBit := uint64(0x8000000000000000)
	if xlen == Xlen32 {
		interruptBit = 0x80000000
	}
	switch t.Kind {
	case InstructionAddressMisaligned:
		return 0
	case InstructionAccessFault:
		return 1
	case IllegalInstruction:
		return 2
	case Breakpoint:
		return 3
	case LoadAddressMisaligned:
		return 4
	case LoadAccessFault:
		return 5
	case StoreAddressMisaligned:
		return 6
	case StoreAccessFault:
		return 7
	case EnvironmentCallFromUMode:
		return 8
	case EnvironmentCallFromSMode:
		return 9
	case EnvironmentCallFromMMode:
		return 11
	case InstructionPageFault:
		return 12
	case LoadPageFault:
		return 13
	case StorePageFault:
		return 15
	case UserSoftwareInterrupt:
		return interruptBit
	case SupervisorSoftwareInterrupt:
		return interruptBit + 1
	case MachineSoftwareInterrupt:
		return interruptBit + 3
	case UserTimerInterrupt:
		return interruptBit + 4
	case SupervisorTimerInterrupt:
		return interruptBit + 5
	case MachineTimerInterrupt:
		return interruptBit + 7
	case UserExternalInterrupt:
		return interruptBit + 8
	case SupervisorExternalInterrupt:
		return interruptBit + 9
	case MachineExternalInterrupt:
		return interruptBit + 11
	default:
		panic("riscv: unreachable trap kind")
	}
}

// InterruptPrivilege returns the natural privilege tier of an interrupt
// trap kind; callers must not call this for synchronous exceptions.
func (t *Trap) InterruptPrivilege() Privilege {
	switch t.Kind {
	case MachineSoftwareInterrupt, MachineTimerInterrupt, MachineExternalInterrupt:
		return PrivilegeMachine
	case SupervisorSoftwareInterrupt, SupervisorTimerInterrupt, SupervisorExternalInterrupt:
		return PrivilegeSupervisor
	case UserSoftwareInterrupt, UserTimerInterrupt, UserExternalInterrupt:
		return PrivilegeUser
	default:
		panic("riscv: " + t.Kind.String() + " is not an interrupt")
	}
}
