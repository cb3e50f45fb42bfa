/*
 * rv64emu - hart-level behavioral tests
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
	"testing"

	"github.com/rcornwell/rv64emu/internal/riscv"
)

type fakeTerminal struct{}

func (fakeTerminal) GetInput() uint8  { return 0 }
func (fakeTerminal) PutByte(uint8)    {}
func (fakeTerminal) GetOutput() uint8 { return 0 }
func (fakeTerminal) PutInput(uint8)   {}

const testBase = 0x80000000

// newTestCpu builds a hart with a small flat RAM, pc parked at testBase in
// machine mode with no address translation, ready to have instructions
// poked into memory and single-stepped with Tick.
func newTestCpu(t *testing.T) *Cpu {
	t.Helper()
	c := New(fakeTerminal{})
	c.SetupMemory(1 << 20)
	c.UpdatePC(testBase)
	return c
}

func (c *Cpu) storeWordRaw(address uint64, word uint32) {
	c.StoreRaw(address, uint8(word))
	c.StoreRaw(address+1, uint8(word>>8))
	c.StoreRaw(address+2, uint8(word>>16))
	c.StoreRaw(address+3, uint8(word>>24))
}

func (c *Cpu) storeHalfwordRaw(address uint64, half uint16) {
	c.StoreRaw(address, uint8(half))
	c.StoreRaw(address+1, uint8(half>>8))
}

// encodeI builds a 32-bit I-format instruction word.
func encodeI(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeR builds a 32-bit R-format instruction word.
func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeU builds a 32-bit U-format instruction word.
func encodeU(imm uint32, rd, opcode uint32) uint32 {
	return (imm & 0xfffff000) | rd<<7 | opcode
}

// encodeShift builds a 32-bit shift-immediate instruction (SLLI/SRLI/SRAI),
// whose 12-bit immediate field packs funct7 into bits 11:5 and a 6-bit
// shift amount into bits 5:0 (on RV64 instruction bit 25 is shamt[5])
// rather than a plain sign-extended immediate.
func encodeShift(funct7, shamt, rs1, funct3, rd, opcode uint32) uint32 {
	return encodeI(int32(funct7<<5|(shamt&0x3f)), rs1, funct3, rd, opcode)
}

// encodeJ builds a 32-bit J-format (JAL) instruction word.
func encodeJ(imm int32, rd, opcode uint32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 1
	bits10to1 := (u >> 1) & 0x3ff
	bit11 := (u >> 11) & 1
	bits19to12 := (u >> 12) & 0xff
	return bit20<<31 | bits10to1<<21 | bit11<<20 | bits19to12<<12 | rd<<7 | opcode
}

// Register zero is hard-wired: any instruction that targets x0 as its
// destination must leave it at zero, no matter what the instruction would
// otherwise have computed.
func TestRegisterZeroIsAlwaysZero(t *testing.T) {
	c := newTestCpu(t)
	// ADDI x0, x0, 5
	c.storeWordRaw(testBase, encodeI(5, 0, 0, 0, 0x13))
	c.Tick()
	if c.x[0] != 0 {
		t.Fatalf("x0 = %d, want 0", c.x[0])
	}
}

// ADDI sign-extends its 12-bit immediate before adding; ADDI x1, x0, -1
// must leave all 64 bits of x1 set.
func TestSeedADDIFromX0MinusOneProducesAllOnes(t *testing.T) {
	c := newTestCpu(t)
	c.storeWordRaw(testBase, encodeI(-1, 0, 0, 1, 0x13))
	c.Tick()
	if c.x[1] != -1 {
		t.Fatalf("x1 = %#x, want -1 (all ones)", uint64(c.x[1]))
	}
	if c.pc != testBase+4 {
		t.Fatalf("pc = %#x, want %#x", c.pc, testBase+4)
	}
}

// LUI loads its 20-bit immediate into the upper bits with the low 12 bits
// zero; SRAI by 31 then arithmetic-shifts the sign bit across the whole
// register, producing all ones when the loaded immediate's top bit was set.
func TestSeedLUIThenSRAIProducesAllOnes(t *testing.T) {
	c := newTestCpu(t)
	// LUI x1, 0x80000 -> x1 = 0xffffffff80000000 (sign-extended per XLEN64 LUI)
	c.storeWordRaw(testBase, encodeU(0x80000000, 1, 0x37))
	// SRAI x2, x1, 31
	c.storeWordRaw(testBase+4, encodeShift(0x20, 31, 1, 5, 2, 0x13))
	c.Tick()
	c.Tick()
	if c.x[2] != -1 {
		t.Fatalf("x2 = %#x, want -1 (all ones)", uint64(c.x[2]))
	}
}

// Division by zero is not an exception in RISC-V: DIV x3, x1, x2 with x2
// == 0 must produce -1 in x3 and must not raise any trap.
func TestSeedDivByZeroProducesAllOnesNoTrap(t *testing.T) {
	c := newTestCpu(t)
	// ADDI x1, x0, 7
	c.storeWordRaw(testBase, encodeI(7, 0, 0, 1, 0x13))
	// DIV x3, x1, x2 (x2 still zero)
	c.storeWordRaw(testBase+4, encodeR(1, 2, 1, 4, 3, 0x33))
	c.Tick()
	c.Tick()
	if c.x[3] != -1 {
		t.Fatalf("x3 = %#x, want -1", uint64(c.x[3]))
	}
	if c.pc != testBase+8 {
		t.Fatalf("pc = %#x, want %#x (no trap taken)", c.pc, testBase+8)
	}
}

// JAL x1, 8 at testBase must link the return address (pc+4) into x1 and
// redirect pc to pc+8.
func TestSeedJALLinksAndJumps(t *testing.T) {
	c := newTestCpu(t)
	c.storeWordRaw(testBase, encodeJ(8, 1, 0x6f))
	c.Tick()
	if c.x[1] != int64(testBase+4) {
		t.Fatalf("x1 = %#x, want %#x", uint64(c.x[1]), testBase+4)
	}
	if c.pc != testBase+8 {
		t.Fatalf("pc = %#x, want %#x", c.pc, testBase+8)
	}
}

// JALR must clear the low bit of its computed target even when rs1+imm is
// odd - the target address, not the link value, is masked.
func TestSeedJALRClearsLowBitOfTarget(t *testing.T) {
	c := newTestCpu(t)
	c.x[5] = int64(testBase + 0x2005) // odd base, forces rs1+imm odd too
	// JALR x1, 4(x5)
	c.storeWordRaw(testBase, encodeI(4, 5, 0, 1, 0x67))
	c.Tick()
	wantTarget := uint64(testBase+0x2005+4) &^ 1
	if c.pc != wantTarget {
		t.Fatalf("pc = %#x, want %#x", c.pc, wantTarget)
	}
	if c.x[1] != int64(testBase+4) {
		t.Fatalf("x1 = %#x, want %#x", uint64(c.x[1]), testBase+4)
	}
}

// C.JR expands to the same JALR opcode, so it must clear the target's low
// bit too.
func TestSeedCompressedJRClearsLowBitOfTarget(t *testing.T) {
	c := newTestCpu(t)
	c.x[1] = int64(testBase + 0x3001) // odd
	// C.JR x1
	c.storeHalfwordRaw(testBase, 0x8082)
	c.Tick()
	wantTarget := uint64(testBase+0x3001) &^ 1
	if c.pc != wantTarget {
		t.Fatalf("pc = %#x, want %#x", c.pc, wantTarget)
	}
}

// An ECALL taken from supervisor mode, with medeleg delegating cause 9 to
// supervisor, must land at stvec with scause == 9 and sepc pointing at the
// ECALL instruction itself (not one past it).
func TestSeedDelegatedSupervisorECALL(t *testing.T) {
	c := newTestCpu(t)
	c.privilege = riscv.PrivilegeSupervisor
	c.mmu.UpdatePrivilegeMode(c.privilege)
	c.writeCSRRaw(csrMedeleg, 1<<9)
	c.writeCSRRaw(csrStvec, 0x80010000)

	// ECALL
	c.storeWordRaw(testBase, encodeI(0, 0, 0, 0, 0x73))
	c.Tick()

	if got := c.csr[csrScause]; got != 9 {
		t.Fatalf("scause = %d, want 9", got)
	}
	if got := c.csr[csrSepc]; got != testBase {
		t.Fatalf("sepc = %#x, want %#x", got, uint64(testBase))
	}
	if c.pc != 0x80010000 {
		t.Fatalf("pc = %#x, want trap vector", c.pc)
	}
	if c.privilege != riscv.PrivilegeSupervisor {
		t.Fatalf("privilege = %v, want supervisor", c.privilege)
	}
}

// A CSR access that fails its privilege check must report the faulting
// instruction's own address as tval.
func TestCSRPrivilegeFaultReportsInstructionAddress(t *testing.T) {
	c := newTestCpu(t)
	c.privilege = riscv.PrivilegeUser
	c.instructionAddress = 0x80001234

	_, trap := c.readCSR(csrSatp)
	if trap == nil {
		t.Fatal("expected illegal-instruction trap from user-mode satp read")
	}
	if trap.Kind != riscv.IllegalInstruction {
		t.Fatalf("trap kind = %v, want IllegalInstruction", trap.Kind)
	}
	if trap.Value != 0x80001234 {
		t.Fatalf("tval = %#x, want %#x (true instruction address)", trap.Value, uint64(0x80001234))
	}
}

// A word that fails to decode both as a 32-bit instruction and as an
// expanded compressed one must raise illegal-instruction, not crash the
// hart - an unimplemented or reserved encoding is a guest-visible fault,
// never an emulator abort.
func TestUndecodableWordRaisesIllegalInstructionInsteadOfPanicking(t *testing.T) {
	c := newTestCpu(t)
	c.storeWordRaw(testBase, 0xffffffff)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("tickOperate panicked: %v", r)
		}
	}()

	c.Tick()

	if c.csr[csrMcause] != 2 { // IllegalInstruction's scause/mcause encoding
		t.Fatalf("mcause = %#x, want 2 (IllegalInstruction)", c.csr[csrMcause])
	}
}

// tickOperate must track the address an instruction was fetched from
// exactly, whether it decoded as a 4-byte or a 2-byte (compressed) form -
// reusing pc-4 after the fact would be wrong for the compressed case, since
// pc only ever advances by 2 there.
func TestInstructionAddressTracksCompressedAndUncompressedForms(t *testing.T) {
	c := newTestCpu(t)
	// ADDI x1, x0, 1 (4 bytes) at testBase.
	c.storeWordRaw(testBase, encodeI(1, 0, 0, 1, 0x13))
	c.tickOperate()
	if c.instructionAddress != testBase {
		t.Fatalf("instructionAddress = %#x, want %#x", c.instructionAddress, uint64(testBase))
	}
	if c.pc != testBase+4 {
		t.Fatalf("pc = %#x, want %#x", c.pc, testBase+4)
	}

	// C.NOP (2 bytes) right after it.
	c.storeHalfwordRaw(testBase+4, 0x0001)
	c.tickOperate()
	if c.instructionAddress != testBase+4 {
		t.Fatalf("instructionAddress = %#x, want %#x", c.instructionAddress, uint64(testBase+4))
	}
	if c.pc != testBase+6 {
		t.Fatalf("pc = %#x, want %#x", c.pc, testBase+6)
	}
}

// Shift amounts are masked to the register width: SLL by a register
// holding a value wider than 63 must still only use its low 6 bits on a
// 64-bit hart.
func TestShiftAmountIsMaskedToRegisterWidth(t *testing.T) {
	c := newTestCpu(t)
	// ADDI x1, x0, 1
	c.storeWordRaw(testBase, encodeI(1, 0, 0, 1, 0x13))
	// ADDI x3, x0, 65
	c.storeWordRaw(testBase+4, encodeI(65, 0, 0, 3, 0x13))
	// SLL x2, x1, x3 (65 & 63 == 1)
	c.storeWordRaw(testBase+8, encodeR(0, 3, 1, 1, 2, 0x33))
	c.Tick()
	c.Tick()
	c.Tick()
	if c.x[2] != 2 {
		t.Fatalf("x2 = %d, want 2", c.x[2])
	}
}

// MRET restores privilege from mstatus.MPP and pc from mepc.
func TestMRETRestoresPrivilegeAndPC(t *testing.T) {
	c := newTestCpu(t)
	c.writeCSRRaw(csrMepc, 0x80005000)
	// mstatus: MPP = Supervisor (01), MPIE = 1
	status := c.csr[csrMstatus]
	status = (status &^ (uint64(0x3) << 11)) | (uint64(riscv.PrivilegeSupervisor.Encoding()) << 11)
	status |= 1 << 7
	c.writeCSRRaw(csrMstatus, status)

	// MRET
	c.storeWordRaw(testBase, encodeI(0x302, 0, 0, 0, 0x73))
	c.Tick()

	if c.pc != 0x80005000 {
		t.Fatalf("pc = %#x, want mepc", c.pc)
	}
	if c.privilege != riscv.PrivilegeSupervisor {
		t.Fatalf("privilege = %v, want supervisor", c.privilege)
	}
}
