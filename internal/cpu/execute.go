/*
 * rv64emu - Instruction execution
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

import "github.com/rcornwell/rv64emu/internal/riscv"

// operate executes a single decoded instruction. word is the 32-bit
// (possibly uncompress-expanded) instruction word, instructionAddress is
// the pc it was fetched from - used for PC-relative targets and as the
// trap value for ECALL.
func (c *Cpu) operate(word uint32, inst instruction, instructionAddress uint64) *riscv.Trap {
	switch instructionFormatOf(inst) {
	case fmtB:
		if err := c.operateB(word, inst, instructionAddress); err != nil {
			return err
		}
	case fmtC:
		if err := c.operateC(word, inst); err != nil {
			return err
		}
	case fmtI:
		if err := c.operateI(word, inst); err != nil {
			return err
		}
	case fmtJ:
		c.operateJ(word, inst, instructionAddress)
	case fmtO:
		// FENCE: memory ordering is a no-op on this single-hart model.
	case fmtR:
		if err := c.operateR(word, inst, instructionAddress); err != nil {
			return err
		}
	case fmtS:
		if err := c.operateS(word, inst); err != nil {
			return err
		}
	case fmtU:
		c.operateU(word, inst, instructionAddress)
	}
	c.x[0] = 0 // hard-wired zero
	return nil
}

func (c *Cpu) operateB(word uint32, inst instruction, instructionAddress uint64) *riscv.Trap {
	rs1 := (word & 0x000f8000) >> 15
	rs2 := (word & 0x01f00000) >> 20
	imm := uint64(int64(int32(
		signBit31(word, 0xfffff000) |
			((word & 0x00000080) << 4) |
			((word & 0x7e000000) >> 20) |
			((word & 0x00000f00) >> 7))))

	taken := false
	switch inst {
	case iBEQ:
		taken = c.signExtend(c.x[rs1]) == c.signExtend(c.x[rs2])
	case iBGE:
		taken = c.signExtend(c.x[rs1]) >= c.signExtend(c.x[rs2])
	case iBGEU:
		taken = c.unsignedData(c.x[rs1]) >= c.unsignedData(c.x[rs2])
	case iBLT:
		taken = c.signExtend(c.x[rs1]) < c.signExtend(c.x[rs2])
	case iBLTU:
		taken = c.unsignedData(c.x[rs1]) < c.unsignedData(c.x[rs2])
	case iBNE:
		taken = c.signExtend(c.x[rs1]) != c.signExtend(c.x[rs2])
	}
	if taken {
		c.pc = instructionAddress + imm
	}
	return nil
}

func (c *Cpu) operateC(word uint32, inst instruction) *riscv.Trap {
	csr := uint16((word >> 20) & 0xfff)
	rs := uint64((word >> 15) & 0x1f)
	rd := (word >> 7) & 0x1f

	switch inst {
	case iCSRRC:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		tmp := c.x[rs]
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, uint64(c.x[rd]&^tmp)); err != nil {
			return err
		}
	case iCSRRCI:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, uint64(c.x[rd])&^rs); err != nil {
			return err
		}
	case iCSRRS:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		tmp := c.x[rs]
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, c.unsignedData(c.x[rd]|tmp)); err != nil {
			return err
		}
	case iCSRRSI:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, c.unsignedData(int64(uint64(c.x[rd])|rs))); err != nil {
			return err
		}
	case iCSRRW:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		tmp := c.x[rs]
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, c.unsignedData(tmp)); err != nil {
			return err
		}
	case iCSRRWI:
		data, err := c.readCSR(csr)
		if err != nil {
			return err
		}
		c.x[rd] = c.signExtend(int64(data))
		if err := c.writeCSR(csr, rs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cpu) operateI(word uint32, inst instruction) *riscv.Trap {
	rd := (word >> 7) & 0x1f
	rs1 := (word >> 15) & 0x1f
	imm := int64(int32(signBit31(word, 0xfffff800) | ((word >> 20) & 0x000007ff)))

	shiftMask := uint32(0x3f)
	if c.xlen == riscv.Xlen32 {
		shiftMask = 0x1f
	}

	switch inst {
	case iADDI:
		c.x[rd] = c.signExtend(c.x[rs1] + imm)
	case iADDIW:
		c.x[rd] = int64(int32(c.x[rs1] + imm))
	case iANDI:
		c.x[rd] = c.signExtend(c.x[rs1] & imm)
	case iJALR:
		tmp := c.signExtend(int64(c.pc))
		c.pc = (uint64(c.x[rs1]) + uint64(imm)) &^ 1
		c.x[rd] = tmp
	case iLB:
		data, err := c.mmu.Load(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(int8(data))
	case iLBU:
		data, err := c.mmu.Load(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(data)
	case iLD:
		data, err := c.mmu.LoadDoubleword(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(data)
	case iLH:
		data, err := c.mmu.LoadHalfword(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(int16(data))
	case iLHU:
		data, err := c.mmu.LoadHalfword(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(data)
	case iLW:
		data, err := c.mmu.LoadWord(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(int32(data))
	case iLWU:
		data, err := c.mmu.LoadWord(uint64(c.x[rs1] + imm))
		if err != nil {
			return err
		}
		c.x[rd] = int64(data)
	case iORI:
		c.x[rd] = c.signExtend(c.x[rs1] | imm)
	case iSLLI:
		shamt := uint32(imm) & shiftMask
		c.x[rd] = c.signExtend(c.x[rs1] << shamt)
	case iSLLIW:
		shamt := uint32(imm) & 0x1f
		c.x[rd] = int64(int32(c.x[rs1] << shamt))
	case iSLTI:
		c.x[rd] = boolToInt64(c.x[rs1] < imm)
	case iSLTIU:
		c.x[rd] = boolToInt64(c.unsignedData(c.x[rs1]) < c.unsignedData(imm))
	case iSRAI:
		shamt := uint32(imm) & shiftMask
		c.x[rd] = c.signExtend(c.x[rs1] >> shamt)
	case iSRAIW:
		shamt := uint32(imm) & 0x1f
		c.x[rd] = int64(int32(c.x[rs1]) >> shamt)
	case iSRLI:
		shamt := uint32(imm) & shiftMask
		c.x[rd] = c.signExtend(int64(c.unsignedData(c.x[rs1]) >> shamt))
	case iSRLIW:
		shamt := uint32(imm) & 0x1f
		c.x[rd] = int64(int32(uint32(c.x[rs1]) >> shamt))
	case iXORI:
		c.x[rd] = c.signExtend(c.x[rs1] ^ imm)
	}
	return nil
}

func (c *Cpu) operateJ(word uint32, inst instruction, instructionAddress uint64) {
	rd := (word >> 7) & 0x1f
	imm := uint64(int64(int32(
		signBit31(word, 0xfff00000) |
			(word & 0x000ff000) |
			((word & 0x00100000) >> 9) |
			((word & 0x7fe00000) >> 20))))

	if inst == iJAL {
		c.x[rd] = c.signExtend(int64(c.pc))
		c.pc = instructionAddress + imm
	}
}

func (c *Cpu) operateR(word uint32, inst instruction, instructionAddress uint64) *riscv.Trap {
	rd := (word >> 7) & 0x1f
	rs1 := (word >> 15) & 0x1f
	rs2 := (word >> 20) & 0x1f

	switch inst {
	case iADD:
		c.x[rd] = c.signExtend(c.x[rs1] + c.x[rs2])
	case iADDW:
		c.x[rd] = int64(int32(c.x[rs1] + c.x[rs2]))
	case iAMOADDD:
		tmp, err := c.mmu.LoadDoubleword(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreDoubleword(c.unsignedData(c.x[rs1]), uint64(c.x[rs2]+int64(tmp))); err != nil {
			return err
		}
		c.x[rd] = int64(tmp)
	case iAMOADDW:
		tmp, err := c.mmu.LoadWord(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreWord(c.unsignedData(c.x[rs1]), uint32(c.x[rs2]+int64(tmp))); err != nil {
			return err
		}
		c.x[rd] = int64(int32(tmp))
	case iAMOANDD:
		tmp, err := c.mmu.LoadDoubleword(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreDoubleword(c.unsignedData(c.x[rs1]), uint64(c.x[rs2]&int64(tmp))); err != nil {
			return err
		}
		c.x[rd] = int64(int32(tmp))
	case iAMOORD:
		tmp, err := c.mmu.LoadDoubleword(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreDoubleword(c.unsignedData(c.x[rs1]), uint64(c.x[rs2]|int64(tmp))); err != nil {
			return err
		}
		c.x[rd] = int64(tmp)
	case iAMOORW:
		tmp, err := c.mmu.LoadWord(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreWord(c.unsignedData(c.x[rs1]), uint32(c.x[rs2]|int64(tmp))); err != nil {
			return err
		}
		c.x[rd] = int64(int32(tmp))
	case iAMOSWAPD:
		tmp, err := c.mmu.LoadDoubleword(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreDoubleword(c.unsignedData(c.x[rs1]), uint64(c.x[rs2])); err != nil {
			return err
		}
		c.x[rd] = int64(tmp)
	case iAMOSWAPW:
		tmp, err := c.mmu.LoadWord(c.unsignedData(c.x[rs1]))
		if err != nil {
			return err
		}
		if err := c.mmu.StoreWord(c.unsignedData(c.x[rs1]), uint32(c.x[rs2])); err != nil {
			return err
		}
		c.x[rd] = int64(int32(tmp))
	case iAND:
		c.x[rd] = c.signExtend(c.x[rs1] & c.x[rs2])
	case iDIV:
		if c.x[rs2] == 0 {
			c.x[rd] = -1
		} else {
			c.x[rd] = c.signExtend(c.x[rs1] / c.x[rs2])
		}
	case iDIVU:
		if c.x[rs2] == 0 {
			c.x[rd] = -1
		} else {
			c.x[rd] = c.signExtend(int64(c.unsignedData(c.x[rs1]) / c.unsignedData(c.x[rs2])))
		}
	case iDIVUW:
		if c.x[rs2] == 0 {
			c.x[rd] = -1
		} else {
			c.x[rd] = int64(int32(uint32(c.x[rs1]) / uint32(c.x[rs2])))
		}
	case iDIVW:
		if c.x[rs2] == 0 {
			c.x[rd] = -1
		} else {
			c.x[rd] = c.signExtend(int64(int32(c.x[rs1]) / int32(c.x[rs2])))
		}
	case iECALL:
		var epcAddress uint16
		var kind riscv.TrapKind
		switch c.privilege {
		case riscv.PrivilegeUser:
			epcAddress, kind = csrUepc, riscv.EnvironmentCallFromUMode
		case riscv.PrivilegeSupervisor:
			epcAddress, kind = csrSepc, riscv.EnvironmentCallFromSMode
		case riscv.PrivilegeMachine:
			epcAddress, kind = csrMepc, riscv.EnvironmentCallFromMMode
		}
		c.writeCSRRaw(epcAddress, instructionAddress)
		return &riscv.Trap{Kind: kind, Value: instructionAddress}
	case iLRD:
		data, err := c.mmu.LoadDoubleword(uint64(c.x[rs1]))
		if err != nil {
			return err
		}
		c.x[rd] = int64(data)
	case iLRW:
		data, err := c.mmu.LoadWord(uint64(c.x[rs1]))
		if err != nil {
			return err
		}
		c.x[rd] = int64(int32(data))
	case iURET:
		return &riscv.Trap{Kind: riscv.IllegalInstruction, Value: instructionAddress}
	case iMRET, iSRET:
		c.operateReturn(inst)
	case iMUL:
		c.x[rd] = c.signExtend(c.x[rs1] * c.x[rs2])
	case iMULH:
		if c.xlen == riscv.Xlen32 {
			c.x[rd] = c.signExtend((c.x[rs1] * c.x[rs2]) >> 32)
		} else {
			hi, _ := mulHi128(c.x[rs1], c.x[rs2])
			c.x[rd] = hi
		}
	case iMULHU:
		if c.xlen == riscv.Xlen32 {
			c.x[rd] = c.signExtend(int64(((uint64(uint32(c.x[rs1])) * uint64(uint32(c.x[rs2]))) >> 32)))
		} else {
			c.x[rd] = int64(mulHiU128(uint64(c.x[rs1]), uint64(c.x[rs2])))
		}
	case iMULHSU:
		if c.xlen == riscv.Xlen32 {
			c.x[rd] = c.signExtend((c.x[rs1] * int64(uint32(c.x[rs2]))) >> 32)
		} else {
			c.x[rd] = int64(mulHiSU128(c.x[rs1], uint64(c.x[rs2])))
		}
	case iMULW:
		c.x[rd] = c.signExtend(int64(int32(c.x[rs1]) * int32(c.x[rs2])))
	case iOR:
		c.x[rd] = c.signExtend(c.x[rs1] | c.x[rs2])
	case iREM:
		if c.x[rs2] == 0 {
			c.x[rd] = c.x[rs1]
		} else {
			c.x[rd] = c.signExtend(c.x[rs1] % c.x[rs2])
		}
	case iREMU:
		if c.x[rs2] == 0 {
			c.x[rd] = c.x[rs1]
		} else {
			c.x[rd] = c.signExtend(int64(c.unsignedData(c.x[rs1]) % c.unsignedData(c.x[rs2])))
		}
	case iREMUW:
		if c.x[rs2] == 0 {
			c.x[rd] = c.x[rs1]
		} else {
			c.x[rd] = c.signExtend(int64(int32(uint32(c.x[rs1]) % uint32(c.x[rs2]))))
		}
	case iREMW:
		if c.x[rs2] == 0 {
			c.x[rd] = c.x[rs1]
		} else {
			c.x[rd] = c.signExtend(int64(int32(c.x[rs1]) % int32(c.x[rs2])))
		}
	case iSCD:
		if err := c.mmu.StoreDoubleword(uint64(c.x[rs1]), uint64(c.x[rs2])); err != nil {
			return err
		}
		c.x[rd] = 0
	case iSCW:
		if err := c.mmu.StoreWord(uint64(c.x[rs1]), uint32(c.x[rs2])); err != nil {
			return err
		}
		c.x[rd] = 0
	case iSFENCEVMA:
		// No TLB to invalidate in this MMU.
	case iSUB:
		c.x[rd] = c.signExtend(c.x[rs1] - c.x[rs2])
	case iSUBW:
		c.x[rd] = int64(int32(c.x[rs1] - c.x[rs2]))
	case iSLL:
		c.x[rd] = c.signExtend(c.x[rs1] << (uint32(c.x[rs2]) & 0x3f))
	case iSLLW:
		c.x[rd] = int64(int32(uint32(c.x[rs1]) << (uint32(c.x[rs2]) & 0x1f)))
	case iSLT:
		c.x[rd] = boolToInt64(c.x[rs1] < c.x[rs2])
	case iSLTU:
		c.x[rd] = boolToInt64(c.unsignedData(c.x[rs1]) < c.unsignedData(c.x[rs2]))
	case iSRA:
		c.x[rd] = c.signExtend(c.x[rs1] >> (uint32(c.x[rs2]) & 0x3f))
	case iSRAW:
		c.x[rd] = int64(int32(c.x[rs1]) >> (uint32(c.x[rs2]) & 0x1f))
	case iSRL:
		c.x[rd] = c.signExtend(int64(c.unsignedData(c.x[rs1]) >> (uint32(c.x[rs2]) & 0x3f)))
	case iSRLW:
		c.x[rd] = int64(int32(uint32(c.x[rs1]) >> (uint32(c.x[rs2]) & 0x1f)))
	case iXOR:
		c.x[rd] = c.signExtend(c.x[rs1] ^ c.x[rs2])
	}
	return nil
}

// operateReturn implements MRET/SRET: restore the saved interrupt-enable
// bit, drop back to the privilege level recorded at trap entry, and jump
// to the saved epc.
func (c *Cpu) operateReturn(inst instruction) {
	var epcAddress uint16
	switch inst {
	case iMRET:
		epcAddress = csrMepc
	case iSRET:
		epcAddress = csrSepc
	case iURET:
		panic("cpu: URET is not implemented")
	}
	c.pc = c.csr[epcAddress]

	switch inst {
	case iMRET:
		status := c.csr[csrMstatus]
		mpie := (status >> 7) & 1
		mpp := (status >> 11) & 0x3
		newStatus := (status &^ 0x1888) | (mpie << 3) | (1 << 7)
		c.writeCSRRaw(csrMstatus, newStatus)
		switch mpp {
		case 0:
			c.privilege = riscv.PrivilegeUser
		case 1:
			c.privilege = riscv.PrivilegeSupervisor
		case 3:
			c.privilege = riscv.PrivilegeMachine
		default:
			panic("cpu: reserved MPP on MRET")
		}
	case iSRET:
		status := c.csr[csrSstatus]
		spie := (status >> 5) & 1
		spp := (status >> 8) & 1
		newStatus := (status &^ 0x122) | (spie << 1) | (1 << 5)
		c.writeCSRRaw(csrSstatus, newStatus)
		switch spp {
		case 0:
			c.privilege = riscv.PrivilegeUser
		case 1:
			c.privilege = riscv.PrivilegeSupervisor
		default:
			panic("cpu: reserved SPP on SRET")
		}
	}
	c.mmu.UpdatePrivilegeMode(c.privilege)
}

func (c *Cpu) operateS(word uint32, inst instruction) *riscv.Trap {
	rs1 := (word >> 15) & 0x1f
	rs2 := (word >> 20) & 0x1f
	imm := int64(int32(
		signBit31(word, 0xfffff000) |
			((word & 0xfe000000) >> 20) |
			((word & 0x00000f80) >> 7)))

	switch inst {
	case iSB:
		if err := c.mmu.Store(uint64(c.x[rs1]+imm), uint8(c.x[rs2])); err != nil {
			return err
		}
	case iSH:
		if err := c.mmu.StoreHalfword(uint64(c.x[rs1]+imm), uint16(c.x[rs2])); err != nil {
			return err
		}
	case iSW:
		if err := c.mmu.StoreWord(uint64(c.x[rs1]+imm), uint32(c.x[rs2])); err != nil {
			return err
		}
	case iSD:
		if err := c.mmu.StoreDoubleword(uint64(c.x[rs1]+imm), uint64(c.x[rs2])); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cpu) operateU(word uint32, inst instruction, instructionAddress uint64) {
	rd := (word >> 7) & 0x1f
	var imm uint64
	if word&0x80000000 != 0 {
		imm = 0xffffffff00000000
	}
	imm |= uint64(word) & 0xfffff000

	switch inst {
	case iAUIPC:
		c.x[rd] = c.signExtend(int64(instructionAddress + imm))
	case iLUI:
		c.x[rd] = int64(imm)
	}
}

// signBit31 replicates bit 31 of word across the given mask when set, 0
// otherwise - the common sign-extension idiom every immediate decoder
// below uses for its top slice.
func signBit31(word, mask uint32) uint32 {
	if word&0x80000000 != 0 {
		return mask
	}
	return 0
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
