/*
 * rv64emu - Instruction decode
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

// instruction names every RV64GC (minus F/D/V) opcode this hart executes.
// The decode table below assigns one to each encoding listed here; any
// other word is an illegal instruction. That includes legal encodings
// with no entry here, such as AMOXOR, AMOAND.W, AMOMIN/AMOMAX, EBREAK
// and WFI.
type instruction int

const (
	iADD instruction = iota
	iADDI
	iADDIW
	iADDW
	iAMOADDD
	iAMOADDW
	iAMOANDD
	iAMOORD
	iAMOORW
	iAMOSWAPD
	iAMOSWAPW
	iAND
	iANDI
	iAUIPC
	iBEQ
	iBGE
	iBGEU
	iBLT
	iBLTU
	iBNE
	iCSRRC
	iCSRRCI
	iCSRRS
	iCSRRSI
	iCSRRW
	iCSRRWI
	iDIV
	iDIVU
	iDIVUW
	iDIVW
	iECALL
	iFENCE
	iJAL
	iJALR
	iLB
	iLBU
	iLD
	iLH
	iLHU
	iLRD
	iLRW
	iLUI
	iLW
	iLWU
	iMUL
	iMULH
	iMULHU
	iMULHSU
	iMULW
	iMRET
	iOR
	iORI
	iREM
	iREMU
	iREMUW
	iREMW
	iSB
	iSCD
	iSCW
	iSD
	iSFENCEVMA
	iSH
	iSLL
	iSLLI
	iSLLIW
	iSLLW
	iSLT
	iSLTI
	iSLTU
	iSLTIU
	iSRA
	iSRAI
	iSRAIW
	iSRAW
	iSRET
	iSRL
	iSRLI
	iSRLIW
	iSRLW
	iSUB
	iSUBW
	iSW
	iURET
	iXOR
	iXORI
)

// instructionFormat groups instructions by which immediate-decoding rule
// operate applies to them.
type instructionFormat int

const (
	fmtB instructionFormat = iota // branch
	fmtC                          // CSR
	fmtI                          // I-type (loads, ALU-immediate, JALR)
	fmtJ                          // JAL
	fmtO                          // other (FENCE)
	fmtR                          // register-register, AMO, system
	fmtS                          // store
	fmtU                          // LUI, AUIPC
)

func instructionFormatOf(i instruction) instructionFormat {
	switch i {
	case iBEQ, iBGE, iBGEU, iBLT, iBLTU, iBNE:
		return fmtB
	case iCSRRC, iCSRRCI, iCSRRS, iCSRRSI, iCSRRW, iCSRRWI:
		return fmtC
	case iADDI, iADDIW, iANDI, iJALR, iLB, iLBU, iLD, iLH, iLHU, iLW, iLWU,
		iORI, iSLLI, iSLLIW, iSLTI, iSLTIU, iSRLI, iSRLIW, iSRAI, iSRAIW, iXORI:
		return fmtI
	case iJAL:
		return fmtJ
	case iFENCE:
		return fmtO
	case iSB, iSD, iSH, iSW:
		return fmtS
	case iAUIPC, iLUI:
		return fmtU
	default:
		return fmtR
	}
}

// decode classifies a 32-bit instruction word. ok is false when the word
// does not match any legal opcode/funct3/funct7 combination, which tells
// the caller to retry the low halfword through uncompress.
func decode(word uint32) (instruction, bool) {
	opcode := word & 0x7f
	funct3 := (word >> 12) & 0x7
	funct7 := (word >> 25) & 0x7f

	switch opcode {
	case 0x03:
		switch funct3 {
		case 0:
			return iLB, true
		case 1:
			return iLH, true
		case 2:
			return iLW, true
		case 3:
			return iLD, true
		case 4:
			return iLBU, true
		case 5:
			return iLHU, true
		case 6:
			return iLWU, true
		}
	case 0x0f:
		return iFENCE, true
	case 0x13:
		switch funct3 {
		case 0:
			return iADDI, true
		case 1:
			return iSLLI, true
		case 2:
			return iSLTI, true
		case 3:
			return iSLTIU, true
		case 4:
			return iXORI, true
		case 5:
			switch funct7 &^ 1 {
			case 0:
				return iSRLI, true
			case 0x20:
				return iSRAI, true
			}
		case 6:
			return iORI, true
		case 7:
			return iANDI, true
		}
	case 0x17:
		return iAUIPC, true
	case 0x1b:
		switch funct3 {
		case 0:
			return iADDIW, true
		case 1:
			return iSLLIW, true
		case 5:
			switch funct7 {
			case 0:
				return iSRLIW, true
			case 0x20:
				return iSRAIW, true
			}
		}
	case 0x23:
		switch funct3 {
		case 0:
			return iSB, true
		case 1:
			return iSH, true
		case 2:
			return iSW, true
		case 3:
			return iSD, true
		}
	case 0x2f:
		switch funct3 {
		case 2:
			switch funct7 >> 2 {
			case 0:
				return iAMOADDW, true
			case 1:
				return iAMOSWAPW, true
			case 2:
				return iLRW, true
			case 3:
				return iSCW, true
			case 8:
				return iAMOORW, true
			}
		case 3:
			switch funct7 >> 2 {
			case 0:
				return iAMOADDD, true
			case 1:
				return iAMOSWAPD, true
			case 2:
				return iLRD, true
			case 3:
				return iSCD, true
			case 8:
				return iAMOORD, true
			case 0xc:
				return iAMOANDD, true
			}
		}
	case 0x33:
		switch funct3 {
		case 0:
			switch funct7 {
			case 0:
				return iADD, true
			case 1:
				return iMUL, true
			case 0x20:
				return iSUB, true
			}
		case 1:
			switch funct7 {
			case 0:
				return iSLL, true
			case 1:
				return iMULH, true
			}
		case 2:
			switch funct7 {
			case 0:
				return iSLT, true
			case 1:
				return iMULHSU, true
			}
		case 3:
			switch funct7 {
			case 0:
				return iSLTU, true
			case 1:
				return iMULHU, true
			}
		case 4:
			switch funct7 {
			case 0:
				return iXOR, true
			case 1:
				return iDIV, true
			}
		case 5:
			switch funct7 {
			case 0:
				return iSRL, true
			case 1:
				return iDIVU, true
			case 0x20:
				return iSRA, true
			}
		case 6:
			switch funct7 {
			case 0:
				return iOR, true
			case 1:
				return iREM, true
			}
		case 7:
			switch funct7 {
			case 0:
				return iAND, true
			case 1:
				return iREMU, true
			}
		}
	case 0x37:
		return iLUI, true
	case 0x3b:
		switch funct3 {
		case 0:
			switch funct7 {
			case 0:
				return iADDW, true
			case 1:
				return iMULW, true
			case 0x20:
				return iSUBW, true
			}
		case 1:
			return iSLLW, true
		case 4:
			return iDIVW, true
		case 5:
			switch funct7 {
			case 0:
				return iSRLW, true
			case 1:
				return iDIVUW, true
			case 0x20:
				return iSRAW, true
			}
		case 6:
			return iREMW, true
		case 7:
			return iREMUW, true
		}
	case 0x63:
		switch funct3 {
		case 0:
			return iBEQ, true
		case 1:
			return iBNE, true
		case 4:
			return iBLT, true
		case 5:
			return iBGE, true
		case 6:
			return iBLTU, true
		case 7:
			return iBGEU, true
		}
	case 0x67:
		return iJALR, true
	case 0x6f:
		return iJAL, true
	case 0x73:
		switch funct3 {
		case 0:
			if funct7 == 9 {
				return iSFENCEVMA, true
			}
			switch word {
			case 0x00000073:
				return iECALL, true
			case 0x00200073:
				return iURET, true
			case 0x10200073:
				return iSRET, true
			case 0x30200073:
				return iMRET, true
			}
		case 1:
			return iCSRRW, true
		case 2:
			return iCSRRS, true
		case 3:
			return iCSRRC, true
		case 5:
			return iCSRRWI, true
		case 6:
			return iCSRRSI, true
		case 7:
			return iCSRRCI, true
		}
	}
	return 0, false
}
