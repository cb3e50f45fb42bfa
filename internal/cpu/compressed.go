/*
 * rv64emu - RVC compressed instruction expansion
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

// uncompressedInvalid is returned by uncompress for a 16-bit word that does
// not correspond to any implemented RVC encoding. Quadrant 3 words are
// never compressed encodings, so they yield this value too.
const uncompressedInvalid uint32 = 0xffffffff

// uncompress expands a 16-bit RVC instruction into the equivalent 32-bit
// base instruction word. It never touches CPU state; decode is applied to
// its result by the caller exactly as it would be to a fetched 32-bit word.
func uncompress(halfword uint32) uint32 {
	op := halfword & 0x3
	funct3 := (halfword >> 13) & 0x7

	switch op {
	case 0:
		switch funct3 {
		case 0:
			// C.ADDI4SPN -> addi rd+8, x2, nzuimm
			rd := (halfword >> 2) & 0x7
			nzuimm := ((halfword >> 7) & 0x30) |
				((halfword >> 1) & 0x3c0) |
				((halfword >> 4) & 0x4) |
				((halfword >> 2) & 0x8)
			if nzuimm != 0 {
				return (nzuimm << 20) | (2 << 15) | ((rd + 8) << 7) | 0x13
			}
		case 2:
			// C.LW -> lw rd+8, offset(rs1+8)
			rs1 := (halfword >> 7) & 0x7
			rd := (halfword >> 2) & 0x7
			offset := ((halfword >> 7) & 0x38) |
				((halfword >> 4) & 0x4) |
				((halfword << 1) & 0x40)
			return (offset << 20) | ((rs1 + 8) << 15) | (2 << 12) | ((rd + 8) << 7) | 0x3
		case 3:
			// C.LD -> ld rd+8, offset(rs1+8)
			rs1 := (halfword >> 7) & 0x7
			rd := (halfword >> 2) & 0x7
			offset := ((halfword >> 7) & 0x38) |
				((halfword << 1) & 0xc0)
			return (offset << 20) | ((rs1 + 8) << 15) | (3 << 12) | ((rd + 8) << 7) | 0x3
		case 6:
			// C.SW -> sw rs2+8, offset(rs1+8)
			rs1 := (halfword >> 7) & 0x7
			rs2 := (halfword >> 2) & 0x7
			offset := ((halfword >> 7) & 0x38) |
				((halfword << 1) & 0x40) |
				((halfword >> 4) & 0x4)
			imm115 := (offset >> 5) & 0x7f
			imm40 := offset & 0x1f
			return (imm115 << 25) | ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | (2 << 12) | (imm40 << 7) | 0x23
		case 7:
			// C.SD -> sd rs2+8, offset(rs1+8)
			rs1 := (halfword >> 7) & 0x7
			rs2 := (halfword >> 2) & 0x7
			offset := ((halfword >> 7) & 0x38) |
				((halfword << 1) & 0xc0)
			imm115 := (offset >> 5) & 0x7f
			imm40 := offset & 0x1f
			return (imm115 << 25) | ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | (3 << 12) | (imm40 << 7) | 0x23
		}
	case 1:
		switch funct3 {
		case 0:
			r := (halfword >> 7) & 0x1f
			imm := signExtendFrom6(halfword) | ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
			if r == 0 && imm == 0 {
				// C.NOP -> addi x0, x0, 0
				return 0x13
			} else if r != 0 {
				// C.ADDI -> addi r, r, imm
				return (imm << 20) | (r << 15) | (r << 7) | 0x13
			}
		case 1:
			// C.ADDIW -> addiw r, r, imm
			r := (halfword >> 7) & 0x1f
			imm := signExtendFrom6(halfword) | ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
			if r != 0 {
				return (imm << 20) | (r << 15) | (r << 7) | 0x1b
			}
		case 2:
			// C.LI -> addi rd, x0, imm
			r := (halfword >> 7) & 0x1f
			imm := signExtendFrom6(halfword) | ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
			if r != 0 {
				return (imm << 20) | (r << 7) | 0x13
			}
		case 3:
			r := (halfword >> 7) & 0x1f
			if r == 2 {
				// C.ADDI16SP -> addi r, r, nzimm
				imm := signExtendFrom10(halfword) |
					((halfword >> 3) & 0x200) |
					((halfword >> 2) & 0x10) |
					((halfword << 1) & 0x40) |
					((halfword << 4) & 0x180) |
					((halfword << 3) & 0x20)
				if imm != 0 {
					return (imm << 20) | (r << 15) | (r << 7) | 0x13
				}
			}
			if r != 0 && r != 2 {
				// C.LUI -> lui r, nzimm
				nzimm := signExtendFrom18(halfword) |
					((halfword << 5) & 0x20000) |
					((halfword << 10) & 0x1f000)
				if nzimm != 0 {
					return nzimm | (r << 7) | 0x37
				}
			}
		case 4:
			funct2 := (halfword >> 10) & 0x3
			switch funct2 {
			case 0:
				// C.SRLI -> srli rs1+8, rs1+8, shamt
				shamt := ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
				rs1 := (halfword >> 7) & 0x7
				return (shamt << 20) | ((rs1 + 8) << 15) | (5 << 12) | ((rs1 + 8) << 7) | 0x13
			case 1:
				// C.SRAI -> srai rs1+8, rs1+8, shamt
				shamt := ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
				rs1 := (halfword >> 7) & 0x7
				return (0x20 << 25) | (shamt << 20) | ((rs1 + 8) << 15) | (5 << 12) | ((rs1 + 8) << 7) | 0x13
			case 2:
				// C.ANDI -> andi r+8, r+8, imm
				r := (halfword >> 7) & 0x7
				imm := signExtendFrom6(halfword) | ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
				return (imm << 20) | ((r + 8) << 15) | (7 << 12) | ((r + 8) << 7) | 0x13
			case 3:
				funct1 := (halfword >> 12) & 1
				funct22 := (halfword >> 5) & 0x3
				rs1 := (halfword >> 7) & 0x7
				rs2 := (halfword >> 2) & 0x7
				switch funct1 {
				case 0:
					switch funct22 {
					case 0:
						// C.SUB
						return (0x20 << 25) | ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | ((rs1 + 8) << 7) | 0x33
					case 1:
						// C.XOR
						return ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | (4 << 12) | ((rs1 + 8) << 7) | 0x33
					case 2:
						// C.OR
						return ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | (6 << 12) | ((rs1 + 8) << 7) | 0x33
					case 3:
						// C.AND
						return ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | (7 << 12) | ((rs1 + 8) << 7) | 0x33
					}
				case 1:
					switch funct22 {
					case 0:
						// C.SUBW
						return (0x20 << 25) | ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | ((rs1 + 8) << 7) | 0x3b
					case 1:
						// C.ADDW
						return ((rs2 + 8) << 20) | ((rs1 + 8) << 15) | ((rs1 + 8) << 7) | 0x3b
					}
				}
			}
		case 5:
			// C.J -> jal x0, imm
			offset := signExtendFrom12(halfword) |
				((halfword >> 1) & 0x800) |
				((halfword >> 7) & 0x10) |
				((halfword >> 1) & 0x300) |
				((halfword << 2) & 0x400) |
				((halfword >> 1) & 0x40) |
				((halfword << 1) & 0x80) |
				((halfword >> 2) & 0xe) |
				((halfword << 3) & 0x20)
			imm := ((offset >> 1) & 0x80000) |
				((offset << 8) & 0x7fe00) |
				((offset >> 3) & 0x100) |
				((offset >> 12) & 0xff)
			return (imm << 12) | 0x6f
		case 6:
			// C.BEQZ -> beq r+8, x0, offset
			r := (halfword >> 7) & 0x7
			offset := signExtendFrom9(halfword) |
				((halfword >> 4) & 0x100) |
				((halfword >> 7) & 0x18) |
				((halfword << 1) & 0xc0) |
				((halfword >> 2) & 0x6) |
				((halfword << 3) & 0x20)
			imm2 := ((offset >> 6) & 0x40) | ((offset >> 5) & 0x3f)
			imm1 := (offset & 0x1e) | ((offset >> 11) & 0x1)
			return (imm2 << 25) | ((r + 8) << 20) | (imm1 << 7) | 0x63
		case 7:
			// C.BNEZ -> bne r+8, x0, offset
			r := (halfword >> 7) & 0x7
			offset := signExtendFrom9(halfword) |
				((halfword >> 4) & 0x100) |
				((halfword >> 7) & 0x18) |
				((halfword << 1) & 0xc0) |
				((halfword >> 2) & 0x6) |
				((halfword << 3) & 0x20)
			imm2 := ((offset >> 6) & 0x40) | ((offset >> 5) & 0x3f)
			imm1 := (offset & 0x1e) | ((offset >> 11) & 0x1)
			return (imm2 << 25) | ((r + 8) << 20) | (1 << 12) | (imm1 << 7) | 0x63
		}
	case 2:
		switch funct3 {
		case 0:
			// C.SLLI -> slli r, r, shamt
			r := (halfword >> 7) & 0x1f
			shamt := ((halfword >> 7) & 0x20) | ((halfword >> 2) & 0x1f)
			if r != 0 {
				return (shamt << 20) | (r << 15) | (1 << 12) | (r << 7) | 0x13
			}
		case 2:
			// C.LWSP -> lw r, offset(x2)
			r := (halfword >> 7) & 0x1f
			offset := ((halfword >> 7) & 0x20) |
				((halfword >> 2) & 0x1c) |
				((halfword << 4) & 0xc0)
			if r != 0 {
				return (offset << 20) | (2 << 15) | (2 << 12) | (r << 7) | 0x3
			}
		case 3:
			// C.LDSP -> ld rd, offset(x2)
			rd := (halfword >> 7) & 0x1f
			offset := ((halfword >> 7) & 0x20) |
				((halfword >> 2) & 0x18) |
				((halfword << 4) & 0x1c0)
			if rd != 0 {
				return (offset << 20) | (2 << 15) | (3 << 12) | (rd << 7) | 0x3
			}
		case 4:
			funct1 := (halfword >> 12) & 1
			rs1 := (halfword >> 7) & 0x1f
			rs2 := (halfword >> 2) & 0x1f
			switch funct1 {
			case 0:
				if rs1 != 0 && rs2 == 0 {
					// C.JR -> jalr x0, 0(rs1)
					return (rs1 << 15) | 0x67
				}
				if rs1 != 0 && rs2 != 0 {
					// C.MV -> add rs1, x0, rs2
					return (rs2 << 20) | (rs1 << 7) | 0x33
				}
			case 1:
				if rs1 == 0 && rs2 == 0 {
					return uncompressedInvalid // C.EBREAK is not supported
				}
				if rs1 != 0 && rs2 == 0 {
					// C.JALR -> jalr x1, 0(rs1)
					return (rs1 << 15) | (1 << 7) | 0x67
				}
				if rs1 != 0 && rs2 != 0 {
					// C.ADD -> add rs1, rs1, rs2
					return (rs2 << 20) | (rs1 << 15) | (rs1 << 7) | 0x33
				}
			}
		case 6:
			// C.SWSP -> sw rs2, offset(x2)
			rs2 := (halfword >> 2) & 0x1f
			offset := ((halfword >> 7) & 0x3c) | ((halfword >> 1) & 0xc0)
			imm115 := (offset >> 5) & 0x3f
			imm40 := offset & 0x1f
			return (imm115 << 25) | (rs2 << 20) | (2 << 15) | (2 << 12) | (imm40 << 7) | 0x23
		case 7:
			// C.SDSP -> sd rs2, offset(x2)
			rs2 := (halfword >> 2) & 0x1f
			offset := ((halfword >> 7) & 0x38) | ((halfword >> 1) & 0x1c0)
			imm115 := (offset >> 5) & 0x3f
			imm40 := offset & 0x1f
			return (imm115 << 25) | (rs2 << 20) | (2 << 15) | (3 << 12) | (imm40 << 7) | 0x23
		}
	}
	return uncompressedInvalid
}

// signExtendFromN replicates bit 12 of a compressed instruction word into
// the high bits of a 32-bit immediate whose low N bits come from
// elsewhere in the word - each RVC immediate layout sign-extends from a
// different bit position.
func signExtendFrom6(halfword uint32) uint32 {
	if halfword&0x1000 != 0 {
		return 0xffffffc0
	}
	return 0
}

func signExtendFrom9(halfword uint32) uint32 {
	if halfword&0x1000 != 0 {
		return 0xfffffe00
	}
	return 0
}

func signExtendFrom10(halfword uint32) uint32 {
	if halfword&0x1000 != 0 {
		return 0xfffffc00
	}
	return 0
}

func signExtendFrom12(halfword uint32) uint32 {
	if halfword&0x1000 != 0 {
		return 0xfffff000
	}
	return 0
}

func signExtendFrom18(halfword uint32) uint32 {
	if halfword&0x1000 != 0 {
		return 0xfffc0000
	}
	return 0
}
