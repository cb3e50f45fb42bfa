/*
 * rv64emu - 64x64->128 multiply helpers for MULH/MULHU/MULHSU
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

import "math/bits"

// mulHiU128 returns the high 64 bits of the full 128-bit unsigned product
// of a and b (MULHU).
func mulHiU128(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// mulHiSU128 returns the high 64 bits of the full 128-bit product of
// signed a and unsigned b (MULHSU), correcting bits.Mul64's unsigned
// result for a's sign via the standard wraparound identity.
func mulHiSU128(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return hi
}

// mulHi128 returns the high 64 bits of the full 128-bit signed product of
// a and b (MULH), via the same wraparound correction applied to both
// operands.
func mulHi128(a, b int64) (int64, uint64) {
	ua, ub := uint64(a), uint64(b)
	hi, lo := bits.Mul64(ua, ub)
	if a < 0 {
		hi -= ub
	}
	if b < 0 {
		hi -= ua
	}
	return int64(hi), lo
}
