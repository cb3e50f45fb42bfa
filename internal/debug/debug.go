/*
 * rv64emu - per-subsystem debug tracing
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

// Package debug implements opt-in, per-subsystem trace logging: a
// component masks its own messages with one of the bits below, and only
// prints them once a caller has enabled that bit for it via Debug.
package debug

import (
	"fmt"
	"io"
	"os"
)

// Mask bits recognized by every subsystem's Debug(option) method. Not
// every subsystem uses every bit - UART has no use for MaskCSR, say - but
// keeping one shared namespace means the config layer only has to know
// one set of option names.
const (
	MaskTrace = 1 << iota // instruction or register trace
	MaskCSR                // CSR reads/writes
	MaskIRQ                // interrupt raise/deliver/clear
	MaskIO                 // device register access
)

var logFile io.Writer = os.Stderr

// SetOutput redirects trace output; cmd/rv64emu points this at the same
// file internal/logger writes to so -l captures both.
func SetOutput(w io.Writer) {
	logFile = w
}

// OptionMask maps a config-file/CLI option name to its mask bit, or
// reports false for a name no subsystem recognizes.
func OptionMask(option string) (int, bool) {
	switch option {
	case "TRACE":
		return MaskTrace, true
	case "CSR":
		return MaskCSR, true
	case "IRQ":
		return MaskIRQ, true
	case "IO":
		return MaskIO, true
	}
	return 0, false
}

// Debugf prints a module-tagged trace line when mask&enabled is nonzero.
func Debugf(module string, enabled, mask int, format string, a ...interface{}) {
	if enabled&mask == 0 {
		return
	}
	fmt.Fprintf(logFile, module+": "+format+"\n", a...)
}
