/*
rv64emu MMIO device interface

	Copyright (c) 2025, rv64emu contributors

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package device defines the MMIO peripheral contract every device on the
// hart's physical address bus implements, and the external Terminal byte
// source/sink the UART drains into.
package device

// MMIODevice is the interface the MMU dispatches physical loads and stores
// to once an address falls inside a device's range. Devices advance their
// own internal clock only when Tick is called, never on their own.
type MMIODevice interface {
	Tick()                            // Advance one tick of device-internal state.
	Load(address uint64) uint8        // Byte-wide read at an address already known to be in range.
	Store(address uint64, value uint8) // Byte-wide write at an address already known to be in range.
	Debug(option string) error         // Enable a named debug option; unrecognized names are rejected.
}

// Terminal is the external byte source/sink the UART drains input from and
// drains output to. It is implemented outside this module (the demo CLI's
// internal/terminal, or a test double); the emulator core only calls it.
type Terminal interface {
	GetInput() uint8     // Return a pending input byte, or 0 if none is ready.
	PutByte(b uint8)     // Emit a byte the guest wrote to the UART's transmit register.
	GetOutput() uint8    // Drain one byte of output previously queued by PutByte (host-side consumption).
	PutInput(b uint8)    // Queue a byte for the guest to receive on its next GetInput poll.
}
