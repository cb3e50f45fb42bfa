/*
rv64emu console terminal

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

// Package terminal implements the demo cmd/rv64emu console: it wires the
// host's stdin/stdout to the guest UART as a device.Terminal, putting the
// host terminal into raw mode when it is a real tty so the guest sees
// keystrokes one at a time instead of line-buffered.
package terminal

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Console is a device.Terminal backed by the process's stdin/stdout. Input
// is read by a background goroutine into a small FIFO so GetInput never
// blocks the hart's tick loop; output bytes the guest writes are queued the
// same way and drained by writeLoop on a separate goroutine so PutByte never
// blocks either.
type Console struct {
	in  io.Reader
	out io.Writer

	mu      sync.Mutex
	inQueue []uint8

	outCh chan uint8

	restore func() error
}

// New puts stdin into raw mode when it is a terminal and returns a Console
// wired to stdin/stdout. Call Close to restore the original terminal state.
func New() (*Console, error) {
	c := &Console{in: os.Stdin, out: os.Stdout, outCh: make(chan uint8, 4096)}

	fd := int(os.Stdin.Fd())
	if isatty.IsTerminal(uintptr(fd)) || isatty.IsCygwinTerminal(uintptr(fd)) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		c.restore = func() error { return term.Restore(fd, state) }
	}

	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

// Close restores the host terminal's original mode, if it was changed.
func (c *Console) Close() error {
	if c.restore == nil {
		return nil
	}
	return c.restore()
}

func (c *Console) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.inQueue = append(c.inQueue, buf[:n]...)
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (c *Console) writeLoop() {
	for b := range c.outCh {
		_, _ = c.out.Write([]byte{b})
	}
}

// GetInput returns the oldest queued input byte, or 0 if none is ready.
func (c *Console) GetInput() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inQueue) == 0 {
		return 0
	}
	b := c.inQueue[0]
	c.inQueue = c.inQueue[1:]
	return b
}

// PutInput queues a byte for the guest to receive on its next GetInput poll;
// used by tests and by a future scripted-input driver, not by Console itself.
func (c *Console) PutInput(b uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inQueue = append(c.inQueue, b)
}

// PutByte queues a byte the guest wrote to the UART's transmit register for
// the background write loop to flush to stdout.
func (c *Console) PutByte(b uint8) {
	c.outCh <- b
}

// GetOutput is unused by Console itself, which flushes guest output to
// stdout directly from writeLoop; it exists to satisfy device.Terminal for
// callers (tests, a scripted-output double) that want to poll instead.
func (c *Console) GetOutput() uint8 {
	select {
	case b := <-c.outCh:
		return b
	default:
		return 0
	}
}
