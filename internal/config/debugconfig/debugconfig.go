/*
 * rv64emu - debug option dispatch
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

// Package debugconfig applies the [config.Debug] entries a machine
// description carries to the hart and its attached devices. The
// teacher dispatches per-device debug options through a registered
// "DEBUG" model line parsed by its configparser; this machine has a
// fixed, known set of subsystems instead of an open device list, so
// dispatch is a direct switch rather than a registration callback.
package debugconfig

import (
	"fmt"
	"strings"

	"github.com/rcornwell/rv64emu/internal/config"
	"github.com/rcornwell/rv64emu/internal/cpu"
)

// Apply enables every debug option named in cfg against the hart and its
// attached devices. Subsystem names are case-insensitive: "cpu" reaches
// the hart itself, and "clint", "plic", "uart", "virtio" each reach the
// corresponding device through Cpu.DebugDevice.
func Apply(cfg *config.Config, c *cpu.Cpu) error {
	for _, d := range cfg.Debug {
		subsystem := strings.ToUpper(d.Subsystem)
		for _, option := range d.Options {
			var err error
			switch subsystem {
			case "CPU":
				err = c.Debug(option)
			case "CLINT", "PLIC", "UART", "VIRTIO":
				err = c.DebugDevice(subsystem, option)
			default:
				err = fmt.Errorf("debugconfig: unrecognized subsystem %q", d.Subsystem)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
