/*
 * rv64emu - demo command-line driver
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

// Command rv64emu is a demo outer driver: it loads a machine description,
// wires a console to the guest UART, and ticks the hart until the process
// is signalled. Loading the
// kernel/DTB/disk images into guest memory and driving the tick loop are
// both external to the emulator core by design - this command is simply a
// concrete instance of that external collaborator.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/rv64emu/internal/config"
	"github.com/rcornwell/rv64emu/internal/config/debugconfig"
	"github.com/rcornwell/rv64emu/internal/cpu"
	"github.com/rcornwell/rv64emu/internal/debug"
	"github.com/rcornwell/rv64emu/internal/logger"
	"github.com/rcornwell/rv64emu/internal/terminal"
)

const defaultRAMSize = 128 * 1024 * 1024

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optKernel := getopt.StringLong("kernel", 'k', "", "Kernel image")
	optDTB := getopt.StringLong("dtb", 'd', "", "Device tree blob")
	optDisk := getopt.StringLong("disk", 'i', "", "Disk image")
	optRAM := getopt.StringLong("ram", 'm', "", "RAM size (e.g. 128M)")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
		if file != nil {
			debug.SetOutput(file)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	debugEnabled := false
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &debugEnabled))
	slog.SetDefault(Logger)

	Logger.Info("rv64emu started")

	cfg := &config.Config{RAMSize: defaultRAMSize}
	if *optConfig != "" {
		loaded, err := config.Load(*optConfig)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}
	if *optKernel != "" {
		cfg.KernelPath = *optKernel
	}
	if *optDTB != "" {
		cfg.DTBPath = *optDTB
	}
	if *optDisk != "" {
		cfg.DiskPath = *optDisk
	}
	if *optRAM != "" {
		size, err := config.ParseSize(*optRAM)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		cfg.RAMSize = size
	}

	console, err := terminal.New()
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	defer console.Close()

	hart := cpu.New(console)
	hart.SetupMemory(cfg.RAMSize)
	Logger.Handler().(*logger.LogHandler).SetSource(func() (uint64, string) {
		return hart.PC(), hart.Privilege().String()
	})

	if cfg.KernelPath != "" {
		if err := loadImage(hart, 0x80000000, cfg.KernelPath); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}
	if cfg.DTBPath != "" {
		data, err := os.ReadFile(cfg.DTBPath)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		hart.SetupDTB(data)
	}
	if cfg.DiskPath != "" {
		data, err := os.ReadFile(cfg.DiskPath)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		hart.SetupFilesystem(data)
	}
	if cfg.StartPC != 0 {
		hart.UpdatePC(cfg.StartPC)
	}

	if err := debugconfig.Apply(cfg, hart); err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sigChan:
				return
			default:
				hart.Tick()
			}
		}
	}()

	<-done
	Logger.Info("rv64emu shutting down")
}

// loadImage reads path into guest physical memory starting at base, one
// byte at a time through the hart's raw store path - the same memory
// surface a JTAG-style loader would use, kept simple since image loading
// is an external concern to the emulator core.
func loadImage(hart *cpu.Cpu, base uint64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for i, b := range data {
		hart.StoreRaw(base+uint64(i), b)
	}
	return nil
}

