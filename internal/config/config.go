/*
 * rv64emu - machine configuration file parser
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

// Package config loads the machine description cmd/rv64emu builds a Cpu
// from: RAM size, the paths to the kernel/DTB/disk images it loads into
// guest memory, the starting pc, and which subsystems have tracing
// enabled. Two file formats are accepted - the flat "key = value" text
// format modeled on the teacher's configparser, and (when the file's
// extension is .yaml/.yml) a structured alternative decoded with
// gopkg.in/yaml.v3.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Debug names a per-subsystem debug option line, e.g. "debug = cpu TRACE,CSR".
type Debug struct {
	Subsystem string
	Options   []string
}

// Config is the fully resolved machine description, ready to hand to
// cmd/rv64emu's setup sequence.
type Config struct {
	RAMSize    uint64 // bytes
	KernelPath string
	DTBPath    string
	DiskPath   string
	StartPC    uint64
	Debug      []Debug
}

// yamlConfig mirrors Config's fields for the structured alternative
// format; kept separate so the flat-file parser below doesn't need to
// know about yaml struct tags.
type yamlConfig struct {
	RAMSize    string              `yaml:"ram"`
	KernelPath string              `yaml:"kernel"`
	DTBPath    string              `yaml:"dtb"`
	DiskPath   string              `yaml:"disk"`
	StartPC    string              `yaml:"pc"`
	Debug      map[string][]string `yaml:"debug"`
}

// Load reads a machine description from name, dispatching on its
// extension.
func Load(name string) (*Config, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return loadYAML(name)
	}
	return loadFlat(name)
}

func loadYAML(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", name, err)
	}
	cfg := &Config{
		KernelPath: y.KernelPath,
		DTBPath:    y.DTBPath,
		DiskPath:   y.DiskPath,
	}
	if y.RAMSize != "" {
		size, err := ParseSize(y.RAMSize)
		if err != nil {
			return nil, fmt.Errorf("config: ram: %w", err)
		}
		cfg.RAMSize = size
	}
	if y.StartPC != "" {
		pc, err := strconv.ParseUint(strings.TrimPrefix(y.StartPC, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("config: pc: %w", err)
		}
		cfg.StartPC = pc
	}
	for subsystem, options := range y.Debug {
		cfg.Debug = append(cfg.Debug, Debug{Subsystem: subsystem, Options: options})
	}
	return cfg, nil
}

// loadFlat reads "key = value" lines, '#'-comments, blank lines
// ignored - the same shape as the teacher's configparser, trimmed down
// to the handful of keys a single-hart machine description needs
// instead of the teacher's per-device attach-list grammar.
func loadFlat(name string) (*Config, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &Config{}
	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		line, err := reader.ReadString('\n')
		lineNumber++
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if perr := parseFlatLine(cfg, line); perr != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNumber, perr)
		}
		if err != nil && errors.Is(err, io.EOF) {
			break
		}
	}
	return cfg, nil
}

func parseFlatLine(cfg *Config, line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("expected key = value, got %q", line)
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case "RAM":
		size, err := ParseSize(value)
		if err != nil {
			return err
		}
		cfg.RAMSize = size
	case "KERNEL":
		cfg.KernelPath = value
	case "DTB":
		cfg.DTBPath = value
	case "DISK":
		cfg.DiskPath = value
	case "PC":
		pc, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("pc must be hex: %s", value)
		}
		cfg.StartPC = pc
	case "DEBUG":
		subsystem, options, ok := strings.Cut(value, " ")
		if !ok {
			return fmt.Errorf("debug requires a subsystem and options: %s", value)
		}
		opts := strings.Split(strings.TrimSpace(options), ",")
		for i := range opts {
			opts[i] = strings.ToUpper(strings.TrimSpace(opts[i]))
		}
		cfg.Debug = append(cfg.Debug, Debug{
			Subsystem: strings.ToUpper(strings.TrimSpace(subsystem)),
			Options:   opts,
		})
	default:
		return fmt.Errorf("unknown option: %s", key)
	}
	return nil
}

// ParseSize accepts a plain byte count or a K/M/G-suffixed shorthand
// (e.g. "128M"), matching the teacher's <number><K|M> address grammar.
// Exported so cmd/rv64emu can parse its --ram flag with the same rules.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	last := s[len(s)-1]
	if unicode.IsDigit(rune(last)) {
		return strconv.ParseUint(s, 10, 64)
	}
	n, err := strconv.ParseUint(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, err
	}
	switch unicode.ToUpper(rune(last)) {
	case 'K':
		return n * 1024, nil
	case 'M':
		return n * 1024 * 1024, nil
	case 'G':
		return n * 1024 * 1024 * 1024, nil
	default:
		return 0, fmt.Errorf("unknown size suffix: %c", last)
	}
}
