/*
rv64emu memory-management unit

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

// Package memory implements the hart's memory-management unit: virtual
// to physical translation (SV32/SV39), page-boundary-spanning byte
// fallback, and physical-address dispatch across the device-tree blob,
// CLINT, PLIC, UART, virtio block, and DRAM.
package memory

import (
	"fmt"
	"strings"

	"github.com/rcornwell/rv64emu/internal/device"
	"github.com/rcornwell/rv64emu/internal/device/clint"
	"github.com/rcornwell/rv64emu/internal/device/plic"
	"github.com/rcornwell/rv64emu/internal/device/uart"
	"github.com/rcornwell/rv64emu/internal/device/virtio"
	"github.com/rcornwell/rv64emu/internal/riscv"
)

const dramBase = 0x80000000

const (
	dtbLow  = 0x00001020
	dtbHigh = 0x00001ea2
)

// AddressingMode selects the page-table format the MMU walks.
type AddressingMode int

const (
	None AddressingMode = iota
	SV32
	SV39
	SV48 // Recognized but unimplemented; selecting it is an implementation-fatal condition.
)

type accessType int

const (
	accessExecute accessType = iota
	accessRead
	accessWrite
)

// Mmu is the hart's memory-management unit, owning DRAM, the DTB image,
// and the four MMIO peripherals.
type Mmu struct {
	xlen           riscv.Xlen
	ppn            uint64
	addressingMode AddressingMode
	privilege      riscv.Privilege

	dram []byte
	dtb  []byte

	disk  *virtio.Disk
	plic  *plic.Plic
	clint *clint.Clint
	uart  *uart.Uart
}

// New returns an MMU with no DRAM allocated and all devices freshly
// reset, forwarding the terminal to its UART.
func New(xlen riscv.Xlen, terminal device.Terminal) *Mmu {
	return &Mmu{
		xlen:      xlen,
		privilege: riscv.PrivilegeMachine,
		disk:      virtio.New(),
		plic:      plic.New(),
		clint:     clint.New(),
		uart:      uart.New(terminal),
	}
}

// UpdateXlen changes the native integer width used for address masking.
func (m *Mmu) UpdateXlen(xlen riscv.Xlen) {
	m.xlen = xlen
}

// SetupMemory allocates DRAM of the given capacity, zero-filled.
func (m *Mmu) SetupMemory(capacity uint64) {
	m.dram = make([]byte, capacity)
}

// SetupFilesystem installs the virtio block device's backing image.
func (m *Mmu) SetupFilesystem(data []byte) {
	m.disk.Init(data)
}

// SetupDTB installs the device-tree blob, read-only from the guest's
// point of view.
func (m *Mmu) SetupDTB(data []byte) {
	m.dtb = make([]byte, len(data))
	copy(m.dtb, data)
}

// Tick advances every device by one tick, in the fixed order the CPU's
// tick loop calls this: disk, then PLIC, then CLINT, then UART. A disk
// notified since the last tick has its descriptor chain walked
// immediately, the same cycle the driver's QueueNotify write lands in,
// rather than waiting on an interrupt latch nothing would otherwise set.
func (m *Mmu) Tick() {
	m.disk.Tick()
	if m.disk.Notified() {
		m.HandleDiskAccess()
	}
	m.plic.Tick()
	m.clint.Tick()
	m.uart.Tick()
}

// DetectInterrupt asks the PLIC to re-evaluate and returns the winning
// source, if any.
func (m *Mmu) DetectInterrupt() plic.Source {
	m.plic.DetectInterrupt(m.disk.IsInterrupting(), m.uart.IsInterrupting(), m.clint.IsInterrupting())
	return m.plic.GetInterrupt()
}

// ResetInterrupt clears the PLIC's latched source once the trap
// pipeline has consumed it.
func (m *Mmu) ResetInterrupt() {
	m.plic.ResetInterrupt()
}

// IsDiskInterrupting, IsClintInterrupting and IsUartInterrupting report
// each device's own latch directly, independent of PLIC arbitration.
func (m *Mmu) IsDiskInterrupting() bool  { return m.disk.IsInterrupting() }
func (m *Mmu) IsClintInterrupting() bool { return m.clint.IsInterrupting() }
func (m *Mmu) IsUartInterrupting() bool  { return m.uart.IsInterrupting() }

// ResetDiskInterrupting, ResetClintInterrupting and ResetUartInterrupting
// acknowledge each device's latch; the trap pipeline calls exactly one
// of these per delivered interrupt, matching the device the PLIC named.
func (m *Mmu) ResetDiskInterrupting()  { m.disk.ResetInterrupting() }
func (m *Mmu) ResetClintInterrupting() { m.clint.ResetInterrupting() }
func (m *Mmu) ResetUartInterrupting()  { m.uart.ResetInterrupting() }

// UpdateAddressingMode changes the active page-table format.
func (m *Mmu) UpdateAddressingMode(mode AddressingMode) {
	m.addressingMode = mode
}

// UpdatePrivilegeMode changes the privilege level translation is
// evaluated against.
func (m *Mmu) UpdatePrivilegeMode(p riscv.Privilege) {
	m.privilege = p
}

// UpdatePPN changes the root page table's physical page number.
func (m *Mmu) UpdatePPN(ppn uint64) {
	m.ppn = ppn
}

func (m *Mmu) effectiveAddress(address uint64) uint64 {
	if m.xlen == riscv.Xlen32 {
		return address & 0xffffffff
	}
	return address
}

// Fetch reads one instruction byte through translation.
func (m *Mmu) Fetch(vAddress uint64) (uint8, *riscv.Trap) {
	pAddress, err := m.translate(m.effectiveAddress(vAddress), accessExecute)
	if err != nil {
		return 0, &riscv.Trap{Kind: riscv.InstructionPageFault, Value: vAddress}
	}
	return m.LoadRaw(pAddress), nil
}

func (m *Mmu) fetchBytes(vAddress, width uint64) (uint64, *riscv.Trap) {
	if (vAddress & 0xfff) <= (0x1000 - width) {
		pAddress, err := m.translate(m.effectiveAddress(vAddress), accessExecute)
		if err != nil {
			return 0, &riscv.Trap{Kind: riscv.InstructionPageFault, Value: vAddress}
		}
		var data uint64
		for i := uint64(0); i < width; i++ {
			data |= uint64(m.LoadRaw(pAddress+i)) << (i * 8)
		}
		return data, nil
	}
	var data uint64
	for i := uint64(0); i < width; i++ {
		b, trap := m.Fetch(vAddress + i)
		if trap != nil {
			return 0, trap
		}
		data |= uint64(b) << (i * 8)
	}
	return data, nil
}

// FetchWord reads a 32-bit instruction word through translation,
// falling back to byte-wise access when it spans a page boundary.
func (m *Mmu) FetchWord(vAddress uint64) (uint32, *riscv.Trap) {
	data, trap := m.fetchBytes(vAddress, 4)
	return uint32(data), trap
}

// Load reads one byte through translation.
func (m *Mmu) Load(vAddress uint64) (uint8, *riscv.Trap) {
	pAddress, err := m.translate(m.effectiveAddress(vAddress), accessRead)
	if err != nil {
		return 0, &riscv.Trap{Kind: riscv.LoadPageFault, Value: vAddress}
	}
	return m.LoadRaw(pAddress), nil
}

func (m *Mmu) loadBytes(vAddress, width uint64) (uint64, *riscv.Trap) {
	if (vAddress & 0xfff) <= (0x1000 - width) {
		pAddress, err := m.translate(m.effectiveAddress(vAddress), accessRead)
		if err != nil {
			return 0, &riscv.Trap{Kind: riscv.LoadPageFault, Value: vAddress}
		}
		var data uint64
		for i := uint64(0); i < width; i++ {
			data |= uint64(m.LoadRaw(pAddress+i)) << (i * 8)
		}
		return data, nil
	}
	var data uint64
	for i := uint64(0); i < width; i++ {
		b, trap := m.Load(vAddress + i)
		if trap != nil {
			return 0, trap
		}
		data |= uint64(b) << (i * 8)
	}
	return data, nil
}

// LoadHalfword, LoadWord and LoadDoubleword read multi-byte values
// through translation, each falling back to byte-wise access across a
// page boundary so either half can fault independently.
func (m *Mmu) LoadHalfword(vAddress uint64) (uint16, *riscv.Trap) {
	data, trap := m.loadBytes(vAddress, 2)
	return uint16(data), trap
}

func (m *Mmu) LoadWord(vAddress uint64) (uint32, *riscv.Trap) {
	data, trap := m.loadBytes(vAddress, 4)
	return uint32(data), trap
}

func (m *Mmu) LoadDoubleword(vAddress uint64) (uint64, *riscv.Trap) {
	return m.loadBytes(vAddress, 8)
}

// Store writes one byte through translation.
func (m *Mmu) Store(vAddress uint64, value uint8) *riscv.Trap {
	pAddress, err := m.translate(m.effectiveAddress(vAddress), accessWrite)
	if err != nil {
		return &riscv.Trap{Kind: riscv.StorePageFault, Value: vAddress}
	}
	m.StoreRaw(pAddress, value)
	return nil
}

func (m *Mmu) storeBytes(vAddress, value, width uint64) *riscv.Trap {
	if (vAddress & 0xfff) <= (0x1000 - width) {
		pAddress, err := m.translate(m.effectiveAddress(vAddress), accessWrite)
		if err != nil {
			return &riscv.Trap{Kind: riscv.StorePageFault, Value: vAddress}
		}
		for i := uint64(0); i < width; i++ {
			m.StoreRaw(pAddress+i, uint8(value>>(i*8)))
		}
		return nil
	}
	for i := uint64(0); i < width; i++ {
		if trap := m.Store(vAddress+i, uint8(value>>(i*8))); trap != nil {
			return trap
		}
	}
	return nil
}

func (m *Mmu) StoreHalfword(vAddress uint64, value uint16) *riscv.Trap {
	return m.storeBytes(vAddress, uint64(value), 2)
}

func (m *Mmu) StoreWord(vAddress uint64, value uint32) *riscv.Trap {
	return m.storeBytes(vAddress, uint64(value), 4)
}

func (m *Mmu) StoreDoubleword(vAddress uint64, value uint64) *riscv.Trap {
	return m.storeBytes(vAddress, value, 8)
}

// LoadRaw reads one physical byte with no translation, dispatching by
// address range to the matching device or DRAM. An address below DRAM
// base that hits no device is an implementation-fatal condition: the
// physical map is exhaustively enumerated and nothing should reach it
// outside of a loader bug.
func (m *Mmu) LoadRaw(address uint64) uint8 {
	effective := m.effectiveAddress(address)
	switch {
	case effective >= dtbLow && effective <= dtbHigh:
		idx := int(effective - dtbLow)
		if idx >= len(m.dtb) {
			return 0
		}
		return m.dtb[idx]
	case effective >= clint.BaseAddress && effective <= 0x0200ffff:
		return m.clint.Load(effective)
	case effective >= 0x0c000000 && effective <= 0x0fffffff:
		return m.plic.Load(effective)
	case effective >= 0x10000000 && effective <= 0x100000ff:
		return m.uart.Load(effective)
	case effective >= 0x10001000 && effective <= 0x10001fff:
		return m.disk.Load(effective - 0x10001000)
	default:
		if effective < dramBase {
			panic(fmt.Sprintf("memory: no device mapped at physical address %#x", effective))
		}
		return m.dram[effective-dramBase]
	}
}

func (m *Mmu) LoadHalfwordRaw(address uint64) uint16 {
	var data uint16
	for i := uint64(0); i < 2; i++ {
		data |= uint16(m.LoadRaw(address+i)) << (i * 8)
	}
	return data
}

func (m *Mmu) LoadWordRaw(address uint64) uint32 {
	var data uint32
	for i := uint64(0); i < 4; i++ {
		data |= uint32(m.LoadRaw(address+i)) << (i * 8)
	}
	return data
}

func (m *Mmu) LoadDoublewordRaw(address uint64) uint64 {
	var data uint64
	for i := uint64(0); i < 8; i++ {
		data |= uint64(m.LoadRaw(address+i)) << (i * 8)
	}
	return data
}

// StoreRaw writes one physical byte with no translation. The DTB range
// is read-only and silently discards writes, matching its treatment as
// inert loader-supplied bytes.
func (m *Mmu) StoreRaw(address uint64, value uint8) {
	effective := m.effectiveAddress(address)
	switch {
	case effective >= dtbLow && effective <= dtbHigh:
		// read-only: the write is dropped
	case effective >= clint.BaseAddress && effective <= 0x0200ffff:
		m.clint.Store(effective, value)
	case effective >= 0x0c000000 && effective <= 0x0fffffff:
		m.plic.Store(effective, value)
	case effective >= 0x10000000 && effective <= 0x100000ff:
		m.uart.Store(effective, value)
	case effective >= 0x10001000 && effective <= 0x10001fff:
		m.disk.Store(effective-0x10001000, value)
	default:
		if effective < dramBase {
			panic(fmt.Sprintf("memory: no device mapped at physical address %#x", effective))
		}
		m.dram[effective-dramBase] = value
	}
}

func (m *Mmu) StoreHalfwordRaw(address uint64, value uint16) {
	for i := uint64(0); i < 2; i++ {
		m.StoreRaw(address+i, uint8(value>>(i*8)))
	}
}

func (m *Mmu) StoreWordRaw(address uint64, value uint32) {
	for i := uint64(0); i < 4; i++ {
		m.StoreRaw(address+i, uint8(value>>(i*8)))
	}
}

func (m *Mmu) StoreDoublewordRaw(address uint64, value uint64) {
	for i := uint64(0); i < 8; i++ {
		m.StoreRaw(address+i, uint8(value>>(i*8)))
	}
}

func (m *Mmu) translate(address uint64, access accessType) (uint64, error) {
	switch m.addressingMode {
	case None:
		return address, nil
	case SV32:
		if m.privilege == riscv.PrivilegeUser || m.privilege == riscv.PrivilegeSupervisor {
			vpns := [2]uint64{(address >> 12) & 0x3ff, (address >> 22) & 0x3ff}
			return m.traversePage(address, 1, m.ppn, vpns[:], access)
		}
		return address, nil
	case SV39:
		if m.privilege == riscv.PrivilegeUser || m.privilege == riscv.PrivilegeSupervisor {
			vpns := [3]uint64{(address >> 12) & 0x1ff, (address >> 21) & 0x1ff, (address >> 30) & 0x1ff}
			return m.traversePage(address, 2, m.ppn, vpns[:], access)
		}
		return address, nil
	case SV48:
		panic("memory: SV48 addressing mode is not implemented")
	default:
		panic("memory: unreachable addressing mode")
	}
}

// traversePage walks one level of the page table, recursing toward
// level 0, and returns the translated physical address or an error if
// the walk faults. It updates A/D bits in the in-memory PTE on first
// access/write, per the privileged architecture.
func (m *Mmu) traversePage(vAddress uint64, level int, parentPPN uint64, vpns []uint64, access accessType) (uint64, error) {
	const pageSize = 4096
	pteSize := uint64(8)
	if m.addressingMode == SV32 {
		pteSize = 4
	}

	pteAddress := parentPPN*pageSize + vpns[level]*pteSize
	var pte uint64
	if m.addressingMode == SV32 {
		pte = uint64(m.LoadWordRaw(pteAddress))
	} else {
		pte = m.LoadDoublewordRaw(pteAddress)
	}

	var ppn uint64
	var ppns [3]uint64
	if m.addressingMode == SV32 {
		ppn = (pte >> 10) & 0x3fffff
		ppns[0] = (pte >> 10) & 0x3ff
		ppns[1] = (pte >> 20) & 0xfff
	} else {
		ppn = (pte >> 10) & 0xfffffffffff
		ppns[0] = (pte >> 10) & 0x1ff
		ppns[1] = (pte >> 19) & 0x1ff
		ppns[2] = (pte >> 28) & 0x3ffffff
	}

	d := (pte >> 7) & 1
	a := (pte >> 6) & 1
	x := (pte >> 3) & 1
	w := (pte >> 2) & 1
	r := (pte >> 1) & 1
	v := pte & 1

	if v == 0 || (r == 0 && w == 1) {
		return 0, fmt.Errorf("memory: page fault at %#x", vAddress)
	}

	if r == 0 && x == 0 {
		if level == 0 {
			return 0, fmt.Errorf("memory: page fault at %#x", vAddress)
		}
		return m.traversePage(vAddress, level-1, ppn, vpns, access)
	}

	if a == 0 || (access == accessWrite && d == 0) {
		newPTE := pte | (1 << 6)
		if access == accessWrite {
			newPTE |= 1 << 7
		}
		if m.addressingMode == SV32 {
			m.StoreWordRaw(pteAddress, uint32(newPTE))
		} else {
			m.StoreDoublewordRaw(pteAddress, newPTE)
		}
	}

	switch access {
	case accessExecute:
		if x == 0 {
			return 0, fmt.Errorf("memory: page fault at %#x", vAddress)
		}
	case accessRead:
		if r == 0 {
			return 0, fmt.Errorf("memory: page fault at %#x", vAddress)
		}
	case accessWrite:
		if w == 0 {
			return 0, fmt.Errorf("memory: page fault at %#x", vAddress)
		}
	}

	offset := vAddress & 0xfff
	if m.addressingMode == SV32 {
		switch level {
		case 1:
			if ppns[0] != 0 {
				return 0, fmt.Errorf("memory: misaligned superpage at %#x", vAddress)
			}
			return (ppns[1] << 22) | (vpns[0] << 12) | offset, nil
		case 0:
			return (ppn << 12) | offset, nil
		default:
			panic("memory: unreachable SV32 level")
		}
	}
	switch level {
	case 2:
		if ppns[1] != 0 || ppns[0] != 0 {
			return 0, fmt.Errorf("memory: misaligned superpage at %#x", vAddress)
		}
		return (ppns[2] << 30) | (vpns[1] << 21) | (vpns[0] << 12) | offset, nil
	case 1:
		if ppns[0] != 0 {
			return 0, fmt.Errorf("memory: misaligned superpage at %#x", vAddress)
		}
		return (ppns[2] << 30) | (ppns[1] << 21) | (vpns[0] << 12) | offset, nil
	case 0:
		return (ppn << 12) | offset, nil
	default:
		panic("memory: unreachable SV39 level")
	}
}

// HandleDiskAccess walks the virtqueue's descriptor chain starting at
// the avail ring's current head, transferring data between guest
// memory and the backing image per descriptor, then publishes
// completion on the used ring. It follows the xv6 three-descriptor
// convention (header, data, status) rather than the full virtio-blk
// specification.
func (m *Mmu) HandleDiskAccess() {
	baseDesc := m.disk.DescAddress()
	availAddress := m.disk.AvailAddress()
	baseUsed := m.disk.UsedAddress()

	queueNum := uint64(m.LoadHalfwordRaw(availAddress+2)) % 8
	index := m.LoadHalfwordRaw(availAddress+4+queueNum*2) % 8

	const descSize = 16

	headerDescAddress := baseDesc + descSize*uint64(index)
	headerBufferAddress := m.LoadDoublewordRaw(headerDescAddress)
	sector := m.LoadDoublewordRaw(headerBufferAddress + 8) // blk_sector, per the virtio-blk request header layout

	next := index
	descNum := 0
	for {
		descAddress := baseDesc + descSize*uint64(next)
		addr := m.LoadDoublewordRaw(descAddress)
		length := m.LoadWordRaw(descAddress + 8)
		flags := m.LoadHalfwordRaw(descAddress + 12)
		next = m.LoadHalfwordRaw(descAddress+14) % 8

		switch descNum {
		case 1:
			if flags&2 == 0 {
				for i := uint64(0); i < uint64(length); i++ {
					m.disk.WriteSector(sector*512+i, m.LoadRaw(addr+i))
				}
			} else {
				for i := uint64(0); i < uint64(length); i++ {
					m.StoreRaw(addr+i, m.disk.ReadSector(sector*512+i))
				}
			}
		case 2:
			if flags&2 == 0 {
				panic("memory: third virtio descriptor must be a device-write")
			}
			for i := uint64(0); i < uint64(length); i++ {
				m.StoreRaw(addr+i, 0)
			}
		}

		descNum++
		if flags&1 == 0 {
			break
		}
	}

	m.disk.CompleteRequest()
	m.StoreHalfwordRaw(baseUsed+2, uint16(descNum))
}

// Debug enables a named trace option on one of the MMU's attached
// devices ("clint", "plic", "uart", "virtio"); the MMU itself carries
// no trace points of its own, since every load/store it performs is
// already attributable to one of those devices or to DRAM.
func (m *Mmu) Debug(subsystem, option string) error {
	switch strings.ToUpper(subsystem) {
	case "CLINT":
		return m.clint.Debug(option)
	case "PLIC":
		return m.plic.Debug(option)
	case "UART":
		return m.uart.Debug(option)
	case "VIRTIO":
		return m.disk.Debug(option)
	default:
		return fmt.Errorf("memory: unrecognized debug subsystem %q", subsystem)
	}
}
