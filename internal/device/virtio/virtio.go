/*
rv64emu virtio block device

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

// Package virtio implements a legacy virtio-mmio block device: the
// register block a driver probes and negotiates with, plus the
// descriptor/avail/used ring bookkeeping needed to locate a request
// chain once the driver notifies the queue.
package virtio

import (
	"fmt"

	"github.com/rcornwell/rv64emu/internal/debug"
)

// Register offsets within the device's MMIO window, relative to the
// device's base address (0x10001000 in the physical map).
const (
	regMagicValue      = 0x000
	regVersion         = 0x004
	regDeviceID        = 0x008
	regVendorID        = 0x00c
	regDeviceFeatures  = 0x010
	regDriverFeatures  = 0x020
	regQueueSel        = 0x030
	regQueueNumMax     = 0x034
	regQueueNum        = 0x038
	regQueuePFN        = 0x040
	regQueueNotify     = 0x050
	regInterruptStatus = 0x060
	regInterruptACK    = 0x064
	regStatus          = 0x070

	magicValue  = 0x74726976 // "virt"
	version     = 1          // legacy MMIO interface
	deviceIDBlk = 2
	vendorID    = 0x554d4551 // "QEMU" vendor id, matched by mainline guest drivers
	queueNumMax = 8

	pageSize   = 4096
	descSize   = 16
	queueDepth = 8 // NUM in the xv6-style layout this ring follows
)

// Disk is a virtio block device with one virtqueue, backed by a flat
// byte-addressable image. The queue's descriptor/avail/used rings live
// in guest DRAM at an address derived from QueuePFN; this device only
// tracks the registers a driver configures, plus its own interrupt
// latch and sector image. Walking the rings requires access to guest
// physical memory, which is why walking them is driven by the owner
// that already holds that memory (the MMU's HandleDiskAccess), not by
// this package.
type Disk struct {
	image []byte

	deviceFeatures uint32
	driverFeatures uint32
	queueSel       uint32
	queueNum       uint32
	queuePFN       uint32
	status         uint32
	interruptState uint32

	notified     bool
	interrupting bool
	debugMask    int
}

// New returns a virtio block device with no backing image installed.
func New() *Disk {
	return &Disk{}
}

// Init installs the backing disk image as a contiguous byte sequence.
func (d *Disk) Init(data []byte) {
	d.image = data
}

// Tick is a no-op; the device only reacts to register writes and to
// the MMU walking its rings once notified.
func (d *Disk) Tick() {}

// IsInterrupting reports whether the device has a completed request
// pending acknowledgement.
func (d *Disk) IsInterrupting() bool {
	return d.interrupting
}

// ResetInterrupting clears the device's latched interrupt.
func (d *Disk) ResetInterrupting() {
	d.interrupting = false
}

// Notified reports and clears whether the driver wrote to QueueNotify
// since the last call, signalling a request is ready to service.
func (d *Disk) Notified() bool {
	n := d.notified
	d.notified = false
	return n
}

// DescAddress returns the guest-physical address of the descriptor
// table, derived from the negotiated queue page frame number.
func (d *Disk) DescAddress() uint64 {
	return uint64(d.queuePFN) * pageSize
}

// AvailAddress returns the guest-physical address of the avail ring,
// immediately following the descriptor table.
func (d *Disk) AvailAddress() uint64 {
	return d.DescAddress() + queueDepth*descSize
}

// UsedAddress returns the guest-physical address of the used ring,
// aligned up to the next page after the avail ring as xv6's virtio
// driver expects.
func (d *Disk) UsedAddress() uint64 {
	avail := d.AvailAddress()
	availSize := uint64(4 + 2*queueDepth + 2) // flags + ring[NUM] + used_event
	end := avail + availSize
	return (end + pageSize - 1) &^ (pageSize - 1)
}

// ReadSector returns one byte of the backing image at the given byte
// offset, or 0 past the end of the image.
func (d *Disk) ReadSector(offset uint64) uint8 {
	if offset >= uint64(len(d.image)) {
		return 0
	}
	return d.image[offset]
}

// WriteSector writes one byte of the backing image at the given byte
// offset, growing the image if the offset is beyond its current end.
func (d *Disk) WriteSector(offset uint64, value uint8) {
	if offset >= uint64(len(d.image)) {
		grown := make([]byte, offset+1)
		copy(grown, d.image)
		d.image = grown
	}
	d.image[offset] = value
}

// CompleteRequest latches the device's interrupt once a request chain
// has been serviced, called by the MMU after it finishes walking the
// descriptor chain.
func (d *Disk) CompleteRequest() {
	d.interrupting = true
	d.interruptState = 1
	debug.Debugf("virtio", d.debugMask, debug.MaskIRQ, "request completed, interrupt raised")
}

func (d *Disk) Load(address uint64) uint8 {
	reg, shift := address&^3, (address&3)*8
	switch reg {
	case regMagicValue:
		return uint8(uint32(magicValue) >> shift)
	case regVersion:
		return uint8(version >> shift)
	case regDeviceID:
		return uint8(deviceIDBlk >> shift)
	case regVendorID:
		return uint8(uint32(vendorID) >> shift)
	case regDeviceFeatures:
		return uint8(d.deviceFeatures >> shift)
	case regQueueNumMax:
		return uint8(uint32(queueNumMax) >> shift)
	case regQueueNum:
		return uint8(d.queueNum >> shift)
	case regQueuePFN:
		return uint8(d.queuePFN >> shift)
	case regInterruptStatus:
		return uint8(d.interruptState >> shift)
	case regStatus:
		return uint8(d.status >> shift)
	default:
		return 0
	}
}

func (d *Disk) Store(address uint64, value uint8) {
	reg, shift := address&^3, (address&3)*8
	switch reg {
	case regDriverFeatures:
		d.driverFeatures = setByteLane(d.driverFeatures, shift, value)
	case regQueueSel:
		d.queueSel = setByteLane(d.queueSel, shift, value)
	case regQueueNum:
		d.queueNum = setByteLane(d.queueNum, shift, value)
	case regQueuePFN:
		d.queuePFN = setByteLane(d.queuePFN, shift, value)
	case regQueueNotify:
		d.notified = true
	case regInterruptACK:
		if value&1 != 0 {
			d.interruptState = 0
		}
	case regStatus:
		d.status = setByteLane(d.status, shift, value)
	}
}

func setByteLane(current uint32, shift uint64, value uint8) uint32 {
	return (current &^ (0xff << shift)) | (uint32(value) << shift)
}

// Debug enables a named trace option (TRACE, IRQ, IO); see
// internal/debug for the recognized set.
func (d *Disk) Debug(option string) error {
	mask, ok := debug.OptionMask(option)
	if !ok {
		return fmt.Errorf("virtio: unrecognized debug option %q", option)
	}
	d.debugMask |= mask
	return nil
}
