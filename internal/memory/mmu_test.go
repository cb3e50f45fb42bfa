package memory

import (
	"testing"

	"github.com/rcornwell/rv64emu/internal/device"
	"github.com/rcornwell/rv64emu/internal/riscv"
)

type fakeTerminal struct{}

func (fakeTerminal) GetInput() uint8  { return 0 }
func (fakeTerminal) PutByte(uint8)    {}
func (fakeTerminal) GetOutput() uint8 { return 0 }
func (fakeTerminal) PutInput(uint8)   {}

var _ device.Terminal = fakeTerminal{}

func newTestMmu(t *testing.T) *Mmu {
	t.Helper()
	m := New(riscv.Xlen64, fakeTerminal{})
	m.SetupMemory(1 << 20)
	return m
}

func TestRawLoadStoreRoundTrip(t *testing.T) {
	m := newTestMmu(t)
	m.StoreWordRaw(dramBase+0x1000, 0xdeadbeef)
	if got := m.LoadWordRaw(dramBase + 0x1000); got != 0xdeadbeef {
		t.Fatalf("got %#x, want 0xdeadbeef", got)
	}
}

func TestRawLoadBelowDRAMWithNoDevicePanics(t *testing.T) {
	m := newTestMmu(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unmapped low physical address")
		}
	}()
	m.LoadRaw(0x40000000)
}

func TestIdentityMappedRoundTripAllWidths(t *testing.T) {
	m := newTestMmu(t)
	// AddressingMode None: virtual == physical, so translate is a passthrough.
	addr := uint64(dramBase + 0x2000)

	if trap := m.Store(addr, 0x42); trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if got, trap := m.Load(addr); trap != nil || got != 0x42 {
		t.Fatalf("got %#x trap=%v, want 0x42", got, trap)
	}

	if trap := m.StoreHalfword(addr, 0xbeef); trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if got, trap := m.LoadHalfword(addr); trap != nil || got != 0xbeef {
		t.Fatalf("got %#x trap=%v, want 0xbeef", got, trap)
	}

	if trap := m.StoreWord(addr, 0xdeadbeef); trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if got, trap := m.LoadWord(addr); trap != nil || got != 0xdeadbeef {
		t.Fatalf("got %#x trap=%v, want 0xdeadbeef", got, trap)
	}

	if trap := m.StoreDoubleword(addr, 0x0102030405060708); trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if got, trap := m.LoadDoubleword(addr); trap != nil || got != 0x0102030405060708 {
		t.Fatalf("got %#x trap=%v, want 0x0102030405060708", got, trap)
	}
}

// buildSV39Leaf writes a three-level SV39 walk (two non-leaf PTEs and a
// level-0 leaf) mapping virtual page vpn2/vpn1/vpn0 to the given physical
// page number, and returns the physical addresses of the level-2, level-1
// and leaf PTEs, the last for inspecting A/D bits afterward.
func buildSV39Leaf(m *Mmu, rootPPN, vpn2, vpn1, vpn0, targetPPN uint64, perm uint64) (uint64, uint64, uint64) {
	l2Address := rootPPN*4096 + vpn2*8
	l2PPN := rootPPN + 1
	m.StoreDoublewordRaw(l2Address, (l2PPN<<10)|1) // V=1, non-leaf (R=W=X=0)

	l1Address := l2PPN*4096 + vpn1*8
	l1PPN := rootPPN + 2
	m.StoreDoublewordRaw(l1Address, (l1PPN<<10)|1) // V=1, non-leaf

	l0Address := l1PPN*4096 + vpn0*8
	pte := (targetPPN << 10) | perm
	m.StoreDoublewordRaw(l0Address, pte)
	return l2Address, l1Address, l0Address
}

func TestMMURoundTripUnderSV39(t *testing.T) {
	m := newTestMmu(t)
	m.UpdatePrivilegeMode(riscv.PrivilegeSupervisor)
	m.UpdateAddressingMode(SV39)

	rootPPN := uint64(dramBase / 4096)
	m.UpdatePPN(rootPPN)

	va := uint64(0x0000003f80001000) // vpn2=0xfe, vpn1=0, vpn0=1 split below
	vpn0 := (va >> 12) & 0x1ff
	vpn1 := (va >> 21) & 0x1ff
	vpn2 := (va >> 30) & 0x1ff

	targetPPN := rootPPN + 10
	const permRWXV = 1 | (1 << 1) | (1 << 2) | (1 << 3) // A and D start clear
	_, _, l0Address := buildSV39Leaf(m, rootPPN, vpn2, vpn1, vpn0, targetPPN, permRWXV)

	if trap := m.Store(va, 0x7a); trap != nil {
		t.Fatalf("unexpected store trap: %v", trap)
	}
	if got, trap := m.Load(va); trap != nil || got != 0x7a {
		t.Fatalf("got %#x trap=%v, want 0x7a", got, trap)
	}

	pte := m.LoadDoublewordRaw(l0Address)
	if pte&(1<<6) == 0 {
		t.Fatal("expected A bit to be set after load")
	}
	if pte&(1<<7) == 0 {
		t.Fatal("expected D bit to be set after store")
	}
}

// A driver's QueueNotify write must drive the descriptor chain to
// completion on the very next Tick, not wait on an interrupt latch that
// only completing the chain itself would set.
func TestVirtioQueueNotifyDrivesDescriptorChainOnTick(t *testing.T) {
	m := newTestMmu(t)

	const (
		virtioBase     = 0x10001000
		regQueuePFN    = 0x040
		regQueueNotify = 0x050
	)

	queueBase := uint64(dramBase + 0x10000)
	pfn := uint32(queueBase / 4096)
	m.StoreWordRaw(virtioBase+regQueuePFN, pfn)

	const (
		descSize   = 16
		queueDepth = 8
	)
	descBase := queueBase
	availAddress := descBase + queueDepth*descSize

	headerBuf := queueBase + 0x2000
	dataBuf := queueBase + 0x3000
	const sector = uint64(3)

	// desc[0]: header, chained to desc[1].
	m.StoreDoublewordRaw(descBase, headerBuf)
	m.StoreWordRaw(descBase+8, 16)
	m.StoreHalfwordRaw(descBase+12, 1) // NEXT
	m.StoreHalfwordRaw(descBase+14, 1)

	// desc[1]: data, device-read (guest -> disk), last in chain.
	m.StoreDoublewordRaw(descBase+descSize, dataBuf)
	m.StoreWordRaw(descBase+descSize+8, 4)
	m.StoreHalfwordRaw(descBase+descSize+12, 0)
	m.StoreHalfwordRaw(descBase+descSize+14, 0)

	m.StoreDoublewordRaw(headerBuf+8, sector) // blk_sector

	m.StoreWordRaw(dataBuf, 0xcafef00d)

	m.StoreHalfwordRaw(availAddress+2, 0) // avail.idx
	m.StoreHalfwordRaw(availAddress+4, 0) // avail.ring[0] = desc 0

	m.StoreRaw(virtioBase+regQueueNotify, 1)

	if m.IsDiskInterrupting() {
		t.Fatal("disk interrupting before any Tick")
	}

	m.Tick()

	if !m.IsDiskInterrupting() {
		t.Fatal("expected disk interrupt latched after Tick following QueueNotify")
	}
	if got := m.disk.ReadSector(sector*512 + 0); got != 0x0d {
		t.Fatalf("sector byte 0 = %#x, want 0x0d", got)
	}
	if got := m.disk.ReadSector(sector*512 + 3); got != 0xca {
		t.Fatalf("sector byte 3 = %#x, want 0xca", got)
	}
}

func TestSV39InvalidPTEFaultsWithOriginalVAAsTval(t *testing.T) {
	m := newTestMmu(t)
	m.UpdatePrivilegeMode(riscv.PrivilegeUser)
	m.UpdateAddressingMode(SV39)

	rootPPN := uint64(dramBase / 4096)
	m.UpdatePPN(rootPPN)
	// Leave the entire page table zeroed: every PTE has V=0.

	va := uint64(0x1000)
	_, trap := m.Load(va)
	if trap == nil {
		t.Fatal("expected a page fault")
	}
	if trap.Kind != riscv.LoadPageFault {
		t.Fatalf("got trap kind %v, want LoadPageFault", trap.Kind)
	}
	if trap.Value != va {
		t.Fatalf("tval = %#x, want original VA %#x", trap.Value, va)
	}
}
