package plic

import "testing"

func enableAndPrioritize(p *Plic, irq uint64, priority uint32) {
	p.Store(enableBase+irq/8, uint8(1<<(irq%8)))
	addr := priorityBase + irq*4
	p.Store(addr, uint8(priority))
	p.Store(addr+1, uint8(priority>>8))
	p.Store(addr+2, uint8(priority>>16))
	p.Store(addr+3, uint8(priority>>24))
}

func TestTimerWinsWhenNoExternalSourcePending(t *testing.T) {
	p := New()
	p.DetectInterrupt(false, false, true)
	if p.GetInterrupt() != Timer {
		t.Fatalf("got %v, want Timer", p.GetInterrupt())
	}
}

func TestExternalSourceWinsOverTimer(t *testing.T) {
	p := New()
	enableAndPrioritize(p, uartIRQ, 5)
	p.DetectInterrupt(false, true, true)
	if p.GetInterrupt() != Uart {
		t.Fatalf("got %v, want Uart", p.GetInterrupt())
	}
}

func TestHigherPriorityExternalSourceWins(t *testing.T) {
	p := New()
	enableAndPrioritize(p, virtioIRQ, 7)
	enableAndPrioritize(p, uartIRQ, 3)
	p.DetectInterrupt(true, true, false)
	if p.GetInterrupt() != Virtio {
		t.Fatalf("got %v, want Virtio", p.GetInterrupt())
	}
}

func TestThresholdSuppressesLowPriorityExternalSource(t *testing.T) {
	p := New()
	enableAndPrioritize(p, uartIRQ, 2)
	p.Store(thresholdBase, 2) // priority must be strictly greater than threshold
	p.DetectInterrupt(false, true, false)
	if p.GetInterrupt() != None {
		t.Fatalf("got %v, want None once suppressed by threshold", p.GetInterrupt())
	}
}

func TestDisabledSourceNeverWins(t *testing.T) {
	p := New()
	// No enable bit set for uartIRQ.
	addr := uint64(priorityBase + uartIRQ*4)
	p.Store(addr, 9)
	p.DetectInterrupt(false, true, false)
	if p.GetInterrupt() != None {
		t.Fatalf("got %v, want None for a disabled source", p.GetInterrupt())
	}
}

func TestClaimCompleteClearsOnlyWhenValueMatches(t *testing.T) {
	p := New()
	enableAndPrioritize(p, virtioIRQ, 1)
	p.DetectInterrupt(true, false, false)
	if p.Load(claimComplete) != virtioIRQ {
		t.Fatalf("claim register = %d, want %d", p.Load(claimComplete), virtioIRQ)
	}
	p.Store(claimComplete, virtioIRQ+1)
	if p.Load(claimComplete) != virtioIRQ {
		t.Fatal("claim register cleared on mismatched write")
	}
	p.Store(claimComplete, virtioIRQ)
	if p.Load(claimComplete) != 0 {
		t.Fatal("claim register should clear once the matching id is written back")
	}
}
