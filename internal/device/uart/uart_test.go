package uart

import "testing"

type fakeTerminal struct {
	input  []uint8
	output []uint8
}

func (f *fakeTerminal) GetInput() uint8 {
	if len(f.input) == 0 {
		return 0
	}
	b := f.input[0]
	f.input = f.input[1:]
	return b
}

func (f *fakeTerminal) PutByte(b uint8)  { f.output = append(f.output, b) }
func (f *fakeTerminal) GetOutput() uint8 { return 0 }
func (f *fakeTerminal) PutInput(b uint8) { f.input = append(f.input, b) }

func TestTransmitForwardsByteToTerminal(t *testing.T) {
	term := &fakeTerminal{}
	u := New(term)
	u.Store(rbrThr, 'A')
	if len(term.output) != 1 || term.output[0] != 'A' {
		t.Fatalf("terminal output = %v, want ['A']", term.output)
	}
}

func TestTransmitRaisesInterruptWhenEnabled(t *testing.T) {
	term := &fakeTerminal{}
	u := New(term)
	u.Store(ier, 2) // enable THR-empty interrupt
	u.Store(rbrThr, 'B')
	if !u.IsInterrupting() {
		t.Fatal("expected THR-empty interrupt to be latched")
	}
}

func TestReceiveSamplesInputAfterSamplePeriod(t *testing.T) {
	term := &fakeTerminal{}
	u := New(term)
	u.Store(ier, 1) // enable data-ready interrupt
	term.PutInput('Z')

	for i := uint64(0); i < samplePeriod-1; i++ {
		u.Tick()
	}
	if u.IsInterrupting() {
		t.Fatal("interrupt latched before the sample period elapsed")
	}
	u.Tick()
	if !u.IsInterrupting() {
		t.Fatal("expected data-ready interrupt after the sample period")
	}
	if got := u.Load(rbrThr); got != 'Z' {
		t.Fatalf("RBR = %q, want 'Z'", got)
	}
}

func TestDLABHidesRBRAndIER(t *testing.T) {
	term := &fakeTerminal{}
	u := New(term)
	u.Store(ier, 0x3)
	u.Store(lcr, 0x80) // set DLAB
	if got := u.Load(rbrThr); got != 0 {
		t.Fatalf("RBR under DLAB = %#x, want 0", got)
	}
	if got := u.Load(ier); got != 0 {
		t.Fatalf("IER under DLAB = %#x, want 0", got)
	}
	if got := u.Load(lcr); got != 0x80 {
		t.Fatalf("LCR should always be readable regardless of DLAB, got %#x", got)
	}
}
