package cpu

import "testing"

func TestResetTakesSevenCycles(t *testing.T) {
	mem := &testMemory{}
	c := New(mem)
	c.Reset()
	if c.Cycles() != 7 {
		t.Errorf("cycles after reset=%d, want 7", c.Cycles())
	}
}

func TestBranchTakenCrossingPageCostsTwoExtraCycles(t *testing.T) {
	c, mem := newTestCPU()
	c.N = true
	load(mem, c, 0x80FC, 0x30, 0x10) // BMI +16, taken, crosses from page $80 to $81
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cycles != 4 { // base 2 + 1 taken + 1 page cross
		t.Errorf("cycles=%d, want 4", cycles)
	}
}

func TestCyclesAccumulateAcrossSteps(t *testing.T) {
	c, mem := newTestCPU()
	load(mem, c, 0x8000, 0xEA, 0xEA, 0xEA) // NOP x3, 2 cycles each
	before := c.Cycles()
	for i := 0; i < 3; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := c.Cycles() - before; got != 6 {
		t.Errorf("cycles accumulated=%d, want 6", got)
	}
}

func TestJSRRTSRoundTripPreservesPC(t *testing.T) {
	c, mem := newTestCPU()
	load(mem, c, 0x8000, 0x20, 0x00, 0x90) // JSR $9000
	mem.ram[0x9000] = 0x60                 // RTS

	if _, err := c.Step(); err != nil { // JSR
		t.Fatalf("JSR: %v", err)
	}
	if c.PC != 0x9000 {
		t.Fatalf("PC=%#04x after JSR, want 0x9000", c.PC)
	}
	if _, err := c.Step(); err != nil { // RTS
		t.Fatalf("RTS: %v", err)
	}
	if c.PC != 0x8003 {
		t.Errorf("PC=%#04x after RTS, want 0x8003 (instruction after JSR)", c.PC)
	}
}
