package bus

import (
	"testing"

	"gones/internal/cartridge"
	"gones/internal/input"
)

// nromROM builds a minimal one-bank NROM image with the given PRG contents
// written starting at PRG offset 0; the reset vector is set to $8000.
func nromROM(prg []uint8) []uint8 {
	data := make([]uint8, 16+16*1024+8*1024)
	copy(data[0:4], []byte("NES\x1A"))
	data[4] = 1 // 1x16KiB PRG
	data[5] = 1 // 1x8KiB CHR
	data[6] = 0
	data[7] = 0

	prgStart := 16
	copy(data[prgStart:], prg)
	data[prgStart+0x3FFC] = 0x00 // reset vector low -> $8000
	data[prgStart+0x3FFD] = 0x80
	return data
}

func newTestBus(prg []uint8) *Bus {
	rom := nromROM(prg)
	cart, err := cartridge.Load(rom)
	if err != nil {
		panic(err)
	}
	b := New()
	b.LoadCartridge(cart)
	return b
}

func TestLoadCartridgeSetsResetVector(t *testing.T) {
	b := newTestBus([]uint8{0xEA})
	if b.CPU.PC != 0x8000 {
		t.Errorf("PC=%#04x, want 0x8000 from the reset vector", b.CPU.PC)
	}
}

func TestLoadCartridgeStartsAtSevenCyclesFromReset(t *testing.T) {
	b := newTestBus([]uint8{0xEA})
	// CPU.Reset's own five settle reads + two vector reads cost 7 cycles;
	// the bus's counter must start there too, matching nestest's CYC:7.
	if got := b.GetCPUState().Cycles; got != 7 {
		t.Errorf("Cycles=%d, want 7 immediately after LoadCartridge", got)
	}
}

func TestStepExecutesOneInstructionAndAdvancesPPU(t *testing.T) {
	b := newTestBus([]uint8{0xEA}) // NOP, 2 cycles
	beforeCycles := b.GetCycleCount()
	beforeDot := b.PPU.Dot()
	if err := b.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := b.GetCycleCount() - beforeCycles; got != 2 {
		t.Errorf("cpu cycles advanced=%d, want 2", got)
	}
	gotDot := b.PPU.Dot()
	wantDot := (beforeDot + 6) % 341 // 2 CPU cycles * 3 PPU dots
	if gotDot != wantDot {
		t.Errorf("ppu dot=%d, want %d (3 dots per CPU cycle)", gotDot, wantDot)
	}
}

func TestStepSurfacesBadOpcodeError(t *testing.T) {
	b := newTestBus([]uint8{0x02}) // undocumented opcode, not in the official set
	err := b.Step()
	if err == nil {
		t.Fatal("expected an error for a bad opcode")
	}
}

func TestOAMDMAStallsCPUFor514CyclesFromOddReset(t *testing.T) {
	b := newTestBus([]uint8{0xEA})
	// LoadCartridge leaves the bus at cycle 7 (CPU.Reset's cost), an odd
	// starting count, so the DMA stall pays the extra alignment cycle.
	b.TriggerOAMDMA(0x00)
	if !b.IsDMAInProgress() {
		t.Fatal("DMA should be in progress immediately after triggering")
	}
	stalled := uint64(0)
	for b.IsDMAInProgress() {
		if err := b.Step(); err != nil {
			t.Fatalf("Step during DMA: %v", err)
		}
		stalled++
	}
	if stalled != 514 {
		t.Errorf("stalled cycles=%d, want 514 (odd starting cycle count)", stalled)
	}
}

func TestVBlankReachedWithinOneFrame(t *testing.T) {
	b := newTestBus([]uint8{0xEA})
	b.PPU.WriteRegister(0x2000, 0x80) // enable NMI generation

	// Scanline 241 dot 1 falls around CPU cycle 27394 (82182 PPU dots / 3);
	// land comfortably inside the ~2273-cycle vblank window that follows.
	if err := b.RunCycles(27500); err != nil {
		t.Fatalf("RunCycles: %v", err)
	}
	if !b.PPU.IsVBlank() {
		t.Error("PPU should be in vblank partway through the first frame")
	}

	if err := b.RunCycles(3000); err != nil {
		t.Fatalf("RunCycles: %v", err)
	}
	if b.GetFrameCount() == 0 {
		t.Error("expected the first frame to complete by now")
	}
}

func TestRunCyclesAdvancesAtLeastRequestedCycles(t *testing.T) {
	b := newTestBus([]uint8{0xEA, 0xEA, 0xEA, 0xEA})
	before := b.GetCycleCount()
	if err := b.RunCycles(5); err != nil {
		t.Fatalf("RunCycles: %v", err)
	}
	if got := b.GetCycleCount() - before; got < 5 {
		t.Errorf("cycles advanced=%d, want at least 5", got)
	}
}

func TestControllerButtonsRouteToCorrectController(t *testing.T) {
	b := newTestBus([]uint8{0xEA})
	b.SetControllerButton(1, input.ButtonA, true)
	b.SetControllerButton(2, input.ButtonB, true)

	if !b.Input.Controller1.IsPressed(input.ButtonA) {
		t.Error("controller 1 should have button A pressed")
	}
	if !b.Input.Controller2.IsPressed(input.ButtonB) {
		t.Error("controller 2 should have button B pressed")
	}
}

func TestMemoryWatchpointDetectsChange(t *testing.T) {
	b := newTestBus([]uint8{0xA9, 0x42, 0x85, 0x10}) // LDA #$42; STA $10
	b.EnableWatchpointLogging(true)
	b.AddMemoryWatchpoint(0x0010)

	for i := 0; i < 2; i++ {
		if err := b.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	changed := b.CheckMemoryWatchpoints()
	if changed[0x0010] != 0x42 {
		t.Errorf("watchpoint $0010=%#02x, want 0x42", changed[0x0010])
	}
}
