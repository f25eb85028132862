package ppu

import (
	"testing"

	"gones/internal/cartridge"
)

type stubCart struct {
	chr    [0x2000]uint8
	mirror cartridge.MirrorMode
}

func (c *stubCart) ReadCHR(address uint16) uint8          { return c.chr[address&0x1FFF] }
func (c *stubCart) WriteCHR(address uint16, value uint8)  { c.chr[address&0x1FFF] = value }
func (c *stubCart) Mirror() cartridge.MirrorMode          { return c.mirror }

func newTestPPU() (*PPU, *stubCart) {
	cart := &stubCart{}
	p := New()
	p.SetCartridge(cart)
	return p, cart
}

func TestResetClearsStatus(t *testing.T) {
	p, _ := newTestPPU()
	p.vblank = true
	p.Reset()
	if p.IsVBlank() {
		t.Error("vblank should be clear after Reset")
	}
}

func TestStatusReadClearsVBlankAndLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.vblank = true
	p.writeLatch = true
	value := p.ReadRegister(0x2002)
	if value&0x80 == 0 {
		t.Error("PPUSTATUS read should report vblank was set")
	}
	if p.IsVBlank() {
		t.Error("reading PPUSTATUS should clear vblank")
	}
	if p.writeLatch {
		t.Error("reading PPUSTATUS should clear the scroll/addr write latch")
	}
}

func TestOAMAddrAndDataRoundTrip(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2003, 0x10)
	p.WriteRegister(0x2004, 0xAB)
	if p.oam[0x10] != 0xAB {
		t.Fatalf("oam[0x10]=%#02x, want 0xAB", p.oam[0x10])
	}
	if p.oamAddr != 0x11 {
		t.Errorf("oamAddr=%#02x, want increment to 0x11 after a write", p.oamAddr)
	}
}

func TestWriteOAMBypassesOAMAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2003, 0x50)
	p.WriteOAM(0x00, 0x42)
	if p.oam[0x00] != 0x42 {
		t.Fatalf("oam[0]=%#02x, want 0x42", p.oam[0x00])
	}
	if p.oamAddr != 0x50 {
		t.Errorf("WriteOAM should not touch oamAddr, got %#02x", p.oamAddr)
	}
}

func TestScrollWriteTwiceSetsCoarseAndFine(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2005, 0x7D) // coarse X=15, fine X=5
	if p.fineX != 5 {
		t.Errorf("fineX=%d, want 5", p.fineX)
	}
	p.WriteRegister(0x2005, 0x5E) // second write: coarse Y/fine Y
	if p.writeLatch {
		t.Error("latch should toggle back to first-write after the second $2005 write")
	}
}

func TestAddrWriteTwiceSetsVRAMAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2006, 0x23)
	p.WriteRegister(0x2006, 0x45)
	if p.vramAddr != 0x2345 {
		t.Errorf("vramAddr=%#04x, want 0x2345", p.vramAddr)
	}
}

func TestDataReadIsBufferedExceptPalette(t *testing.T) {
	p, cart := newTestPPU()
	cart.chr[0x0010] = 0x77
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2006, 0x10) // vramAddr = $0010, pattern table space
	first := p.ReadRegister(0x2007)
	if first != 0 {
		t.Errorf("first buffered read should return the stale buffer (0), got %#02x", first)
	}
	second := p.ReadRegister(0x2007)
	if second != 0x77 {
		t.Errorf("second read should return the buffered CHR byte, got %#02x", second)
	}
}

func TestDataReadPaletteIsImmediate(t *testing.T) {
	p, _ := newTestPPU()
	p.palette[0x00] = 0x20
	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x00)
	value := p.ReadRegister(0x2007)
	if value != 0x20 {
		t.Errorf("palette read should bypass the buffer, got %#02x want 0x20", value)
	}
}

func TestDataIncrementModeFromCtrl(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x04) // increment by 32
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2007, 0xAA)
	if p.vramAddr != 0x2020 {
		t.Errorf("vramAddr=%#04x, want 0x2020 after a +32 increment write", p.vramAddr)
	}
}

func TestWriteOnlyRegistersReadBackAsIOLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x99)
	if got := p.ReadRegister(0x2000); got != 0x99 {
		t.Errorf("reading PPUCTRL should return the IO latch, got %#02x want 0x99", got)
	}
}

func TestPaletteMirroring(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x10)
	p.WriteRegister(0x2007, 0x0C)
	if p.palette[0x00] != 0x0C {
		t.Errorf("$3F10 should mirror to palette index 0, got %#02x", p.palette[0x00])
	}
}

func TestNametableHorizontalMirroring(t *testing.T) {
	p, cart := newTestPPU()
	cart.mirror = cartridge.MirrorHorizontal
	idxA := p.nametableIndex(0x2000)
	idxB := p.nametableIndex(0x2400)
	idxC := p.nametableIndex(0x2800)
	if idxA != idxB {
		t.Errorf("horizontal mirroring: table 0 and 1 should share storage (%#04x vs %#04x)", idxA, idxB)
	}
	if idxA == idxC {
		t.Error("horizontal mirroring: table 0 and 2 should NOT share storage")
	}
}

func TestNametableVerticalMirroring(t *testing.T) {
	p, cart := newTestPPU()
	cart.mirror = cartridge.MirrorVertical
	idxA := p.nametableIndex(0x2000)
	idxB := p.nametableIndex(0x2800)
	idxC := p.nametableIndex(0x2400)
	if idxA != idxB {
		t.Errorf("vertical mirroring: table 0 and 2 should share storage (%#04x vs %#04x)", idxA, idxB)
	}
	if idxA == idxC {
		t.Error("vertical mirroring: table 0 and 1 should NOT share storage")
	}
}

func TestNMIFiresAtVBlankStartWhenEnabled(t *testing.T) {
	p, _ := newTestPPU()
	fired := false
	p.SetNMICallback(func() { fired = true })
	p.WriteRegister(0x2000, 0x80) // enable NMI generation

	p.scanline = 241
	p.dot = 0
	p.Step() // dot 0 -> 1, should fire

	if !fired {
		t.Error("NMI callback should fire at scanline 241, dot 1, with NMI enabled")
	}
	if !p.IsVBlank() {
		t.Error("vblank flag should be set")
	}
}

func TestNMIDoesNotFireWhenDisabled(t *testing.T) {
	p, _ := newTestPPU()
	fired := false
	p.SetNMICallback(func() { fired = true })

	p.scanline = 241
	p.dot = 0
	p.Step()

	if fired {
		t.Error("NMI callback should not fire when PPUCTRL bit 7 is clear")
	}
}

func TestVBlankClearsAtPreRenderScanline(t *testing.T) {
	p, _ := newTestPPU()
	p.vblank = true
	p.scanline = preRenderScanline
	p.dot = 0
	p.Step()
	if p.IsVBlank() {
		t.Error("vblank should clear at the pre-render scanline, dot 1")
	}
}

func TestFrameCompletesAfterPreRenderScanline(t *testing.T) {
	p, _ := newTestPPU()
	before := p.GetFrameCount()
	p.scanline = preRenderScanline
	p.dot = dotsPerScanline - 1
	p.Step()
	if p.GetFrameCount() != before+1 {
		t.Errorf("frame count=%d, want %d after wrapping past the pre-render scanline", p.GetFrameCount(), before+1)
	}
	if p.scanline != 0 {
		t.Errorf("scanline=%d, want 0 after frame wrap", p.scanline)
	}
}

func TestOddFrameSkipsDotZeroWhenRenderingEnabled(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2001, 0x08) // enable background rendering
	p.oddFrame = false            // about to become true on this wrap
	p.scanline = preRenderScanline
	p.dot = dotsPerScanline - 1
	p.Step()
	if p.dot != 1 {
		t.Errorf("dot=%d, want 1 (dot 0 skipped on odd frame with rendering enabled)", p.dot)
	}
}

func TestSetFrameCountOverride(t *testing.T) {
	p, _ := newTestPPU()
	p.SetFrameCount(42)
	if p.GetFrameCount() != 42 {
		t.Errorf("GetFrameCount()=%d, want 42", p.GetFrameCount())
	}
}
