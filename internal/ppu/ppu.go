// Package ppu implements the NES picture processing unit's CPU-facing
// register ports and scanline/dot timing. It does not synthesize pixels:
// the PPU is out of scope beyond the register contract the CPU and mappers
// observe (vblank/NMI timing, OAM access, the $2007 read-buffer quirk, and
// nametable mirroring). A real rendering frontend is a separate concern.
package ppu

import "gones/internal/cartridge"

const (
	dotsPerScanline     = 341
	scanlinesPerFrame   = 262
	vblankStartScanline = 241
	preRenderScanline   = 261
)

// CartridgeInterface is what the PPU needs from the loaded cartridge: CHR
// access and the mapper's current mirroring mode (MMC1 can change this at
// runtime via its control register, so it's queried live, not cached).
type CartridgeInterface interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirror() cartridge.MirrorMode
}

// PPU is the NES 2C02's register-facing state: the CPU-visible ports,
// internal scroll/address latch, OAM, and enough nametable/palette storage
// to make $2007 and mirroring behave correctly.
type PPU struct {
	ctrl   uint8
	mask   uint8
	oamAddr uint8

	vblank         bool
	sprite0Hit     bool
	spriteOverflow bool

	writeLatch  bool   // shared by $2005/$2006: false=first write, true=second
	vramAddr    uint16 // "v": current VRAM address
	tempAddr    uint16 // "t": buffered address, copied to v on the second $2006 write
	fineX       uint8
	readBuffer  uint8 // $2007 read buffer, covers everything except palette space
	ioLatch     uint8 // last byte written to any register; what write-only registers read back as

	oam [256]uint8

	nametables [0x800]uint8
	palette    [32]uint8

	cart CartridgeInterface

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	nmiCallback           func()
	frameCompleteCallback func()
}

// New creates a PPU. cart may be nil; it must be set via SetCartridge
// before CHR or nametable-mirroring-dependent registers are touched.
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// SetCartridge installs (or replaces) the cartridge the PPU reads CHR and
// mirroring mode from.
func (p *PPU) SetCartridge(cart CartridgeInterface) {
	p.cart = cart
}

// SetNMICallback installs the function called when vblank starts while NMI
// generation is enabled in PPUCTRL.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback installs the function called once per completed
// frame (the end of the pre-render scanline).
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// Reset returns the PPU to its power-up state.
func (p *PPU) Reset() {
	p.ctrl = 0
	p.mask = 0
	p.oamAddr = 0
	p.vblank = false
	p.sprite0Hit = false
	p.spriteOverflow = false
	p.writeLatch = false
	p.vramAddr = 0
	p.tempAddr = 0
	p.fineX = 0
	p.readBuffer = 0
	p.ioLatch = 0
	p.scanline = 0
	p.dot = 0
	p.oddFrame = false

	for i := 0; i < 32; i += 4 {
		p.palette[i] = 0x0F // background color entries power up black
	}
}

// ReadRegister reads one of the eight CPU-visible PPU ports ($2000-$2007,
// already demirrored by the bus). Write-only ports return the IO bus latch:
// the last byte written to any PPU register, per real hardware's open-bus
// behavior for ports that have nothing of their own to drive the bus with.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		value := p.ioLatch & 0x1F
		if p.vblank {
			value |= 0x80
		}
		if p.sprite0Hit {
			value |= 0x40
		}
		if p.spriteOverflow {
			value |= 0x20
		}
		p.vblank = false
		p.writeLatch = false
		p.ioLatch = value
		return value
	case 0x2004:
		value := p.oam[p.oamAddr]
		p.ioLatch = value
		return value
	case 0x2007:
		value := p.readPPUData()
		p.ioLatch = value
		return value
	default:
		return p.ioLatch
	}
}

// WriteRegister writes one of the eight CPU-visible PPU ports.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.ioLatch = value
	switch address {
	case 0x2000:
		p.ctrl = value
	case 0x2001:
		p.mask = value
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writeScroll(value)
	case 0x2006:
		p.writeAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes directly into OAM, bypassing OAMADDR/OAMDATA. Used by the
// bus's OAM DMA implementation, which transfers all 256 bytes in one burst.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

func (p *PPU) writeScroll(value uint8) {
	if !p.writeLatch {
		p.fineX = value & 0x07
		p.tempAddr = (p.tempAddr &^ 0x001F) | uint16(value>>3)
	} else {
		p.tempAddr = (p.tempAddr &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value&0xF8) << 2)
	}
	p.writeLatch = !p.writeLatch
}

func (p *PPU) writeAddr(value uint8) {
	if !p.writeLatch {
		p.tempAddr = (p.tempAddr & 0x00FF) | (uint16(value&0x3F) << 8)
	} else {
		p.tempAddr = (p.tempAddr & 0xFF00) | uint16(value)
		p.vramAddr = p.tempAddr
	}
	p.writeLatch = !p.writeLatch
}

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

// readPPUData implements the $2007 buffered-read quirk: reading anywhere
// except palette space returns the PREVIOUS read's value and refills the
// buffer from the new address; palette reads bypass the buffer and return
// immediately (while still refilling it from the nametable underneath the
// palette mirror, which is what real hardware does).
func (p *PPU) readPPUData() uint8 {
	address := p.vramAddr & 0x3FFF
	var value uint8
	if address >= 0x3F00 {
		value = p.readPalette(address)
		p.readBuffer = p.readNametable(address - 0x1000)
	} else {
		value = p.readBuffer
		p.readBuffer = p.readMemory(address)
	}
	p.vramAddr += p.vramIncrement()
	return value
}

func (p *PPU) writePPUData(value uint8) {
	p.writeMemory(p.vramAddr&0x3FFF, value)
	p.vramAddr += p.vramIncrement()
}

func (p *PPU) readMemory(address uint16) uint8 {
	switch {
	case address < 0x2000:
		if p.cart != nil {
			return p.cart.ReadCHR(address)
		}
		return 0
	case address < 0x3F00:
		return p.readNametable(address)
	default:
		return p.readPalette(address)
	}
}

func (p *PPU) writeMemory(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		if p.cart != nil {
			p.cart.WriteCHR(address, value)
		}
	case address < 0x3F00:
		p.writeNametable(address, value)
	default:
		p.writePalette(address, value)
	}
}

func (p *PPU) readNametable(address uint16) uint8 {
	return p.nametables[p.nametableIndex(address)]
}

func (p *PPU) writeNametable(address uint16, value uint8) {
	p.nametables[p.nametableIndex(address)] = value
}

// nametableIndex folds a $2000-$3EFF nametable address down to one of the
// two physical 1 KiB banks according to the cartridge's current mirroring.
func (p *PPU) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := (address >> 10) & 0x3
	offset := address & 0x3FF

	mirror := cartridge.MirrorHorizontal
	if p.cart != nil {
		mirror = p.cart.Mirror()
	}

	switch mirror {
	case cartridge.MirrorVertical:
		if table == 1 || table == 3 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		// Only 2 KiB of nametable RAM is modeled; four-screen cartridges
		// carry their own extra VRAM, which this stub does not back.
		return (uint16(table) % 2) * 0x400 + offset
	default: // MirrorHorizontal
		if table >= 2 {
			return 0x400 + offset
		}
		return offset
	}
}

func (p *PPU) readPalette(address uint16) uint8 {
	index := paletteIndex(address)
	return p.palette[index]
}

func (p *PPU) writePalette(address uint16, value uint8) {
	index := paletteIndex(address)
	p.palette[index] = value
}

func paletteIndex(address uint16) uint16 {
	index := (address - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	return index
}

func (p *PPU) renderingEnabled() bool {
	return p.mask&0x18 != 0
}

// RenderingEnabled reports whether background or sprite rendering is
// currently enabled, read directly from PPUMASK rather than through the
// CPU-facing register port (which would return the stale IO latch instead,
// since PPUMASK is write-only from the CPU's side).
func (p *PPU) RenderingEnabled() bool {
	return p.renderingEnabled()
}

// Step advances the PPU by one dot (one PPU clock, 1/3 of a CPU clock).
// Only the timing events the CPU and mappers care about are modeled:
// vblank start/end and NMI assertion, each fired by the step that arrives
// at dot 1 of its scanline. On odd frames with rendering enabled, the wrap
// after the pre-render scanline lands on dot 1 of scanline 0, skipping dot 0.
func (p *PPU) Step() {
	p.dot++
	if p.dot > dotsPerScanline-1 {
		p.dot = 0
		p.scanline++
		if p.scanline > preRenderScanline {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
			if p.oddFrame && p.renderingEnabled() {
				p.dot = 1
			}
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	switch {
	case p.scanline == vblankStartScanline && p.dot == 1:
		p.vblank = true
		if p.ctrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	case p.scanline == preRenderScanline && p.dot == 1:
		p.vblank = false
		p.sprite0Hit = false
		p.spriteOverflow = false
	}
}

// GetFrameCount returns the number of frames completed.
func (p *PPU) GetFrameCount() uint64 { return p.frame }

// SetFrameCount overrides the frame counter, used to resynchronize after
// the bus rebuilds its component graph on cartridge load.
func (p *PPU) SetFrameCount(count uint64) { p.frame = count }

// IsVBlank reports whether the PPU is currently in its vertical blank period.
func (p *PPU) IsVBlank() bool { return p.vblank }

// Scanline and Dot expose the current raster position, useful for tests and
// for a frontend that wants to know where the PPU is without decoding it
// from register reads.
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) Dot() int      { return p.dot }

// DebugNametables returns a copy of the 2 KiB nametable store. There is no
// tile/attribute decode behind this: a debug frontend that wants to show
// something other than raw tile indices has to do that decoding itself.
func (p *PPU) DebugNametables() [0x800]uint8 { return p.nametables }

// DebugOAM returns a copy of the 256-byte OAM, 4 bytes per sprite
// (Y, tile index, attributes, X), in PPU order.
func (p *PPU) DebugOAM() [256]uint8 { return p.oam }

// DebugPalette returns a copy of the 32-byte palette RAM.
func (p *PPU) DebugPalette() [32]uint8 { return p.palette }
