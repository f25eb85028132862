// Package memory implements the NES CPU address bus: decoding the 16-bit
// CPU address space out to internal RAM, PPU/APU register ports, the
// controller ports and the cartridge.
package memory

// Memory is the CPU's view of the NES address space ($0000-$FFFF).
type Memory struct {
	ram [0x800]uint8 // 2 KiB internal RAM, mirrored through $1FFF

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8)
}

// PPUInterface is what the bus needs from the PPU: register-port access.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface is what the bus needs from the APU: register-port access.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface is what the bus needs from the controller ports.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is what the bus needs from the loaded cartridge.
// *cartridge.Cartridge satisfies this directly.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// New creates a Memory wired to the given PPU/APU ports and cartridge. cart
// may be nil (no cartridge inserted); reads from cartridge space then fall
// back to the open-bus value.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	m := &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
	m.initializePowerUpRAM()
	return m
}

// SetInputSystem wires the controller ports in after construction, since the
// bus builds Memory before it builds Input.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback installs the OAM DMA trigger. Without one, writes to $4014
// perform the transfer inline rather than stalling the CPU for 513/514
// cycles, which is only adequate for tests that don't care about DMA timing.
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// initializePowerUpRAM fills RAM with a non-zero pattern on construction.
// Real NES RAM does not power up to all zeros; a fixed alternating pattern
// is close enough for software that (incorrectly, but commonly) depends on
// uninitialized RAM not reading back as zero.
func (m *Memory) initializePowerUpRAM() {
	for i := range m.ram {
		if i%2 == 0 {
			m.ram[i] = 0x00
		} else {
			m.ram[i] = 0xFF
		}
	}
}

// openBus returns the value an unmapped read floats to: the high byte of
// the address being read, which is what's left driving the bus from the
// preceding address-bus-high fetch cycle on real hardware.
func openBus(address uint16) uint8 {
	return uint8(address >> 8)
}

// Read reads a byte from CPU address space.
func (m *Memory) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.ram[address&0x07FF]

	case address < 0x4000:
		return m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch {
		case address == 0x4015:
			return m.apuRegisters.ReadStatus()
		case address == 0x4016 || address == 0x4017:
			if m.inputSystem != nil {
				return m.inputSystem.Read(address)
			}
			return 0
		default:
			// Write-only APU registers and the unused $4018-$401F range.
			return openBus(address)
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			return m.cartridge.ReadPRG(address)
		}
		return openBus(address)

	case address < 0x8000:
		// Cartridge expansion area, $4020-$5FFF: unmapped for NROM/MMC1.
		return openBus(address)

	default:
		if m.cartridge != nil {
			return m.cartridge.ReadPRG(address)
		}
		return openBus(address)
	}
}

// Write writes a byte to CPU address space.
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if m.dmaCallback != nil {
				m.dmaCallback(value)
			} else {
				m.performOAMDMA(value)
			}
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address >= 0x4000 && address <= 0x4013, address == 0x4015, address == 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		}
		// $4018-$401F (APU/IO test registers) are not implemented and ignore writes.

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// Cartridge expansion area: unmapped, writes are dropped.

	default:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// performOAMDMA runs an immediate (non-stalling) OAM DMA transfer. The bus
// installs a DMA callback that instead models the 513/514-cycle CPU stall;
// this path only exists so Memory is independently usable without one.
func (m *Memory) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppuRegisters.WriteRegister(0x2004, m.Read(base+i))
	}
}
