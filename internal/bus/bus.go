// Package bus wires the CPU, PPU, APU, controllers and cartridge together
// into a runnable NES system and drives their relative timing.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// CartridgeInterface is what the bus needs from a loaded cartridge: the
// memory bus's PRG/CHR access plus the mirroring mode the PPU reads for
// nametable decoding. *cartridge.Cartridge satisfies this directly.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirror() cartridge.MirrorMode
}

// Bus owns every NES component and steps them in lockstep: one CPU
// instruction per Step call, with the PPU advanced 3 dots per CPU cycle
// and the APU advanced 1 cycle per CPU cycle.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cartridge CartridgeInterface

	cpuCycles  uint64
	frameCount uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool

	memoryWatchpoints map[uint16]uint8
	watchpointLogging bool
}

// New creates a fully wired but cartridge-less Bus. LoadCartridge must be
// called before Step will do anything useful, since reads above $4020
// otherwise fall back to open bus.
func New() *Bus {
	b := &Bus{
		PPU:               ppu.New(),
		APU:               apu.New(),
		Input:             input.NewInputState(),
		memoryWatchpoints: make(map[uint16]uint8),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(func() { b.CPU.SetNMI(true) })
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.Reset()
	return b
}

// Reset returns every component to its power-up/reset state without
// disturbing the loaded cartridge.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	// CPU.Reset() itself consumes 7 cycles (five settle reads, two vector
	// reads); start the bus's own counter there so it stays in lockstep
	// with CPU.Cycles() instead of silently running 7 cycles behind.
	b.cpuCycles = b.CPU.Cycles()
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false

	b.PPU.SetFrameCount(0)
	b.memoryWatchpoints = make(map[uint16]uint8)
}

func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step executes one CPU instruction (or one cycle of DMA stall) and
// advances the PPU and APU by the matching number of cycles. It returns
// the error the CPU reports, if any (notably ErrBadOpcode), leaving the
// caller to decide whether a bad opcode is fatal for its use case.
func (b *Bus) Step() error {
	var cpuCycles uint64

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		cycles, err := b.CPU.Step()
		if err != nil {
			return err
		}
		cpuCycles = cycles
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		b.PPU.Step()
	}
	// The PPU callback only raises the NMI line; lower it whenever vblank is
	// clear so that the next vblank start is a fresh rising edge.
	if !b.PPU.IsVBlank() {
		b.CPU.SetNMI(false)
	}
	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}
	b.CPU.SetIRQ(b.APU.IRQPending())

	b.cpuCycles += cpuCycles
	return nil
}

// TriggerOAMDMA performs an OAM DMA transfer from the given CPU memory page
// and schedules the corresponding 513/514-cycle CPU stall.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}
	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
}

// LoadCartridge inserts a cartridge, rebuilding Memory and the CPU around
// it, and resets the CPU so PC picks up the new reset vector.
func (b *Bus) LoadCartridge(cart CartridgeInterface) {
	b.cartridge = cart
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)
	b.PPU.SetCartridge(cart)

	b.PPU.SetNMICallback(func() { b.CPU.SetNMI(true) })
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
	b.cpuCycles = b.CPU.Cycles()
}

// Run advances the system by the given number of complete frames.
func (b *Bus) Run(frames int) error {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles advances the system by at least the given number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) error {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// GetCycleCount returns the total CPU cycles executed.
func (b *Bus) GetCycleCount() uint64 { return b.cpuCycles }

// GetFrameCount returns the number of frames the PPU has completed.
func (b *Bus) GetFrameCount() uint64 { return b.frameCount }

// IsDMAInProgress reports whether an OAM DMA transfer is currently
// suspending the CPU.
func (b *Bus) IsDMAInProgress() bool { return b.dmaInProgress }

// SetControllerButton sets a single button's state on controller 1 or 2.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states for controller 1 or 2
// at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the underlying input state for direct access.
func (b *Bus) GetInputState() *input.InputState { return b.Input }

// Frame advances the system by exactly one NTSC frame's worth of CPU
// cycles (29781, the rounded-up average of 89342 PPU cycles / 3).
func (b *Bus) Frame() error {
	return b.RunCycles(29781)
}

// AddMemoryWatchpoint records an address's current value so later changes
// can be detected with CheckMemoryWatchpoints.
func (b *Bus) AddMemoryWatchpoint(address uint16) {
	if b.Memory != nil {
		b.memoryWatchpoints[address] = b.Memory.Read(address)
	}
}

// EnableWatchpointLogging turns watchpoint change tracking on or off.
func (b *Bus) EnableWatchpointLogging(enabled bool) {
	b.watchpointLogging = enabled
}

// CheckMemoryWatchpoints returns the set of watched addresses whose value
// has changed since they were added (or since the last check), updating
// the stored baseline as it goes.
func (b *Bus) CheckMemoryWatchpoints() map[uint16]uint8 {
	changed := make(map[uint16]uint8)
	if !b.watchpointLogging || b.Memory == nil {
		return changed
	}
	for address, previous := range b.memoryWatchpoints {
		current := b.Memory.Read(address)
		if current != previous {
			changed[address] = current
			b.memoryWatchpoints[address] = current
		}
	}
	return changed
}

// EnableCPUDebug turns per-instruction CPU tracing and loop detection on
// or off.
func (b *Bus) EnableCPUDebug(enable bool) {
	b.CPU.EnableDebugLogging(enable)
	b.CPU.EnableLoopDetection(enable)
}

// CPUState is a snapshot of CPU registers and flags, useful for tests and
// debuggers that want the whole picture in one call.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags is a snapshot of the CPU's processor status flags.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetCPUState returns a snapshot of the current CPU state.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// PPUState is a snapshot of PPU raster position and status, useful for
// tests that want to assert on timing without decoding registers by hand.
type PPUState struct {
	Scanline    int
	Dot         int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// GetPPUState returns a snapshot of the current PPU state.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.Scanline(),
		Dot:         b.PPU.Dot(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.isRenderingEnabled(),
	}
}

func (b *Bus) isRenderingEnabled() bool {
	return b.PPU.RenderingEnabled()
}
