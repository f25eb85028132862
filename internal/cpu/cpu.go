// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrBadOpcode is returned by Step when the fetched opcode has no entry in
// the documented instruction table. The NES CPU never encounters one of
// these in a working ROM; when it does, execution cannot continue
// meaningfully, so the caller decides how to surface it rather than have
// the CPU silently treat it as a NOP.
var ErrBadOpcode = errors.New("cpu: bad opcode")

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Instruction describes one documented opcode: its mnemonic, encoded length,
// base cycle count and addressing mode. Cycle counts exclude page-crossing
// and branch-taken penalties, which Step accounts for separately.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// CPU is a MOS 6502 core wired to an arbitrary 16-bit address space through
// MemoryInterface. It implements only the 151 documented opcodes; anything
// else is a hard error from Step rather than a silent NOP.
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal (present but never consulted; the NES 2A03 ignores it)
	B bool // Break (only meaningful in the pushed status byte)
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface

	cycles uint64

	instructions [256]*Instruction

	nmiLine    bool // current level of the NMI input, for edge detection
	nmiPending bool
	irqPending bool // IRQ is level-triggered: asserted for as long as a source holds it

	enableDebugLogging  bool
	enableLoopDetection bool
	lastPC              uint16
	pcStayCount         int
}

// MemoryInterface is the CPU's view of the address bus.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// New creates a CPU wired to the given bus. Call Reset before running it.
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{
		memory: memory,
		SP:     0xFD,
	}
	cpu.initInstructions()
	return cpu
}

// Reset runs the 6502's power/reset sequence: five bus reads while the
// internal state machine settles, then two reads of the reset vector. Seven
// cycles total, matching real hardware and nestest's expectations.
func (cpu *CPU) Reset() {
	cpu.A = 0x00
	cpu.X = 0x00
	cpu.Y = 0x00
	cpu.SP = 0xFD

	cpu.C = false
	cpu.Z = false
	cpu.I = true
	cpu.D = false
	cpu.B = true
	cpu.V = false
	cpu.N = false

	for i := 0; i < 5; i++ {
		cpu.memory.Read(cpu.PC)
		cpu.cycles++
	}

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 2
}

// Step executes exactly one unit of CPU work and returns the cycles it took.
//
// If an NMI or IRQ is pending, that takes priority over instruction fetch:
// servicing an interrupt is its own Step call, always 7 cycles, never folded
// onto the instruction that preceded it. Otherwise Step fetches, decodes and
// executes the instruction at PC. An opcode outside the documented table
// returns ErrBadOpcode and zero cycles; PC is left unmoved so the caller can
// inspect or halt.
func (cpu *CPU) Step() (uint64, error) {
	if cpu.nmiPending {
		cpu.nmiPending = false
		cycles := cpu.serviceInterrupt(nmiVector, false)
		cpu.cycles += cycles
		return cycles, nil
	}
	if cpu.irqPending && !cpu.I {
		cycles := cpu.serviceInterrupt(irqVector, false)
		cpu.cycles += cycles
		return cycles, nil
	}

	currentPC := cpu.PC
	opcode := cpu.memory.Read(cpu.PC)
	instruction := cpu.instructions[opcode]

	if instruction == nil {
		return 0, fmt.Errorf("%w: $%02X at $%04X", ErrBadOpcode, opcode, currentPC)
	}

	if cpu.enableLoopDetection {
		cpu.detectInfiniteLoop(currentPC, opcode)
	}
	if cpu.enableDebugLogging {
		cpu.logInstruction(currentPC, opcode, instruction)
	}

	address, pageCrossed := cpu.getOperandAddress(instruction.Mode)
	extraCycles := cpu.executeInstruction(opcode, address, pageCrossed)

	// Store instructions' table entries already cost the indexed-addressing
	// penalty unconditionally (there is no speculative read to skip, so the
	// cycle count never varies with whether the index actually crosses a
	// page). Only read instructions pay extra, and only when it crosses.
	if pageCrossed {
		switch opcode {
		case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31, 0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1, 0xFD, 0xF9, 0xF1:
			extraCycles++
		}
		// Branch instructions compute their own page-cross penalty below.
	}

	totalCycles := uint64(instruction.Cycles) + uint64(extraCycles)
	cpu.cycles += totalCycles
	return totalCycles, nil
}

// serviceInterrupt pushes PC and status and loads the given vector. If vector
// is the IRQ vector and an NMI has asserted in the meantime, the fetch is
// hijacked to the NMI vector instead — the same hijacking BRK is subject to,
// since by this point the status push has already happened and the two
// paths are indistinguishable to the 6502's interrupt logic.
func (cpu *CPU) serviceInterrupt(vector uint16, brk bool) uint64 {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ uint8(bFlagMask)
	status |= unusedMask
	if brk {
		status |= bFlagMask
	}
	cpu.push(status)
	cpu.I = true

	if vector == irqVector && cpu.nmiPending {
		cpu.nmiPending = false
		vector = nmiVector
	}

	low := uint16(cpu.memory.Read(vector))
	high := uint16(cpu.memory.Read(vector + 1))
	cpu.PC = (high << 8) | low
	return 7
}

// getOperandAddress returns the effective address for mode and advances PC
// past the instruction's operand bytes. The bool reports whether forming the
// address crossed a page boundary (relevant to cycle timing).
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		address := cpu.PC + 1
		cpu.PC += 2
		return address, false

	case ZeroPage:
		address := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return address, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC // branch functions overwrite this if taken
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		cpu.PC += 3
		return (high << 8) | low, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.X)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case Indirect: // JMP only
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var address uint16
		if (ptr & zeroPageMask) == zeroPageMask {
			// Hardware bug: the high byte wraps to the start of the same page
			// instead of crossing into the next one.
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			address = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			address = (high << 8) | low
		}
		cpu.PC += 3
		return address, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		cpu.PC += 2
		return (high << 8) | low, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 2
		return address, (base & pageMask) != (address & pageMask)

	default:
		return 0, false
	}
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

// SetNMI updates the level of the PPU's NMI output. A low-to-high transition
// latches a pending NMI; holding the line high does not retrigger one.
func (cpu *CPU) SetNMI(state bool) {
	if state && !cpu.nmiLine {
		cpu.nmiPending = true
	}
	cpu.nmiLine = state
}

// SetIRQ sets the level of the shared IRQ line. Unlike NMI this is
// level-triggered: it stays pending for as long as a source holds it low.
func (cpu *CPU) SetIRQ(state bool) {
	cpu.irqPending = state
}

// TriggerNMI latches a pending NMI directly, bypassing edge detection.
func (cpu *CPU) TriggerNMI() {
	cpu.nmiPending = true
}

// TriggerIRQ asserts the IRQ line directly.
func (cpu *CPU) TriggerIRQ() {
	cpu.irqPending = true
}

// GetStatusByte packs the flags into the processor status byte. Bit 5 is
// unused on real hardware and always reads back as 1.
func (cpu *CPU) GetStatusByte() uint8 {
	var status uint8
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	status |= unusedMask
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte unpacks a processor status byte into the flags.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = (status & nFlagMask) != 0
	cpu.V = (status & vFlagMask) != 0
	cpu.B = (status & bFlagMask) != 0
	cpu.D = (status & dFlagMask) != 0
	cpu.I = (status & iFlagMask) != 0
	cpu.Z = (status & zFlagMask) != 0
	cpu.C = (status & cFlagMask) != 0
}

// --- Instruction bodies ---
// Each returns extra cycles beyond the instruction's base cycle count
// (always 0 for non-branch instructions; branches compute their own).

func (cpu *CPU) lda(address uint16) uint8 {
	cpu.A = cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ldx(address uint16) uint8 {
	cpu.X = cpu.memory.Read(address)
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) ldy(address uint16) uint8 {
	cpu.Y = cpu.memory.Read(address)
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) sta(address uint16) uint8 {
	cpu.memory.Write(address, cpu.A)
	return 0
}

func (cpu *CPU) stx(address uint16) uint8 {
	cpu.memory.Write(address, cpu.X)
	return 0
}

func (cpu *CPU) sty(address uint16) uint8 {
	cpu.memory.Write(address, cpu.Y)
	return 0
}

// adc and sbc share the same overflow test: V is set when the operand and
// result disagree in sign with the accumulator's original sign, i.e.
// ~(A^operand) & (A^result) & 0x80. sbc feeds adc's logic the ones'
// complement of the memory operand, which is the standard trick for reusing
// binary addition to perform subtraction with borrow.
func (cpu *CPU) adc(address uint16) uint8 {
	value := cpu.memory.Read(address)
	return cpu.addWithCarry(value)
}

func (cpu *CPU) sbc(address uint16) uint8 {
	value := cpu.memory.Read(address) ^ 0xFF
	return cpu.addWithCarry(value)
}

func (cpu *CPU) addWithCarry(value uint8) uint8 {
	carry := uint8(0)
	if cpu.C {
		carry = 1
	}
	result := uint16(cpu.A) + uint16(value) + uint16(carry)
	cpu.V = (^(cpu.A^value)&(cpu.A^uint8(result)))&nFlagMask != 0
	cpu.C = result > 0xFF
	cpu.A = uint8(result)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) and(address uint16) uint8 {
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ora(address uint16) uint8 {
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) eor(address uint16) uint8 {
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) asl(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x80) != 0
	value <<= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) lsr(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x01) != 0
	value >>= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) rol(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x80) != 0
	value <<= 1
	if oldCarry {
		value |= 0x01
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) ror(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x01) != 0
	value >>= 1
	if oldCarry {
		value |= 0x80
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) cmp(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = cpu.A >= value
	cpu.setZN(cpu.A - value)
	return 0
}

func (cpu *CPU) cpx(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = cpu.X >= value
	cpu.setZN(cpu.X - value)
	return 0
}

func (cpu *CPU) cpy(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = cpu.Y >= value
	cpu.setZN(cpu.Y - value)
	return 0
}

func (cpu *CPU) inc(address uint16) uint8 {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) dec(address uint16) uint8 {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) inx(uint16) uint8 {
	cpu.X++
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) dex(uint16) uint8 {
	cpu.X--
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) iny(uint16) uint8 {
	cpu.Y++
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) dey(uint16) uint8 {
	cpu.Y--
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tax(uint16) uint8 {
	cpu.X = cpu.A
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txa(uint16) uint8 {
	cpu.A = cpu.X
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tay(uint16) uint8 {
	cpu.Y = cpu.A
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tya(uint16) uint8 {
	cpu.A = cpu.Y
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tsx(uint16) uint8 {
	cpu.X = cpu.SP
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txs(uint16) uint8 {
	cpu.SP = cpu.X
	return 0
}

func (cpu *CPU) pha(uint16) uint8 {
	cpu.push(cpu.A)
	return 0
}

func (cpu *CPU) pla(uint16) uint8 {
	cpu.A = cpu.pop()
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) php(uint16) uint8 {
	cpu.push(cpu.GetStatusByte() | bFlagMask)
	return 0
}

func (cpu *CPU) plp(uint16) uint8 {
	cpu.SetStatusByte(cpu.pop())
	return 0
}

func (cpu *CPU) clc(uint16) uint8 { cpu.C = false; return 0 }
func (cpu *CPU) sec(uint16) uint8 { cpu.C = true; return 0 }
func (cpu *CPU) cli(uint16) uint8 { cpu.I = false; return 0 }
func (cpu *CPU) sei(uint16) uint8 { cpu.I = true; return 0 }
func (cpu *CPU) clv(uint16) uint8 { cpu.V = false; return 0 }
func (cpu *CPU) cld(uint16) uint8 { cpu.D = false; return 0 }
func (cpu *CPU) sed(uint16) uint8 { cpu.D = true; return 0 }

func (cpu *CPU) jmp(address uint16) uint8 {
	cpu.PC = address
	return 0
}

func (cpu *CPU) jsr(address uint16) uint8 {
	cpu.pushWord(cpu.PC - 1)
	cpu.PC = address
	return 0
}

func (cpu *CPU) rts(uint16) uint8 {
	cpu.PC = cpu.popWord() + 1
	return 0
}

func (cpu *CPU) rti(uint16) uint8 {
	cpu.SetStatusByte(cpu.pop())
	cpu.PC = cpu.popWord()
	return 0
}

func (cpu *CPU) bcc(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.C, address, pageCrossed) }
func (cpu *CPU) bcs(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.C, address, pageCrossed) }
func (cpu *CPU) bne(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.Z, address, pageCrossed) }
func (cpu *CPU) beq(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.Z, address, pageCrossed) }
func (cpu *CPU) bpl(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.N, address, pageCrossed) }
func (cpu *CPU) bmi(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.N, address, pageCrossed) }
func (cpu *CPU) bvc(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.V, address, pageCrossed) }
func (cpu *CPU) bvs(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.V, address, pageCrossed) }

func (cpu *CPU) branch(taken bool, address uint16, pageCrossed bool) uint8 {
	if !taken {
		return 0
	}
	cpu.PC = address
	if pageCrossed {
		return 2
	}
	return 1
}

func (cpu *CPU) bit(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.N = (value & nFlagMask) != 0
	cpu.V = (value & vFlagMask) != 0
	cpu.Z = (cpu.A & value) == 0
	return 0
}

func (cpu *CPU) nop(uint16) uint8 { return 0 }

// brk pushes PC+2 (the opcode's one real byte plus a padding byte) and the
// status with B set, then loads the IRQ vector — unless an NMI has asserted
// since fetch, in which case the vector fetch is hijacked to $FFFA.
func (cpu *CPU) brk(uint16) uint8 {
	cpu.PC++ // padding byte
	cpu.serviceInterrupt(irqVector, true)
	return 0
}

// executeInstruction dispatches a documented opcode to its handler and
// returns any extra cycles beyond the instruction's table entry.
func (cpu *CPU) executeInstruction(opcode uint8, address uint16, pageCrossed bool) uint8 {
	switch opcode {
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		return cpu.lda(address)
	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		return cpu.ldx(address)
	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		return cpu.ldy(address)
	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		return cpu.sta(address)
	case 0x86, 0x96, 0x8E:
		return cpu.stx(address)
	case 0x84, 0x94, 0x8C:
		return cpu.sty(address)

	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		return cpu.adc(address)
	case 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1:
		return cpu.sbc(address)

	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		return cpu.and(address)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		return cpu.ora(address)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		return cpu.eor(address)

	case 0x0A:
		cpu.C = (cpu.A & 0x80) != 0
		cpu.A <<= 1
		cpu.setZN(cpu.A)
		return 0
	case 0x06, 0x16, 0x0E, 0x1E:
		return cpu.asl(address)
	case 0x4A:
		cpu.C = (cpu.A & 0x01) != 0
		cpu.A >>= 1
		cpu.setZN(cpu.A)
		return 0
	case 0x46, 0x56, 0x4E, 0x5E:
		return cpu.lsr(address)
	case 0x2A:
		oldCarry := cpu.C
		cpu.C = (cpu.A & 0x80) != 0
		cpu.A <<= 1
		if oldCarry {
			cpu.A |= 0x01
		}
		cpu.setZN(cpu.A)
		return 0
	case 0x26, 0x36, 0x2E, 0x3E:
		return cpu.rol(address)
	case 0x6A:
		oldCarry := cpu.C
		cpu.C = (cpu.A & 0x01) != 0
		cpu.A >>= 1
		if oldCarry {
			cpu.A |= 0x80
		}
		cpu.setZN(cpu.A)
		return 0
	case 0x66, 0x76, 0x6E, 0x7E:
		return cpu.ror(address)

	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		return cpu.cmp(address)
	case 0xE0, 0xE4, 0xEC:
		return cpu.cpx(address)
	case 0xC0, 0xC4, 0xCC:
		return cpu.cpy(address)

	case 0xE6, 0xF6, 0xEE, 0xFE:
		return cpu.inc(address)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		return cpu.dec(address)
	case 0xE8:
		return cpu.inx(address)
	case 0xCA:
		return cpu.dex(address)
	case 0xC8:
		return cpu.iny(address)
	case 0x88:
		return cpu.dey(address)

	case 0xAA:
		return cpu.tax(address)
	case 0x8A:
		return cpu.txa(address)
	case 0xA8:
		return cpu.tay(address)
	case 0x98:
		return cpu.tya(address)
	case 0xBA:
		return cpu.tsx(address)
	case 0x9A:
		return cpu.txs(address)

	case 0x48:
		return cpu.pha(address)
	case 0x68:
		return cpu.pla(address)
	case 0x08:
		return cpu.php(address)
	case 0x28:
		return cpu.plp(address)

	case 0x18:
		return cpu.clc(address)
	case 0x38:
		return cpu.sec(address)
	case 0x58:
		return cpu.cli(address)
	case 0x78:
		return cpu.sei(address)
	case 0xB8:
		return cpu.clv(address)
	case 0xD8:
		return cpu.cld(address)
	case 0xF8:
		return cpu.sed(address)

	case 0x4C, 0x6C:
		return cpu.jmp(address)
	case 0x20:
		return cpu.jsr(address)
	case 0x60:
		return cpu.rts(address)
	case 0x40:
		return cpu.rti(address)

	case 0x90:
		return cpu.bcc(address, pageCrossed)
	case 0xB0:
		return cpu.bcs(address, pageCrossed)
	case 0xD0:
		return cpu.bne(address, pageCrossed)
	case 0xF0:
		return cpu.beq(address, pageCrossed)
	case 0x10:
		return cpu.bpl(address, pageCrossed)
	case 0x30:
		return cpu.bmi(address, pageCrossed)
	case 0x50:
		return cpu.bvc(address, pageCrossed)
	case 0x70:
		return cpu.bvs(address, pageCrossed)

	case 0x24, 0x2C:
		return cpu.bit(address)
	case 0xEA:
		return cpu.nop(address)
	case 0x00:
		return cpu.brk(address)

	default:
		// Unreachable: Step rejects any opcode without a table entry before
		// executeInstruction is ever called with it.
		return 0
	}
}

// initInstructions populates the lookup table with the 151 documented 6502
// opcodes. Entries left nil are the illegal/unofficial opcodes; Step treats
// fetching one of them as ErrBadOpcode.
func (cpu *CPU) initInstructions() {
	cpu.instructions[0xA9] = &Instruction{"LDA", 0xA9, 2, 2, Immediate}
	cpu.instructions[0xA5] = &Instruction{"LDA", 0xA5, 2, 3, ZeroPage}
	cpu.instructions[0xB5] = &Instruction{"LDA", 0xB5, 2, 4, ZeroPageX}
	cpu.instructions[0xAD] = &Instruction{"LDA", 0xAD, 3, 4, Absolute}
	cpu.instructions[0xBD] = &Instruction{"LDA", 0xBD, 3, 4, AbsoluteX}
	cpu.instructions[0xB9] = &Instruction{"LDA", 0xB9, 3, 4, AbsoluteY}
	cpu.instructions[0xA1] = &Instruction{"LDA", 0xA1, 2, 6, IndexedIndirect}
	cpu.instructions[0xB1] = &Instruction{"LDA", 0xB1, 2, 5, IndirectIndexed}

	cpu.instructions[0xA2] = &Instruction{"LDX", 0xA2, 2, 2, Immediate}
	cpu.instructions[0xA6] = &Instruction{"LDX", 0xA6, 2, 3, ZeroPage}
	cpu.instructions[0xB6] = &Instruction{"LDX", 0xB6, 2, 4, ZeroPageY}
	cpu.instructions[0xAE] = &Instruction{"LDX", 0xAE, 3, 4, Absolute}
	cpu.instructions[0xBE] = &Instruction{"LDX", 0xBE, 3, 4, AbsoluteY}

	cpu.instructions[0xA0] = &Instruction{"LDY", 0xA0, 2, 2, Immediate}
	cpu.instructions[0xA4] = &Instruction{"LDY", 0xA4, 2, 3, ZeroPage}
	cpu.instructions[0xB4] = &Instruction{"LDY", 0xB4, 2, 4, ZeroPageX}
	cpu.instructions[0xAC] = &Instruction{"LDY", 0xAC, 3, 4, Absolute}
	cpu.instructions[0xBC] = &Instruction{"LDY", 0xBC, 3, 4, AbsoluteX}

	cpu.instructions[0x85] = &Instruction{"STA", 0x85, 2, 3, ZeroPage}
	cpu.instructions[0x95] = &Instruction{"STA", 0x95, 2, 4, ZeroPageX}
	cpu.instructions[0x8D] = &Instruction{"STA", 0x8D, 3, 4, Absolute}
	cpu.instructions[0x9D] = &Instruction{"STA", 0x9D, 3, 5, AbsoluteX}
	cpu.instructions[0x99] = &Instruction{"STA", 0x99, 3, 5, AbsoluteY}
	cpu.instructions[0x81] = &Instruction{"STA", 0x81, 2, 6, IndexedIndirect}
	cpu.instructions[0x91] = &Instruction{"STA", 0x91, 2, 6, IndirectIndexed}

	cpu.instructions[0x86] = &Instruction{"STX", 0x86, 2, 3, ZeroPage}
	cpu.instructions[0x96] = &Instruction{"STX", 0x96, 2, 4, ZeroPageY}
	cpu.instructions[0x8E] = &Instruction{"STX", 0x8E, 3, 4, Absolute}

	cpu.instructions[0x84] = &Instruction{"STY", 0x84, 2, 3, ZeroPage}
	cpu.instructions[0x94] = &Instruction{"STY", 0x94, 2, 4, ZeroPageX}
	cpu.instructions[0x8C] = &Instruction{"STY", 0x8C, 3, 4, Absolute}

	cpu.instructions[0x69] = &Instruction{"ADC", 0x69, 2, 2, Immediate}
	cpu.instructions[0x65] = &Instruction{"ADC", 0x65, 2, 3, ZeroPage}
	cpu.instructions[0x75] = &Instruction{"ADC", 0x75, 2, 4, ZeroPageX}
	cpu.instructions[0x6D] = &Instruction{"ADC", 0x6D, 3, 4, Absolute}
	cpu.instructions[0x7D] = &Instruction{"ADC", 0x7D, 3, 4, AbsoluteX}
	cpu.instructions[0x79] = &Instruction{"ADC", 0x79, 3, 4, AbsoluteY}
	cpu.instructions[0x61] = &Instruction{"ADC", 0x61, 2, 6, IndexedIndirect}
	cpu.instructions[0x71] = &Instruction{"ADC", 0x71, 2, 5, IndirectIndexed}

	cpu.instructions[0xE9] = &Instruction{"SBC", 0xE9, 2, 2, Immediate}
	cpu.instructions[0xE5] = &Instruction{"SBC", 0xE5, 2, 3, ZeroPage}
	cpu.instructions[0xF5] = &Instruction{"SBC", 0xF5, 2, 4, ZeroPageX}
	cpu.instructions[0xED] = &Instruction{"SBC", 0xED, 3, 4, Absolute}
	cpu.instructions[0xFD] = &Instruction{"SBC", 0xFD, 3, 4, AbsoluteX}
	cpu.instructions[0xF9] = &Instruction{"SBC", 0xF9, 3, 4, AbsoluteY}
	cpu.instructions[0xE1] = &Instruction{"SBC", 0xE1, 2, 6, IndexedIndirect}
	cpu.instructions[0xF1] = &Instruction{"SBC", 0xF1, 2, 5, IndirectIndexed}

	cpu.instructions[0x29] = &Instruction{"AND", 0x29, 2, 2, Immediate}
	cpu.instructions[0x25] = &Instruction{"AND", 0x25, 2, 3, ZeroPage}
	cpu.instructions[0x35] = &Instruction{"AND", 0x35, 2, 4, ZeroPageX}
	cpu.instructions[0x2D] = &Instruction{"AND", 0x2D, 3, 4, Absolute}
	cpu.instructions[0x3D] = &Instruction{"AND", 0x3D, 3, 4, AbsoluteX}
	cpu.instructions[0x39] = &Instruction{"AND", 0x39, 3, 4, AbsoluteY}
	cpu.instructions[0x21] = &Instruction{"AND", 0x21, 2, 6, IndexedIndirect}
	cpu.instructions[0x31] = &Instruction{"AND", 0x31, 2, 5, IndirectIndexed}

	cpu.instructions[0x09] = &Instruction{"ORA", 0x09, 2, 2, Immediate}
	cpu.instructions[0x05] = &Instruction{"ORA", 0x05, 2, 3, ZeroPage}
	cpu.instructions[0x15] = &Instruction{"ORA", 0x15, 2, 4, ZeroPageX}
	cpu.instructions[0x0D] = &Instruction{"ORA", 0x0D, 3, 4, Absolute}
	cpu.instructions[0x1D] = &Instruction{"ORA", 0x1D, 3, 4, AbsoluteX}
	cpu.instructions[0x19] = &Instruction{"ORA", 0x19, 3, 4, AbsoluteY}
	cpu.instructions[0x01] = &Instruction{"ORA", 0x01, 2, 6, IndexedIndirect}
	cpu.instructions[0x11] = &Instruction{"ORA", 0x11, 2, 5, IndirectIndexed}

	cpu.instructions[0x49] = &Instruction{"EOR", 0x49, 2, 2, Immediate}
	cpu.instructions[0x45] = &Instruction{"EOR", 0x45, 2, 3, ZeroPage}
	cpu.instructions[0x55] = &Instruction{"EOR", 0x55, 2, 4, ZeroPageX}
	cpu.instructions[0x4D] = &Instruction{"EOR", 0x4D, 3, 4, Absolute}
	cpu.instructions[0x5D] = &Instruction{"EOR", 0x5D, 3, 4, AbsoluteX}
	cpu.instructions[0x59] = &Instruction{"EOR", 0x59, 3, 4, AbsoluteY}
	cpu.instructions[0x41] = &Instruction{"EOR", 0x41, 2, 6, IndexedIndirect}
	cpu.instructions[0x51] = &Instruction{"EOR", 0x51, 2, 5, IndirectIndexed}

	cpu.instructions[0x0A] = &Instruction{"ASL", 0x0A, 1, 2, Accumulator}
	cpu.instructions[0x06] = &Instruction{"ASL", 0x06, 2, 5, ZeroPage}
	cpu.instructions[0x16] = &Instruction{"ASL", 0x16, 2, 6, ZeroPageX}
	cpu.instructions[0x0E] = &Instruction{"ASL", 0x0E, 3, 6, Absolute}
	cpu.instructions[0x1E] = &Instruction{"ASL", 0x1E, 3, 7, AbsoluteX}

	cpu.instructions[0x4A] = &Instruction{"LSR", 0x4A, 1, 2, Accumulator}
	cpu.instructions[0x46] = &Instruction{"LSR", 0x46, 2, 5, ZeroPage}
	cpu.instructions[0x56] = &Instruction{"LSR", 0x56, 2, 6, ZeroPageX}
	cpu.instructions[0x4E] = &Instruction{"LSR", 0x4E, 3, 6, Absolute}
	cpu.instructions[0x5E] = &Instruction{"LSR", 0x5E, 3, 7, AbsoluteX}

	cpu.instructions[0x2A] = &Instruction{"ROL", 0x2A, 1, 2, Accumulator}
	cpu.instructions[0x26] = &Instruction{"ROL", 0x26, 2, 5, ZeroPage}
	cpu.instructions[0x36] = &Instruction{"ROL", 0x36, 2, 6, ZeroPageX}
	cpu.instructions[0x2E] = &Instruction{"ROL", 0x2E, 3, 6, Absolute}
	cpu.instructions[0x3E] = &Instruction{"ROL", 0x3E, 3, 7, AbsoluteX}

	cpu.instructions[0x6A] = &Instruction{"ROR", 0x6A, 1, 2, Accumulator}
	cpu.instructions[0x66] = &Instruction{"ROR", 0x66, 2, 5, ZeroPage}
	cpu.instructions[0x76] = &Instruction{"ROR", 0x76, 2, 6, ZeroPageX}
	cpu.instructions[0x6E] = &Instruction{"ROR", 0x6E, 3, 6, Absolute}
	cpu.instructions[0x7E] = &Instruction{"ROR", 0x7E, 3, 7, AbsoluteX}

	cpu.instructions[0xC9] = &Instruction{"CMP", 0xC9, 2, 2, Immediate}
	cpu.instructions[0xC5] = &Instruction{"CMP", 0xC5, 2, 3, ZeroPage}
	cpu.instructions[0xD5] = &Instruction{"CMP", 0xD5, 2, 4, ZeroPageX}
	cpu.instructions[0xCD] = &Instruction{"CMP", 0xCD, 3, 4, Absolute}
	cpu.instructions[0xDD] = &Instruction{"CMP", 0xDD, 3, 4, AbsoluteX}
	cpu.instructions[0xD9] = &Instruction{"CMP", 0xD9, 3, 4, AbsoluteY}
	cpu.instructions[0xC1] = &Instruction{"CMP", 0xC1, 2, 6, IndexedIndirect}
	cpu.instructions[0xD1] = &Instruction{"CMP", 0xD1, 2, 5, IndirectIndexed}

	cpu.instructions[0xE0] = &Instruction{"CPX", 0xE0, 2, 2, Immediate}
	cpu.instructions[0xE4] = &Instruction{"CPX", 0xE4, 2, 3, ZeroPage}
	cpu.instructions[0xEC] = &Instruction{"CPX", 0xEC, 3, 4, Absolute}

	cpu.instructions[0xC0] = &Instruction{"CPY", 0xC0, 2, 2, Immediate}
	cpu.instructions[0xC4] = &Instruction{"CPY", 0xC4, 2, 3, ZeroPage}
	cpu.instructions[0xCC] = &Instruction{"CPY", 0xCC, 3, 4, Absolute}

	cpu.instructions[0xE6] = &Instruction{"INC", 0xE6, 2, 5, ZeroPage}
	cpu.instructions[0xF6] = &Instruction{"INC", 0xF6, 2, 6, ZeroPageX}
	cpu.instructions[0xEE] = &Instruction{"INC", 0xEE, 3, 6, Absolute}
	cpu.instructions[0xFE] = &Instruction{"INC", 0xFE, 3, 7, AbsoluteX}

	cpu.instructions[0xC6] = &Instruction{"DEC", 0xC6, 2, 5, ZeroPage}
	cpu.instructions[0xD6] = &Instruction{"DEC", 0xD6, 2, 6, ZeroPageX}
	cpu.instructions[0xCE] = &Instruction{"DEC", 0xCE, 3, 6, Absolute}
	cpu.instructions[0xDE] = &Instruction{"DEC", 0xDE, 3, 7, AbsoluteX}

	cpu.instructions[0xE8] = &Instruction{"INX", 0xE8, 1, 2, Implied}
	cpu.instructions[0xCA] = &Instruction{"DEX", 0xCA, 1, 2, Implied}
	cpu.instructions[0xC8] = &Instruction{"INY", 0xC8, 1, 2, Implied}
	cpu.instructions[0x88] = &Instruction{"DEY", 0x88, 1, 2, Implied}

	cpu.instructions[0xAA] = &Instruction{"TAX", 0xAA, 1, 2, Implied}
	cpu.instructions[0x8A] = &Instruction{"TXA", 0x8A, 1, 2, Implied}
	cpu.instructions[0xA8] = &Instruction{"TAY", 0xA8, 1, 2, Implied}
	cpu.instructions[0x98] = &Instruction{"TYA", 0x98, 1, 2, Implied}
	cpu.instructions[0xBA] = &Instruction{"TSX", 0xBA, 1, 2, Implied}
	cpu.instructions[0x9A] = &Instruction{"TXS", 0x9A, 1, 2, Implied}

	cpu.instructions[0x48] = &Instruction{"PHA", 0x48, 1, 3, Implied}
	cpu.instructions[0x68] = &Instruction{"PLA", 0x68, 1, 4, Implied}
	cpu.instructions[0x08] = &Instruction{"PHP", 0x08, 1, 3, Implied}
	cpu.instructions[0x28] = &Instruction{"PLP", 0x28, 1, 4, Implied}

	cpu.instructions[0x18] = &Instruction{"CLC", 0x18, 1, 2, Implied}
	cpu.instructions[0x38] = &Instruction{"SEC", 0x38, 1, 2, Implied}
	cpu.instructions[0x58] = &Instruction{"CLI", 0x58, 1, 2, Implied}
	cpu.instructions[0x78] = &Instruction{"SEI", 0x78, 1, 2, Implied}
	cpu.instructions[0xB8] = &Instruction{"CLV", 0xB8, 1, 2, Implied}
	cpu.instructions[0xD8] = &Instruction{"CLD", 0xD8, 1, 2, Implied}
	cpu.instructions[0xF8] = &Instruction{"SED", 0xF8, 1, 2, Implied}

	cpu.instructions[0x4C] = &Instruction{"JMP", 0x4C, 3, 3, Absolute}
	cpu.instructions[0x6C] = &Instruction{"JMP", 0x6C, 3, 5, Indirect}
	cpu.instructions[0x20] = &Instruction{"JSR", 0x20, 3, 6, Absolute}
	cpu.instructions[0x60] = &Instruction{"RTS", 0x60, 1, 6, Implied}
	cpu.instructions[0x40] = &Instruction{"RTI", 0x40, 1, 6, Implied}

	cpu.instructions[0x90] = &Instruction{"BCC", 0x90, 2, 2, Relative}
	cpu.instructions[0xB0] = &Instruction{"BCS", 0xB0, 2, 2, Relative}
	cpu.instructions[0xD0] = &Instruction{"BNE", 0xD0, 2, 2, Relative}
	cpu.instructions[0xF0] = &Instruction{"BEQ", 0xF0, 2, 2, Relative}
	cpu.instructions[0x10] = &Instruction{"BPL", 0x10, 2, 2, Relative}
	cpu.instructions[0x30] = &Instruction{"BMI", 0x30, 2, 2, Relative}
	cpu.instructions[0x50] = &Instruction{"BVC", 0x50, 2, 2, Relative}
	cpu.instructions[0x70] = &Instruction{"BVS", 0x70, 2, 2, Relative}

	cpu.instructions[0x24] = &Instruction{"BIT", 0x24, 2, 3, ZeroPage}
	cpu.instructions[0x2C] = &Instruction{"BIT", 0x2C, 3, 4, Absolute}
	cpu.instructions[0xEA] = &Instruction{"NOP", 0xEA, 1, 2, Implied}
	cpu.instructions[0x00] = &Instruction{"BRK", 0x00, 1, 7, Implied}
}

// EnableDebugLogging turns per-instruction structured-log tracing on or off.
func (cpu *CPU) EnableDebugLogging(enable bool) {
	cpu.enableDebugLogging = enable
}

// EnableLoopDetection turns stuck-PC detection on or off.
func (cpu *CPU) EnableLoopDetection(enable bool) {
	cpu.enableLoopDetection = enable
}

func (cpu *CPU) detectInfiniteLoop(pc uint16, opcode uint8) {
	if pc == cpu.lastPC {
		cpu.pcStayCount++
		if cpu.pcStayCount > 100 {
			logrus.WithFields(logrus.Fields{
				"pc":     fmt.Sprintf("$%04X", pc),
				"opcode": fmt.Sprintf("0x%02X", opcode),
				"stuck":  cpu.pcStayCount,
			}).Warn("cpu stuck at PC")
			if cpu.pcStayCount%1000 == 0 {
				cpu.logCPUState(pc, opcode)
			}
		}
	} else {
		cpu.pcStayCount = 0
	}
	cpu.lastPC = pc
}

func (cpu *CPU) logInstruction(pc uint16, opcode uint8, instruction *Instruction) {
	name := "UNK"
	if instruction != nil {
		name = instruction.Name
	}
	logrus.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("$%04X", pc),
		"instr":  name,
		"opcode": fmt.Sprintf("0x%02X", opcode),
		"a":      fmt.Sprintf("$%02X", cpu.A),
		"x":      fmt.Sprintf("$%02X", cpu.X),
		"y":      fmt.Sprintf("$%02X", cpu.Y),
		"sp":     fmt.Sprintf("$%02X", cpu.SP),
		"flags":  cpu.getFlagsString(),
	}).Debug("instruction")
}

func (cpu *CPU) logCPUState(pc uint16, opcode uint8) {
	instruction := cpu.instructions[opcode]
	name := "UNK"
	if instruction != nil {
		name = instruction.Name
	}
	mem1 := cpu.memory.Read(pc + 1)
	mem2 := cpu.memory.Read(pc + 2)
	logrus.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("$%04X", pc),
		"instr":  name,
		"bytes":  fmt.Sprintf("0x%02X 0x%02X 0x%02X", opcode, mem1, mem2),
		"a":      fmt.Sprintf("$%02X", cpu.A),
		"x":      fmt.Sprintf("$%02X", cpu.X),
		"y":      fmt.Sprintf("$%02X", cpu.Y),
		"sp":     fmt.Sprintf("$%02X", cpu.SP),
		"flags":  cpu.getFlagsString(),
		"cycles": cpu.cycles,
	}).Info("cpu state")
}

func (cpu *CPU) getFlagsString() string {
	bit := func(set bool, ch byte) byte {
		if set {
			return ch
		}
		return '-'
	}
	flags := []byte{
		bit(cpu.N, 'N'),
		bit(cpu.V, 'V'),
		'-',
		bit(cpu.B, 'B'),
		bit(cpu.D, 'D'),
		bit(cpu.I, 'I'),
		bit(cpu.Z, 'Z'),
		bit(cpu.C, 'C'),
	}
	return string(flags)
}

// Cycles returns the CPU's running cycle counter, used by the bus for DMA
// and PPU/APU clock alignment.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }
