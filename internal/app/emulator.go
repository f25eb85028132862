// Package app wires a loaded cartridge into a running emulator session:
// a bus stepping on its own goroutine, a JSON-backed config, and the
// frame/state handoff a windowed frontend reads from.
package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/input"
)

// Snapshot is the state a frontend needs to draw one frame: CPU/PPU status
// plus the raw nametable/OAM/palette bytes a debug view decodes itself.
// There is no pixel buffer here; the PPU never synthesizes one.
type Snapshot struct {
	CPU        bus.CPUState
	PPU        bus.PPUState
	Nametables [0x800]uint8
	OAM        [256]uint8
	Palette    [32]uint8
	Err        error
}

// Emulator runs the bus on its own goroutine, decoupled from whatever
// frontend draws it, and publishes a Snapshot through a weighted semaphore
// rather than a plain mutex: a future frontend that wants to read state
// from more than one goroutine (a debug view plus a headless recorder, say)
// can acquire it shared at weight 0 without a second lock type.
type Emulator struct {
	bus *bus.Bus

	sem      *semaphore.Weighted
	snapshot Snapshot

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewEmulator creates an Emulator around a freshly loaded cartridge.
func NewEmulator(cart *cartridge.Cartridge) *Emulator {
	b := bus.New()
	b.LoadCartridge(cart)
	return &Emulator{
		bus:  b,
		sem:  semaphore.NewWeighted(1),
		stop: make(chan struct{}),
	}
}

// Start runs the emulation loop on its own goroutine, one frame at a time,
// until Stop is called or the CPU halts (e.g. on a bad opcode).
func (e *Emulator) Start() {
	e.wg.Add(1)
	go e.run()
}

func (e *Emulator) run() {
	defer e.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		err := e.bus.Run(1)
		e.publish(ctx, err)
		if err != nil {
			return
		}
	}
}

func (e *Emulator) publish(ctx context.Context, err error) {
	if e.sem.Acquire(ctx, 1) != nil {
		return
	}
	defer e.sem.Release(1)

	e.snapshot = Snapshot{
		CPU:        e.bus.GetCPUState(),
		PPU:        e.bus.GetPPUState(),
		Nametables: e.bus.PPU.DebugNametables(),
		OAM:        e.bus.PPU.DebugOAM(),
		Palette:    e.bus.PPU.DebugPalette(),
		Err:        err,
	}
}

// Stop halts the emulation goroutine and waits for it to exit.
func (e *Emulator) Stop() {
	close(e.stop)
	e.wg.Wait()
}

// Snapshot returns the most recently published state. Safe to call from a
// different goroutine than the one that called Start (the draw loop of a
// windowed frontend, typically).
func (e *Emulator) Snapshot() Snapshot {
	ctx := context.Background()
	if e.sem.Acquire(ctx, 1) != nil {
		return Snapshot{}
	}
	defer e.sem.Release(1)
	return e.snapshot
}

// SetControllerButton forwards a button state change to controller 1 or 2.
// Called from the frontend's input-polling goroutine; InputState's fields
// are plain bytes so a single-writer update races harmlessly with the
// emulation goroutine's reads the way real controller latency does.
func (e *Emulator) SetControllerButton(controller int, button input.Button, pressed bool) {
	e.bus.SetControllerButton(controller, button, pressed)
}
