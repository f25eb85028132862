// Package graphics hosts the windowed debug frontend for gones. There is no
// pixel-accurate PPU behind it to render: the view paints the PPU's raw
// nametable bytes as a grayscale tile map and OAM entries as colored dots,
// which is enough to watch a ROM drive the bus without claiming to be a
// real picture.
package graphics

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"gones/internal/app"
	"gones/internal/input"
)

const (
	screenWidth  = 256
	screenHeight = 240
)

// DebugView implements ebiten.Game, polling controller 1's keyboard mapping
// every tick and drawing the emulator's most recent Snapshot.
type DebugView struct {
	emulator *app.Emulator

	canvas *image.RGBA
	image  *ebiten.Image

	keymap map[ebiten.Key]input.Button
}

// NewDebugView wraps an already-started Emulator for display.
func NewDebugView(emulator *app.Emulator) *DebugView {
	return &DebugView{
		emulator: emulator,
		canvas:   image.NewRGBA(image.Rect(0, 0, screenWidth, screenHeight)),
		image:    ebiten.NewImage(screenWidth, screenHeight),
		keymap: map[ebiten.Key]input.Button{
			ebiten.KeyZ:         input.ButtonA,
			ebiten.KeyX:         input.ButtonB,
			ebiten.KeyShiftLeft: input.ButtonSelect,
			ebiten.KeyEnter:     input.ButtonStart,
			ebiten.KeyArrowUp:    input.ButtonUp,
			ebiten.KeyArrowDown:  input.ButtonDown,
			ebiten.KeyArrowLeft:  input.ButtonLeft,
			ebiten.KeyArrowRight: input.ButtonRight,
		},
	}
}

// Update implements ebiten.Game: poll the keyboard into controller 1.
func (v *DebugView) Update() error {
	for key, button := range v.keymap {
		if inpututil.IsKeyJustPressed(key) {
			v.emulator.SetControllerButton(1, button, true)
		}
		if inpututil.IsKeyJustReleased(key) {
			v.emulator.SetControllerButton(1, button, false)
		}
	}
	return nil
}

// Draw implements ebiten.Game: render the current debug snapshot.
func (v *DebugView) Draw(screen *ebiten.Image) {
	snap := v.emulator.Snapshot()

	v.paintNametable(snap.Nametables, snap.Palette)
	v.paintOAM(snap.OAM)
	v.image.ReplacePixels(v.canvas.Pix)

	screen.DrawImage(v.image, nil)

	if snap.Err != nil {
		ebiten.SetWindowTitle(fmt.Sprintf("gones - halted: %v", snap.Err))
	}
}

// paintNametable renders the first 32x30 nametable's raw tile-index bytes as
// a grayscale field, background color entry 0 used for the border the tile
// grid doesn't cover. It is not a decode of the tile's actual CHR pattern:
// there is no pixel-accurate PPU to decode it with.
func (v *DebugView) paintNametable(nt [0x800]uint8, palette [32]uint8) {
	bg := nesGray(palette[0])
	v.canvas.Fill(bg)

	const tileSize = 8
	for row := 0; row < 30; row++ {
		for col := 0; col < 32; col++ {
			tileIndex := nt[row*32+col]
			shade := nesGray(tileIndex)
			x0, y0 := col*tileSize, row*tileSize
			for y := y0; y < y0+tileSize-1; y++ {
				for x := x0; x < x0+tileSize-1; x++ {
					v.canvas.SetRGBA(x, y, shade)
				}
			}
		}
	}
}

// paintOAM overlays each of the 64 sprites as a single pixel at its Y/X
// position, colored by its palette attribute bits.
func (v *DebugView) paintOAM(oam [256]uint8) {
	for sprite := 0; sprite < 64; sprite++ {
		base := sprite * 4
		y := int(oam[base])
		x := int(oam[base+3])
		attr := oam[base+2]
		if y >= screenHeight || x >= screenWidth {
			continue
		}
		v.canvas.SetRGBA(x, y, spriteColor(attr&0x03))
	}
}

func nesGray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func spriteColor(paletteIndex uint8) color.RGBA {
	colors := [4]color.RGBA{
		{R: 255, G: 64, B: 64, A: 255},
		{R: 64, G: 255, B: 64, A: 255},
		{R: 64, G: 64, B: 255, A: 255},
		{R: 255, G: 255, B: 64, A: 255},
	}
	return colors[paletteIndex]
}

// Layout implements ebiten.Game: a fixed logical screen, scaled by the host
// window size.
func (v *DebugView) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}
