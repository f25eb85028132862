// Package input implements controller handling for the NES.
package input

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Convenience constants for shorter names used in SDL integration
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller represents a NES controller
type Controller struct {
	// Current button states (8 buttons: A, B, Select, Start, Up, Down, Left, Right)
	buttons uint8

	// Shift register for serial reading
	shiftRegister uint8
	strobe        bool

	// Snapshot of button states when strobe was activated
	buttonSnapshot uint8

	// Bit position tracking for proper NES controller protocol
	bitPosition uint8 // Tracks which bit we're reading (0-7 for buttons, 8+ for extended reads)
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all button states at once. NES button order: A, B, Select,
// Start, Up, Down, Left, Right.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	if buttons[0] {
		c.buttons |= uint8(ButtonA)
	}
	if buttons[1] {
		c.buttons |= uint8(ButtonB)
	}
	if buttons[2] {
		c.buttons |= uint8(ButtonSelect)
	}
	if buttons[3] {
		c.buttons |= uint8(ButtonStart)
	}
	if buttons[4] {
		c.buttons |= uint8(ButtonUp)
	}
	if buttons[5] {
		c.buttons |= uint8(ButtonDown)
	}
	if buttons[6] {
		c.buttons |= uint8(ButtonLeft)
	}
	if buttons[7] {
		c.buttons |= uint8(ButtonRight)
	}
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles writes to the controller register ($4016). Both the strobe
// going high and going low latch the current button state into the shift
// register; real hardware continuously reloads while strobe is held high.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = (value & 1) != 0

	if c.strobe || wasStrobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttonSnapshot
		c.bitPosition = 0
	}
}

// Read handles reads from the controller register ($4016/$4017). Bit 0
// carries button data and bit 6 always reads back set (open bus on the
// unconnected upper lines). Reads past the 8th button return 0x40, and reads
// while strobe is held high return the A button from the snapshot taken at
// the last strobe write.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return uint8(c.buttonSnapshot&1) | 0x40
	}

	if c.bitPosition >= 8 {
		c.bitPosition++
		return 0x40
	}

	result := uint8(c.shiftRegister&1) | 0x40
	c.shiftRegister >>= 1
	c.bitPosition++
	return result
}

// Reset resets the controller state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.buttonSnapshot = 0
	c.bitPosition = 0
}

// GetBitPosition returns the current bit position (for testing).
func (c *Controller) GetBitPosition() uint8 {
	return c.bitPosition
}


// InputState represents the state of all input devices
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read reads from controller ports $4016/$4017.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		// Controller.Read already sets bit 6 (open bus on the unconnected
		// upper bits), so this OR leaves the value unchanged.
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes to controller ports. Both controllers latch from the same
// $4016 strobe write; there is no separate write port for controller 2.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
