package input

// Event is a typed input event produced by the Decoder.
type Event interface {
	isEvent()
}

// KeyCode identifies a decoded key.
type KeyCode int

const (
	KeyChar KeyCode = iota
	KeyEnter
	KeyEsc
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
)

// KeyEvent is a decoded keystroke. Ch is set for KeyChar.
type KeyEvent struct {
	Code KeyCode
	Ch   rune
}

func (KeyEvent) isEvent() {}

// Mouse button bits in MouseEvent.Buttons.
const (
	ButtonLeft   = 1 << 0
	ButtonMiddle = 1 << 1
	ButtonRight  = 1 << 2
)

// MouseEvent is a decoded pointer event in 0-based terminal cell coordinates.
// Buttons is the held-button bitmask after applying this event, so the
// translator can edge-detect presses and releases.
type MouseEvent struct {
	X, Y      int
	Buttons   uint8
	WheelUp   bool
	WheelDown bool
}

func (MouseEvent) isEvent() {}
