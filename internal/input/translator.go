package input

import (
	"math"
	"time"

	"github.com/furrysalamander/ansicraft/internal/capture"
)

// MouseMode selects how pointer motion reaches the game.
type MouseMode int

const (
	// MouseAbsolute maps terminal cells directly to game pixels. Used for
	// inventory and menu interaction.
	MouseAbsolute MouseMode = iota
	// MouseRelative converts motion into relative deltas for camera control.
	MouseRelative
)

const (
	// autoReleaseAfter is how long after the last repeat of a movement key
	// the matching keyup is injected. Terminals deliver held keys as repeats,
	// so the hold is reconstructed by extending this deadline.
	autoReleaseAfter = 100 * time.Millisecond

	// sweepPeriod bounds the delay between auto-release sweeps.
	sweepPeriod = 25 * time.Millisecond

	// relativeGain scales cell-to-pixel deltas in relative mode.
	relativeGain = 5
)

type keyState struct {
	pressed   bool
	releaseAt time.Time
}

// Translator turns decoded events into synthetic-input invocations against
// the session's display. It owns the movement-key auto-release table and the
// mouse-mode toggle.
type Translator struct {
	inj         Injector
	events      <-chan Event
	sizeFn      func() capture.Size
	gameW       int
	gameH       int
	requestStop func()
	stop        <-chan struct{}

	mode        MouseMode
	lastX       int
	lastY       int
	hasLast     bool
	keys        map[rune]*keyState
	prevButtons uint8
}

// NewTranslator creates a translator. requestStop is invoked when the user
// ends the session from the keyboard (Ctrl+C).
func NewTranslator(inj Injector, events <-chan Event, sizeFn func() capture.Size, gameW, gameH int, requestStop func(), stop <-chan struct{}) *Translator {
	return &Translator{
		inj:         inj,
		events:      events,
		sizeFn:      sizeFn,
		gameW:       gameW,
		gameH:       gameH,
		requestStop: requestStop,
		stop:        stop,
		mode:        MouseAbsolute,
		keys: map[rune]*keyState{
			'w': {}, 'a': {}, 's': {}, 'd': {},
		},
	}
}

// Mode returns the current mouse mode.
func (t *Translator) Mode() MouseMode {
	return t.mode
}

// Run processes events until the stream ends, the user hits Ctrl+C, or stop
// is signalled. Held movement keys are released on the way out.
func (t *Translator) Run() {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()
	defer t.releaseHeldKeys()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep(time.Now())
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			if !t.handle(ev) {
				t.requestStop()
				return
			}
			t.sweep(time.Now())
		}
	}
}

// handle dispatches one event. Returns false when the session should end.
func (t *Translator) handle(ev Event) bool {
	switch e := ev.(type) {
	case KeyEvent:
		return t.handleKey(e)
	case MouseEvent:
		t.handleMouse(e)
	}
	return true
}

func (t *Translator) handleKey(ev KeyEvent) bool {
	switch ev.Code {
	case KeyCtrlC:
		return false

	case KeyChar:
		switch c := ev.Ch; c {
		case 'w', 'a', 's', 'd':
			st := t.keys[c]
			if !st.pressed {
				t.try(t.inj.KeyDown(string(c)))
				st.pressed = true
			}
			st.releaseAt = time.Now().Add(autoReleaseAfter)
		case 'e':
			// Opening the inventory needs the pointer in absolute mode;
			// closing it returns to camera control.
			t.toggleMode()
			t.try(t.inj.Key("e"))
		case '`':
			// Manual mode toggle; nothing reaches the game.
			t.toggleMode()
		default:
			if name, ok := punctKeysyms[c]; ok {
				t.try(t.inj.Key(name))
			} else {
				t.try(t.inj.Key(string(c)))
			}
		}

	case KeyEsc:
		// Escape closes whatever menu was open, so camera control resumes.
		t.mode = MouseRelative
		t.try(t.inj.Key("Escape"))

	default:
		if name, ok := namedKeysyms[ev.Code]; ok {
			t.try(t.inj.Key(name))
		}
	}
	return true
}

func (t *Translator) handleMouse(ev MouseEvent) {
	size := t.sizeFn()
	cols, cellRows := size.Cols, size.Rows/2
	if cols < 1 || cellRows < 1 {
		return
	}

	// Each character cell carries two vertical pixels, hence cellRows.
	gameX := int(math.Round(float64(ev.X) / float64(cols) * float64(t.gameW)))
	gameY := int(math.Round(float64(ev.Y) / float64(cellRows) * float64(t.gameH)))

	switch t.mode {
	case MouseAbsolute:
		t.try(t.inj.MouseMove(gameX, gameY))
	case MouseRelative:
		// The first event only seeds the reference point.
		if t.hasLast {
			dx := (gameX - t.lastX) * relativeGain
			dy := (gameY - t.lastY) * relativeGain
			if dx != 0 || dy != 0 {
				t.try(t.inj.MouseMoveRelative(dx, dy))
			}
		}
	}
	t.lastX, t.lastY, t.hasLast = gameX, gameY, true

	for _, btn := range []struct {
		bit uint8
		n   int
	}{
		{ButtonLeft, 1},
		{ButtonRight, 3},
	} {
		now := ev.Buttons&btn.bit != 0
		prev := t.prevButtons&btn.bit != 0
		if now && !prev {
			t.try(t.inj.MouseDown(btn.n))
		}
		if !now && prev {
			t.try(t.inj.MouseUp(btn.n))
		}
	}
	t.prevButtons = ev.Buttons

	if ev.WheelUp {
		t.try(t.inj.Click(4))
	}
	if ev.WheelDown {
		t.try(t.inj.Click(5))
	}
}

// toggleMode flips between absolute and relative without touching the last
// pointer position, so re-entering relative mode does not jump the camera.
func (t *Translator) toggleMode() {
	if t.mode == MouseAbsolute {
		t.mode = MouseRelative
	} else {
		t.mode = MouseAbsolute
	}
}

// sweep releases movement keys whose deadline has passed.
func (t *Translator) sweep(now time.Time) {
	for key, st := range t.keys {
		if st.pressed && !now.Before(st.releaseAt) {
			t.try(t.inj.KeyUp(string(key)))
			st.pressed = false
		}
	}
}

func (t *Translator) releaseHeldKeys() {
	for key, st := range t.keys {
		if st.pressed {
			t.try(t.inj.KeyUp(string(key)))
			st.pressed = false
		}
	}
}

// try logs and swallows injection failures: a lost keystroke is preferable to
// a dead session.
func (t *Translator) try(err error) {
	if err != nil {
		log.Warn("synthetic input failed", "error", err)
	}
}
