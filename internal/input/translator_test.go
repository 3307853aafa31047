package input

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/furrysalamander/ansicraft/internal/capture"
)

// recordingInjector captures synthetic-input invocations with timestamps.
type recordingInjector struct {
	mu    sync.Mutex
	calls []string
	times []time.Time
	fail  bool
}

func (r *recordingInjector) record(format string, args ...any) error {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("injector down")
	}
	return nil
}

func (r *recordingInjector) Key(k string) error              { return r.record("key %s", k) }
func (r *recordingInjector) KeyDown(k string) error          { return r.record("keydown %s", k) }
func (r *recordingInjector) KeyUp(k string) error            { return r.record("keyup %s", k) }
func (r *recordingInjector) MouseMove(x, y int) error        { return r.record("mousemove %d %d", x, y) }
func (r *recordingInjector) MouseMoveRelative(dx, dy int) error {
	return r.record("mousemove_relative %d %d", dx, dy)
}
func (r *recordingInjector) MouseDown(b int) error { return r.record("mousedown %d", b) }
func (r *recordingInjector) MouseUp(b int) error   { return r.record("mouseup %d", b) }
func (r *recordingInjector) Click(b int) error     { return r.record("click %d", b) }

func (r *recordingInjector) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func size80x50() capture.Size {
	return capture.Size{Cols: 80, Rows: 50}
}

// newTestTranslator wires a translator for direct (synchronous) handle calls.
func newTestTranslator(inj Injector) *Translator {
	return NewTranslator(inj, nil, size80x50, 1280, 720, func() {}, nil)
}

func TestMouseScalingAbsoluteThenRelative(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)

	// 80x50 terminal on a 1280x720 game: cell (40,10) is pixel (640,288).
	tr.handle(MouseEvent{X: 40, Y: 10})
	if got := inj.snapshot(); !reflect.DeepEqual(got, []string{"mousemove 640 288"}) {
		t.Fatalf("absolute move calls = %v", got)
	}

	// Toggle to relative; one cell right is 16 game pixels, gain 5 → 80.
	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'})
	tr.handle(MouseEvent{X: 41, Y: 10})
	got := inj.snapshot()
	if got[len(got)-1] != "mousemove_relative 80 0" {
		t.Fatalf("relative move calls = %v", got)
	}
}

func TestRelativeFirstEventOnlySeeds(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)
	tr.mode = MouseRelative
	tr.hasLast = false

	tr.handle(MouseEvent{X: 10, Y: 10})
	if got := inj.snapshot(); len(got) != 0 {
		t.Fatalf("first relative event emitted %v, want nothing", got)
	}
	tr.handle(MouseEvent{X: 12, Y: 10})
	if got := inj.snapshot(); len(got) != 1 || !strings.HasPrefix(got[0], "mousemove_relative ") {
		t.Fatalf("second relative event calls = %v", got)
	}
}

func TestRelativeZeroDeltaSkipped(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)
	tr.mode = MouseRelative

	tr.handle(MouseEvent{X: 10, Y: 10})
	tr.handle(MouseEvent{X: 10, Y: 10})
	if got := inj.snapshot(); len(got) != 0 {
		t.Fatalf("zero delta emitted %v", got)
	}
}

func TestModeToggleDoesNotResetLastMouse(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)
	tr.mode = MouseRelative

	tr.handle(MouseEvent{X: 10, Y: 10})
	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'}) // to absolute
	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'}) // back to relative
	tr.handle(MouseEvent{X: 11, Y: 10})

	got := inj.snapshot()
	if len(got) != 1 || got[0] != "mousemove_relative 80 0" {
		t.Fatalf("calls after double toggle = %v, want one small delta", got)
	}
}

func TestButtonEdges(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)
	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'}) // relative: suppress mousemove noise

	tr.handle(MouseEvent{X: 1, Y: 1, Buttons: ButtonLeft})
	tr.handle(MouseEvent{X: 1, Y: 1, Buttons: ButtonLeft}) // held: no repeat
	tr.handle(MouseEvent{X: 1, Y: 1, Buttons: ButtonLeft | ButtonRight})
	tr.handle(MouseEvent{X: 1, Y: 1})

	want := []string{"mousedown 1", "mousedown 3", "mouseup 1", "mouseup 3"}
	if got := inj.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("button calls = %v, want %v", got, want)
	}
}

func TestWheelMapsToClicks(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)
	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'})

	tr.handle(MouseEvent{X: 1, Y: 1, WheelUp: true})
	tr.handle(MouseEvent{X: 1, Y: 1, WheelDown: true})

	want := []string{"click 4", "click 5"}
	if got := inj.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("wheel calls = %v, want %v", got, want)
	}
}

func TestKeysymTable(t *testing.T) {
	tests := []struct {
		ev   KeyEvent
		want string
	}{
		{KeyEvent{Code: KeyChar, Ch: ' '}, "key space"},
		{KeyEvent{Code: KeyChar, Ch: ';'}, "key semicolon"},
		{KeyEvent{Code: KeyChar, Ch: '{'}, "key braceleft"},
		{KeyEvent{Code: KeyChar, Ch: '^'}, "key asciicircum"},
		{KeyEvent{Code: KeyChar, Ch: 'x'}, "key x"},
		{KeyEvent{Code: KeyChar, Ch: '7'}, "key 7"},
		{KeyEvent{Code: KeyEnter}, "key Return"},
		{KeyEvent{Code: KeyBackspace}, "key BackSpace"},
		{KeyEvent{Code: KeyPageUp}, "key Page_Up"},
		{KeyEvent{Code: KeyLeft}, "key Left"},
	}
	for _, tt := range tests {
		inj := &recordingInjector{}
		tr := newTestTranslator(inj)
		tr.handle(tt.ev)
		got := inj.snapshot()
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("%+v → %v, want [%s]", tt.ev, got, tt.want)
		}
	}
}

func TestInventoryKeyTogglesModeAndForwards(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)

	tr.handle(KeyEvent{Code: KeyChar, Ch: 'e'})
	if tr.Mode() != MouseRelative {
		t.Fatal("e did not toggle to relative")
	}
	if got := inj.snapshot(); len(got) != 1 || got[0] != "key e" {
		t.Fatalf("calls = %v, want [key e]", got)
	}
}

func TestBackquoteTogglesSilently(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)

	tr.handle(KeyEvent{Code: KeyChar, Ch: '`'})
	if tr.Mode() != MouseRelative {
		t.Fatal("backquote did not toggle mode")
	}
	if got := inj.snapshot(); len(got) != 0 {
		t.Fatalf("backquote forwarded %v to the game", got)
	}
}

func TestEscapeForcesRelativeMode(t *testing.T) {
	inj := &recordingInjector{}
	tr := newTestTranslator(inj)

	tr.handle(KeyEvent{Code: KeyEsc})
	if tr.Mode() != MouseRelative {
		t.Fatal("Escape did not force relative mode")
	}
	if got := inj.snapshot(); len(got) != 1 || got[0] != "key Escape" {
		t.Fatalf("calls = %v, want [key Escape]", got)
	}
}

// Scenario: typing w, repeating it at 80ms, then stopping yields exactly one
// keydown and one keyup, with the keyup roughly 100ms after the last repeat.
func TestMovementKeyAutoRelease(t *testing.T) {
	inj := &recordingInjector{}
	events := make(chan Event, 16)
	stop := make(chan struct{})
	tr := NewTranslator(inj, events, size80x50, 1280, 720, func() {}, stop)

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()

	start := time.Now()
	events <- KeyEvent{Code: KeyChar, Ch: 'w'}
	time.Sleep(80 * time.Millisecond)
	events <- KeyEvent{Code: KeyChar, Ch: 'w'}
	time.Sleep(250 * time.Millisecond)

	close(stop)
	<-done

	inj.mu.Lock()
	defer inj.mu.Unlock()
	var downs, ups int
	var upAt time.Time
	for i, call := range inj.calls {
		switch call {
		case "keydown w":
			downs++
		case "keyup w":
			ups++
			upAt = inj.times[i]
		}
	}
	if downs != 1 || ups != 1 {
		t.Fatalf("calls = %v, want one keydown w and one keyup w", inj.calls)
	}
	// Deadline is 100ms after the second press (t=80ms), swept within 25ms.
	elapsed := upAt.Sub(start)
	if elapsed < 170*time.Millisecond || elapsed > 260*time.Millisecond {
		t.Fatalf("keyup at %v after start, want ≈180ms", elapsed)
	}
}

func TestCtrlCStopsSession(t *testing.T) {
	inj := &recordingInjector{}
	events := make(chan Event, 1)
	stopped := make(chan struct{})
	tr := NewTranslator(inj, events, size80x50, 1280, 720, func() { close(stopped) }, nil)

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()

	events <- KeyEvent{Code: KeyCtrlC}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Ctrl+C did not request a session stop")
	}
	<-done
}

func TestInjectionFailureIsSwallowed(t *testing.T) {
	inj := &recordingInjector{fail: true}
	tr := newTestTranslator(inj)

	// Must not panic or stop handling further events.
	tr.handle(KeyEvent{Code: KeyChar, Ch: 'x'})
	tr.handle(KeyEvent{Code: KeyChar, Ch: 'y'})
	if got := inj.snapshot(); len(got) != 2 {
		t.Fatalf("calls = %v, want both attempts", got)
	}
}

func TestHeldKeysReleasedOnExit(t *testing.T) {
	inj := &recordingInjector{}
	events := make(chan Event, 1)
	stop := make(chan struct{})
	tr := NewTranslator(inj, events, size80x50, 1280, 720, func() {}, stop)

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()

	events <- KeyEvent{Code: KeyChar, Ch: 'a'}
	time.Sleep(20 * time.Millisecond)
	close(stop)
	<-done

	calls := inj.snapshot()
	var sawUp bool
	for _, c := range calls {
		if c == "keyup a" {
			sawUp = true
		}
	}
	if !sawUp {
		t.Fatalf("calls = %v, want keyup a on exit", calls)
	}
}
