package input

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("input")

const (
	// pollTimeout bounds each queue read so the decoder observes the stop
	// signal promptly.
	pollTimeout = 50 * time.Millisecond

	// escFlushDelay is how long a lone ESC may sit in the parse buffer before
	// it is flushed as the Escape key rather than the start of a sequence.
	escFlushDelay = 50 * time.Millisecond
)

// Decoder parses the inbound SSH byte stream into typed events. Sequences may
// arrive concatenated, split across blocks, or malformed; a bad sequence is
// skipped and parsing resynchronizes on the next complete one.
type Decoder struct {
	queue  *Queue
	events chan Event
	stop   <-chan struct{}

	buf      []byte
	buttons  uint8
	escSince time.Time
}

// NewDecoder creates a decoder pulling from queue until it closes or stop is
// signalled.
func NewDecoder(queue *Queue, stop <-chan struct{}) *Decoder {
	return &Decoder{
		queue:  queue,
		events: make(chan Event, 64),
		stop:   stop,
	}
}

// Events is the decoded event stream. Closed when the input ends.
func (d *Decoder) Events() <-chan Event {
	return d.events
}

// Run decodes until end-of-input or stop.
func (d *Decoder) Run() {
	defer close(d.events)
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		block, ok := d.queue.Next(pollTimeout)
		if !ok {
			return
		}
		if block != nil {
			d.buf = append(d.buf, block...)
		}
		if !d.parse() {
			return
		}
	}
}

// parse consumes as many complete events from the buffer as possible.
// Returns false when the stop signal interrupted an emit.
func (d *Decoder) parse() bool {
	for len(d.buf) > 0 {
		ev, n, incomplete := d.decodeOne(d.buf)
		if incomplete {
			// A lone ESC that stays alone past the flush window is the
			// Escape key, not a truncated sequence.
			if len(d.buf) == 1 && d.buf[0] == 0x1b {
				if d.escSince.IsZero() {
					d.escSince = time.Now()
				} else if time.Since(d.escSince) >= escFlushDelay {
					d.escSince = time.Time{}
					d.buf = d.buf[:0]
					return d.emit(KeyEvent{Code: KeyEsc})
				}
			}
			return true
		}
		d.escSince = time.Time{}
		d.buf = d.buf[n:]
		if ev != nil {
			if !d.emit(ev) {
				return false
			}
		}
	}
	return true
}

func (d *Decoder) emit(ev Event) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.stop:
		return false
	}
}

// decodeOne decodes the first event in buf. Returns a nil event with n > 0
// for bytes that decode to nothing (unknown sequences, stray controls).
func (d *Decoder) decodeOne(buf []byte) (ev Event, n int, incomplete bool) {
	switch b := buf[0]; {
	case b == 0x03:
		return KeyEvent{Code: KeyCtrlC}, 1, false
	case b == '\r' || b == '\n':
		return KeyEvent{Code: KeyEnter}, 1, false
	case b == '\t':
		return KeyEvent{Code: KeyTab}, 1, false
	case b == 0x7f || b == 0x08:
		return KeyEvent{Code: KeyBackspace}, 1, false
	case b == 0x1b:
		return d.decodeEscape(buf)
	case b < 0x20:
		return nil, 1, false
	case b < utf8.RuneSelf:
		return KeyEvent{Code: KeyChar, Ch: rune(b)}, 1, false
	default:
		if !utf8.FullRune(buf) && len(buf) < utf8.UTFMax {
			return nil, 0, true
		}
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError {
			return nil, 1, false
		}
		return KeyEvent{Code: KeyChar, Ch: r}, size, false
	}
}

func (d *Decoder) decodeEscape(buf []byte) (ev Event, n int, incomplete bool) {
	if len(buf) < 2 {
		return nil, 0, true
	}

	switch buf[1] {
	case '[':
		return d.decodeCSI(buf)
	case 'O':
		if len(buf) < 3 {
			return nil, 0, true
		}
		switch buf[2] {
		case 'A':
			return KeyEvent{Code: KeyUp}, 3, false
		case 'B':
			return KeyEvent{Code: KeyDown}, 3, false
		case 'C':
			return KeyEvent{Code: KeyRight}, 3, false
		case 'D':
			return KeyEvent{Code: KeyLeft}, 3, false
		case 'H':
			return KeyEvent{Code: KeyHome}, 3, false
		case 'F':
			return KeyEvent{Code: KeyEnd}, 3, false
		default:
			return nil, 3, false
		}
	default:
		// ESC followed by an ordinary byte: deliver Escape and leave the
		// byte for the next decode.
		return KeyEvent{Code: KeyEsc}, 1, false
	}
}

// decodeCSI handles ESC [ sequences: cursor keys, tilde keys, and SGR mouse
// reports.
func (d *Decoder) decodeCSI(buf []byte) (ev Event, n int, incomplete bool) {
	// Find the final byte (0x40..0x7e). Everything between "[" and it is
	// parameters/intermediates.
	end := -1
	for i := 2; i < len(buf); i++ {
		if buf[i] >= 0x40 && buf[i] <= 0x7e {
			end = i
			break
		}
	}
	if end == -1 {
		if len(buf) > 64 {
			// Never-terminated garbage; drop the ESC and resynchronize.
			return nil, 1, false
		}
		return nil, 0, true
	}

	params := string(buf[2:end])
	final := buf[end]
	consumed := end + 1

	switch final {
	case 'A':
		return KeyEvent{Code: KeyUp}, consumed, false
	case 'B':
		return KeyEvent{Code: KeyDown}, consumed, false
	case 'C':
		return KeyEvent{Code: KeyRight}, consumed, false
	case 'D':
		return KeyEvent{Code: KeyLeft}, consumed, false
	case 'H':
		return KeyEvent{Code: KeyHome}, consumed, false
	case 'F':
		return KeyEvent{Code: KeyEnd}, consumed, false
	case '~':
		switch params {
		case "1", "7":
			return KeyEvent{Code: KeyHome}, consumed, false
		case "3":
			return KeyEvent{Code: KeyDelete}, consumed, false
		case "4", "8":
			return KeyEvent{Code: KeyEnd}, consumed, false
		case "5":
			return KeyEvent{Code: KeyPageUp}, consumed, false
		case "6":
			return KeyEvent{Code: KeyPageDown}, consumed, false
		default:
			return nil, consumed, false
		}
	case 'M', 'm':
		if strings.HasPrefix(params, "<") {
			return d.decodeSGRMouse(params[1:], final == 'M'), consumed, false
		}
		return nil, consumed, false
	default:
		return nil, consumed, false
	}
}

// decodeSGRMouse parses the "Cb;Cx;Cy" body of an SGR mouse report and folds
// it into the running button bitmask. Returns nil for reports that decode to
// nothing actionable.
func (d *Decoder) decodeSGRMouse(body string, press bool) Event {
	parts := strings.Split(body, ";")
	if len(parts) != 3 {
		log.Debug("malformed mouse report", "body", body)
		return nil
	}
	cb, err1 := strconv.Atoi(parts[0])
	cx, err2 := strconv.Atoi(parts[1])
	cy, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || cx < 1 || cy < 1 {
		log.Debug("malformed mouse report", "body", body)
		return nil
	}

	ev := MouseEvent{X: cx - 1, Y: cy - 1}

	if cb&64 != 0 {
		// Wheel: button state unchanged.
		if cb&1 == 0 {
			ev.WheelUp = true
		} else {
			ev.WheelDown = true
		}
		ev.Buttons = d.buttons
		return ev
	}

	motion := cb&32 != 0
	var bit uint8
	switch cb & 3 {
	case 0:
		bit = ButtonLeft
	case 1:
		bit = ButtonMiddle
	case 2:
		bit = ButtonRight
	}

	if !motion && bit != 0 {
		if press {
			d.buttons |= bit
		} else {
			d.buttons &^= bit
		}
	}
	ev.Buttons = d.buttons
	return ev
}
