package render

import (
	"fmt"
	"io"
)

// Terminal control sequences bracketing each repaint and the session itself.
const (
	beginSyncUpdate = "\x1b[?2026h"
	endSyncUpdate   = "\x1b[?2026l"
	eraseBelow      = "\x1b[0J"

	// terminalSetup prepares the client terminal at session start: alternate
	// screen, clear, hidden cursor, and mouse reporting (button + drag, SGR
	// encoding).
	terminalSetup = "\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l\x1b[?1000h\x1b[?1002h\x1b[?1006h"

	// terminalRestore is the mirror image of terminalSetup plus a color reset.
	terminalRestore = "\x1b[?1006l\x1b[?1002l\x1b[?1000l\x1b[m\x1b[?25h\x1b[?1049l"
)

// Sink serializes painted frames to the SSH channel. It owns the channel's
// write half exclusively for the duration of the serve phase; every repaint
// is bracketed in synchronized-update sequences so the client terminal
// presents it without tearing.
type Sink struct {
	w       io.Writer
	frames  <-chan []byte
	metrics *Metrics
	stop    <-chan struct{}
	buf     []byte
}

// NewSink creates a sink writing frames from the pipeline hand-off to w.
func NewSink(w io.Writer, frames <-chan []byte, metrics *Metrics, stop <-chan struct{}) *Sink {
	return &Sink{w: w, frames: frames, metrics: metrics, stop: stop}
}

// Setup emits the session-start terminal preparation.
func (s *Sink) Setup() error {
	_, err := io.WriteString(s.w, terminalSetup)
	return err
}

// Restore undoes Setup. Best-effort: the channel may already be gone.
func (s *Sink) Restore() {
	io.WriteString(s.w, terminalRestore)
}

// Run writes frames until stop is signalled. A write failure ends the session.
func (s *Sink) Run() error {
	for {
		select {
		case <-s.stop:
			return nil
		case frame := <-s.frames:
			if err := s.write(frame); err != nil {
				return fmt.Errorf("render: write frame: %w", err)
			}
			s.metrics.RecordSend(len(frame))
		}
	}
}

// write sends one bracketed repaint as a single Write call so the transport
// is not handed a torn frame.
func (s *Sink) write(frame []byte) error {
	s.buf = s.buf[:0]
	s.buf = append(s.buf, beginSyncUpdate...)
	s.buf = append(s.buf, frame...)
	s.buf = append(s.buf, eraseBelow...)
	s.buf = append(s.buf, endSyncUpdate...)
	_, err := s.w.Write(s.buf)
	return err
}
