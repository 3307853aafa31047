package session

import (
	"sync"

	"github.com/furrysalamander/ansicraft/internal/capture"
)

// TermSize is the shared terminal geometry cell: written by the frontend's
// PTY and window-change handlers, read by the render pipeline and the input
// translator. Readers receive a copy.
type TermSize struct {
	mu    sync.Mutex
	size  capture.Size
	gameW int
	gameH int
}

// NewTermSize creates the cell with a conservative default width; the PTY
// request overwrites it before the first frame is captured.
func NewTermSize(gameW, gameH int) *TermSize {
	t := &TermSize{gameW: gameW, gameH: gameH}
	t.SetCols(80)
	return t
}

// SetCols updates the geometry from a terminal width in cells. The pixel row
// count is derived so the scaled frame keeps the game's aspect ratio with two
// pixel rows per character row.
func (t *TermSize) SetCols(cols int) {
	if cols < 1 {
		cols = 1
	}
	t.mu.Lock()
	t.size = capture.Size{Cols: cols, Rows: heightForWidth(cols, t.gameW, t.gameH)}
	t.mu.Unlock()
}

// Get returns a copy of the current geometry.
func (t *TermSize) Get() capture.Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// heightForWidth rounds cols*gameH/gameW/2 to the nearest integer and
// doubles it, guaranteeing an even pixel height of at least 2.
func heightForWidth(cols, gameW, gameH int) int {
	if gameW < 1 || gameH < 1 {
		return 2
	}
	half := (cols*gameH + gameW) / (2 * gameW)
	if half < 1 {
		half = 1
	}
	return half * 2
}
