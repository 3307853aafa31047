// Package capture owns the framebuffer-capture child process for one display.
// The child scales the display to the terminal's pixel geometry and writes
// packed RGB24 frames to its stdout with no framing; a resize therefore
// resynchronizes the stream by restarting the child.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("capture")

// ErrStopped is returned by Start and Resize after Stop has been called.
var ErrStopped = errors.New("capture: stage stopped")

// Size is the scaled frame geometry in pixels. Rows is even; two pixel rows
// paint one character row.
type Size struct {
	Cols int
	Rows int
}

// FrameBytes returns the byte length of one packed RGB24 frame.
func (s Size) FrameBytes() int {
	return s.Cols * s.Rows * 3
}

// Config holds the capture invocation parameters shared by all sessions.
type Config struct {
	Binary     string
	GameWidth  int
	GameHeight int
	FrameRate  int
}

// Stage keeps at most one capture child alive for a session's display. All
// bytes readable after a successful Start or Resize are sized to the geometry
// passed to that call.
type Stage struct {
	cfg     Config
	display string

	mu         sync.Mutex
	cmd        *exec.Cmd
	out        *os.File
	size       Size
	generation uint64
	stopped    bool
}

// NewStage creates a stage for the given display. The child is not spawned
// until Start.
func NewStage(display string, cfg Config) *Stage {
	return &Stage{cfg: cfg, display: display}
}

// Start spawns the capture child scaled to size. A spawn failure is fatal to
// the session.
func (s *Stage) Start(size Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	return s.spawnLocked(size)
}

// Resize restarts the child against the new geometry. A resize to the current
// size is a no-op. Returns true when the child was restarted; callers must
// then discard bytes read before the call.
func (s *Stage) Resize(size Size) (restarted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false, ErrStopped
	}
	if size == s.size {
		return false, nil
	}
	s.killLocked()
	if err := s.spawnLocked(size); err != nil {
		return false, err
	}
	return true, nil
}

// Read drains available capture bytes without blocking. It returns 0, nil
// when no data is pending and io.EOF once the child has exited and the pipe
// is drained.
func (s *Stage) Read(p []byte) (int, error) {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	if out == nil {
		return 0, io.EOF
	}

	n, err := out.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, os.ErrClosed):
		// No data yet, or the pipe was swapped out by a concurrent resize.
		return n, nil
	case errors.Is(err, io.EOF):
		return n, io.EOF
	default:
		return n, err
	}
}

// Size returns the geometry of the running child.
func (s *Stage) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Generation increments on every child (re)spawn. The render pipeline resets
// its byte accumulator when it observes a change.
func (s *Stage) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stop terminates the child and waits for it. Idempotent.
func (s *Stage) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.killLocked()
}

func (s *Stage) spawnLocked(size Size) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("capture: pipe: %w", err)
	}

	cmd := exec.Command(s.cfg.Binary, s.args(size)...)
	cmd.Stdout = w
	cmd.Stderr = nil // discarded

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("capture: spawn %s: %w", s.cfg.Binary, err)
	}
	w.Close()

	// Non-blocking reads keep shutdown prompt: the pipeline polls and
	// re-checks its running flag instead of parking in a blocked read.
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		r.Close()
		return fmt.Errorf("capture: set nonblocking: %w", err)
	}

	s.cmd = cmd
	s.out = r
	s.size = size
	s.generation++
	log.Debug("capture child started",
		"display", s.display, "cols", size.Cols, "rows", size.Rows, "pid", cmd.Process.Pid)
	return nil
}

func (s *Stage) killLocked() {
	if s.cmd != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
		s.cmd = nil
	}
	if s.out != nil {
		s.out.Close()
		s.out = nil
	}
}

func (s *Stage) args(size Size) []string {
	return []string{
		"-f", "x11grab",
		"-framerate", strconv.Itoa(s.cfg.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", s.cfg.GameWidth, s.cfg.GameHeight),
		"-i", s.display,
		"-f", "rawvideo",
		"-vf", fmt.Sprintf("scale=%dx%d,setsar=1:1", size.Cols, size.Rows),
		"-pix_fmt", "rgb24",
		"pipe:",
	}
}
