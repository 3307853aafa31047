package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink writes the gateway log to disk with a size-capped rollover chain
// (file, file.1, … file.N). It implements io.Writer and is safe for
// concurrent use.
//
// Two choices differ from a generic rotator on purpose:
//
//   - Rollover happens after the write that crosses the cap, never before it.
//     The records worth having are bursts — a session teardown, a capture
//     child dying, a flurry of injection failures — and cutting the file in
//     the middle of one scatters a single incident across two files.
//   - A failed rollover (rename raced with an external cleanup, directory
//     permissions changed under a running gateway) does not surface as a
//     write error. slog would drop the record; instead the sink keeps
//     appending past the cap and retries the roll on the next write.
type FileSink struct {
	mu   sync.Mutex
	path string
	cap  int64
	keep int
	file *os.File
	size int64
}

// NewFileSink opens (creating if needed) the log file at path, rolling the
// chain once roughly capMB is exceeded and keeping at most keep old files.
func NewFileSink(path string, capMB, keep int) (*FileSink, error) {
	if capMB <= 0 {
		capMB = 50
	}
	if keep <= 0 {
		keep = 3
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	s := &FileSink{
		path: path,
		cap:  int64(capMB) * 1024 * 1024,
		keep: keep,
	}
	// Open eagerly so a bad path fails at startup, not at the first record.
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Write implements io.Writer.
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		// A previous roll lost the handle; recover before writing.
		if err := s.open(); err != nil {
			return 0, err
		}
	}

	n, err := s.file.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, err
	}

	if s.size >= s.cap {
		s.roll()
	}
	return n, nil
}

// Close closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *FileSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// roll closes the live file, ages the chain by one step, and reopens. Errors
// are swallowed: the worst case is an over-cap file that rolls on a later
// write, which beats losing records.
func (s *FileSink) roll() {
	s.file.Close()
	s.file = nil
	s.size = 0

	os.Remove(s.numbered(s.keep))
	for i := s.keep - 1; i >= 1; i-- {
		os.Rename(s.numbered(i), s.numbered(i+1))
	}
	os.Rename(s.path, s.numbered(1))

	s.open()
}

func (s *FileSink) numbered(i int) string {
	return fmt.Sprintf("%s.%d", s.path, i)
}
