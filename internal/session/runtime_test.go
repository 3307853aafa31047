package session

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/furrysalamander/ansicraft/internal/capture"
	"github.com/furrysalamander/ansicraft/internal/game"
	"github.com/furrysalamander/ansicraft/internal/queue"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() Config {
	return Config{
		Capture: capture.Config{
			Binary:     "ffmpeg",
			GameWidth:  1280,
			GameHeight: 720,
			FrameRate:  30,
		},
		Game:          game.Config{Interpreter: "definitely-not-a-binary-xyz", LaunchScript: "noop"},
		GameWidth:     1280,
		GameHeight:    720,
		XdotoolBinary: "xdotool",
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newReaper(t *testing.T) *game.Reaper {
	t.Helper()
	r := game.NewReaper(time.Second, 2)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Close(ctx)
	})
	return r
}

func TestRunStreamsQueuePositionThenFailsOnBadLauncher(t *testing.T) {
	pool := queue.NewPool(1)
	defer pool.Close()

	// Occupy the only slot so the session queues.
	holder := pool.Acquire()
	var holderSlot queue.SlotID
	select {
	case st := <-holder.Status():
		if st.Kind != queue.StatusGranted {
			t.Fatalf("holder = %+v, want Granted", st)
		}
		holderSlot = st.Slot
	case <-time.After(2 * time.Second):
		t.Fatal("holder acquire timed out")
	}

	var out syncBuffer
	r := New("a1b2c3d4e5f6", &out, testConfig(), pool, newReaper(t))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run() }()

	waitFor(t, func() bool {
		return strings.Contains(out.String(), "⏳ You are position 1 in queue")
	}, "queue position line")

	pool.Release(holderSlot)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Run succeeded despite an unlaunchable game")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	text := out.String()
	if !strings.Contains(text, "✅ Assigned session 0") {
		t.Fatalf("output %q missing assignment line", text)
	}
	if !strings.Contains(text, "❌ Server error:") {
		t.Fatalf("output %q missing error line", text)
	}

	// The slot went back to the pool on teardown.
	waitFor(t, func() bool { return pool.Stats().FreeSlots == 1 }, "slot release")
}

func TestStopWhileQueuedCancelsTicket(t *testing.T) {
	pool := queue.NewPool(1)
	defer pool.Close()

	holder := pool.Acquire()
	var holderSlot queue.SlotID
	select {
	case st := <-holder.Status():
		holderSlot = st.Slot
	case <-time.After(2 * time.Second):
		t.Fatal("holder acquire timed out")
	}

	var out syncBuffer
	r := New("client2", &out, testConfig(), pool, newReaper(t))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run() }()

	waitFor(t, func() bool { return pool.Stats().Waiting == 1 }, "session to enqueue")

	r.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run after Stop = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Releasing afterwards must not leak the slot to the cancelled waiter.
	pool.Release(holderSlot)
	waitFor(t, func() bool { return pool.Stats().FreeSlots == 1 }, "slot to return to the free set")
	if r.Running() {
		t.Fatal("runtime still reports running")
	}
}

func TestResizeFeedsTerminalSize(t *testing.T) {
	var out syncBuffer
	pool := queue.NewPool(1)
	defer pool.Close()

	r := New("client3", &out, testConfig(), pool, newReaper(t))
	r.Resize(100)
	size := r.term.Get()
	if size.Cols != 100 {
		t.Fatalf("cols = %d, want 100", size.Cols)
	}
	if size.Rows%2 != 0 {
		t.Fatalf("rows = %d, want even", size.Rows)
	}
}
