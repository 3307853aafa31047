// Package session assembles the per-connection pipeline: admission, game
// launch, the outbound capture→encode→write chain, and the inbound
// decode→translate chain, all governed by one running flag.
package session

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/furrysalamander/ansicraft/internal/capture"
	"github.com/furrysalamander/ansicraft/internal/game"
	"github.com/furrysalamander/ansicraft/internal/input"
	"github.com/furrysalamander/ansicraft/internal/logging"
	"github.com/furrysalamander/ansicraft/internal/queue"
	"github.com/furrysalamander/ansicraft/internal/render"
)

var log = logging.L("session")

const (
	// joinTimeout bounds how long teardown waits for the pipeline stages.
	joinTimeout = 2 * time.Second

	// metricsLogInterval paces the per-session streaming stats line.
	metricsLogInterval = 30 * time.Second
)

// Config carries everything a session needs beyond its SSH channel.
type Config struct {
	Capture       capture.Config
	Game          game.Config
	GameWidth     int
	GameHeight    int
	XdotoolBinary string
}

// Runtime is one client's session. Created per SSH channel by the frontend.
type Runtime struct {
	identity string
	cfg      Config
	pool     *queue.Pool
	reaper   *game.Reaper
	out      io.Writer

	term    *TermSize
	inbound *input.Queue
	metrics *render.Metrics

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	slot     atomic.Int32 // -1 until granted
}

// New creates a runtime for an authenticated client. out must be the SSH
// channel's write half; the runtime's sink owns it for the session duration.
func New(identity string, out io.Writer, cfg Config, pool *queue.Pool, reaper *game.Reaper) *Runtime {
	r := &Runtime{
		identity: identity,
		cfg:      cfg,
		pool:     pool,
		reaper:   reaper,
		out:      out,
		term:     NewTermSize(cfg.GameWidth, cfg.GameHeight),
		inbound:  input.NewQueue(),
		metrics:  render.NewMetrics(),
	}
	r.stopCh = make(chan struct{})
	r.running.Store(true)
	r.slot.Store(-1)
	return r
}

// Identity returns the client's truncated key fingerprint.
func (r *Runtime) Identity() string {
	return r.identity
}

// Slot returns the granted display slot, if any.
func (r *Runtime) Slot() (queue.SlotID, bool) {
	s := r.slot.Load()
	return queue.SlotID(s), s >= 0
}

// MetricsSnapshot exposes streaming counters to the monitor feed.
func (r *Runtime) MetricsSnapshot() render.Snapshot {
	return r.metrics.Snapshot()
}

// PushInput enqueues inbound SSH bytes. Called from the frontend's data path.
func (r *Runtime) PushInput(b []byte) {
	r.inbound.Push(b)
}

// Resize updates the target geometry from a PTY or window-change request.
func (r *Runtime) Resize(cols int) {
	r.term.SetCols(cols)
}

// Stop clears the running flag and wakes every stage. Safe from any
// goroutine, any number of times.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		r.running.Store(false)
		close(r.stopCh)
		r.inbound.Close()
	})
}

// Running reports whether the session is still live.
func (r *Runtime) Running() bool {
	return r.running.Load()
}

// Run drives the session to completion: admission, game launch, serve,
// teardown. It blocks until the session ends and leaves the slot released
// and the game child handed to the reaper.
func (r *Runtime) Run() error {
	defer r.Stop()

	ticket := r.pool.Acquire()
	slot, ok := r.awaitSlot(ticket)
	if !ok {
		return nil
	}
	r.slot.Store(int32(slot))
	defer r.pool.Release(slot)

	fmt.Fprintf(r.out, "✅ Assigned session %d\r\n", slot)
	display := queue.DisplayName(slot)
	log.Info("session starting", "identity", r.identity, "slot", int(slot), "display", display)

	proc, err := game.Launch(r.cfg.Game, display, r.identity)
	if err != nil {
		fmt.Fprintf(r.out, "❌ Server error: %v\r\n", err)
		return err
	}
	defer r.reaper.Reap(proc)

	// A game exit while the session is live tears the session down; the last
	// painted frame is not worth keeping a dead display slot for.
	go func() {
		select {
		case <-proc.Done():
			log.Info("game exited, ending session", "identity", r.identity)
			r.Stop()
		case <-r.stopCh:
		}
	}()

	stage := capture.NewStage(display, r.cfg.Capture)
	if err := stage.Start(r.term.Get()); err != nil {
		fmt.Fprintf(r.out, "❌ Server error: %v\r\n", err)
		return err
	}
	defer stage.Stop()

	return r.serve(stage, display)
}

// serve runs the five pipeline stages until any of them ends the session.
func (r *Runtime) serve(stage *capture.Stage, display string) error {
	pipe := render.NewPipeline(stage, r.metrics, r.term.Get, r.stopCh)
	sink := render.NewSink(r.out, pipe.Frames(), r.metrics, r.stopCh)
	dec := input.NewDecoder(r.inbound, r.stopCh)
	inj := input.NewXdoInjector(r.cfg.XdotoolBinary, display)
	tr := input.NewTranslator(inj, dec.Events(), r.term.Get, r.cfg.GameWidth, r.cfg.GameHeight, r.Stop, r.stopCh)

	if err := sink.Setup(); err != nil {
		return fmt.Errorf("session: terminal setup: %w", err)
	}
	defer sink.Restore()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var sinkErr error

	runStage := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.Stop()
			fn()
		}()
	}

	runStage(func() {
		if err := pipe.Run(); err != nil && err != io.EOF {
			log.Warn("render pipeline failed", "identity", r.identity, "error", err)
		}
	})
	runStage(func() {
		if err := sink.Run(); err != nil {
			errMu.Lock()
			sinkErr = err
			errMu.Unlock()
			log.Warn("output sink failed", "identity", r.identity, "error", err)
		}
	})
	runStage(dec.Run)
	runStage(tr.Run)

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.logMetrics()
	}()

	<-r.stopCh
	if !waitTimeout(&wg, joinTimeout) {
		log.Warn("stage join timed out", "identity", r.identity)
	}

	snap := r.metrics.Snapshot()
	log.Info("session ended",
		"identity", r.identity,
		"framesSent", snap.FramesSent,
		"framesDropped", snap.FramesDropped,
		"uptimeSeconds", int(snap.UptimeSeconds))

	errMu.Lock()
	defer errMu.Unlock()
	return sinkErr
}

// awaitSlot streams queue positions to the client until a terminal status.
// On session stop it cancels the ticket and hands any late grant straight
// back to the pool.
func (r *Runtime) awaitSlot(ticket *queue.Ticket) (queue.SlotID, bool) {
	for {
		select {
		case <-r.stopCh:
			ticket.Cancel()
			go func() {
				for st := range ticket.Status() {
					if st.Kind == queue.StatusGranted {
						r.pool.Release(st.Slot)
					}
				}
			}()
			return 0, false

		case st, open := <-ticket.Status():
			if !open {
				// Stream dropped before a terminal status; surface it as a
				// failure so the client always sees a final state.
				fmt.Fprintf(r.out, "❌ Server error: request cancelled\r\n")
				return 0, false
			}
			switch st.Kind {
			case queue.StatusGranted:
				return st.Slot, true
			case queue.StatusQueued:
				fmt.Fprintf(r.out, "⏳ You are position %d in queue\r\n", st.Position+1)
			case queue.StatusCancelled:
				fmt.Fprintf(r.out, "❌ Request was cancelled\r\n")
				return 0, false
			case queue.StatusFailed:
				fmt.Fprintf(r.out, "❌ Server error: %s\r\n", st.Reason)
				return 0, false
			}
		}
	}
}

func (r *Runtime) logMetrics() {
	ticker := time.NewTicker(metricsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			snap := r.metrics.Snapshot()
			log.Debug("streaming stats",
				"identity", r.identity,
				"framesSent", snap.FramesSent,
				"framesDropped", snap.FramesDropped,
				"encodeMs", snap.EncodeMs,
				"bandwidthKBps", snap.BandwidthKBps)
		}
	}
}

// waitTimeout waits for wg up to d; reports whether the wait completed.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
