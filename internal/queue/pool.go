// Package queue implements the display-slot admission queue. A fixed set of
// pre-provisioned X displays is handed out to sessions one at a time; everyone
// else waits in FIFO order and is kept informed of their position.
package queue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("queue")

// SlotID names a pre-provisioned graphical display in [0, MaxSessions).
type SlotID int

// DisplayName returns the X display identifier for a slot (":1" for slot 0).
// Display :0 is reserved for the host, so slots start at :1.
func DisplayName(slot SlotID) string {
	return fmt.Sprintf(":%d", int(slot)+1)
}

// StatusKind tags a Status value.
type StatusKind int

const (
	// StatusGranted carries the allocated slot. Terminal.
	StatusGranted StatusKind = iota
	// StatusQueued carries the caller's current queue position (0 = next in line).
	StatusQueued
	// StatusCancelled reports that the request was cancelled before a slot
	// was allocated. Terminal.
	StatusCancelled
	// StatusFailed reports that the pool could not serve the request. Terminal.
	StatusFailed
)

// Status is one observation on a ticket's status stream. Exactly one terminal
// status (Granted, Cancelled or Failed) is delivered per ticket, after which
// the stream is closed.
type Status struct {
	Kind     StatusKind
	Slot     SlotID // valid when Kind == StatusGranted
	Position int    // valid when Kind == StatusQueued
	Reason   string // valid when Kind == StatusFailed
}

// Terminal reports whether this status ends the stream.
func (s Status) Terminal() bool {
	return s.Kind != StatusQueued
}

// statusBuffer bounds the per-ticket status channel. The manager drops a stale
// position update to make room when it is full, so terminal statuses always
// land even against a receiver that has stopped draining.
const statusBuffer = 8

// Ticket is one pending or granted slot request.
type Ticket struct {
	id         uint64
	status     chan Status
	cancel     chan struct{}
	cancelOnce sync.Once

	// lastPos is the last queue position delivered, tracked by the manager so
	// unchanged positions are not rebroadcast. -1 until the first Queued.
	lastPos int
}

// Status returns the ticket's status stream. The stream ends with exactly one
// terminal status followed by channel close.
func (t *Ticket) Status() <-chan Status {
	return t.status
}

// Cancel asks the pool to abandon this ticket. The pool observes the
// cancellation at its next event-loop turn; if a slot was already granted the
// cancellation is a no-op and the caller still owns the slot. Safe to call
// more than once.
func (t *Ticket) Cancel() {
	t.cancelOnce.Do(func() { close(t.cancel) })
}

func (t *Ticket) cancelled() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}

// Snapshot is a point-in-time view of the pool for the monitor feed.
type Snapshot struct {
	Capacity  int `json:"capacity"`
	FreeSlots int `json:"freeSlots"`
	Waiting   int `json:"waiting"`
}

// Pool admits at most its capacity of concurrent sessions. All queue state is
// owned by a single manager goroutine; the exported methods communicate with
// it over channels only.
type Pool struct {
	capacity  int
	acquires  chan *Ticket
	releases  chan SlotID
	snapshots chan chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
	nextID    atomic.Uint64
}

// NewPool creates a pool over slots 0..capacity-1 and starts its manager.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		capacity:  capacity,
		acquires:  make(chan *Ticket),
		releases:  make(chan SlotID, capacity),
		snapshots: make(chan chan Snapshot),
		done:      make(chan struct{}),
	}
	go p.manage()
	return p
}

// Acquire requests a slot. The first status is either Granted (a slot was
// free) or Queued with the caller's position; further statuses are position
// updates followed by one terminal status.
func (p *Pool) Acquire() *Ticket {
	t := &Ticket{
		id:      p.nextID.Add(1),
		status:  make(chan Status, statusBuffer),
		cancel:  make(chan struct{}),
		lastPos: -1,
	}
	select {
	case p.acquires <- t:
	case <-p.done:
		t.lastPos = 0
		emit(t, Status{Kind: StatusFailed, Reason: "pool is shut down"})
		close(t.status)
	}
	return t
}

// Release returns a slot to the pool. The caller must own the slot via a
// previous Granted status. The pool never reclaims granted slots on its own.
func (p *Pool) Release(slot SlotID) {
	select {
	case p.releases <- slot:
	case <-p.done:
	}
}

// Stats returns a snapshot of the pool's occupancy.
func (p *Pool) Stats() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case p.snapshots <- reply:
		return <-reply
	case <-p.done:
		return Snapshot{Capacity: p.capacity}
	}
}

// Close stops the manager and fails every outstanding waiter. Granted slots
// are not reclaimed; sessions release them on their own teardown.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Pool) manage() {
	free := make([]SlotID, 0, p.capacity)
	for i := 0; i < p.capacity; i++ {
		free = append(free, SlotID(i))
	}
	var waiters []*Ticket

	for {
		select {
		case t := <-p.acquires:
			if len(waiters) > 0 || len(free) == 0 {
				waiters = append(waiters, t)
				deliverPosition(t, len(waiters)-1)
				break
			}
			if t.cancelled() {
				finish(t, Status{Kind: StatusCancelled})
				break
			}
			slot := free[0]
			free = free[1:]
			finish(t, Status{Kind: StatusGranted, Slot: slot})

		case slot := <-p.releases:
			granted := false
			for len(waiters) > 0 {
				t := waiters[0]
				waiters = waiters[1:]
				if t.cancelled() {
					finish(t, Status{Kind: StatusCancelled})
					continue
				}
				finish(t, Status{Kind: StatusGranted, Slot: slot})
				granted = true
				break
			}
			if !granted {
				free = append(free, slot)
			}
			// Waiters that cancelled further back are told so now; the rest
			// get their updated positions.
			kept := waiters[:0]
			for _, t := range waiters {
				if t.cancelled() {
					finish(t, Status{Kind: StatusCancelled})
					continue
				}
				deliverPosition(t, len(kept))
				kept = append(kept, t)
			}
			waiters = kept

		case reply := <-p.snapshots:
			reply <- Snapshot{Capacity: p.capacity, FreeSlots: len(free), Waiting: len(waiters)}

		case <-p.done:
			for _, t := range waiters {
				finish(t, Status{Kind: StatusFailed, Reason: "pool is shut down"})
			}
			log.Info("pool closed", "capacity", p.capacity)
			return
		}
	}
}

// deliverPosition sends a Queued update unless the position is unchanged
// since the last one delivered to this ticket.
func deliverPosition(t *Ticket, pos int) {
	if t.lastPos == pos {
		return
	}
	t.lastPos = pos
	emit(t, Status{Kind: StatusQueued, Position: pos})
}

func finish(t *Ticket, st Status) {
	emit(t, st)
	close(t.status)
}

// emit delivers a status without ever blocking the manager. If the ticket's
// buffer is full, one stale entry is dropped to make room; since the manager
// is the only sender, the send after the drain cannot fail.
func emit(t *Ticket, st Status) {
	select {
	case t.status <- st:
		return
	default:
	}
	select {
	case <-t.status:
	default:
	}
	select {
	case t.status <- st:
	default:
	}
}
