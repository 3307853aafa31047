// Package monitor serves the read-only operational status feed: a JSON
// health snapshot over HTTP and a live stream of the same snapshot over a
// websocket. It exposes no control surface.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/furrysalamander/ansicraft/internal/logging"
	"github.com/furrysalamander/ansicraft/internal/queue"
	"github.com/furrysalamander/ansicraft/internal/render"
)

var log = logging.L("monitor")

const pushInterval = time.Second

// SessionStatus is one session's entry in the snapshot.
type SessionStatus struct {
	Identity string          `json:"identity"`
	Slot     *int            `json:"slot,omitempty"`
	Display  string          `json:"display,omitempty"`
	Metrics  render.Snapshot `json:"metrics"`
}

// HostHealth carries coarse host utilization.
type HostHealth struct {
	CPUPercent        float64 `json:"cpuPercent"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
}

// StatusSnapshot is the full feed payload.
type StatusSnapshot struct {
	Time     time.Time       `json:"time"`
	Pool     queue.Snapshot  `json:"pool"`
	Sessions []SessionStatus `json:"sessions"`
	Host     HostHealth      `json:"host"`
}

// Server is the HTTP/websocket status endpoint.
type Server struct {
	pool     *queue.Pool
	registry *Registry
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

// New creates a monitor server on addr.
func New(addr string, pool *queue.Pool, registry *Registry) *Server {
	s := &Server{
		pool:     pool,
		registry: registry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving the status feed.
func (s *Server) ListenAndServe() error {
	log.Info("status feed listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) snapshot() StatusSnapshot {
	sessions := s.registry.List()
	statuses := make([]SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		st := SessionStatus{
			Identity: sess.Identity(),
			Metrics:  sess.MetricsSnapshot(),
		}
		if slot, ok := sess.Slot(); ok {
			n := int(slot)
			st.Slot = &n
			st.Display = queue.DisplayName(slot)
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Identity < statuses[j].Identity })

	return StatusSnapshot{
		Time:     time.Now(),
		Pool:     s.pool.Stats(),
		Sessions: statuses,
		Host:     collectHealth(),
	}
}

func collectHealth() HostHealth {
	var h HostHealth
	// Non-blocking sample: percentage since the previous call.
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		h.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemoryUsedPercent = vm.UsedPercent
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		log.Warn("health encode failed", "error", err)
	}
}

// handleWS pushes a snapshot every second until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	// Reader pump: we never expect inbound messages, but reading is how the
	// close handshake is observed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	if err := conn.WriteJSON(s.snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.snapshot()); err != nil {
				return
			}
		}
	}
}
