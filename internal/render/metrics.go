package render

import (
	"sync"
	"time"
)

// Metrics tracks per-session streaming counters for the monitor feed and the
// periodic session log line.
type Metrics struct {
	mu sync.Mutex

	framesCaptured uint64
	framesEncoded  uint64
	framesSent     uint64
	framesDropped  uint64
	bytesSent      uint64
	lastEncode     time.Duration
	lastFrameBytes int
	start          time.Time
}

// NewMetrics creates a metrics tracker anchored at now.
func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

func (m *Metrics) RecordCapture() {
	m.mu.Lock()
	m.framesCaptured++
	m.mu.Unlock()
}

func (m *Metrics) RecordEncode(d time.Duration, size int) {
	m.mu.Lock()
	m.framesEncoded++
	m.lastEncode = d
	m.lastFrameBytes = size
	m.mu.Unlock()
}

func (m *Metrics) RecordSend(size int) {
	m.mu.Lock()
	m.framesSent++
	m.bytesSent += uint64(size)
	m.mu.Unlock()
}

func (m *Metrics) RecordDrop(n int) {
	m.mu.Lock()
	m.framesDropped += uint64(n)
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	FramesCaptured uint64  `json:"framesCaptured"`
	FramesEncoded  uint64  `json:"framesEncoded"`
	FramesSent     uint64  `json:"framesSent"`
	FramesDropped  uint64  `json:"framesDropped"`
	EncodeMs       float64 `json:"encodeMs"`
	LastFrameBytes int     `json:"lastFrameBytes"`
	BandwidthKBps  float64 `json:"bandwidthKBps"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := time.Since(m.start)
	bw := float64(0)
	if uptime.Seconds() > 0 {
		bw = float64(m.bytesSent) / uptime.Seconds() / 1024.0
	}

	return Snapshot{
		FramesCaptured: m.framesCaptured,
		FramesEncoded:  m.framesEncoded,
		FramesSent:     m.framesSent,
		FramesDropped:  m.framesDropped,
		EncodeMs:       float64(m.lastEncode.Microseconds()) / 1000.0,
		LastFrameBytes: m.lastFrameBytes,
		BandwidthKBps:  bw,
		UptimeSeconds:  uptime.Seconds(),
	}
}
