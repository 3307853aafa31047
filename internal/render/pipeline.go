package render

import (
	"io"
	"time"

	"github.com/furrysalamander/ansicraft/internal/capture"
	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("render")

const (
	// idleSleep bounds the busy-wait when the capture stream has no complete
	// frame pending.
	idleSleep = 10 * time.Millisecond

	// readChunk is the per-iteration read buffer size; large enough that a
	// whole small frame arrives in one drain.
	readChunk = 64 * 1024
)

// Source is the slice of the capture stage the pipeline drives. Satisfied by
// *capture.Stage.
type Source interface {
	Resize(capture.Size) (restarted bool, err error)
	Read(p []byte) (int, error)
	Size() capture.Size
	Generation() uint64
}

// Pipeline couples the capture stage to the encoder, keeping only the newest
// complete frame whenever the sink is slower than the capture. It also drives
// capture restarts when the target geometry changes.
type Pipeline struct {
	stage   Source
	enc     *Encoder
	metrics *Metrics
	sizeFn  func() capture.Size
	frames  chan []byte
	stop    <-chan struct{}
}

// NewPipeline creates a pipeline feeding painted frames into a depth-1
// channel consumed by the sink. sizeFn reports the current target geometry
// and is polled every iteration (well above 10 Hz).
func NewPipeline(stage Source, metrics *Metrics, sizeFn func() capture.Size, stop <-chan struct{}) *Pipeline {
	return &Pipeline{
		stage:   stage,
		enc:     NewEncoder(),
		metrics: metrics,
		sizeFn:  sizeFn,
		frames:  make(chan []byte, 1),
		stop:    stop,
	}
}

// Frames is the painted-frame hand-off consumed by the sink.
func (p *Pipeline) Frames() <-chan []byte {
	return p.frames
}

// Run drives the capture/encode loop until the capture stream ends or stop is
// signalled. Returns nil on a requested stop, io.EOF when the capture child
// exited.
func (p *Pipeline) Run() error {
	readBuf := make([]byte, readChunk)
	var acc []byte
	gen := p.stage.Generation()

	for {
		select {
		case <-p.stop:
			return nil
		default:
		}

		// Geometry poll: a size change restarts the capture child. The byte
		// stream carries no frame boundaries, so everything buffered from the
		// old child is discarded.
		if restarted, err := p.stage.Resize(p.sizeFn()); err != nil {
			if err == capture.ErrStopped {
				return nil
			}
			return err
		} else if restarted {
			acc = acc[:0]
		}
		if g := p.stage.Generation(); g != gen {
			gen = g
			acc = acc[:0]
		}

		size := p.stage.Size()
		frameSize := size.FrameBytes()
		if frameSize == 0 {
			time.Sleep(idleSleep)
			continue
		}

		read := 0
		for {
			n, err := p.stage.Read(readBuf)
			if n > 0 {
				acc = append(acc, readBuf[:n]...)
				read += n
			}
			if err == io.EOF {
				log.Info("capture stream ended")
				return io.EOF
			}
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
		}

		complete := len(acc) / frameSize
		if complete == 0 {
			if read == 0 {
				time.Sleep(idleSleep)
			}
			continue
		}

		// Lossy selection: encode only the newest complete frame, count the
		// rest as dropped.
		p.metrics.RecordCapture()
		if complete > 1 {
			p.metrics.RecordDrop(complete - 1)
			log.Debug("dropped stale frames", "count", complete-1)
		}
		newest := make([]byte, frameSize)
		copy(newest, acc[(complete-1)*frameSize:complete*frameSize])
		rest := copy(acc, acc[complete*frameSize:])
		acc = acc[:rest]

		t0 := time.Now()
		painted := p.enc.Encode(newest, size)
		if painted == nil {
			continue
		}
		p.metrics.RecordEncode(time.Since(t0), len(painted))
		p.offer(painted)
	}
}

// offer places a painted frame into the depth-1 hand-off, replacing any stale
// frame the sink has not yet consumed. The sink therefore never observes an
// older frame after a newer one.
func (p *Pipeline) offer(frame []byte) {
	select {
	case p.frames <- frame:
		return
	default:
	}
	select {
	case <-p.frames:
		p.metrics.RecordDrop(1)
	default:
	}
	select {
	case p.frames <- frame:
	default:
	}
}
