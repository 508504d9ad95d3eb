package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultBacklogChunks is the number of chunks a ChunkReader buffers before
// it starts dropping the oldest samples.
const DefaultBacklogChunks = 64

var errReaderClosed = errors.New("reader closed")

type ReaderConfig struct {
	ChunkSize      int
	Backlog        int           // samples; 0 means DefaultBacklogChunks * ChunkSize
	FailOnOverflow bool          // report dropped samples as ErrOverflow
	ReadTimeout    time.Duration // 0 waits forever
}

// ChunkReader turns a callback-driven capture device into a blocking source
// of fixed-size chunks. The device callback only appends to a bounded
// backlog; when the reader falls behind the oldest samples are discarded.
type ChunkReader struct {
	dev CaptureDevice
	cfg ReaderConfig

	mu         sync.Mutex
	buf        []int16
	dropped    uint64
	overflowed bool
	closed     bool

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewChunkReader attaches to dev and starts it. On failure the device is
// closed and a CaptureError is returned.
func NewChunkReader(dev CaptureDevice, cfg ReaderConfig) (*ChunkReader, error) {
	if cfg.ChunkSize <= 0 {
		dev.Close()
		return nil, &CaptureError{Op: "open", Err: fmt.Errorf("chunk size %d must be positive", cfg.ChunkSize)}
	}
	if cfg.Backlog < cfg.ChunkSize {
		cfg.Backlog = DefaultBacklogChunks * cfg.ChunkSize
	}
	r := &ChunkReader{
		dev:   dev,
		cfg:   cfg,
		buf:   make([]int16, 0, cfg.Backlog),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	dev.SetCallback(r.push)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		var ce *CaptureError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &CaptureError{Op: "start", Err: err}
	}
	return r, nil
}

func (r *ChunkReader) push(data []byte, _ uint32) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for i := 0; i < n; i++ {
		r.buf = append(r.buf, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	if over := len(r.buf) - r.cfg.Backlog; over > 0 {
		r.buf = append(r.buf[:0], r.buf[over:]...)
		r.dropped += uint64(over)
		r.overflowed = true
	}
	r.mu.Unlock()

	select {
	case r.ready <- struct{}{}:
	default:
	}
}

// NextChunk blocks until ChunkSize samples are available and returns them.
func (r *ChunkReader) NextChunk() ([]int16, error) {
	var timeout <-chan time.Time
	if r.cfg.ReadTimeout > 0 {
		t := time.NewTimer(r.cfg.ReadTimeout)
		defer t.Stop()
		timeout = t.C
	}

	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, &CaptureError{Op: "read", Err: errReaderClosed}
		}
		if r.overflowed && r.cfg.FailOnOverflow {
			r.overflowed = false
			dropped := r.dropped
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %d samples dropped", ErrOverflow, dropped)
		}
		if len(r.buf) >= r.cfg.ChunkSize {
			chunk := make([]int16, r.cfg.ChunkSize)
			copy(chunk, r.buf)
			r.buf = append(r.buf[:0], r.buf[r.cfg.ChunkSize:]...)
			r.mu.Unlock()
			return chunk, nil
		}
		r.mu.Unlock()

		select {
		case <-r.ready:
		case <-r.done:
		case <-timeout:
			return nil, &CaptureError{Op: "read", Err: fmt.Errorf("no audio for %v", r.cfg.ReadTimeout)}
		}
	}
}

// Dropped returns the number of samples discarded so far.
func (r *ChunkReader) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops and releases the device. Pending and later reads fail.
func (r *ChunkReader) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.buf = nil
		r.mu.Unlock()
		close(r.done)

		r.dev.ClearCallback()
		r.dev.Stop()
		r.dev.Close()
	})
	return nil
}
