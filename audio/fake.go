package audio

import (
	"encoding/binary"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext is a single-device context that plays back a recording.
// In realtime mode the samples are paced at the capture sample rate and
// followed by silence; otherwise all of them are delivered inside Start.
type FakeContext struct {
	pcm      []byte
	realtime bool
	startErr error
}

func NewFakeContext(samples []int16, realtime bool) *FakeContext {
	pcm := make([]byte, len(samples)*fakeBytesPerFrame)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// FailStart makes every capture created afterwards fail to start with err.
func (f *FakeContext) FailStart(err error) { f.startErr = err }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{Index: 0, ID: "fake", Name: "fake", MaxInputChannels: 1}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	frames := int(config.ChunkFrames)
	if frames <= 0 {
		frames = fakeFrameSize
	}
	rate := int(config.SampleRate)
	if rate <= 0 {
		rate = 16000
	}
	return &FakeCapture{
		pcm:        f.pcm,
		realtime:   f.realtime,
		startErr:   f.startErr,
		frames:     frames,
		sampleRate: rate,
		audioDone:  make(chan struct{}),
	}, nil
}

type FakeCapture struct {
	pcm        []byte
	realtime   bool
	startErr   error
	frames     int
	sampleRate int
	audioDone  chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	doneOnce sync.Once
}

// AudioDone is closed once the whole recording has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) finish() {
	f.doneOnce.Do(func() { close(f.audioDone) })
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return &CaptureError{Op: "start", Err: f.startErr}
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := f.frames * fakeBytesPerFrame

	if !f.realtime {
		defer close(f.feedDone)
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		f.finish()
		return nil
	}

	interval := time.Duration(f.frames) * time.Second / time.Duration(f.sampleRate)
	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					f.finish()
					cb(silence, uint32(f.frames))
				}
			}

			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {}
