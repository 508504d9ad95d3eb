package encoder

import (
	"fmt"
	"io"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type FlacEncoder struct {
	enc         *flac.Encoder
	sampleRate  uint32
	totalFrames uint64
	mu          sync.Mutex
}

// NewFlac starts a FLAC stream on w. When w can seek the stream info is
// rewritten with the final sample count on Close.
func NewFlac(w io.Writer, sampleRate int) (*FlacEncoder, error) {
	e := &FlacEncoder{sampleRate: uint32(sampleRate)}
	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	// The flac encoder closes writers that implement io.Closer; hide it.
	if ws, ok := w.(io.WriteSeeker); ok {
		w = struct{ io.WriteSeeker }{ws}
	} else {
		w = struct{ io.Writer }{w}
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

func (e *FlacEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(block) > 0 {
		n := min(len(block), BlockSize)
		if err := e.writeFrame(block[:n]); err != nil {
			return err
		}
		block = block[n:]
	}
	return nil
}

func (e *FlacEncoder) writeFrame(block []int16) error {
	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    e.sampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Close()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	return e.totalFrames
}
