package encoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavPCM = 1

var ErrNotWAV = errors.New("not a RIFF/WAVE file")

type WavEncoder struct {
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
}

// NewWav writes a 16-bit mono PCM WAV. The header sizes are patched on
// Close, so w must be seekable.
func NewWav(w io.WriteSeeker, sampleRate int) *WavEncoder {
	return &WavEncoder{
		enc:    wav.NewEncoder(w, sampleRate, BitsPerSample, Channels, wavPCM),
		format: &audio.Format{NumChannels: Channels, SampleRate: sampleRate},
	}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finalising wav: %w", err)
	}
	return nil
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

// DecodeWAV reads a PCM WAV into 16-bit mono samples and returns them with
// the sample rate. Multi-channel files keep only the first channel; other
// bit depths are rescaled to 16 bits.
func DecodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrNotWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}

	chans := int(d.NumChans)
	if chans < 1 {
		chans = 1
	}
	depth := int(d.BitDepth)
	n := len(buf.Data) / chans
	out := make([]int16, n)
	for i := range out {
		v := buf.Data[i*chans]
		switch {
		case depth > BitsPerSample:
			v >>= depth - BitsPerSample
		case depth == 8:
			v = (v - 128) << 8
		}
		out[i] = int16(v)
	}
	return out, int(d.SampleRate), nil
}
