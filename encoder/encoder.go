package encoder

import (
	"fmt"
	"io"
)

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format names an on-disk audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

// Ext returns the file extension, dot included.
func (f Format) Ext() string { return "." + string(f) }

// ParseFormat accepts "wav" or "flac".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWAV, FormatFLAC:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown audio format %q (use wav or flac)", s)
}

// Encoder writes mono 16-bit PCM. Blocks may be any length.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
}

// New returns an encoder for format writing to w. Close finalises the
// container but does not close w.
func New(format Format, w io.WriteSeeker, sampleRate int) (Encoder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d must be positive", sampleRate)
	}
	switch format {
	case FormatWAV:
		return NewWav(w, sampleRate), nil
	case FormatFLAC:
		return NewFlac(w, sampleRate)
	}
	return nil, fmt.Errorf("unknown audio format %q", format)
}

// EncodeAll writes samples in BlockSize blocks and closes the encoder.
func EncodeAll(enc Encoder, samples []int16) error {
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	return enc.Close()
}
