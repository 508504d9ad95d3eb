package encoder

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestWavRoundTrip(t *testing.T) {
	samples := testSignal(10000)
	samples[0], samples[1] = 32767, -32768
	path := encodeFile(t, FormatWAV, 1000, samples)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, rate, err := DecodeWAV(f)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 1000 {
		t.Errorf("rate = %d, want 1000", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestWavHeader(t *testing.T) {
	path := encodeFile(t, FormatWAV, 16000, testSignal(100))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header %q", data[:12])
	}
	if len(data) != 44+200 {
		t.Errorf("file size %d, want %d", len(data), 44+200)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not audio data at all")))
	if !errors.Is(err, ErrNotWAV) {
		t.Errorf("got %v, want ErrNotWAV", err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"wav", "flac"} {
		if f, err := ParseFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("mp3"); err == nil {
		t.Error("mp3 should be rejected")
	}
}

func TestNewRejectsBadRate(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := New(FormatWAV, f, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
