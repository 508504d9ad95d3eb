package store

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"respire/dsp"
	"respire/encoder"
	"respire/session"
)

func testResult() *session.Result {
	raw := make([]int16, 2000)
	filtered := make([]float64, 2000)
	for i := range raw {
		raw[i] = int16(i % 100)
		filtered[i] = float64(i%100) + 0.4
	}
	return &session.Result{
		Config: session.Config{
			SampleRate: 1000,
			Duration:   2,
			ChunkSize:  100,
			Filter:     dsp.FilterSpec{Cutoff: 0.5, SampleRate: 1000, Order: 5},
			Resolution: 1,
			Live:       true,
		},
		Started:   time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC),
		Raw:       raw,
		Filtered:  filtered,
		LiveRates: []float64{math.NaN(), 18, 18.75},
		Rate:      18,
		Duration:  2,
		Completed: true,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestWriteArtifacts(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	s := New(root, encoder.FormatWAV)
	if err := s.Write(testResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dir := s.Dir()
	if want := filepath.Join(root, "2024-03-01_12-30-45.123456"); dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}

	f, err := os.Open(filepath.Join(dir, "recorded_audio.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	raw, rate, err := encoder.DecodeWAV(f)
	if err != nil {
		t.Fatal(err)
	}
	if rate != 1000 || len(raw) != 2000 || raw[42] != 42 {
		t.Errorf("raw: rate %d, %d samples, raw[42]=%d", rate, len(raw), raw[42])
	}

	g, err := os.Open(filepath.Join(dir, "filtered_audio.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	filtered, _, err := encoder.DecodeWAV(g)
	if err != nil {
		t.Fatal(err)
	}
	if filtered[42] != 42 {
		t.Errorf("filtered[42] = %d, want 42 (rounded)", filtered[42])
	}

	if got, want := readFile(t, filepath.Join(dir, "rr.csv")), "rr\n\n18.0\n18.75\n"; got != want {
		t.Errorf("rr.csv = %q, want %q", got, want)
	}
	if got := readFile(t, filepath.Join(dir, "gt.txt")); got != "18.0" {
		t.Errorf("gt.txt = %q, want 18.0", got)
	}

	var sum summary
	if err := yaml.Unmarshal([]byte(readFile(t, filepath.Join(dir, "session.yaml"))), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Iterations != 20 || sum.Samples != 2000 || sum.LiveEstimates != 2 || sum.Rate == nil || *sum.Rate != 18 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestWriteWithoutFilteredSignal(t *testing.T) {
	res := testResult()
	res.Filtered = nil
	res.Rate = math.NaN()
	res.LiveRates = nil

	s := New(t.TempDir(), encoder.FormatFLAC)
	if err := s.Write(res); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dir := s.Dir()
	if _, err := os.Stat(filepath.Join(dir, "recorded_audio.flac")); err != nil {
		t.Errorf("raw flac missing: %v", err)
	}
	for _, name := range []string{"filtered_audio.flac", "gt.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not exist (err %v)", name, err)
		}
	}
	if got := readFile(t, filepath.Join(dir, "rr.csv")); got != "rr\n" {
		t.Errorf("rr.csv = %q, want header only", got)
	}
	if sum := readFile(t, filepath.Join(dir, "session.yaml")); !strings.Contains(sum, "rate_per_minute: null") {
		t.Errorf("summary missing null rate:\n%s", sum)
	}
}

func TestWriteRefusesExistingDir(t *testing.T) {
	root := t.TempDir()
	res := testResult()
	if err := New(root, "").Write(res); err != nil {
		t.Fatal(err)
	}
	if err := New(root, "").Write(res); err == nil {
		t.Error("second write into the same directory succeeded")
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{18, "18.0"},
		{0, "0.0"},
		{17.25, "17.25"},
		{15.483870967741936, "15.483870967741936"},
		{-3, "-3.0"},
		{math.Inf(1), "+Inf"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
