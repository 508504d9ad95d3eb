package doctor

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"respire/audio"
	"respire/dsp"
)

func testOptions(t *testing.T, samples []int16) Options {
	t.Helper()
	return Options{
		Context:    audio.NewFakeContext(samples, false),
		Device:     -1,
		LogDir:     t.TempDir(),
		SampleRate: 1000,
		ChunkSize:  100,
		Seconds:    1,
		Filter:     dsp.FilterSpec{Cutoff: 0.5, SampleRate: 1000, Order: 5},
		Resolution: 1.0 / 16,
	}
}

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(6000 * math.Sin(2*math.Pi*50*float64(i)/1000))
	}
	return out
}

func TestRunAllPass(t *testing.T) {
	var buf bytes.Buffer
	if code := Run(&buf, testOptions(t, tone(2000))); code != 0 {
		t.Fatalf("exit = %d\n%s", code, buf.String())
	}
	out := buf.String()
	if strings.Count(out, "PASS") != 4 {
		t.Errorf("want 4 PASS lines:\n%s", out)
	}
	if !strings.Contains(out, "All checks passed!") {
		t.Errorf("missing summary:\n%s", out)
	}
}

func TestRunSilentMicrophone(t *testing.T) {
	var buf bytes.Buffer
	if code := Run(&buf, testOptions(t, make([]int16, 2000))); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "FAIL: fake: no signal") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestRunMissingDevice(t *testing.T) {
	opts := testOptions(t, tone(2000))
	opts.Device = 7
	var buf bytes.Buffer
	if code := Run(&buf, opts); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "no such input device") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestCheckPipeline(t *testing.T) {
	opts := testOptions(t, nil)
	detail, err := checkPipeline(&opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(detail, "per minute by peaks") {
		t.Errorf("detail = %q", detail)
	}
}

func TestCheckPipelineUsesResolution(t *testing.T) {
	opts := testOptions(t, nil)
	opts.Resolution = 1.0 / 6
	detail, err := checkPipeline(&opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(detail, "(0.1667 Hz bins)") {
		t.Errorf("detail = %q", detail)
	}

	opts.Resolution = 0
	if _, err := checkPipeline(&opts); err == nil {
		t.Error("zero resolution accepted")
	}
}
