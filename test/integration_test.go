//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("RESPIRE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "RESPIRE_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// generateBreathWAV writes a mono PCM16 sine standing in for a breathing
// envelope.
func generateBreathWAV(t *testing.T, sampleRate int, freq, durationS float64) string {
	t.Helper()
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		v := int16(math.Round(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}

	path := filepath.Join(t.TempDir(), "breath.wav")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runRespire(t *testing.T, args ...string) (logDir, output string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("respire exited with error: %v\noutput: %s", err, out)
	}
	return logDir, string(out)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func sessionDir(t *testing.T, out string) string {
	t.Helper()
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one session folder, got %d", len(entries))
	}
	return filepath.Join(out, entries[0].Name())
}

// --- Recording tests ---

func TestReplayRecording(t *testing.T) {
	wav := generateBreathWAV(t, 1000, 0.3, 20)
	out := t.TempDir()
	logDir, output := runRespire(t, "-replay", wav, "-fast", "-out", out)
	if !strings.Contains(output, "samples recorded") {
		t.Errorf("output = %q", output)
	}

	dir := sessionDir(t, out)
	gt, err := os.ReadFile(filepath.Join(dir, "gt.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(gt)) == "" {
		t.Error("gt.txt is empty")
	}

	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "session_end", "trace_id="} {
		if !strings.Contains(diag, want) {
			t.Errorf("expected %s in diagnostics", want)
		}
	}
	if strings.TrimSpace(readLog(t, logDir, "rates_log.txt")) == "" {
		t.Error("rates_log.txt is empty")
	}
}

func TestReplayLive(t *testing.T) {
	wav := generateBreathWAV(t, 1000, 0.3, 20)
	out := t.TempDir()
	logDir, output := runRespire(t, "-replay", wav, "-fast", "-plot", "-resolution", "0.5", "-verbose", "-out", out)
	if !strings.Contains(output, "major peak:") {
		t.Errorf("no live estimates in output:\n%s", output)
	}

	rr, err := os.ReadFile(filepath.Join(sessionDir(t, out), "rr.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(rr), "rr\n") {
		t.Errorf("rr.csv header = %q", strings.SplitN(string(rr), "\n", 2)[0])
	}
	if !strings.Contains(readLog(t, logDir, "diagnostics_log.txt"), "iteration=") {
		t.Error("expected estimate entries in diagnostics with -verbose")
	}
}

func TestReplayStreaming(t *testing.T) {
	wav := generateBreathWAV(t, 1000, 0.3, 20)
	_, output := runRespire(t, "-replay", wav, "-fast", "-plot", "-streaming", "-resolution", "0.5", "-out", t.TempDir())
	if !strings.Contains(output, "major peak:") {
		t.Errorf("no live estimates in output:\n%s", output)
	}
}

// --- Offline tests ---

func TestAnalyze(t *testing.T) {
	wav := generateBreathWAV(t, 1000, 0.25, 40)
	_, output := runRespire(t, "-analyze", wav)
	if !strings.Contains(output, "peak count rate: 15.0 per minute") {
		t.Errorf("output = %q", output)
	}
}

func TestDoctor(t *testing.T) {
	wav := generateBreathWAV(t, 1000, 0.3, 5)
	_, output := runRespire(t, "-doctor", "-replay", wav)
	if !strings.Contains(output, "All checks passed!") {
		t.Errorf("output = %q", output)
	}
}
