package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("RESPIRE_LOG_PATH", "/tmp/respire-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/respire-env-log" {
		t.Errorf("got %q, want /tmp/respire-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("RESPIRE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "rates_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestRate(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Rate(18.75, "live")

	data, err := os.ReadFile(filepath.Join(tmp, "rates_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "18.75\tlive") {
		t.Errorf("rates_log.txt missing rate, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\trate\tsource\n"
	if strings.Count(line, "\t") != 3 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestSessionLines(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart(Session{Preset: "pc", Device: "fake", SampleRate: 1000, ChunkSize: 128, Duration: 20, Cutoff: 0.5, Order: 5})
	Iteration(3, 17.5, 0)
	Overflow(42)
	SessionEnd(156, 19968, 18, "out", "4bf92f3577b34da6a3ce929d0e0e4736")

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"session_start", "preset=pc", "input_overflow", "dropped_samples=42", "session_end", "iterations=156", "trace_id=4bf92f3577b34da6a3ce929d0e0e4736"} {
		if !strings.Contains(text, want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "estimate") {
		t.Error("debug lines should be suppressed unless verbose")
	}
}

func TestVerboseLogsIterations(t *testing.T) {
	tmp := setupLogDir(t)
	SetVerbose(true)
	t.Cleanup(func() { SetVerbose(false) })

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Iteration(7, 16, 0)

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "iteration=7") {
		t.Errorf("missing iteration line: %q", data)
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	Info("dropped")
	Rate(1, "x")
	SessionEnd(0, 0, 0, "", "")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
