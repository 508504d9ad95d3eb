package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinPresetsValidate(t *testing.T) {
	for name, c := range Builtin() {
		if err := c.Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestPresetValues(t *testing.T) {
	p := Builtin()
	pc, err := p.Get("")
	if err != nil {
		t.Fatal(err)
	}
	if pc.SampleRate != 1000 || pc.ChunkSize != 128 || pc.Order != 5 || pc.Cutoff != 0.5 {
		t.Errorf("default preset = %+v", pc)
	}
	if pc.Resolution != 1.0/16 {
		t.Errorf("pc resolution = %v, want 1/16", pc.Resolution)
	}
	if pc.Iterations() != 156 {
		t.Errorf("pc iterations = %d, want 156", pc.Iterations())
	}

	rec, err := p.Get("record")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Resolution != 1.0/6 {
		t.Errorf("record resolution = %v, want 1/6", rec.Resolution)
	}

	if _, err := p.Get("studio"); !errors.Is(err, ErrUsage) {
		t.Errorf("unknown preset: got %v, want ErrUsage", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Config{
		SampleRate: 100,
		Duration:   -1,
		ChunkSize:  0,
		Cutoff:     60,
		Order:      0,
		Resolution: 0,
		Format:     "ogg",
	}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"chunk_size", "duration_seconds", "twice the cutoff", "frequency_resolution", "ogg"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidateWindowTooSmall(t *testing.T) {
	c := Builtin()["pc"]
	c.Resolution = 2000
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "analysis window") {
		t.Errorf("got %v, want analysis window error", err)
	}
}

func TestValidateDevice(t *testing.T) {
	c := Builtin()["pc"]
	c.Device = NoDevice
	if err := c.Validate(); err != nil {
		t.Errorf("NoDevice rejected: %v", err)
	}
	c.Device = -2
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "device index") {
		t.Errorf("got %v, want device index error", err)
	}
}

func TestParseDeviceIndex(t *testing.T) {
	if n, err := ParseDeviceIndex([]string{"3"}); err != nil || n != 3 {
		t.Errorf("got %d, %v", n, err)
	}
	bad := [][]string{nil, {"mic"}, {"-1"}, {"1", "2"}, {"1.5"}}
	for _, args := range bad {
		if _, err := ParseDeviceIndex(args); !errors.Is(err, ErrUsage) {
			t.Errorf("args %q: got %v, want ErrUsage", args, err)
		}
	}
}

func TestLoadPresetsFromReader(t *testing.T) {
	yaml := `
presets:
  night:
    duration_seconds: 600
    live: true
  fast:
    base: hifi
    frequency_resolution: 0.25
    format: flac
`
	p, err := LoadPresetsFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatal(err)
	}
	night, err := p.Get("night")
	if err != nil {
		t.Fatal(err)
	}
	if night.Duration != 600 || !night.Live || night.SampleRate != 1000 {
		t.Errorf("night = %+v", night)
	}
	fast := p["fast"]
	if fast.SampleRate != 16000 || fast.Resolution != 0.25 || fast.Format != "flac" {
		t.Errorf("fast = %+v", fast)
	}
	if _, ok := p["pc"]; !ok {
		t.Error("built-in presets should remain available")
	}
}

func TestLoadPresetsUnknownField(t *testing.T) {
	yaml := `
presets:
  night:
    gain: 8
`
	if _, err := LoadPresetsFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadPresetsInvalid(t *testing.T) {
	yaml := `
presets:
  broken:
    cutoff_hz: 900
  orphan:
    base: nope
`
	_, err := LoadPresetsFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "presets.broken") || !strings.Contains(err.Error(), "presets.orphan") {
		t.Errorf("both presets should be reported, got: %v", err)
	}
}

func TestLoadPresetsEmptyFile(t *testing.T) {
	p, err := LoadPresetsFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != len(Builtin()) {
		t.Errorf("got %d presets, want built-ins only", len(p))
	}
}

func TestLoadPresetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(path, []byte("presets:\n  short:\n    duration_seconds: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPresets(path)
	if err != nil {
		t.Fatal(err)
	}
	if p["short"].Duration != 5 {
		t.Errorf("short = %+v", p["short"])
	}
	if _, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
