package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultPreset is used when no preset is named.
const DefaultPreset = "pc"

// Presets maps a preset name to a complete configuration.
type Presets map[string]Config

// Builtin returns the presets shipped with the tool. "pc" and "record"
// differ only in frequency resolution; "hifi" captures at 16 kHz.
func Builtin() Presets {
	pc := Config{
		SampleRate: 1000,
		Duration:   20,
		ChunkSize:  128,
		Cutoff:     0.5,
		Order:      5,
		Resolution: 1.0 / 16,
		OutputDir:  ".",
		Format:     "wav",
	}
	record := pc
	record.Resolution = 1.0 / 6
	hifi := pc
	hifi.SampleRate = 16000
	hifi.ChunkSize = 1024
	return Presets{"pc": pc, "record": record, "hifi": hifi}
}

// Get returns the named preset. Unknown names are usage errors.
func (p Presets) Get(name string) (Config, error) {
	if name == "" {
		name = DefaultPreset
	}
	c, ok := p[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q (have %v)", ErrUsage, name, p.Names())
	}
	return c, nil
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	return sortedKeys(p)
}

type presetFile struct {
	Presets map[string]presetEntry `yaml:"presets"`
}

// presetEntry overrides the fields it sets on top of a built-in base.
type presetEntry struct {
	Base           string   `yaml:"base"`
	SampleRate     *int     `yaml:"sample_rate"`
	Duration       *float64 `yaml:"duration_seconds"`
	ChunkSize      *int     `yaml:"chunk_size"`
	Cutoff         *float64 `yaml:"cutoff_hz"`
	Order          *int     `yaml:"filter_order"`
	Resolution     *float64 `yaml:"frequency_resolution"`
	Live           *bool    `yaml:"live"`
	OutputDir      *string  `yaml:"output_dir"`
	Format         *string  `yaml:"format"`
	FailOnOverflow *bool    `yaml:"fail_on_overflow"`
	Streaming      *bool    `yaml:"streaming_filter"`
}

func (e presetEntry) apply(c Config) Config {
	set(&c.SampleRate, e.SampleRate)
	set(&c.Duration, e.Duration)
	set(&c.ChunkSize, e.ChunkSize)
	set(&c.Cutoff, e.Cutoff)
	set(&c.Order, e.Order)
	set(&c.Resolution, e.Resolution)
	set(&c.Live, e.Live)
	set(&c.OutputDir, e.OutputDir)
	set(&c.Format, e.Format)
	set(&c.FailOnOverflow, e.FailOnOverflow)
	set(&c.Streaming, e.Streaming)
	return c
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// LoadPresets reads a preset file and returns the built-in presets extended
// (or overridden) by the ones it defines.
func LoadPresets(path string) (Presets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadPresetsFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadPresetsFromReader decodes a preset file from r. Every preset starts
// from its base (DefaultPreset when omitted), which must be built in.
// Unknown keys and invalid presets are errors.
func LoadPresetsFromReader(r io.Reader) (Presets, error) {
	var file presetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	builtin := Builtin()
	out := Builtin()
	var errs []error
	for _, name := range sortedKeys(file.Presets) {
		entry := file.Presets[name]
		baseName := entry.Base
		if baseName == "" {
			baseName = DefaultPreset
		}
		base, ok := builtin[baseName]
		if !ok {
			errs = append(errs, fmt.Errorf("presets.%s.base %q is not a built-in preset", name, baseName))
			continue
		}
		c := entry.apply(base)
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("presets.%s: %w", name, err))
			continue
		}
		out[name] = c
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
