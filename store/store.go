// Package store writes the artifact directory of a finished session.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"respire/dsp"
	"respire/encoder"
	"respire/session"
)

// DirLayout names a session directory after its start time. It has no
// spaces or colons so the name is valid on every platform.
const DirLayout = "2006-01-02_15-04-05.000000"

const (
	RawName      = "recorded_audio"
	FilteredName = "filtered_audio"
	RatesName    = "rr.csv"
	TruthName    = "gt.txt"
	SummaryName  = "session.yaml"
)

// Store writes each result into a new directory under Root. It implements
// session.Sink.
type Store struct {
	Root   string
	Format encoder.Format

	last string
}

func New(root string, format encoder.Format) *Store {
	if root == "" {
		root = "."
	}
	if format == "" {
		format = encoder.FormatWAV
	}
	return &Store{Root: root, Format: format}
}

// Dir returns the directory written by the last successful Write call.
func (s *Store) Dir() string { return s.last }

// Write creates the session directory and every artifact the result allows:
// raw audio always, filtered audio and gt.txt only when the final filter ran.
// The directory is kept even when a later artifact fails.
func (s *Store) Write(res *session.Result) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("creating output root: %w", err)
	}
	dir := filepath.Join(s.Root, res.Started.Format(DirLayout))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	s.last = dir

	rate := res.Config.SampleRate
	var errs []error
	if err := WriteAudio(filepath.Join(dir, RawName+s.Format.Ext()), s.Format, rate, res.Raw); err != nil {
		errs = append(errs, err)
	}
	if res.Filtered != nil {
		if err := WriteAudio(filepath.Join(dir, FilteredName+s.Format.Ext()), s.Format, rate, dsp.Int16s(res.Filtered)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := WriteRates(filepath.Join(dir, RatesName), res.LiveRates); err != nil {
		errs = append(errs, err)
	}
	if !math.IsNaN(res.Rate) {
		if err := os.WriteFile(filepath.Join(dir, TruthName), []byte(FormatFloat(res.Rate)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", TruthName, err))
		}
	}
	if err := writeSummary(filepath.Join(dir, SummaryName), res); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WriteAudio encodes samples to path as mono 16-bit audio.
func WriteAudio(path string, format encoder.Format, sampleRate int, samples []int16) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", filepath.Base(path), cerr)
		}
	}()

	enc, err := encoder.New(format, f, sampleRate)
	if err != nil {
		return err
	}
	if err := encoder.EncodeAll(enc, samples); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteRates writes one live rate per row under an "rr" header. Skipped
// iterations (NaN) become empty cells.
func WriteRates(path string, rates []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{"rr"})
	for _, r := range rates {
		cell := ""
		if !math.IsNaN(r) {
			cell = FormatFloat(r)
		}
		w.Write([]string{cell})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// FormatFloat prints the shortest decimal that round-trips, always with a
// fractional part ("18.0", "17.25").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}

type summary struct {
	Started    time.Time `yaml:"started"`
	SampleRate int       `yaml:"sample_rate"`
	ChunkSize  int       `yaml:"chunk_size"`
	Duration   float64   `yaml:"duration_seconds"`
	Cutoff     float64   `yaml:"cutoff_hz"`
	Order      int       `yaml:"filter_order"`
	Resolution float64   `yaml:"frequency_resolution"`
	Live       bool      `yaml:"live"`
	Streaming  bool      `yaml:"streaming_filter"`

	Iterations    int      `yaml:"iterations"`
	Samples       int      `yaml:"samples"`
	Completed     bool     `yaml:"completed"`
	RateDuration  float64  `yaml:"rate_duration_seconds"`
	Rate          *float64 `yaml:"rate_per_minute"`
	LiveEstimates int      `yaml:"live_estimates"`
	Dropped       uint64   `yaml:"dropped_samples"`
}

func writeSummary(path string, res *session.Result) error {
	c := res.Config
	sum := summary{
		Started:      res.Started,
		SampleRate:   c.SampleRate,
		ChunkSize:    c.ChunkSize,
		Duration:     c.Duration,
		Cutoff:       c.Filter.Cutoff,
		Order:        c.Filter.Order,
		Resolution:   c.Resolution,
		Live:         c.Live,
		Streaming:    c.Streaming,
		Iterations:   res.Iterations(),
		Samples:      len(res.Raw),
		Completed:    res.Completed,
		RateDuration: res.Duration,
		Dropped:      res.Dropped,
	}
	if !math.IsNaN(res.Rate) {
		sum.Rate = &res.Rate
	}
	for _, r := range res.LiveRates {
		if !math.IsNaN(r) {
			sum.LiveEstimates++
		}
	}
	data, err := yaml.Marshal(&sum)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", SummaryName, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", SummaryName, err)
	}
	return nil
}
