// Package config holds the recording options, the named presets they start
// from, and the YAML preset-file loader.
package config

import (
	"errors"
	"fmt"
	"strconv"

	"respire/dsp"
	"respire/encoder"
)

// ErrUsage marks invalid command-line input. The CLI prints usage and exits
// with status 2 when it sees one.
var ErrUsage = errors.New("usage error")

// NoDevice is the Device value when no index was given on the command line.
const NoDevice = -1

// Config is the full option set of one recording session.
type Config struct {
	// Device is the host device index, or NoDevice. It only comes from the
	// command line.
	Device         int     `yaml:"-"`
	SampleRate     int     `yaml:"sample_rate"`
	Duration       float64 `yaml:"duration_seconds"`
	ChunkSize      int     `yaml:"chunk_size"`
	Cutoff         float64 `yaml:"cutoff_hz"`
	Order          int     `yaml:"filter_order"`
	Resolution     float64 `yaml:"frequency_resolution"`
	Live           bool    `yaml:"live"`
	OutputDir      string  `yaml:"output_dir"`
	Format         string  `yaml:"format"`
	FailOnOverflow bool    `yaml:"fail_on_overflow"`
	Streaming      bool    `yaml:"streaming_filter"`
}

// Iterations is the number of chunk reads a full session performs.
func (c Config) Iterations() int {
	if c.ChunkSize <= 0 {
		return 0
	}
	return int(float64(c.SampleRate) / float64(c.ChunkSize) * c.Duration)
}

// FilterSpec returns the low-pass parameters.
func (c Config) FilterSpec() dsp.FilterSpec {
	return dsp.FilterSpec{
		Cutoff:     c.Cutoff,
		SampleRate: float64(c.SampleRate),
		Order:      c.Order,
	}
}

// Validate checks every field and returns all problems joined together.
func (c Config) Validate() error {
	var errs []error

	if c.Device < NoDevice {
		errs = append(errs, fmt.Errorf("device index %d is negative", c.Device))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate %d must be positive", c.SampleRate))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size %d must be positive", c.ChunkSize))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration_seconds %v must be positive", c.Duration))
	}
	if err := c.FilterSpec().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("frequency_resolution %v must be positive", c.Resolution))
	} else if c.SampleRate > 0 {
		if n := dsp.WindowLength(float64(c.SampleRate), c.Resolution); n < 2 {
			errs = append(errs, fmt.Errorf("frequency_resolution %v gives a %d-sample analysis window", c.Resolution, n))
		}
	}
	if c.SampleRate > 0 && c.ChunkSize > 0 && c.Duration > 0 && c.Iterations() < 1 {
		errs = append(errs, fmt.Errorf("duration_seconds %v is shorter than one chunk", c.Duration))
	}
	if _, err := encoder.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseDeviceIndex reads the single positional device index argument.
func ParseDeviceIndex(args []string) (int, error) {
	switch len(args) {
	case 0:
		return 0, fmt.Errorf("%w: device index required", ErrUsage)
	case 1:
	default:
		return 0, fmt.Errorf("%w: unexpected arguments %q", ErrUsage, args[1:])
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: device index %q is not an integer", ErrUsage, args[0])
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: device index %d is negative", ErrUsage, n)
	}
	return n, nil
}
