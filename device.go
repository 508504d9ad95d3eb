package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"respire/audio"
	"respire/config"
	"respire/doctor"
	"respire/encoder"
	"respire/log"
	"respire/session"
)

// capture is an open audio context and the device sessions record from.
type capture struct {
	ctx     audio.Context
	dev     *audio.DeviceInfo
	name    string
	backlog int // reader backlog in samples; 0 uses the reader default
}

// open returns the session's chunk source factory. The device is only
// created and started when the session runs.
func (c capture) open(cfg config.Config) session.OpenFunc {
	return func(sc session.Config) (session.ChunkSource, error) {
		dev, err := c.ctx.NewCapture(c.dev, audio.CaptureConfig{
			SampleRate:  uint32(sc.SampleRate),
			Channels:    encoder.Channels,
			ChunkFrames: uint32(sc.ChunkSize),
		})
		if err != nil {
			return nil, err
		}
		return audio.NewChunkReader(dev, audio.ReaderConfig{
			ChunkSize:      sc.ChunkSize,
			Backlog:        c.backlog,
			FailOnOverflow: cfg.FailOnOverflow,
			ReadTimeout:    readTimeout(sc),
		})
	}
}

// readTimeout bounds how long a read may wait before the device is
// considered stalled.
func readTimeout(sc session.Config) time.Duration {
	chunk := time.Duration(float64(sc.ChunkSize) / float64(sc.SampleRate) * float64(time.Second))
	return max(2*time.Second, 4*chunk)
}

// openDevice resolves the capture device from the positional index or the
// interactive picker. A bad index is a usage error and nothing is started.
func openDevice(cfg config.Config, pick bool) (capture, error) {
	if !pick && cfg.Device == config.NoDevice {
		return capture{}, fmt.Errorf("%w: device index required", config.ErrUsage)
	}

	ctx, err := audio.NewContext()
	if err != nil {
		return capture{}, err
	}

	var dev *audio.DeviceInfo
	if pick {
		dev, err = audio.PickDevice(ctx)
	} else {
		dev, err = audio.DeviceByIndex(ctx, cfg.Device)
		if errors.Is(err, audio.ErrNoDevice) {
			err = fmt.Errorf("%w: %w", config.ErrUsage, err)
		}
	}
	if err != nil {
		ctx.Close()
		return capture{}, err
	}

	name := dev.Name
	if audio.IsBluetooth(name) {
		fmt.Fprintf(os.Stderr, "Warning: %s looks like a Bluetooth headset; its microphone may be band-limited\n", name)
	}
	return capture{ctx: ctx, dev: dev, name: name}, nil
}

// openReplay plays a WAV file through a fake device. The file's sample rate
// replaces the configured one unless -rate was given explicitly, in which
// case the two must agree.
func openReplay(path string, cfg config.Config, rateSet, fast bool) (capture, config.Config, error) {
	samples, rate, err := readWAV(path)
	if err != nil {
		return capture{}, cfg, err
	}
	if rateSet && rate != cfg.SampleRate {
		return capture{}, cfg, fmt.Errorf("%w: -rate %d does not match %s (%d Hz)", config.ErrUsage, cfg.SampleRate, path, rate)
	}
	cfg.SampleRate = rate
	if fast {
		// Nothing follows the file, so stop where it ends.
		cfg.Duration = min(cfg.Duration, float64(len(samples))/float64(rate))
	}
	if err := cfg.Validate(); err != nil {
		return capture{}, cfg, fmt.Errorf("%w: %s: %w", config.ErrUsage, path, err)
	}

	c := capture{
		ctx:  audio.NewFakeContext(samples, !fast),
		name: "replay:" + path,
	}
	if fast {
		// Everything is delivered at once, so the reader must hold it all.
		c.backlog = len(samples) + cfg.ChunkSize
	}
	return c, cfg, nil
}

func readWAV(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	samples, rate, err := encoder.DecodeWAV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, rate, nil
}

// listDevices prints "index - name" for every device that can record.
func listDevices(w io.Writer) error {
	ctx, err := audio.NewContext()
	if err != nil {
		return err
	}
	defer ctx.Close()
	return printDevices(w, ctx)
}

func printDevices(w io.Writer, ctx audio.Context) error {
	devices, err := audio.InputDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no input devices found")
		return nil
	}
	for _, d := range devices {
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = " (BT)"
		}
		fmt.Fprintf(w, "%d - %s%s\n", d.Index, d.Name, suffix)
	}
	return nil
}

// doctorOptions points the diagnostics at the device named on the command
// line, the first input device when none is given, or a replayed file.
func doctorOptions(o *options, cfg config.Config) (doctor.Options, error) {
	opts := doctor.Options{
		Device:     cfg.Device,
		LogDir:     log.Dir(),
		SampleRate: cfg.SampleRate,
		ChunkSize:  cfg.ChunkSize,
		Filter:     cfg.FilterSpec(),
		Resolution: cfg.Resolution,
	}
	if o.replay != "" {
		samples, rate, err := readWAV(o.replay)
		if err != nil {
			return doctor.Options{}, err
		}
		opts.Context = audio.NewFakeContext(samples, false)
		opts.SampleRate = rate
		opts.Filter.SampleRate = float64(rate)
		opts.Seconds = min(3, float64(len(samples))/float64(rate))
	}
	return opts, nil
}
