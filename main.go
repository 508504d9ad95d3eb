package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"respire/audio"
	"respire/config"
	"respire/doctor"
	"respire/dsp"
	"respire/encoder"
	"respire/log"
	"respire/observe"
	"respire/session"
	"respire/shutdown"
	"respire/store"
)

var version = "dev"

// options mirrors the command line. Fields that were not set on the command
// line leave the preset value alone.
type options struct {
	preset      string
	presetsFile string
	plot        bool
	gui         bool
	dur         float64
	rate        int
	chunk       int
	cutoff      float64
	order       int
	resolution  float64
	out         string
	format      string
	strict      bool
	streaming   bool
	logPath     string
	verbose     bool
	list        bool
	pick        bool
	replay      string
	analyze     string
	fast        bool
	doctor      bool
	metricsAddr string
	profile     string
	version     bool

	set  map[string]bool
	args []string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet("respire", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.preset, "preset", config.DefaultPreset, "Named configuration preset")
	fs.StringVar(&o.presetsFile, "presets", "", "YAML file with additional presets")
	fs.BoolVar(&o.plot, "plot", false, "Live mode: filter and estimate the rate after every chunk")
	fs.BoolVar(&o.gui, "gui", false, "Draw the live plots in a desktop window (implies -plot; needs a build with -tags gui)")
	fs.Float64Var(&o.dur, "dur", 0, "Seconds to record (default from preset)")
	fs.IntVar(&o.rate, "rate", 0, "Sampling rate in Hz (default from preset)")
	fs.IntVar(&o.chunk, "chunk", 0, "Samples per read (default from preset)")
	fs.Float64Var(&o.cutoff, "cutoff", 0, "Low-pass cutoff in Hz (default from preset)")
	fs.IntVar(&o.order, "order", 0, "Butterworth filter order (default from preset)")
	fs.Float64Var(&o.resolution, "resolution", 0, "Spectral bin width in Hz (default from preset)")
	fs.StringVar(&o.out, "out", "", "Directory that receives the session folder (default from preset)")
	fs.StringVar(&o.format, "format", "", "Audio artifact format: wav or flac (default from preset)")
	fs.BoolVar(&o.strict, "strict-overflow", false, "Fail the session when input samples are dropped")
	fs.BoolVar(&o.streaming, "streaming", false, "Live mode uses a causal streaming filter instead of re-filtering the history")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&o.verbose, "verbose", false, "Log every live estimate")
	fs.BoolVar(&o.list, "list", false, "List input devices and exit")
	fs.BoolVar(&o.pick, "pick", false, "Choose the input device interactively")
	fs.StringVar(&o.replay, "replay", "", "Run a session against a WAV file played back in real time")
	fs.BoolVar(&o.fast, "fast", false, "With -replay, feed the file as fast as it can be read")
	fs.StringVar(&o.analyze, "analyze", "", "Filter a WAV recording and print its rate")
	fs.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics on DEVICE_INDEX (or the first input) and exit")
	fs.StringVar(&o.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g., :9464)")
	fs.StringVar(&o.profile, "profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: respire [OPTIONS] DEVICE_INDEX\n")
		fmt.Fprintf(stderr, "       respire -list | -pick | -doctor | -replay FILE | -analyze FILE\n\n")
		fs.PrintDefaults()
	}
	return fs, o
}

func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	fs, o := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, fs, err
		}
		return nil, fs, fmt.Errorf("%w: %v", config.ErrUsage, err)
	}
	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	o.args = fs.Args()
	return o, fs, nil
}

// buildConfig starts from the chosen preset and applies explicit flags.
func buildConfig(o *options) (config.Config, error) {
	presets := config.Builtin()
	if o.presetsFile != "" {
		p, err := config.LoadPresets(o.presetsFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: %w", config.ErrUsage, err)
		}
		presets = p
	}
	cfg, err := presets.Get(o.preset)
	if err != nil {
		return config.Config{}, err
	}

	cfg.Device = config.NoDevice
	if len(o.args) > 0 {
		if cfg.Device, err = config.ParseDeviceIndex(o.args); err != nil {
			return config.Config{}, err
		}
	}

	if o.set["plot"] {
		cfg.Live = o.plot
	} else if o.gui {
		cfg.Live = true
	}
	if o.set["dur"] {
		cfg.Duration = o.dur
	}
	if o.set["rate"] {
		cfg.SampleRate = o.rate
	}
	if o.set["chunk"] {
		cfg.ChunkSize = o.chunk
	}
	if o.set["cutoff"] {
		cfg.Cutoff = o.cutoff
	}
	if o.set["order"] {
		cfg.Order = o.order
	}
	if o.set["resolution"] {
		cfg.Resolution = o.resolution
	}
	if o.set["out"] {
		cfg.OutputDir = o.out
	}
	if o.set["format"] {
		cfg.Format = o.format
	}
	if o.set["strict-overflow"] {
		cfg.FailOnOverflow = o.strict
	}
	if o.set["streaming"] {
		cfg.Streaming = o.streaming
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", config.ErrUsage, err)
	}
	return cfg, nil
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		SampleRate: cfg.SampleRate,
		Duration:   cfg.Duration,
		ChunkSize:  cfg.ChunkSize,
		Filter:     cfg.FilterSpec(),
		Resolution: cfg.Resolution,
		Live:       cfg.Live,
		Streaming:  cfg.Streaming,
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit status: 0 on success, 2 on usage errors and
// 1 on any other failure.
func run(args []string, stdout, stderr io.Writer) int {
	o, fs, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if o.version {
		fmt.Fprintf(stdout, "respire %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(o.logPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	log.SetVerbose(o.verbose)
	if err := log.Init(); err != nil {
		fmt.Fprintf(stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	initCrashLog()

	if o.profile != "" {
		go func() {
			fmt.Fprintf(stderr, "pprof server listening on http://%s/debug/pprof/\n", o.profile)
			if err := http.ListenAndServe(o.profile, nil); err != nil {
				fmt.Fprintf(stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if o.list {
		return exitStatus(fs, stderr, listDevices(stdout))
	}

	cfg, err := buildConfig(o)
	if err != nil {
		return exitStatus(fs, stderr, err)
	}

	if o.analyze != "" {
		return exitStatus(fs, stderr, analyzeFile(stdout, cfg, o.analyze))
	}

	if o.doctor {
		opts, err := doctorOptions(o, cfg)
		if err != nil {
			return exitStatus(fs, stderr, err)
		}
		return doctor.Run(stdout, opts)
	}

	var metrics *observe.Metrics
	if o.metricsAddr != "" {
		stop, err := serveMetrics(o.metricsAddr, stderr)
		if err != nil {
			return exitStatus(fs, stderr, err)
		}
		defer stop()
		metrics = observe.DefaultMetrics()
	} else if stopTracing, err := observe.InitTracing(observe.ProviderConfig{ServiceVersion: version}); err == nil {
		defer stopTracing(context.Background())
	} else {
		log.Warnf("tracing disabled: %v", err)
	}

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	var src capture
	switch {
	case o.replay != "":
		src, cfg, err = openReplay(o.replay, cfg, o.set["rate"], o.fast)
	default:
		src, err = openDevice(cfg, o.pick)
	}
	if errors.Is(err, audio.ErrPickCancelled) {
		return 0
	}
	if err != nil {
		return exitStatus(fs, stderr, err)
	}
	defer src.ctx.Close()

	return exitStatus(fs, stderr, record(ctx, stdout, stderr, o, cfg, src, metrics))
}

func exitStatus(fs *flag.FlagSet, stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrUsage):
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return 2
	default:
		log.Errorf("%v", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func initCrashLog() {
	if log.Dir() == "" {
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func serveMetrics(addr string, stderr io.Writer) (func(), error) {
	shutdownProvider, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		fmt.Fprintf(stderr, "metrics listening on http://%s/metrics\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		shutdownProvider(ctx)
	}, nil
}

// record runs one capture session and writes its artifacts.
func record(ctx context.Context, stdout, stderr io.Writer, o *options, cfg config.Config, src capture, metrics *observe.Metrics) error {
	format, err := encoder.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrUsage, err)
	}
	sink := store.New(cfg.OutputDir, format)

	log.SessionStart(log.Session{
		Preset:     o.preset,
		Device:     src.name,
		SampleRate: cfg.SampleRate,
		ChunkSize:  cfg.ChunkSize,
		Duration:   cfg.Duration,
		Cutoff:     cfg.Cutoff,
		Order:      cfg.Order,
		Resolution: cfg.Resolution,
		Live:       cfg.Live,
		Streaming:  cfg.Streaming,
	})

	scfg := sessionConfig(cfg)
	view, err := newView(stdout, stderr, viewInfo{
		gui:        o.gui,
		device:     src.name,
		live:       cfg.Live,
		sampleRate: cfg.SampleRate,
		duration:   cfg.Duration,
		window:     float64(dsp.WindowLength(float64(cfg.SampleRate), cfg.Resolution)) / float64(cfg.SampleRate),
	})
	if err != nil {
		return err
	}
	sess, err := session.New(scfg, src.open(cfg),
		session.WithRenderer(loggingRenderer{next: view}),
		session.WithSink(sink),
		session.WithMetrics(metrics),
		session.WithTail(tailSamples(cfg)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrUsage, err)
	}

	res, runErr := view.run(ctx, sess)

	if res != nil {
		fmt.Fprintf(stdout, "\n %d samples recorded\n", len(res.Raw))
		log.SessionEnd(res.Iterations(), len(res.Raw), res.Rate, sink.Dir(), res.TraceID)
		if !math.IsNaN(res.Rate) {
			fmt.Fprintf(stdout, " rate: %s per minute over %.2fs\n", store.FormatFloat(res.Rate), res.Duration)
			log.Rate(res.Rate, src.name)
		}
		if dir := sink.Dir(); dir != "" {
			fmt.Fprintf(stdout, " saved to %s\n", dir)
		}
	}
	return runErr
}

// tailSamples is the span of signal the live view draws.
func tailSamples(cfg config.Config) int {
	return int(min(cfg.Duration, 10) * float64(cfg.SampleRate))
}
