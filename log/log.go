package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog   zerolog.Logger
	diagFile  *os.File
	ratesFile *os.File
	logMu     sync.Mutex
	logReady  bool
	verbose   bool
	pid       int
	dir       string
)

// Session describes a recording for the session_start line.
type Session struct {
	Preset     string
	Device     string
	SampleRate int
	ChunkSize  int
	Duration   float64
	Cutoff     float64
	Order      int
	Resolution float64
	Live       bool
	Streaming  bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: RESPIRE_LOG_PATH environment variable
	envPath := os.Getenv("RESPIRE_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetVerbose enables per-iteration debug lines. Call before Init.
func SetVerbose(v bool) {
	verbose = v
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	ratesPath := filepath.Join(dir, "rates_log.txt")
	ratesFile, err = os.OpenFile(ratesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if ratesFile != nil {
		ratesFile.Close()
		ratesFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(s Session) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("preset", s.Preset).
		Str("device", s.Device).
		Int("rate_hz", s.SampleRate).
		Int("chunk", s.ChunkSize).
		Float64("duration_s", s.Duration).
		Float64("cutoff_hz", s.Cutoff).
		Int("order", s.Order).
		Float64("resolution_hz", s.Resolution).
		Bool("live", s.Live).
		Bool("streaming", s.Streaming).
		Msg("session_start")
}

// Iteration logs one live estimate at debug level.
func Iteration(i int, ratePerMin float64, analysis time.Duration) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Int("iteration", i).
		Float64("rate_per_min", ratePerMin).
		Float64("analysis_ms", float64(analysis.Microseconds())/1000).
		Msg("estimate")
}

func Overflow(dropped uint64) {
	if !logReady {
		return
	}
	diagLog.Warn().Uint64("dropped_samples", dropped).Msg("input_overflow")
}

func SessionEnd(iterations, samples int, rate float64, outDir, traceID string) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if traceID != "" {
		ev = ev.Str("trace_id", traceID)
	}
	ev.
		Int("iterations", iterations).
		Int("samples", samples).
		Float64("rate_per_min", rate).
		Str("dir", outDir).
		Msg("session_end")
}

// Rate appends the final rate of a session to rates_log.txt.
func Rate(rate float64, source string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%g\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, rate, source)
	ratesFile.WriteString(line)
}
