package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogConfig configures the shared logging backend.
type LogConfig struct {
	// LogFile is the path of the rotated log file. Empty means stdout only.
	LogFile string
	// DebugLevel is either a single level ("info") or a comma-separated
	// list of subsystem=level pairs ("CRDM=debug,GAME=trace").
	DebugLevel string
	// MaxLogFiles is how many rolled files to keep. Zero keeps them all.
	MaxLogFiles int
	// MaxLogSize is the rotation threshold in KiB. Defaults to 10 MiB.
	MaxLogSize int64
}

// LogBackend hands out per-subsystem loggers that share one output, writing
// to stdout and, when configured, a rotated log file.
type LogBackend struct {
	backend *slog.Backend
	rotator *rotator.Rotator

	defaultLevel slog.Level
	levels       map[string]slog.Level

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// logWriter tees log output to stdout and the rotator.
type logWriter struct {
	r *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.r != nil {
		return w.r.Write(p)
	}
	return len(p), nil
}

// NewLogBackend creates the shared backend.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	b := &LogBackend{
		defaultLevel: slog.LevelInfo,
		levels:       make(map[string]slog.Level),
		loggers:      make(map[string]slog.Logger),
	}

	if err := b.parseDebugLevel(cfg.DebugLevel); err != nil {
		return nil, err
	}

	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		maxSize := cfg.MaxLogSize
		if maxSize <= 0 {
			maxSize = 10 * 1024
		}
		r, err := rotator.New(cfg.LogFile, maxSize, false, cfg.MaxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %w", err)
		}
		b.rotator = r
		w = &logWriter{r: r}
	}

	b.backend = slog.NewBackend(w)
	return b, nil
}

// parseDebugLevel accepts "level" or "subsys=level,subsys=level".
func (b *LogBackend) parseDebugLevel(spec string) error {
	if spec == "" {
		return nil
	}

	if lvl, ok := slog.LevelFromString(spec); ok {
		b.defaultLevel = lvl
		return nil
	}

	for _, pair := range strings.Split(spec, ",") {
		subsys, level, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid debug level %q", pair)
		}
		lvl, ok := slog.LevelFromString(level)
		if !ok {
			return fmt.Errorf("unknown log level %q for subsystem %s", level, subsys)
		}
		if subsys == "*" {
			b.defaultLevel = lvl
		} else {
			b.levels[subsys] = lvl
		}
	}
	return nil
}

// Logger returns (creating on first use) the logger for a subsystem.
func (b *LogBackend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if log, ok := b.loggers[subsystem]; ok {
		return log
	}

	log := b.backend.Logger(subsystem)
	lvl := b.defaultLevel
	if override, ok := b.levels[subsystem]; ok {
		lvl = override
	}
	log.SetLevel(lvl)
	b.loggers[subsystem] = log
	return log
}

// Close flushes and closes the rotated log file.
func (b *LogBackend) Close() error {
	if b.rotator != nil {
		return b.rotator.Close()
	}
	return nil
}
