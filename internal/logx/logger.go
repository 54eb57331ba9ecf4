package logx

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// Options select how the CLI logs. The console handler writes to stderr so stdout
// stays free for tables and reports. When File is set every record is also written
// as JSON to a rotated file.
type Options struct {
	Level      string
	Format     string
	File       string
	Verbose    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o Options) level() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	return parseLevel(o.Level)
}

// Init installs the default logger and returns a closer for the log file.
func Init(serviceName string, opts Options) (*slog.Logger, func() error, error) {
	handler, closer, err := buildHandler(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(handler).With("service", serviceName)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func buildHandler(opts Options, console io.Writer) (slog.Handler, func() error, error) {
	level := opts.level()
	consoleHandler := newConsoleHandler(console, opts.Format, level)
	if strings.TrimSpace(opts.File) == "" {
		return consoleHandler, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    positiveOr(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: positiveOr(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     positiveOr(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
	// the file always gets debug records so a failed run can be replayed
	fileHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slogmulti.Fanout(consoleHandler, fileHandler), rotator.Close, nil
}

// newConsoleHandler drops the timestamp in text mode; operators read it live.
func newConsoleHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
