package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects how log lines are rendered.
type Format int

const (
	JSONFormat Format = iota
	ConsoleFormat
)

func (f Format) String() string {
	if f == JSONFormat {
		return "json"
	}
	return "console"
}

// ParseFormat accepts "json" and "console" (or "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSONFormat, nil
	case "", "console", "text":
		return ConsoleFormat, nil
	default:
		return ConsoleFormat, fmt.Errorf("unknown log format %q", s)
	}
}

// ParseLevel accepts zerolog level names plus "warning" and "err".
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "err":
		return zerolog.ErrorLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// FileConfig enables a rotating log file.
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// DefaultFileConfig returns 100MB files kept for 30 days, 10 backups.
func DefaultFileConfig(filename string) *FileConfig {
	return &FileConfig{
		Filename:   filename,
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 10,
		Compress:   true,
	}
}

// Config describes the process logger.
type Config struct {
	Level   zerolog.Level
	Format  Format
	Outputs []io.Writer
	File    *FileConfig
	// Sampling keeps bursts of 10 lines per second, then 1 in 100.
	Sampling bool
	Service  string
}

// DefaultConfig logs at info level to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:   zerolog.InfoLevel,
		Format:  ConsoleFormat,
		Outputs: []io.Writer{os.Stderr},
	}
}

// New builds the logger. The returned closer releases the log file, if any.
// The file always receives JSON; Outputs use cfg.Format.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.File != nil && cfg.File.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File.Filename), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("create log directory: %w", err)
		}
		fw := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
			LocalTime:  true,
		}
		writers = append(writers, fw)
		closer = fw
	}

	for _, out := range cfg.Outputs {
		if cfg.Format == ConsoleFormat {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: "15:04:05",
				PartsOrder: []string{
					zerolog.TimestampFieldName,
					zerolog.LevelFieldName,
					"component",
					zerolog.MessageFieldName,
				},
			})
		} else {
			writers = append(writers, out)
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(cfg.Level)
	if cfg.Sampling {
		logger = logger.Sample(&zerolog.BurstSampler{
			Burst:       10,
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: 100},
		})
	}
	ctx := logger.With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
