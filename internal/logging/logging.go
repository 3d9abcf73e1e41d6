// Package logging builds the zerolog logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/torosent/volley/internal/config"
)

const (
	maxLogFileMB   = 50
	maxLogBackups  = 5
	maxLogAgeDays  = 14
	consoleTimeFmt = "15:04:05.000"
)

// ParseLevel maps a level name onto a zerolog level. An empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logger writing to stderr, or to a rotated file when
// cfg.File is set. The returned closer releases the file.
func New(cfg config.LogConfig, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var (
		sink   io.Writer = stderr
		closer io.Closer = nopCloser{}
	)
	if file := strings.TrimSpace(cfg.File); file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxLogFileMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		}
		sink, closer = rotator, rotator
	}

	if strings.EqualFold(cfg.Format, "console") || cfg.Format == "" {
		sink = zerolog.ConsoleWriter{
			Out:        sink,
			TimeFormat: consoleTimeFmt,
			NoColor:    cfg.File != "" || !isTerminal(stderr),
		}
	}

	logger := zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

