// Package logger wires zerolog for the whole application: console output for
// interactive runs, rotated files when LOG_PATH is set.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the root logger. Every package derives its own from this via
// With().Str("component", ...).
func New(level, path string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if path != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
