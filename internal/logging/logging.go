// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/goalcoach/goalcoach/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide log destination. Component loggers derived
// from it share its writer.
type Logger struct {
	*log.Logger
	w    io.Writer
	file *lumberjack.Logger
}

// New creates a logger writing to stderr and, when cfg.File is set, to a
// rotating log file.
func New(cfg config.LogConfig) (*Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with console output going to console. A nil console
// writes only to the file.
func NewWithWriter(cfg config.LogConfig, console io.Writer) (*Logger, error) {
	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if console != nil {
		writers = append(writers, console)
	}

	if cfg.File != "" {
		// lumberjack does not create the directory
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	return &Logger{
		Logger: log.New(w, "[goalcoach] ", log.LstdFlags),
		w:      w,
		file:   file,
	}, nil
}

// Component returns a logger for one component, prefixed "[name] ".
func (l *Logger) Component(name string) *log.Logger {
	return log.New(l.w, "["+name+"] ", log.LstdFlags)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
