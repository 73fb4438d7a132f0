// Package logger holds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogConfig selects level, format and an optional log file.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error, disabled
	Format string `mapstructure:"format" yaml:"format"` // console, json
	File   string `mapstructure:"file" yaml:"file"`
}

var (
	mu      sync.RWMutex
	global  = zerolog.Nop()
	logFile *os.File
)

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init replaces the global logger. Output goes to stderr, and to File when set.
func Init(cfg LogConfig) error {
	return InitWriter(cfg, os.Stderr)
}

// InitWriter is Init with the console stream replaced by w.
func InitWriter(cfg LogConfig, w io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	writers := []io.Writer{w}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		closeFile()
		logFile = f
		writers = append(writers, f)
	}

	global = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()
	return nil
}

// Get returns the global logger. It discards everything until Init is called.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	l := Get()
	return l.With().Str("component", name).Logger()
}

// Close closes the log file, if one is open, and resets the logger to a no-op.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	global = zerolog.Nop()
	return closeFile()
}

func closeFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
