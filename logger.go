package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the application logger. The terminal belongs to the
// screen, so records go to cfg.LogFile, or to backdrop.log in the data
// directory. The returned closer releases the file.
func newLogger(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if level == zerolog.Disabled {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	path := cfg.LogFile
	if path == "" {
		dir, err := dataDir()
		if err != nil {
			return zerolog.Nop(), io.NopCloser(nil), err
		}
		path = filepath.Join(dir, "backdrop.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("opening log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return l, f, nil
}
