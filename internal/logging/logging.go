// Package logging builds basket's zerolog loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ComponentField tags every line with the subsystem that wrote it.
const ComponentField = "cmp"

// New returns a JSON logger at level writing to file, appending when the file
// exists. An empty file writes to stdout. The returned closer releases the
// file and is safe to call when nothing was opened.
func New(level string, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, closer, fmt.Errorf("parse log level: %w", err)
	}

	var writer io.Writer = os.Stdout
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { _ = f.Close() }
		writer = f
	}

	return NewWriter(writer, lvl), closer, nil
}

// NewWriter returns a timestamped JSON logger writing to w.
func NewWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

// Component derives a logger tagged with name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str(ComponentField, name).Logger()
}
