// Package logging configures the global zerolog logger for the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup switches the global logger to console output on w at the level
// implied by mode ("debug" enables debug output).
func Setup(w io.Writer, mode string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr})
	Level(mode)
}

func Level(mode string) {
	if mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ToFile sends logs to path, or discards them when path is empty. The
// returned closer releases the file.
func ToFile(path, mode string) (io.Closer, error) {
	if path == "" {
		log.Logger = zerolog.Nop()
		Level(mode)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	Setup(f, mode)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
