package flowdecode

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger, selecting a text
// or JSON handler and a level by name (debug, info, warn, error).
func NewLogger(level, format string) (*slog.Logger, error) {
	var loglevel slog.Level
	if err := loglevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: loglevel}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	if format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return logger, nil
}
