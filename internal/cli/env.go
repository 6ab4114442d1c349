package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/recset/internal/config"
	"github.com/roach88/recset/internal/store"
)

// loadConfig loads configuration for a command. Failures are command
// errors.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section. --verbose
// forces debug level.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openStore opens the snapshot store at path, falling back to the
// configured one.
func openStore(path string, opts *RootOptions) (*store.Store, error) {
	if path == "" {
		cfg, err := loadConfig(opts)
		if err != nil {
			return nil, err
		}
		path = cfg.Store.Path
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
