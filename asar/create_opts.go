package asar

import "log/slog"

// createConfig holds configuration for archive creation.
type createConfig struct {
	workers  int
	logger   *slog.Logger
	progress ProgressFunc
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithWorkers bounds how many files are hashed concurrently.
// Zero or negative uses GOMAXPROCS.
func CreateWithWorkers(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.workers = n
	}
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// CreateWithProgress sets a callback to receive progress updates.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}
