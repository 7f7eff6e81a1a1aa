package asarpack

import "log/slog"

// Option configures a Packager.
type Option func(*Packager)

// WithLogger sets the logger for packaging events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Packager) {
		p.logger = logger
	}
}

// WithWorkers bounds concurrent file operations within one target.
// Zero or negative values use runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(p *Packager) {
		p.workers = n
	}
}

// WithWarningHandler sets the function that receives each warning.
// If not set, warnings are logged at warn level.
func WithWarningHandler(fn func(string)) Option {
	return func(p *Packager) {
		p.warn = fn
	}
}

// WithPruner sets the pruner run on each staged tree when pruning is
// enabled. If not set, pruning leaves the tree unchanged.
func WithPruner(pr Pruner) Option {
	return func(p *Packager) {
		p.pruner = pr
	}
}

// WithFoldCase overrides whether unpack rules ignore case. By default they
// do on darwin and windows hosts.
func WithFoldCase(fold bool) Option {
	return func(p *Packager) {
		p.fold = &fold
	}
}

// WithProgress sets a callback for archive creation progress.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Packager) {
		p.progress = fn
	}
}
