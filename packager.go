package asarpack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/asarpack/internal/glob"
	"github.com/meigma/asarpack/internal/unpack"
)

// Target identifies one platform and architecture to package for.
type Target struct {
	Platform string
	Arch     string
}

// String returns "platform/arch".
func (t Target) String() string {
	return t.Platform + "/" + t.Arch
}

// HostTarget returns the target of the running host, with architecture
// names spelled as the runtime expects them.
func HostTarget() Target {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "ia32"
	}
	return Target{Platform: runtime.GOOS, Arch: arch}
}

// Hook runs against the staged application directory of one target.
type Hook func(ctx context.Context, buildPath string, target Target) error

// Pruner removes files that should not ship, such as development
// dependencies, from a staged application directory.
type Pruner interface {
	Prune(ctx context.Context, buildPath string, target Target) error
}

// PrunerFunc adapts a function to the Pruner interface.
type PrunerFunc func(ctx context.Context, buildPath string, target Target) error

// Prune calls f.
func (f PrunerFunc) Prune(ctx context.Context, buildPath string, target Target) error {
	return f(ctx, buildPath, target)
}

// Options describes one packaging run.
type Options struct {
	// Name is the application name, used for output directory names.
	Name string

	// Dir is the application source directory.
	Dir string

	// Out is the directory target directories are written into.
	// Defaults to the current directory.
	Out string

	// Targets lists the platforms to package. Defaults to HostTarget.
	Targets []Target

	// TemplateDir is a runtime distribution copied into every target
	// directory before the application is placed.
	TemplateDir string

	// Overwrite replaces existing target directories instead of skipping
	// them.
	Overwrite bool

	// Asar is the raw archive option.
	Asar RawOption

	// PrebuiltAsar is the path of an archive used instead of building one.
	PrebuiltAsar string

	// Ignore holds glob patterns for source paths left out of the staged
	// tree.
	Ignore []string

	// Prune enables the pruner. Nil means true.
	Prune *bool

	// DerefSymlinks copies symlink targets into the staged tree instead of
	// preserving the links. Nil means true.
	DerefSymlinks *bool

	// AfterCopy hooks run after the application is staged.
	AfterCopy []Hook

	// AfterPrune hooks run after the staged tree is pruned.
	AfterPrune []Hook

	// TmpDir holds staging directories. Defaults to os.TempDir().
	TmpDir string
}

// Result is the outcome of packaging one target.
type Result struct {
	Target Target

	// Dir is the target directory.
	Dir string

	// Skipped is set when Dir already existed and Overwrite was false.
	Skipped bool

	// ResourcesDir holds the application payload.
	ResourcesDir string

	// ArchivePath is set when the application was archived.
	ArchivePath string

	// UnpackedDir is set when archived files were left unpacked.
	UnpackedDir string

	// AppDir is set when the application was placed as a loose directory.
	AppDir string

	// ArchiveDigest is the digest of the placed archive, if any.
	ArchiveDigest digest.Digest

	// Err is the failure for this target, if any.
	Err error
}

// Packager runs packaging jobs.
type Packager struct {
	logger   *slog.Logger
	workers  int
	warn     func(string)
	pruner   Pruner
	fold     *bool
	progress ProgressFunc
}

// New returns a Packager configured by opts.
func New(opts ...Option) *Packager {
	p := &Packager{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package packages opts with a Packager configured by options.
func Package(ctx context.Context, opts Options, options ...Option) ([]Result, error) {
	return New(options...).Package(ctx, opts)
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Packager) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

func (p *Packager) workerCount() int {
	if p.workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.workers
}

func (p *Packager) warning(msg string) {
	if p.warn != nil {
		p.warn(msg)
		return
	}
	p.log().Warn(msg)
}

// Package packages every target in opts.
//
// Configuration is checked once, before any file is written; a
// *ConfigError aborts the whole run. Targets are then packaged in parallel.
// A failure in one target is recorded in its Result and does not stop the
// others; the returned error joins every target failure.
func (p *Packager) Package(ctx context.Context, opts Options) ([]Result, error) {
	plan, err := p.plan(opts)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(plan.targets))
	var eg errgroup.Group
	for i, t := range plan.targets {
		eg.Go(func() error {
			results[i] = plan.packageTarget(ctx, t)
			return nil
		})
	}
	_ = eg.Wait() //nolint:errcheck // target failures are recorded per result

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Target, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// run is a validated packaging job shared by every target.
type run struct {
	p        *Packager
	opts     Options
	targets  []Target
	archive  bool
	selector *unpack.Selector
	ordering []string
}

// plan validates opts and resolves defaults. Warnings are delivered here,
// once per run.
func (p *Packager) plan(opts Options) (*run, error) {
	if opts.Name == "" {
		return nil, &ConfigError{Option: "name", Reason: "is required"}
	}
	if opts.Dir == "" {
		return nil, &ConfigError{Option: "dir", Reason: "is required"}
	}
	if info, err := os.Stat(opts.Dir); err != nil || !info.IsDir() {
		return nil, &ConfigError{Option: "dir", Reason: "must be a directory", Path: opts.Dir}
	}
	if opts.Out == "" {
		opts.Out = "."
	}
	r := &run{p: p, opts: opts, targets: opts.Targets}
	if len(r.targets) == 0 {
		r.targets = []Target{HostTarget()}
	}

	if opts.PrebuiltAsar != "" {
		v := ValidatePrebuilt(opts.PrebuiltAsar, opts)
		for _, w := range v.Warnings {
			p.warning(w)
		}
		if v.Err != nil {
			return nil, v.Err
		}
		return r, nil
	}

	if _, err := glob.CompileAll(opts.Ignore, false); err != nil {
		return nil, &ConfigError{Option: "ignore", Reason: "is not a valid glob", Err: err}
	}

	cfg, enabled := Normalize(opts.Asar)
	if !enabled {
		return r, nil
	}
	r.archive = true

	var selOpts []unpack.Option
	if p.fold != nil {
		selOpts = append(selOpts, unpack.WithFoldCase(*p.fold))
	}
	sel, err := unpack.New(unpack.Rules{Pattern: cfg.UnpackPattern, Dir: cfg.UnpackDir}, selOpts...)
	if err != nil {
		var ruleErr *unpack.RuleError
		if errors.As(err, &ruleErr) {
			return nil, &ConfigError{Option: ruleErr.Rule, Reason: "is not a valid glob", Err: ruleErr.Err}
		}
		return nil, err
	}
	r.selector = sel

	r.ordering = cfg.Ordering
	if cfg.OrderingFile != "" {
		extra, err := LoadOrdering(cfg.OrderingFile)
		if err != nil {
			return nil, &ConfigError{Option: "ordering", Reason: "cannot be read", Err: err}
		}
		r.ordering = append(r.ordering, extra...)
	}
	return r, nil
}

var (
	knownPlatforms = []string{"darwin", "linux", "mas", "win32"}
	knownArchs     = []string{"ia32", "x64", "armv7l", "arm64", "mips64el", "universal"}
)

// targetDirName returns the directory name for t.
func targetDirName(name string, t Target) string {
	return fmt.Sprintf("%s-%s-%s", name, t.Platform, t.Arch)
}

// ResourcesDir returns the resources directory of an application named
// name, relative to its target directory.
func ResourcesDir(name string, t Target) string {
	switch t.Platform {
	case "darwin", "mas":
		return filepath.Join(name+".app", "Contents", "Resources")
	default:
		return "resources"
	}
}
