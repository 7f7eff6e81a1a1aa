// Package layout finalizes the resources directory of a packaged
// application. A finalized directory holds either an archive (with an
// optional unpacked sibling) or a loose app directory, never both, and never
// the runtime's placeholder default app.
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/asarpack/internal/fsutil"
)

const (
	// DefaultArchiveName is the archive file name the runtime loads.
	DefaultArchiveName = "app.asar"

	// AppDirName is the loose application directory name.
	AppDirName = "app"

	unpackedSuffix = ".unpacked"
)

// Placeholders are the runtime's default app entries, removed from every
// finalized resources directory.
var Placeholders = []string{"default_app.asar", "default_app"}

// ErrConflict is returned by Verify when both an archive and a loose app
// directory are present.
var ErrConflict = errors.New("layout: archive and app directory both present")

// Mode identifies which form the application takes on disk.
type Mode int

const (
	// ModeNone means neither form is present.
	ModeNone Mode = iota
	// ModeArchive means the application is packed in an archive.
	ModeArchive
	// ModeLoose means the application is an unpacked directory.
	ModeLoose
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeArchive:
		return "archive"
	case ModeLoose:
		return "loose"
	default:
		return "none"
	}
}

// Layout describes a finalized resources directory.
type Layout struct {
	Mode Mode

	// ArchivePath is set in ModeArchive.
	ArchivePath string

	// UnpackedDir is set in ModeArchive when the archive has unpacked files.
	UnpackedDir string

	// AppDir is set in ModeLoose.
	AppDir string
}

// Writer places application payloads into one resources directory.
type Writer struct {
	resourcesDir string
	archiveName  string
	logger       *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithArchiveName overrides DefaultArchiveName.
func WithArchiveName(name string) Option {
	return func(w *Writer) {
		w.archiveName = name
	}
}

// WithLogger sets the logger for placement events.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// New returns a Writer for resourcesDir.
func New(resourcesDir string, opts ...Option) *Writer {
	w := &Writer{resourcesDir: resourcesDir, archiveName: DefaultArchiveName}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

func (w *Writer) archivePath() string {
	return filepath.Join(w.resourcesDir, w.archiveName)
}

func (w *Writer) unpackedPath() string {
	return w.archivePath() + unpackedSuffix
}

func (w *Writer) appPath() string {
	return filepath.Join(w.resourcesDir, AppDirName)
}

// PlaceArchive moves the archive, and its unpacked directory when present,
// from workDir into the resources directory. Any loose app directory is
// removed.
func (w *Writer) PlaceArchive(ctx context.Context, workDir string) (Layout, error) {
	if err := w.prepare(w.appPath(), w.archivePath(), w.unpackedPath()); err != nil {
		return Layout{}, err
	}

	src := filepath.Join(workDir, w.archiveName)
	if err := fsutil.MoveFile(ctx, src, w.archivePath()); err != nil {
		return Layout{}, fmt.Errorf("place archive: %w", err)
	}
	out := Layout{Mode: ModeArchive, ArchivePath: w.archivePath()}

	unpacked := src + unpackedSuffix
	if info, err := os.Stat(unpacked); err == nil && info.IsDir() {
		if err := fsutil.MoveDir(ctx, unpacked, w.unpackedPath()); err != nil {
			return Layout{}, fmt.Errorf("place unpacked directory: %w", err)
		}
		out.UnpackedDir = w.unpackedPath()
	}

	w.log().Info("archive placed", "path", out.ArchivePath, "unpacked", out.UnpackedDir != "")
	return out, nil
}

// PlaceLoose moves stagedDir into the resources directory as the app
// directory. Any archive and unpacked directory are removed.
func (w *Writer) PlaceLoose(ctx context.Context, stagedDir string) (Layout, error) {
	if err := w.prepare(w.appPath(), w.archivePath(), w.unpackedPath()); err != nil {
		return Layout{}, err
	}
	if err := fsutil.MoveDir(ctx, stagedDir, w.appPath()); err != nil {
		return Layout{}, fmt.Errorf("place app directory: %w", err)
	}
	w.log().Info("app directory placed", "path", w.appPath())
	return Layout{Mode: ModeLoose, AppDir: w.appPath()}, nil
}

// prepare creates the resources directory and clears the placeholders and
// any stale payload paths.
func (w *Writer) prepare(stale ...string) error {
	if err := os.MkdirAll(w.resourcesDir, 0o755); err != nil { //nolint:gosec // output trees are world-readable
		return fmt.Errorf("create resources directory: %w", err)
	}
	for _, name := range Placeholders {
		stale = append(stale, filepath.Join(w.resourcesDir, name))
	}
	for _, p := range stale {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	w.log().Debug("resources directory cleared", "dir", w.resourcesDir)
	return nil
}

// Verify inspects the resources directory and reports its layout. It fails
// when both forms are present, or when a placeholder or an orphaned unpacked
// directory remains.
func (w *Writer) Verify() (Layout, error) {
	archive := exists(w.archivePath())
	app := exists(w.appPath())
	unpacked := exists(w.unpackedPath())

	for _, name := range Placeholders {
		if p := filepath.Join(w.resourcesDir, name); exists(p) {
			return Layout{}, fmt.Errorf("layout: placeholder %s present", p)
		}
	}

	switch {
	case archive && app:
		return Layout{}, ErrConflict
	case archive:
		out := Layout{Mode: ModeArchive, ArchivePath: w.archivePath()}
		if unpacked {
			out.UnpackedDir = w.unpackedPath()
		}
		return out, nil
	case unpacked:
		return Layout{}, fmt.Errorf("layout: %s present without archive", w.unpackedPath())
	case app:
		return Layout{Mode: ModeLoose, AppDir: w.appPath()}, nil
	default:
		return Layout{Mode: ModeNone}, nil
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
