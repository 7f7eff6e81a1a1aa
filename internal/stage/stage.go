// Package stage copies an application's source tree into a staging
// directory and enumerates the staged files.
package stage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meigma/asarpack/internal/fsutil"
	"github.com/meigma/asarpack/internal/glob"
)

// DefaultIgnore lists paths that are never copied into a staged tree.
var DefaultIgnore = []string{
	".git",
	"**/node_modules/.bin",
	".DS_Store",
	"Thumbs.db",
}

// Entry is one file in a staged tree.
type Entry struct {
	// Path is the slash-separated path relative to the tree root.
	Path string

	// Size is the file length in bytes. Zero for symlinks.
	Size int64

	// Mode is the file's type and permission bits.
	Mode fs.FileMode

	// Link is the raw link target when the entry is a symlink.
	Link string
}

// IsLink reports whether the entry is a symbolic link.
func (e Entry) IsLink() bool {
	return e.Mode&fs.ModeSymlink != 0
}

// Tree is the set of files staged under Dir, sorted by path.
type Tree struct {
	Dir     string
	Entries []Entry
}

// Paths returns the entry paths in tree order.
func (t *Tree) Paths() []string {
	paths := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Lookup returns the entry for path.
func (t *Tree) Lookup(path string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(t.Entries, path, func(e Entry, p string) int {
		return strings.Compare(e.Path, p)
	})
	if !ok {
		return Entry{}, false
	}
	return t.Entries[i], true
}

// CopyOptions configures Copy.
type CopyOptions struct {
	// Ignore holds glob patterns for paths left out of the staged tree.
	Ignore []string

	// ExcludeDirs holds absolute directories never copied, such as an
	// output directory nested in the source.
	ExcludeDirs []string

	// Exclude reports whether the absolute source path is left out.
	// Nil excludes nothing beyond ExcludeDirs.
	Exclude func(path string) bool

	// DerefSymlinks copies link targets instead of preserving links.
	DerefSymlinks bool

	// Workers bounds concurrent file copies. Zero uses GOMAXPROCS.
	Workers int

	// Logger receives per-file debug events. Nil disables logging.
	Logger *slog.Logger
}

// Copy stages src into dst.
func Copy(ctx context.Context, src, dst string, opts CopyOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	patterns, err := glob.CompileAll(append(slices.Clone(DefaultIgnore), opts.Ignore...), false)
	if err != nil {
		return fmt.Errorf("ignore: %w", err)
	}
	excluded := make([]string, 0, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		excluded = append(excluded, abs)
	}
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	skip := func(rel string, _ fs.DirEntry) bool {
		for _, p := range patterns {
			if p.Match(rel) || p.MatchAncestor(rel) {
				logger.Debug("ignored", "path", rel, "pattern", p.String())
				return true
			}
		}
		full := filepath.Join(absSrc, filepath.FromSlash(rel))
		if slices.Contains(excluded, full) || (opts.Exclude != nil && opts.Exclude(full)) {
			logger.Debug("excluded", "path", rel)
			return true
		}
		return false
	}

	logger.Info("staging application", "src", src, "dst", dst)
	return fsutil.CopyTree(ctx, src, dst, fsutil.TreeOptions{
		Skip:          skip,
		DerefSymlinks: opts.DerefSymlinks,
		Workers:       opts.Workers,
	})
}

// Walk enumerates the regular files and symlinks under dir. Empty
// directories and special files are not part of a tree.
func Walk(dir string) (*Tree, error) {
	tree := &Tree{Dir: dir}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entry := Entry{Path: filepath.ToSlash(rel), Mode: info.Mode()}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if entry.Link, err = os.Readlink(p); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			entry.Size = info.Size()
		default:
			return nil
		}
		tree.Entries = append(tree.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(tree.Entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return tree, nil
}
