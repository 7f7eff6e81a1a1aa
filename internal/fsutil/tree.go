package fsutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TreeOptions configures CopyTree.
type TreeOptions struct {
	// Skip reports whether the slash-separated path rel, relative to the
	// copied root, is left out. Skipped directories are not descended.
	Skip func(rel string, d fs.DirEntry) bool

	// DerefSymlinks copies link targets instead of recreating the links.
	DerefSymlinks bool

	// Workers bounds concurrent file copies. Zero uses GOMAXPROCS.
	Workers int
}

// CopyFile copies the regular file src to dst, preserving permission bits.
// The destination appears atomically.
func CopyFile(ctx context.Context, src, dst string, buf []byte) error {
	in, err := os.Open(src) //nolint:gosec // caller-controlled path is intentional
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	out, err := CreateAtomic(dst)
	if err != nil {
		return err
	}
	defer out.Discard() //nolint:errcheck // no-op after Commit

	if err := CopyExact(ctx, out, in, info.Size(), buf); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Commit(info.Mode().Perm())
}

// CopyTree copies the directory src into dst, creating dst if needed.
// Directories and symlinks are created while walking; file bodies are
// copied concurrently.
func CopyTree(ctx context.Context, src, dst string, opts TreeOptions) error {
	w := &treeWalker{opts: opts, visited: make(map[string]struct{})}
	if err := w.plan(src, dst, ""); err != nil {
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, j := range w.jobs {
		eg.Go(func() error {
			return CopyFile(ctx, j.src, j.dst, nil)
		})
	}
	return eg.Wait()
}

// MoveDir renames src to dst, falling back to copy and remove when a rename
// is not possible (for example across filesystems).
func MoveDir(ctx context.Context, src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyTree(ctx, src, dst, TreeOptions{}); err != nil {
		_ = os.RemoveAll(dst) //nolint:errcheck // best-effort cleanup
		return err
	}
	return os.RemoveAll(src)
}

// MoveFile renames src to dst, falling back to copy and remove.
func MoveFile(ctx context.Context, src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(ctx, src, dst, nil); err != nil {
		return err
	}
	return os.Remove(src)
}

type copyJob struct {
	src string
	dst string
}

type treeWalker struct {
	opts    TreeOptions
	visited map[string]struct{}
	jobs    []copyJob
}

// plan walks src, mirroring directories and links under dst and queueing
// file copies. prefix is the slash path of src relative to the copied root.
func (w *treeWalker) plan(src, dst, prefix string) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	if _, seen := w.visited[resolved]; seen {
		return fmt.Errorf("symlink cycle at %s", src)
	}
	w.visited[resolved] = struct{}{}
	defer delete(w.visited, resolved)

	if err := os.MkdirAll(dst, 0o755); err != nil { //nolint:gosec // output trees are world-readable
		return fmt.Errorf("create directory %s: %w", dst, err)
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		relSlash := path.Join(prefix, filepath.ToSlash(rel))
		if w.opts.Skip != nil && w.opts.Skip(relSlash, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755) //nolint:gosec // output trees are world-readable
		case d.Type()&fs.ModeSymlink != 0:
			return w.planLink(p, target, relSlash)
		case d.Type().IsRegular():
			w.jobs = append(w.jobs, copyJob{src: p, dst: target})
		}
		return nil
	})
}

func (w *treeWalker) planLink(src, dst, rel string) error {
	if !w.opts.DerefSymlinks {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("resolve symlink %s: %w", src, err)
	}
	switch {
	case info.IsDir():
		return w.plan(src, dst, rel)
	case info.Mode().IsRegular():
		w.jobs = append(w.jobs, copyJob{src: src, dst: dst})
	}
	return nil
}
