package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicFile writes to a temp file in the target's directory and renames it
// over the target on Commit. Partially written content is never visible at
// the target path.
type AtomicFile struct {
	target string
	tmp    *os.File
	done   bool
}

// CreateAtomic opens a temp file next to target. Parent directories are
// created as needed.
func CreateAtomic(target string) (*AtomicFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".asarpack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{target: target, tmp: tmp}, nil
}

// Write implements io.Writer.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.tmp.Write(p)
}

// Name returns the final path of the file.
func (a *AtomicFile) Name() string {
	return a.target
}

// Commit closes the temp file, applies perm and renames it to the target.
func (a *AtomicFile) Commit(perm fs.FileMode) error {
	if a.done {
		return nil
	}
	a.done = true
	tmpPath := a.tmp.Name()

	if err := a.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, a.target); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", a.target, err)
	}
	return nil
}

// Discard closes and removes the temp file. It is a no-op after Commit, so
// it is safe to defer.
func (a *AtomicFile) Discard() error {
	if a.done {
		return nil
	}
	a.done = true
	_ = a.tmp.Close() //nolint:errcheck // we're cleaning up
	return os.Remove(a.tmp.Name())
}
