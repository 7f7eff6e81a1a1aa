package asarpack

import (
	"context"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/asarpack/asar"
	"github.com/meigma/asarpack/internal/fsutil"
	"github.com/meigma/asarpack/internal/layout"
	"github.com/meigma/asarpack/internal/stage"
	"github.com/meigma/asarpack/internal/unpack"
)

// assemble writes the archive for tree into workDir, together with the
// unpacked directory when any file is unpacked.
//
// The archive is encoded by a single writer while unpacked files are copied
// by a bounded pool. On failure both outputs are removed.
func (r *run) assemble(ctx context.Context, tree *stage.Tree, workDir string) error {
	paths := tree.Paths()
	decisions := r.selector.Select(paths)
	order := unpack.Order(paths, r.ordering)

	files := make([]asar.File, len(order))
	for i, p := range order {
		files[i] = asar.File{Path: p, Unpacked: decisions[p] == unpack.Unpacked}
	}
	unpacked := decisions.Unpacked(order)

	root, err := os.OpenRoot(tree.Dir)
	if err != nil {
		return &ArchiveError{Op: "create", Path: tree.Dir, Err: err}
	}
	defer root.Close()

	dest := filepath.Join(workDir, layout.DefaultArchiveName)
	unpackedDir := dest + asar.UnpackedSuffix
	r.p.log().Info("assembling archive", "files", len(files), "unpacked", len(unpacked))

	workers := r.p.workerCount()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := asar.CreateFile(egCtx, root, files, dest,
			asar.CreateWithWorkers(workers),
			asar.CreateWithLogger(r.p.log()),
			asar.CreateWithProgress(r.p.progress),
		)
		if err != nil {
			return &ArchiveError{Op: "create", Path: dest, Err: err}
		}
		return nil
	})

	sem := semaphore.NewWeighted(int64(workers))
	var acquireErr error
	for _, rel := range unpacked {
		if acquireErr = sem.Acquire(egCtx, 1); acquireErr != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			if err := copyUnpacked(egCtx, tree, rel, unpackedDir); err != nil {
				return &ArchiveError{Op: "unpack", Path: rel, Err: err}
			}
			return nil
		})
	}

	err = eg.Wait()
	if err == nil && acquireErr != nil {
		err = &ArchiveError{Op: "unpack", Path: unpackedDir, Err: acquireErr}
	}
	if err != nil {
		_ = os.Remove(dest)           //nolint:errcheck // best-effort cleanup
		_ = os.RemoveAll(unpackedDir) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}

// copyUnpacked copies one staged entry into dir, keeping its relative path
// and mode. Symlinks are recreated.
func copyUnpacked(ctx context.Context, tree *stage.Tree, rel, dir string) error {
	src := filepath.Join(tree.Dir, filepath.FromSlash(rel))
	dst := filepath.Join(dir, filepath.FromSlash(rel))

	entry, ok := tree.Lookup(rel)
	if ok && entry.IsLink() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil { //nolint:gosec // output trees are world-readable
			return err
		}
		return os.Symlink(entry.Link, dst)
	}
	return fsutil.CopyFile(ctx, src, dst, nil)
}

// substitute copies the prebuilt archive into workDir byte for byte and
// returns its digest.
func substitute(ctx context.Context, prebuilt, workDir string) (digest.Digest, error) {
	dest := filepath.Join(workDir, layout.DefaultArchiveName)
	dgst, err := fsutil.CopyVerified(ctx, prebuilt, dest)
	if err != nil {
		return "", &ArchiveError{Op: "substitute", Path: prebuilt, Err: err}
	}
	return dgst, nil
}
