package asarpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/asarpack/internal/fsutil"
	"github.com/meigma/asarpack/internal/layout"
	"github.com/meigma/asarpack/internal/stage"
)

// packageTarget builds one target directory. The directory is assembled
// under a temporary name inside Out and renamed into place only when every
// step succeeds.
func (r *run) packageTarget(ctx context.Context, t Target) Result {
	log := r.p.log().With("target", t.String())
	res := Result{Target: t, Dir: filepath.Join(r.opts.Out, targetDirName(r.opts.Name, t))}

	if _, err := os.Lstat(res.Dir); err == nil && !r.opts.Overwrite {
		log.Info("target directory exists, skipping", "dir", res.Dir)
		res.Skipped = true
		return res
	}

	if err := os.MkdirAll(r.opts.Out, 0o755); err != nil { //nolint:gosec // output trees are world-readable
		res.Err = fmt.Errorf("create output directory: %w", err)
		return res
	}
	buildDir, err := os.MkdirTemp(r.opts.Out, "."+targetDirName(r.opts.Name, t)+"-*")
	if err != nil {
		res.Err = fmt.Errorf("create build directory: %w", err)
		return res
	}
	defer os.RemoveAll(buildDir) //nolint:errcheck // gone after a successful rename

	placed, err := r.build(ctx, t, buildDir)
	if err != nil {
		log.Error("packaging failed", "error", err)
		res.Err = err
		return res
	}

	if r.opts.Overwrite {
		if err := os.RemoveAll(res.Dir); err != nil {
			res.Err = fmt.Errorf("remove existing target: %w", err)
			return res
		}
	}
	if err := os.Rename(buildDir, res.Dir); err != nil {
		res.Err = fmt.Errorf("finalize target: %w", err)
		return res
	}

	resources := ResourcesDir(r.opts.Name, t)
	res.ResourcesDir = filepath.Join(res.Dir, resources)
	rebase := func(p string) string {
		if p == "" {
			return ""
		}
		return filepath.Join(res.ResourcesDir, filepath.Base(p))
	}
	res.ArchivePath = rebase(placed.layout.ArchivePath)
	res.UnpackedDir = rebase(placed.layout.UnpackedDir)
	res.AppDir = rebase(placed.layout.AppDir)
	res.ArchiveDigest = placed.digest

	log.Info("target packaged", "dir", res.Dir, "mode", placed.layout.Mode.String())
	return res
}

type placement struct {
	layout layout.Layout
	digest digest.Digest
}

// build fills buildDir: runtime template, then the application payload.
func (r *run) build(ctx context.Context, t Target, buildDir string) (placement, error) {
	if r.opts.TemplateDir != "" {
		err := fsutil.CopyTree(ctx, r.opts.TemplateDir, buildDir, fsutil.TreeOptions{Workers: r.p.workerCount()})
		if err != nil {
			return placement{}, fmt.Errorf("copy template: %w", err)
		}
	}

	resources := filepath.Join(buildDir, ResourcesDir(r.opts.Name, t))
	lw := layout.New(resources, layout.WithLogger(r.p.log()))

	var (
		out placement
		err error
	)
	if r.opts.PrebuiltAsar != "" {
		out, err = r.placePrebuilt(ctx, lw)
	} else {
		out, err = r.placeApp(ctx, t, lw)
	}
	if err != nil {
		return placement{}, err
	}

	if _, err := lw.Verify(); err != nil {
		return placement{}, err
	}
	return out, nil
}

func (r *run) placePrebuilt(ctx context.Context, lw *layout.Writer) (placement, error) {
	workDir, err := r.tempDir("asarpack-work-*")
	if err != nil {
		return placement{}, err
	}
	defer os.RemoveAll(workDir) //nolint:errcheck // best-effort cleanup

	dgst, err := substitute(ctx, r.opts.PrebuiltAsar, workDir)
	if err != nil {
		return placement{}, err
	}
	l, err := lw.PlaceArchive(ctx, workDir)
	if err != nil {
		return placement{}, err
	}
	return placement{layout: l, digest: dgst}, nil
}

func (r *run) placeApp(ctx context.Context, t Target, lw *layout.Writer) (placement, error) {
	stageDir, err := r.tempDir("asarpack-stage-*")
	if err != nil {
		return placement{}, err
	}
	defer os.RemoveAll(stageDir) //nolint:errcheck // best-effort cleanup

	appDir := filepath.Join(stageDir, layout.AppDirName)
	if err := r.stage(ctx, t, appDir); err != nil {
		return placement{}, err
	}

	if !r.archive {
		l, err := lw.PlaceLoose(ctx, appDir)
		if err != nil {
			return placement{}, err
		}
		return placement{layout: l}, nil
	}

	tree, err := stage.Walk(appDir)
	if err != nil {
		return placement{}, fmt.Errorf("walk staged tree: %w", err)
	}
	workDir := filepath.Join(stageDir, "work")
	if err := r.assemble(ctx, tree, workDir); err != nil {
		return placement{}, err
	}
	l, err := lw.PlaceArchive(ctx, workDir)
	if err != nil {
		return placement{}, err
	}
	dgst, err := fsutil.FileDigest(l.ArchivePath)
	if err != nil {
		return placement{}, fmt.Errorf("digest archive: %w", err)
	}
	return placement{layout: l, digest: dgst}, nil
}

// stage copies the application into appDir and runs hooks and the pruner.
func (r *run) stage(ctx context.Context, t Target, appDir string) error {
	outAbs, err := filepath.Abs(r.opts.Out)
	if err != nil {
		return err
	}
	err = stage.Copy(ctx, r.opts.Dir, appDir, stage.CopyOptions{
		Ignore:        r.opts.Ignore,
		ExcludeDirs:   []string{outAbs},
		Exclude:       r.generatedOutput(outAbs),
		DerefSymlinks: boolOr(r.opts.DerefSymlinks, true),
		Workers:       r.p.workerCount(),
		Logger:        r.p.log(),
	})
	if err != nil {
		return fmt.Errorf("stage application: %w", err)
	}

	if err := runHooks(ctx, "afterCopy", r.opts.AfterCopy, appDir, t); err != nil {
		return err
	}
	if boolOr(r.opts.Prune, true) && r.p.pruner != nil {
		if err := r.p.pruner.Prune(ctx, appDir, t); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	return runHooks(ctx, "afterPrune", r.opts.AfterPrune, appDir, t)
}

// generatedOutput matches the target and build directories that Package
// writes directly under outAbs, for any known or requested target. It keeps
// earlier outputs out of the staged app when Out is the source directory.
func (r *run) generatedOutput(outAbs string) func(string) bool {
	names := make(map[string]struct{})
	add := func(t Target) {
		names[targetDirName(r.opts.Name, t)] = struct{}{}
	}
	for _, p := range knownPlatforms {
		for _, a := range knownArchs {
			add(Target{Platform: p, Arch: a})
		}
	}
	for _, t := range r.opts.Targets {
		add(t)
	}

	return func(path string) bool {
		if filepath.Dir(path) != outAbs {
			return false
		}
		base := filepath.Base(path)
		if _, ok := names[base]; ok {
			return true
		}
		if !strings.HasPrefix(base, ".") {
			return false
		}
		for name := range names {
			if strings.HasPrefix(base, "."+name+"-") {
				return true
			}
		}
		return false
	}
}

func (r *run) tempDir(pattern string) (string, error) {
	if r.opts.TmpDir != "" {
		if err := os.MkdirAll(r.opts.TmpDir, 0o750); err != nil {
			return "", fmt.Errorf("create temp directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(r.opts.TmpDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return dir, nil
}

func runHooks(ctx context.Context, name string, hooks []Hook, buildPath string, t Target) error {
	for i, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := hook(ctx, buildPath, t); err != nil {
			return fmt.Errorf("%s hook %d: %w", name, i, err)
		}
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
