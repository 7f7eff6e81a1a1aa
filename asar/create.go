package asar

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/asarpack/internal/fsutil"
)

// File names one entry handed to the encoder.
type File struct {
	// Path is the slash-separated path relative to the root.
	Path string

	// Unpacked records the file in the header without storing its body.
	Unpacked bool
}

// Create writes an archive of files, read from root, to w.
//
// Bodies of sealed files are appended in the order of files. Regular files
// are read once concurrently to build their integrity records, then again
// sequentially while the bodies are written; a file that changes in between
// fails the run. Symlinks become link nodes and must resolve inside the root.
// Directories are implied by file paths; empty directories are not stored.
//
// The context can be used for cancellation of long-running archive creation.
func Create(ctx context.Context, root *os.Root, files []File, w io.Writer, opts ...CreateOption) (*Header, error) {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &creator{cfg: cfg, root: root}
	c.log().Info("creating archive", "files", len(files))

	infos, err := c.inspect(ctx, files)
	if err != nil {
		return nil, err
	}
	hdr, err := buildHeader(infos)
	if err != nil {
		return nil, err
	}

	headerJSON, err := json.Marshal(hdr.root)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	frame := frameHeader(headerJSON)
	hdr.dataOffset = int64(len(frame))
	if _, err := w.Write(frame); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	n, err := c.writeBodies(ctx, w, infos)
	if err != nil {
		return nil, err
	}
	c.log().Debug("archive written", "header_size", len(frame), "data_size", n)
	return hdr, nil
}

// CreateFile writes the archive to dest through a temp file, so dest only
// appears once the archive is complete.
func CreateFile(ctx context.Context, root *os.Root, files []File, dest string, opts ...CreateOption) (*Header, error) {
	out, err := fsutil.CreateAtomic(dest)
	if err != nil {
		return nil, err
	}
	defer out.Discard() //nolint:errcheck // no-op after Commit

	bw := bufio.NewWriterSize(out, 1<<20)
	hdr, err := Create(ctx, root, files, bw, opts...)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush archive: %w", err)
	}
	if err := out.Commit(0o644); err != nil {
		return nil, err
	}
	return hdr, nil
}

// fileInfo is what the encoder learned about one input file.
type fileInfo struct {
	path       string
	size       int64
	executable bool
	unpacked   bool
	link       string
	integrity  *Integrity
}

// creator holds state for archive creation.
type creator struct {
	cfg  createConfig
	root *os.Root
}

// log returns the logger, falling back to a discard logger if nil.
func (c *creator) log() *slog.Logger {
	if c.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.cfg.logger
}

func (c *creator) reportProgress(stage ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if c.cfg.progress == nil {
		return
	}
	c.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

// inspect stats and hashes every file concurrently.
func (c *creator) inspect(ctx context.Context, files []File) ([]fileInfo, error) {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if !fs.ValidPath(f.Path) || f.Path == "." {
			return nil, &fs.PathError{Op: "create", Path: f.Path, Err: fs.ErrInvalid}
		}
		if _, dup := seen[f.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %s", ErrPathConflict, f.Path)
		}
		seen[f.Path] = struct{}{}
	}

	workers := c.cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	infos := make([]fileInfo, len(files))
	var done atomic.Int64
	var hashed atomic.Uint64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, f := range files {
		eg.Go(func() error {
			info, err := c.inspectOne(ctx, f)
			if err != nil {
				return err
			}
			infos[i] = info
			bytes := hashed.Add(uint64(info.size)) //nolint:gosec // sizes are non-negative
			c.reportProgress(StageHashing, f.Path, bytes, int(done.Add(1)), len(files))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *creator) inspectOne(ctx context.Context, f File) (fileInfo, error) {
	fsPath := filepath.FromSlash(f.Path)
	linfo, err := c.root.Lstat(fsPath)
	if err != nil {
		return fileInfo{}, err
	}
	info := fileInfo{path: f.Path, unpacked: f.Unpacked}

	switch mode := linfo.Mode(); {
	case mode&fs.ModeSymlink != 0:
		target, err := c.root.Readlink(fsPath)
		if err != nil {
			return fileInfo{}, err
		}
		if info.link, err = resolveLink(f.Path, target); err != nil {
			return fileInfo{}, err
		}
		c.log().Debug("link", "path", f.Path, "target", info.link)
		return info, nil
	case mode.IsRegular():
		info.size = linfo.Size()
		info.executable = mode.Perm()&0o100 != 0
	default:
		return fileInfo{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, f.Path, mode.Type())
	}

	fh, err := c.root.Open(fsPath)
	if err != nil {
		return fileInfo{}, err
	}
	defer fh.Close()

	iw := newIntegrityWriter(BlockSize)
	if err := fsutil.CopyExact(ctx, iw, fh, info.size, nil); err != nil {
		return fileInfo{}, fmt.Errorf("hash %s: %w", f.Path, err)
	}
	info.integrity = iw.Sum()
	return info, nil
}

// writeBodies appends sealed file bodies in order and returns the number of
// bytes written.
func (c *creator) writeBodies(ctx context.Context, w io.Writer, infos []fileInfo) (uint64, error) {
	buf := make([]byte, 32*1024)
	var total uint64
	var sealed int
	for _, info := range infos {
		if info.unpacked || info.link != "" {
			continue
		}
		n, err := c.writeBody(ctx, w, info, buf)
		if err != nil {
			return total, err
		}
		total += n
		sealed++
		c.reportProgress(StageWriting, info.path, total, sealed, 0)
	}
	return total, nil
}

func (c *creator) writeBody(ctx context.Context, w io.Writer, info fileInfo, buf []byte) (uint64, error) {
	fh, err := c.root.Open(filepath.FromSlash(info.path))
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	hasher := sha256.New()
	n, err := fsutil.CopyWithContext(ctx, io.MultiWriter(w, hasher), io.LimitReader(fh, info.size), buf)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", info.path, err)
	}
	if n != uint64(info.size) || hex.EncodeToString(hasher.Sum(nil)) != info.integrity.Hash { //nolint:gosec // size is non-negative
		return n, fmt.Errorf("file changed during archive creation: %s", info.path)
	}
	return n, nil
}

// buildHeader assembles the header tree and assigns body offsets in order.
func buildHeader(infos []fileInfo) (*Header, error) {
	root := &Node{Files: map[string]*Node{}}
	var offset uint64
	for _, info := range infos {
		node := &Node{
			Size:       info.size,
			Unpacked:   info.unpacked,
			Executable: info.executable,
			Link:       info.link,
			Integrity:  info.integrity,
		}
		if info.link == "" && !info.unpacked {
			node.Offset = offset
			offset += uint64(info.size) //nolint:gosec // sizes are non-negative
		}
		if err := insert(root, info.path, node); err != nil {
			return nil, err
		}
	}
	return &Header{root: root}, nil
}

func insert(root *Node, name string, node *Node) error {
	dir := root
	parts := strings.Split(name, "/")
	for i, part := range parts[:len(parts)-1] {
		child, ok := dir.Files[part]
		if !ok {
			child = &Node{Files: map[string]*Node{}}
			dir.Files[part] = child
		}
		if !child.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrPathConflict, strings.Join(parts[:i+1], "/"))
		}
		dir = child
	}
	base := parts[len(parts)-1]
	if _, exists := dir.Files[base]; exists {
		return fmt.Errorf("%w: %s", ErrPathConflict, name)
	}
	dir.Files[base] = node
	return nil
}

// resolveLink converts a link target found at name into a path relative to
// the archive root.
func resolveLink(name, target string) (string, error) {
	target = filepath.ToSlash(target)
	if path.IsAbs(target) || filepath.IsAbs(target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrSymlinkEscape, name, target)
	}
	resolved := path.Join(path.Dir(name), target)
	if !fs.ValidPath(resolved) || resolved == "." {
		return "", fmt.Errorf("%w: %s -> %s", ErrSymlinkEscape, name, target)
	}
	return resolved, nil
}
