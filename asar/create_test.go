package asar

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func openRoot(t *testing.T, dir string) *os.Root {
	t.Helper()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { root.Close() })
	return root
}

func createArchive(t *testing.T, dir string, files []File, opts ...CreateOption) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "app.asar")
	_, err := CreateFile(context.Background(), openRoot(t, dir), files, dest, opts...)
	require.NoError(t, err)
	return dest
}

func TestCreateRoundTrip(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{
		"main.js":        "console.log('hi')",
		"package.json":   `{"main":"main.js"}`,
		"lib/util.js":    "module.exports = {}",
		"lib/deep/x.txt": "",
	})
	files := []File{
		{Path: "package.json"},
		{Path: "main.js"},
		{Path: "lib/util.js"},
		{Path: "lib/deep/x.txt"},
	}
	dest := createArchive(t, dir, files)

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"lib/deep/x.txt", "lib/util.js", "main.js", "package.json"}, a.Header().Files())

	got, err := a.ReadFile("main.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(got))

	empty, err := a.ReadFile("lib/deep/x.txt")
	require.NoError(t, err)
	assert.Empty(t, empty)

	dirNode, err := a.Stat("lib")
	require.NoError(t, err)
	assert.True(t, dirNode.IsDir())

	_, err = a.ReadFile("missing.js")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateBodiesFollowInputOrder(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "aaaa", "b.txt": "bb", "c.txt": "c"})
	dest := createArchive(t, dir, []File{{Path: "c.txt"}, {Path: "a.txt"}, {Path: "b.txt"}})

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	offsets := map[string]uint64{}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		n, ok := a.Header().Lookup(name)
		require.True(t, ok)
		offsets[name] = n.Offset
	}
	assert.Equal(t, map[string]uint64{"c.txt": 0, "a.txt": 1, "b.txt": 5}, offsets)
}

func TestCreateUnpackedFiles(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"main.js": "main", "proxy.pac": "pac"})
	dest := createArchive(t, dir, []File{{Path: "main.js"}, {Path: "proxy.pac", Unpacked: true}})

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Stat("proxy.pac")
	require.NoError(t, err)
	assert.True(t, n.Unpacked)
	assert.Equal(t, int64(3), n.Size)
	require.NotNil(t, n.Integrity)

	// Unpacked bodies live outside the archive.
	_, err = a.ReadFile("proxy.pac")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.MkdirAll(a.UnpackedDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(a.UnpackedDir(), "proxy.pac"), []byte("pac"), 0o644))
	got, err := a.ReadFile("proxy.pac")
	require.NoError(t, err)
	assert.Equal(t, "pac", string(got))

	require.NoError(t, os.WriteFile(filepath.Join(a.UnpackedDir(), "proxy.pac"), []byte("tampered"), 0o644))
	_, err = a.ReadFile("proxy.pac")
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestCreateHeaderFraming(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "hello"})
	var buf bytes.Buffer
	hdr, err := Create(context.Background(), openRoot(t, dir), []File{{Path: "a.txt"}}, &buf)
	require.NoError(t, err)

	raw := buf.Bytes()
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[0:]))
	headerSize := binary.LittleEndian.Uint32(raw[4:])
	assert.Zero(t, headerSize%4)
	assert.Equal(t, int64(8+headerSize), hdr.DataOffset())

	strLen := binary.LittleEndian.Uint32(raw[12:])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw[16:16+strLen], &decoded))
	files := decoded["files"].(map[string]any)
	entry := files["a.txt"].(map[string]any)
	assert.Equal(t, "0", entry["offset"])
	assert.EqualValues(t, 5, entry["size"])
	integrity := entry["integrity"].(map[string]any)
	assert.Equal(t, "SHA256", integrity["algorithm"])
	assert.EqualValues(t, BlockSize, integrity["blockSize"])

	assert.Equal(t, "hello", string(raw[hdr.DataOffset():]))
}

func TestCreateExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	t.Parallel()

	dir := writeTree(t, map[string]string{"bin/tool": "#!/bin/sh"})
	require.NoError(t, os.Chmod(filepath.Join(dir, "bin", "tool"), 0o755))
	dest := createArchive(t, dir, []File{{Path: "bin/tool"}})

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Stat("bin/tool")
	require.NoError(t, err)
	assert.True(t, n.Executable)
}

func TestCreateSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()

	dir := writeTree(t, map[string]string{"lib/real.js": "real"})
	require.NoError(t, os.Symlink("real.js", filepath.Join(dir, "lib", "alias.js")))
	dest := createArchive(t, dir, []File{{Path: "lib/real.js"}, {Path: "lib/alias.js"}})

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	n, ok := a.Header().Lookup("lib/alias.js")
	require.True(t, ok)
	assert.Equal(t, "lib/real.js", n.Link)

	got, err := a.ReadFile("lib/alias.js")
	require.NoError(t, err)
	assert.Equal(t, "real", string(got))

	out := t.TempDir()
	require.NoError(t, a.Extract(context.Background(), out))
	target, err := os.Readlink(filepath.Join(out, "lib", "alias.js"))
	require.NoError(t, err)
	assert.Equal(t, "real.js", target)
}

func TestCreateRejectsEscapingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "a"})
	require.NoError(t, os.Symlink("../../etc/passwd", filepath.Join(dir, "evil")))

	var buf bytes.Buffer
	_, err := Create(context.Background(), openRoot(t, dir), []File{{Path: "evil"}}, &buf)
	require.ErrorIs(t, err, ErrSymlinkEscape)
}

func TestCreateRejectsConflicts(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "a"})
	root := openRoot(t, dir)

	var buf bytes.Buffer
	_, err := Create(context.Background(), root, []File{{Path: "a.txt"}, {Path: "a.txt"}}, &buf)
	require.ErrorIs(t, err, ErrPathConflict)

	_, err = Create(context.Background(), root, []File{{Path: "../a.txt"}}, &buf)
	require.ErrorIs(t, err, os.ErrInvalid)
}

func TestCreateFileLeavesNothingOnFailure(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "a"})
	outDir := t.TempDir()
	dest := filepath.Join(outDir, "app.asar")

	_, err := CreateFile(context.Background(), openRoot(t, dir), []File{{Path: "a.txt"}, {Path: "missing.txt"}}, dest)
	require.Error(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateCanceled(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := Create(ctx, openRoot(t, dir), []File{{Path: "a.txt"}}, &buf)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCreateProgress(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a.txt": "aa", "b.txt": "bbb"})
	var mu sync.Mutex
	stages := map[ProgressStage]int{}
	createArchive(t, dir, []File{{Path: "a.txt"}, {Path: "b.txt"}}, CreateWithWorkers(2), CreateWithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages[e.Stage]++
	}))

	assert.Equal(t, 2, stages[StageHashing])
	assert.Equal(t, 2, stages[StageWriting])
}

func TestExtract(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"main.js": "main", "lib/util.js": "util", "proxy.pac": "pac"})
	dest := createArchive(t, dir, []File{{Path: "main.js"}, {Path: "lib/util.js"}, {Path: "proxy.pac", Unpacked: true}})
	require.NoError(t, os.MkdirAll(dest+UnpackedSuffix, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest+UnpackedSuffix, "proxy.pac"), []byte("pac"), 0o644))

	a, err := Open(dest)
	require.NoError(t, err)
	defer a.Close()

	out := t.TempDir()
	require.NoError(t, a.Extract(context.Background(), out))
	for name, want := range map[string]string{"main.js": "main", "lib/util.js": "util", "proxy.pac": "pac"} {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}
