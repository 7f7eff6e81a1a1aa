package stage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asarpack/internal/testutil"
)

func TestCopyDefaultIgnore(t *testing.T) {
	t.Parallel()

	src := testutil.NewBasicApp(t)
	testutil.WriteTree(t, src, map[string]string{
		".git/HEAD":                 "ref: refs/heads/main",
		"node_modules/.bin/tool":    "#!/bin/sh",
		"node_modules/dep/index.js": "module.exports = 1",
		"lib/.DS_Store":             "",
	})
	dst := filepath.Join(t.TempDir(), "staged")

	require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{}))

	got := testutil.ListTree(t, dst)
	assert.Contains(t, got, "node_modules/dep/index.js")
	assert.Contains(t, got, "main.js")
	assert.NotContains(t, got, ".git/HEAD")
	assert.NotContains(t, got, "node_modules/.bin/tool")
	assert.NotContains(t, got, "lib/.DS_Store")
}

func TestCopyIgnorePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ignore  []string
		absent  []string
		present []string
	}{
		{
			name:    "base name",
			ignore:  []string{"*.pac"},
			absent:  []string{"proxy.pac"},
			present: []string{"main.js", "index.html"},
		},
		{
			name:    "directory",
			ignore:  []string{"dir_to_unpack"},
			absent:  []string{"dir_to_unpack/file1.txt", "dir_to_unpack/nested/file2.txt"},
			present: []string{"lib/util.js"},
		},
		{
			name:    "nested path",
			ignore:  []string{"dir_to_unpack/nested/**"},
			absent:  []string{"dir_to_unpack/nested/file2.txt"},
			present: []string{"dir_to_unpack/file1.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := testutil.NewBasicApp(t)
			dst := t.TempDir()
			require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{Ignore: tt.ignore}))

			got := testutil.ListTree(t, dst)
			for _, p := range tt.absent {
				assert.NotContains(t, got, p)
			}
			for _, p := range tt.present {
				assert.Contains(t, got, p)
			}
		})
	}
}

func TestCopyInvalidIgnore(t *testing.T) {
	t.Parallel()

	err := Copy(context.Background(), testutil.NewBasicApp(t), t.TempDir(), CopyOptions{Ignore: []string{"[bad"}})
	require.ErrorContains(t, err, "ignore")
}

func TestCopyExcludesNestedOutput(t *testing.T) {
	t.Parallel()

	src := testutil.NewBasicApp(t)
	out := filepath.Join(src, "out")
	testutil.WriteTree(t, out, map[string]string{"basic-linux-x64/resources/app.asar": "old"})

	dst := t.TempDir()
	require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{ExcludeDirs: []string{out}}))
	assert.NoDirExists(t, filepath.Join(dst, "out"))
	assert.FileExists(t, filepath.Join(dst, "main.js"))
}

func TestCopyExcludeFunc(t *testing.T) {
	t.Parallel()

	src := testutil.NewBasicApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "basic-linux-x64", "resources"), 0o755))
	dst := t.TempDir()

	var seen []string
	exclude := func(p string) bool {
		seen = append(seen, p)
		return filepath.Base(p) == "basic-linux-x64"
	}
	require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{Exclude: exclude}))

	assert.NoDirExists(t, filepath.Join(dst, "basic-linux-x64"))
	assert.FileExists(t, filepath.Join(dst, "main.js"))
	for _, p := range seen {
		assert.True(t, filepath.IsAbs(p), p)
	}
}

func TestCopySymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()

	src := testutil.NewBasicApp(t)
	require.NoError(t, os.Symlink("util.js", filepath.Join(src, "lib", "alias.js")))

	t.Run("preserved", func(t *testing.T) {
		t.Parallel()
		dst := t.TempDir()
		require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{}))

		tree, err := Walk(dst)
		require.NoError(t, err)
		e, ok := tree.Lookup("lib/alias.js")
		require.True(t, ok)
		assert.True(t, e.IsLink())
		assert.Equal(t, "util.js", e.Link)
	})

	t.Run("dereferenced", func(t *testing.T) {
		t.Parallel()
		dst := t.TempDir()
		require.NoError(t, Copy(context.Background(), src, dst, CopyOptions{DerefSymlinks: true}))

		tree, err := Walk(dst)
		require.NoError(t, err)
		e, ok := tree.Lookup("lib/alias.js")
		require.True(t, ok)
		assert.False(t, e.IsLink())
		assert.Equal(t, int64(len(testutil.BasicApp["lib/util.js"])), e.Size)
	})
}

func TestWalk(t *testing.T) {
	t.Parallel()

	dir := testutil.NewBasicApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	tree, err := Walk(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"dir_to_unpack/file1.txt",
		"dir_to_unpack/nested/file2.txt",
		"index.html",
		"lib/util.js",
		"main.js",
		"package.json",
		"proxy.pac",
	}, tree.Paths())

	e, ok := tree.Lookup("main.js")
	require.True(t, ok)
	assert.Equal(t, int64(len(testutil.BasicApp["main.js"])), e.Size)

	_, ok = tree.Lookup("empty")
	assert.False(t, ok)
}
