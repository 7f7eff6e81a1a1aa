package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asarpack"
	"github.com/meigma/asarpack/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPackWithConfigFile(t *testing.T) {
	t.Parallel()

	dir := testutil.NewBasicApp(t)
	out := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "asarpack.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`name: basic
out: `+out+`
platform: [linux]
arch: [x64]
asar:
  unpack: "*.pac"
  unpackDir: dir_to_unpack
`), 0o644))

	stdout, err := execute(t, "pack", dir, "--config", cfg)
	require.NoError(t, err)
	target := filepath.Join(out, "basic-linux-x64")
	assert.Contains(t, stdout, "linux/x64\t"+target)

	archive := filepath.Join(target, "resources", "app.asar")
	assert.FileExists(t, archive)
	assert.DirExists(t, filepath.Join(target, "resources", "app.asar.unpacked", "dir_to_unpack"))

	listing, err := execute(t, "list", "--long", archive)
	require.NoError(t, err)
	assert.Contains(t, listing, "unpacked\t")
	assert.Contains(t, listing, "proxy.pac")
	assert.Contains(t, listing, "sealed\t")

	dest := t.TempDir()
	_, err = execute(t, "extract", archive, dest)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dest, "dir_to_unpack", "file1.txt"))
	require.NoError(t, err)
	assert.Equal(t, testutil.BasicApp["dir_to_unpack/file1.txt"], string(got))
}

func TestPackLooseByDefault(t *testing.T) {
	t.Parallel()

	dir := testutil.NewBasicApp(t)
	out := t.TempDir()
	_, err := execute(t, "pack", dir, "--name", "basic", "--out", out, "--platform", "linux", "--arch", "x64")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(out, "basic-linux-x64", "resources", "app"))
}

func TestPackExplicitAsarFalseWins(t *testing.T) {
	t.Parallel()

	dir := testutil.NewBasicApp(t)
	out := t.TempDir()
	_, err := execute(t, "pack", dir, "--name", "basic", "--out", out, "--platform", "linux", "--arch", "x64",
		"--asar=false", "--asar-unpack", "*.pac")
	require.NoError(t, err)
	resources := filepath.Join(out, "basic-linux-x64", "resources")
	assert.DirExists(t, filepath.Join(resources, "app"))
	assert.NoFileExists(t, filepath.Join(resources, "app.asar"))
}

func TestPackAsarUnpackImpliesArchive(t *testing.T) {
	t.Parallel()

	dir := testutil.NewBasicApp(t)
	out := t.TempDir()
	_, err := execute(t, "pack", dir, "--name", "basic", "--out", out, "--platform", "linux", "--arch", "x64",
		"--asar-unpack", "*.pac")
	require.NoError(t, err)
	resources := filepath.Join(out, "basic-linux-x64", "resources")
	assert.FileExists(t, filepath.Join(resources, "app.asar"))
	assert.FileExists(t, filepath.Join(resources, "app.asar.unpacked", "proxy.pac"))
}

func TestPackFlagErrors(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "pack", t.TempDir(), "--name", "basic", "--out", t.TempDir(), "--prebuilt-asar", t.TempDir())
	require.ErrorIs(t, err, asarpack.ErrInvalidConfig)
	assert.ErrorContains(t, err, "must be an asar file")
}

func TestTargets(t *testing.T) {
	t.Parallel()

	assert.Nil(t, targets(nil, nil))
	got := targets([]string{"linux", "darwin"}, []string{"x64", "arm64"})
	assert.Len(t, got, 4)
	assert.Equal(t, asarpack.Target{Platform: "darwin", Arch: "arm64"}, got[3])

	host := asarpack.HostTarget()
	assert.Equal(t, []asarpack.Target{{Platform: "win32", Arch: host.Arch}}, targets([]string{"win32"}, nil))
}

func TestAsarOption(t *testing.T) {
	t.Parallel()

	cfg, ok := asarpack.Normalize(asarOption(nil, "", "", ""))
	assert.False(t, ok)
	assert.Equal(t, asarpack.Config{}, cfg)

	cfg, ok = asarpack.Normalize(asarOption(true, "", "", ""))
	assert.True(t, ok)
	assert.Equal(t, asarpack.Config{}, cfg)

	cfg, ok = asarpack.Normalize(asarOption(map[string]any{"unpackDir": "native"}, "*.node", "", ""))
	assert.True(t, ok)
	assert.Equal(t, asarpack.Config{UnpackPattern: "*.node", UnpackDir: "native"}, cfg)

	cfg, ok = asarpack.Normalize(asarOption(nil, "", "", "order.txt"))
	assert.True(t, ok)
	assert.Equal(t, "order.txt", cfg.OrderingFile)

	cfg, ok = asarpack.Normalize(asarOption(false, "*.node", "native", "order.txt"))
	assert.False(t, ok)
	assert.Equal(t, asarpack.Config{}, cfg)
}
