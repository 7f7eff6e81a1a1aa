package asarpack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func noopHook(context.Context, string, Target) error {
	return nil
}

func writePrebuilt(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "prebuilt.asar")
	require.NoError(t, os.WriteFile(p, []byte("prebuilt archive"), 0o644))
	return p
}

func TestValidatePrebuiltWarnings(t *testing.T) {
	t.Parallel()

	v := ValidatePrebuilt(writePrebuilt(t), Options{
		Asar:          RawBool(true),
		Ignore:        []string{"foo"},
		Prune:         ptr(false),
		DerefSymlinks: ptr(false),
	})
	require.NoError(t, v.Err)
	assert.Equal(t, []string{
		"prebuiltAsar has been specified, all asar options will be ignored",
		"prebuiltAsar and ignore are incompatible, ignoring the ignore option",
		"prebuiltAsar and prune are incompatible, ignoring the prune option",
		"prebuiltAsar and derefSymlinks are incompatible, ignoring the derefSymlinks option",
	}, v.Warnings)
}

func TestValidatePrebuiltDefaultsAreSilent(t *testing.T) {
	t.Parallel()

	v := ValidatePrebuilt(writePrebuilt(t), Options{
		Asar:          RawBool(false),
		Prune:         ptr(true),
		DerefSymlinks: ptr(true),
	})
	require.NoError(t, v.Err)
	assert.Empty(t, v.Warnings)
}

func TestValidatePrebuiltAsarWarningFollowsNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  RawOption
		want []string
	}{
		{name: "absent", raw: RawOption{}},
		{name: "false", raw: RawBool(false)},
		{name: "invalid shape", raw: RawOptionFromValue("yes")},
		{name: "true", raw: RawBool(true), want: []string{WarnAsarIgnored}},
		{name: "settings", raw: RawSettings(Settings{Unpack: "*.node"}), want: []string{WarnAsarIgnored}},
	}
	path := writePrebuilt(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := ValidatePrebuilt(path, Options{Asar: tt.raw})
			require.NoError(t, v.Err)
			assert.Equal(t, tt.want, v.Warnings)
		})
	}
}

func TestValidatePrebuiltNotAFile(t *testing.T) {
	t.Parallel()

	for name, path := range map[string]string{
		"directory": t.TempDir(),
		"missing":   filepath.Join(t.TempDir(), "missing.asar"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			v := ValidatePrebuilt(path, Options{Asar: RawBool(true), AfterCopy: []Hook{noopHook}})
			require.ErrorIs(t, v.Err, ErrInvalidConfig)
			assert.ErrorContains(t, v.Err, "must be an asar file")

			var cfgErr *ConfigError
			require.ErrorAs(t, v.Err, &cfgErr)
			assert.Equal(t, "prebuiltAsar", cfgErr.Option)

			// Warnings are still collected ahead of the fatal error.
			assert.Equal(t, []string{WarnAsarIgnored}, v.Warnings)
		})
	}
}

func TestValidatePrebuiltHooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   Options
		option string
	}{
		{name: "afterCopy", opts: Options{AfterCopy: []Hook{noopHook}}, option: "afterCopy"},
		{name: "afterPrune", opts: Options{AfterPrune: []Hook{noopHook}}, option: "afterPrune"},
		{name: "empty afterCopy list", opts: Options{AfterCopy: []Hook{}}, option: "afterCopy"},
		{name: "both", opts: Options{AfterCopy: []Hook{noopHook}, AfterPrune: []Hook{noopHook}}, option: "afterCopy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := ValidatePrebuilt(writePrebuilt(t), tt.opts)
			require.ErrorIs(t, v.Err, ErrInvalidConfig)
			assert.EqualError(t, v.Err, tt.option+" is incompatible with prebuiltAsar")
		})
	}
}

func TestValidatePrebuiltWarningsPrecedeHookError(t *testing.T) {
	t.Parallel()

	v := ValidatePrebuilt(writePrebuilt(t), Options{
		Asar:       RawSettings(Settings{Unpack: "*.node"}),
		Ignore:     []string{"foo"},
		AfterPrune: []Hook{noopHook},
	})
	require.Error(t, v.Err)
	assert.Equal(t, []string{WarnAsarIgnored, IncompatibleWarning("ignore")}, v.Warnings)
}
