package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/asarpack"
)

func newPackCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack [dir]",
		Short: "Package an application for one or more platforms",
		Example: `  asarpack pack ./app --name myapp --out dist --asar
  asarpack pack ./app --name myapp --asar-unpack '*.node' --asar-unpack-dir native
  asarpack pack --config asarpack.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if len(args) == 1 {
				c.v.Set("dir", args[0])
			}
			return c.runPack(cmd)
		},
	}

	f := cmd.Flags()
	f.String("name", "", "application name")
	f.String("dir", "", "application source directory")
	f.String("out", ".", "output directory")
	f.StringSlice("platform", nil, "target platforms (default: host)")
	f.StringSlice("arch", nil, "target architectures (default: host)")
	f.String("template", "", "runtime template directory copied into each target")
	f.Bool("overwrite", false, "replace existing target directories")
	f.Bool("asar", false, "package the application into an asar archive")
	f.String("asar-unpack", "", "glob of files left outside the archive (implies --asar unless --asar=false)")
	f.String("asar-unpack-dir", "", "glob of directories left outside the archive (implies --asar unless --asar=false)")
	f.String("asar-ordering", "", "file listing archive paths to place first (implies --asar unless --asar=false)")
	f.String("prebuilt-asar", "", "use this archive instead of building one")
	f.StringSlice("ignore", nil, "globs of source paths to leave out")
	f.Bool("prune", true, "run the pruner on the staged application")
	f.Bool("deref-symlinks", true, "copy symlink targets instead of the links")
	f.String("tmpdir", "", "directory for staging files")
	f.Int("workers", 0, "concurrent file operations per target (default: GOMAXPROCS)")
	return cmd
}

func (c *cli) runPack(cmd *cobra.Command) error {
	opts := asarpack.Options{
		Name:         c.v.GetString("name"),
		Dir:          c.v.GetString("dir"),
		Out:          c.v.GetString("out"),
		Targets:      targets(c.v.GetStringSlice("platform"), c.v.GetStringSlice("arch")),
		TemplateDir:  c.v.GetString("template"),
		Overwrite:    c.v.GetBool("overwrite"),
		Asar:         asarOption(c.rawAsar(), c.v.GetString("asar-unpack"), c.v.GetString("asar-unpack-dir"), c.v.GetString("asar-ordering")),
		PrebuiltAsar: c.v.GetString("prebuilt-asar"),
		Ignore:       c.v.GetStringSlice("ignore"),
		TmpDir:       c.v.GetString("tmpdir"),
	}
	if c.v.IsSet("prune") {
		prune := c.v.GetBool("prune")
		opts.Prune = &prune
	}
	if c.v.IsSet("deref-symlinks") {
		deref := c.v.GetBool("deref-symlinks")
		opts.DerefSymlinks = &deref
	}

	options := []asarpack.Option{
		asarpack.WithLogger(c.logger),
		asarpack.WithWorkers(c.v.GetInt("workers")),
		asarpack.WithWarningHandler(func(msg string) { c.charm.Warn(msg) }),
	}
	if c.verbose {
		options = append(options, asarpack.WithProgress(func(e asarpack.ProgressEvent) {
			c.logger.Debug(e.Stage.String(), "path", e.Path, "files", e.FilesDone, "bytes", e.BytesDone)
		}))
	}

	results, err := asarpack.Package(cmd.Context(), opts, options...)
	out := cmd.OutOrStdout()
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s\tfailed\n", r.Target)
		case r.Skipped:
			fmt.Fprintf(out, "%s\tskipped\t%s\n", r.Target, r.Dir)
		default:
			fmt.Fprintf(out, "%s\t%s\n", r.Target, r.Dir)
		}
	}
	return err
}

// targets returns the cross product of platforms and archs, filling either
// side from the host when empty.
func targets(platforms, archs []string) []asarpack.Target {
	if len(platforms) == 0 && len(archs) == 0 {
		return nil
	}
	host := asarpack.HostTarget()
	if len(platforms) == 0 {
		platforms = []string{host.Platform}
	}
	if len(archs) == 0 {
		archs = []string{host.Arch}
	}
	out := make([]asarpack.Target, 0, len(platforms)*len(archs))
	for _, p := range platforms {
		for _, a := range archs {
			out = append(out, asarpack.Target{Platform: p, Arch: a})
		}
	}
	return out
}

// rawAsar returns the asar value from the flag or config file, or nil when
// neither sets it.
func (c *cli) rawAsar() any {
	if !c.v.IsSet("asar") {
		return nil
	}
	return c.v.Get("asar")
}

// asarOption merges the asar value from flags or config with the
// individual asar-* flags. Any asar-* flag implies a settings object unless
// asar is explicitly false.
func asarOption(raw any, unpack, unpackDir, ordering string) asarpack.RawOption {
	if enabled, ok := raw.(bool); ok && !enabled {
		return asarpack.RawBool(false)
	}
	if unpack == "" && unpackDir == "" && ordering == "" {
		return asarpack.RawOptionFromValue(raw)
	}
	settings := map[string]any{}
	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			settings[strings.ToLower(k)] = v
		}
	}
	if unpack != "" {
		settings["unpack"] = unpack
	}
	if unpackDir != "" {
		settings["unpackdir"] = unpackDir
	}
	if ordering != "" {
		settings["ordering"] = ordering
	}
	return asarpack.RawOptionFromValue(settings)
}
