package main

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli holds state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	verbose bool

	charm  *log.Logger
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:   "asarpack",
		Short: "Package applications into asar archives",
		Long: `asarpack copies an application into per-platform output directories,
optionally sealing it into an asar archive with selected files left
unpacked next to it.

Options can be given as flags or in a JSON, YAML or TOML config file passed
with --config. Flags take precedence over the config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (JSON, YAML or TOML)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPackCmd(c), newListCmd(c), newExtractCmd(c))
	return root
}

// init sets up logging and reads the config file, if any.
func (c *cli) init(cmd *cobra.Command) error {
	level := log.InfoLevel
	if c.verbose {
		level = log.DebugLevel
	}
	c.charm = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: "asarpack",
		Level:  level,
	})
	c.logger = slog.New(c.charm)

	if c.cfgFile == "" {
		return nil
	}
	c.v.SetConfigFile(c.cfgFile)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.cfgFile, err)
	}
	c.logger.Debug("config loaded", "path", c.v.ConfigFileUsed())
	return nil
}
