package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/asarpack/asar"
)

func newExtractCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <archive> <dest>",
		Short: "Extract an asar archive, including unpacked files, into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := asar.Open(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Extract(cmd.Context(), args[1]); err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}
			c.logger.Info("archive extracted", "dest", args[1], "files", len(a.Header().Files()))
			return nil
		},
	}
}
