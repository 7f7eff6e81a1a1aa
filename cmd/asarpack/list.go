package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/asarpack/asar"
)

func newListCmd(c *cli) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the files in an asar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := asar.Open(args[0])
			if err != nil {
				return err
			}
			defer a.Close()
			c.logger.Debug("archive opened", "path", args[0], "data_offset", a.Header().DataOffset())

			out := cmd.OutOrStdout()
			return a.Header().Walk(func(name string, n *asar.Node) error {
				if n.IsDir() {
					return nil
				}
				if !long {
					fmt.Fprintln(out, name)
					return nil
				}
				switch {
				case n.IsLink():
					fmt.Fprintf(out, "link\t%s -> %s\n", name, n.Link)
				case n.Unpacked:
					fmt.Fprintf(out, "unpacked\t%d\t%s\n", n.Size, name)
				default:
					fmt.Fprintf(out, "sealed\t%d\t%s\n", n.Size, name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show storage kind and size")
	return cmd
}
