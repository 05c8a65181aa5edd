package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScriptsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "scripts",
		Aliases: []string{"ls"},
		Short:   "List generated scripts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := ctx.newSession(nil, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			scripts, err := s.Scripts(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, ctx, scripts, func() error {
				if len(scripts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scripts generated yet")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), scriptsTable(scripts))
				return nil
			})
		},
	}
}
