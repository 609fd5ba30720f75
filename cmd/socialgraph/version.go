package main

import (
	"fmt"

	"socialgraph/internal/build"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Reports the socialgraph version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "socialgraph version `%s` build from `%s` on `%s`\n",
				build.Version, build.Commit, build.Date)
			return err
		},
	}
}
