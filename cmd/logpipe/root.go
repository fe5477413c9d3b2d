package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var dbFlag string

	rootCmd := &cobra.Command{
		Use:           "logpipe",
		Short:         "Inspect and exercise logpipe log streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "logpipe.db", "Path to the logpiped event database")

	rootCmd.AddCommand(newTailCommand(&dbFlag))
	rootCmd.AddCommand(newEmitCommand())

	return rootCmd
}
