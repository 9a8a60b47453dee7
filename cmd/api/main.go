package main

import (
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Product catalog API",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSumCommand(),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
