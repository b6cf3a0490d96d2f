/*
Package cli implements the quarry command line. Every command resolves
its flags through a shared config layer, so a value can come from the
command line, from a QUARRY_* environment variable, or from a config
file, in that order of precedence.
*/
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Config  string
}

// NewRootCommand creates the root command for the quarry CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Query a remote object store",
		Long: `Quarry composes immutable queries for a remote object store.

A query arrives as read-only SQL or as filter flags. The encode command
prints the wire parameters a query produces. The find and count commands
run SQL against a quarry server or straight against MongoDB, and serve
exposes the query endpoint over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./quarry.yaml, then $HOME/.config/quarry)")

	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
