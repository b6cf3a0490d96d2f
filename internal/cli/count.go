package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry"
	"github.com/quarryhq/quarry/sqlq"
)

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Run a query and print how many objects match",
		Long: `Run a read-only SQL statement and print how many objects match.

Plain SELECT statements count their matches as well; the result rows are
never fetched.

Example:
  quarry count --sql "SELECT COUNT(*) FROM GameScore WHERE cheatMode = false" --server http://localhost:8090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, cmd)
		},
	}

	addQueryFlags(cmd, opts)

	return cmd
}

func runCount(opts *QueryOptions, cmd *cobra.Command) error {
	result, err := sqlq.NewStatement(opts.SQL).Build()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, opts.Timeout)
	defer cancel()

	exec, cleanup, err := buildExecutor(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	client := quarry.NewClient(exec, quarry.WithLogger(commandLogger(opts.Verbose)))

	total, err := client.Count(ctx, result.Query, quarry.Actor{SessionToken: opts.SessionToken})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), total)
	return err
}
