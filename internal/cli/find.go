package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry"
	"github.com/quarryhq/quarry/sqlq"
)

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Run a query and print the matching objects",
		Long: `Run a read-only SQL statement and print the matching objects.

With --server the statement runs against a quarry server. With --uri and
--database it runs straight against MongoDB. A LIMIT 1 statement prints a
single document instead of an array.

Example:
  quarry find --sql "SELECT * FROM GameScore WHERE score > 1000" --server http://localhost:8090
  quarry find --sql "SELECT name FROM Player ORDER BY score DESC" --uri mongodb://localhost:27017 --database game`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, cmd)
		},
	}

	addQueryFlags(cmd, opts)

	return cmd
}

func runFind(opts *QueryOptions, cmd *cobra.Command) error {
	result, err := sqlq.NewStatement(opts.SQL).Build()
	if err != nil {
		return err
	}
	if result.Operation == sqlq.OpCount {
		return errors.New("count statements run with quarry count")
	}

	ctx, cancel := commandContext(cmd, opts.Timeout)
	defer cancel()

	exec, cleanup, err := buildExecutor(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	client := quarry.NewClient(exec, quarry.WithLogger(commandLogger(opts.Verbose)))
	actor := quarry.Actor{SessionToken: opts.SessionToken}

	if result.Operation == sqlq.OpFirst {
		object, err := client.First(ctx, result.Query, actor)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), objectDocument(object))
	}

	objects, err := client.Find(ctx, result.Query, actor)
	if err != nil {
		return err
	}

	documents := make([]map[string]any, 0, len(objects))
	for _, object := range objects {
		documents = append(documents, objectDocument(object))
	}
	return printJSON(cmd.OutOrStdout(), documents)
}
