package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry"
	"github.com/quarryhq/quarry/sqlq"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	SQL              string
	Collection       string
	Where            string
	Order            string
	Keys             string
	Include          string
	Skip             int
	Limit            int
	IncludeClassName bool
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Translate a query into wire parameters",
		Long: `Translate a query into the wire parameters the server accepts.

The query comes from a read-only SQL statement or from --collection plus
filter flags. Parameters print as canonical JSON with sorted keys, so the
same query always prints the same bytes.

Example:
  quarry encode --sql "SELECT name, score FROM Player WHERE score > 1000"
  quarry encode --collection GameScore --where '{"playerName":"Dan"}' --order -score --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "read-only SQL statement to translate")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection to query")
	cmd.Flags().StringVar(&opts.Where, "where", "", "filter document as JSON")
	cmd.Flags().StringVar(&opts.Order, "order", "", "comma separated sort keys, prefix - for descending")
	cmd.Flags().StringVar(&opts.Keys, "keys", "", "comma separated fields to return")
	cmd.Flags().StringVar(&opts.Include, "include", "", "comma separated pointer fields to expand")
	cmd.Flags().IntVar(&opts.Skip, "skip", -1, "number of results to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum number of results")
	cmd.Flags().BoolVar(&opts.IncludeClassName, "include-class-name", false, "carry the collection name inside the parameters")

	return cmd
}

func runEncode(opts *EncodeOptions, cmd *cobra.Command) error {
	params, err := encodeParameters(opts)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), params)
}

func encodeParameters(opts *EncodeOptions) (quarry.Params, error) {
	switch {
	case opts.SQL != "" && opts.Collection != "":
		return nil, errors.New("give --sql or --collection, not both")
	case opts.SQL != "":
		result, err := sqlq.NewStatement(opts.SQL).Build()
		if err != nil {
			return nil, err
		}
		return result.Query.BuildParameters(opts.IncludeClassName)
	case opts.Collection != "":
		return collectionParameters(opts)
	default:
		return nil, errors.New("either --sql or --collection is required")
	}
}

/*
collectionParameters assembles a query from the filter flags. Everything
except the filter goes through the query builder, which validates and
canonicalizes the clauses. The filter itself is caller-written JSON and
is carried over verbatim under the documented wire name.
*/
func collectionParameters(opts *EncodeOptions) (quarry.Params, error) {
	query := quarry.NewQuery(opts.Collection)

	if opts.Order != "" {
		query = applyOrder(query, opts.Order)
	}
	if opts.Keys != "" {
		query = query.Select(splitList(opts.Keys)...)
	}
	if opts.Include != "" {
		for _, path := range splitList(opts.Include) {
			query = query.Include(path)
		}
	}
	if opts.Skip >= 0 {
		query = query.Skip(opts.Skip)
	}
	if opts.Limit >= 0 {
		query = query.Limit(opts.Limit)
	}

	params, err := query.BuildParameters(opts.IncludeClassName)
	if err != nil {
		return nil, err
	}

	if opts.Where != "" {
		where := map[string]any{}
		if err := json.Unmarshal([]byte(opts.Where), &where); err != nil {
			return nil, fmt.Errorf("malformed --where JSON: %w", err)
		}
		params["where"] = where
	}

	return params, nil
}

func applyOrder(query *quarry.Query, order string) *quarry.Query {
	for idx, part := range splitList(order) {
		key, descending := strings.CutPrefix(part, "-")
		switch {
		case idx == 0 && descending:
			query = query.OrderByDescending(key)
		case idx == 0:
			query = query.OrderBy(key)
		case descending:
			query = query.ThenByDescending(key)
		default:
			query = query.ThenBy(key)
		}
	}
	return query
}
