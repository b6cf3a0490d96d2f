package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry"
	"github.com/quarryhq/quarry/mongoexec"
	"github.com/quarryhq/quarry/rest"
)

// QueryOptions holds flags shared by the find and count commands.
type QueryOptions struct {
	*RootOptions
	SQL          string
	Server       string
	AppID        string
	RESTKey      string
	URI          string
	Database     string
	SessionToken string
	Timeout      time.Duration
}

func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "read-only SQL statement to run (required)")
	cmd.Flags().StringVar(&opts.Server, "server", "", "base URL of a quarry server")
	cmd.Flags().StringVar(&opts.AppID, "app-id", "", "application id header sent to the server")
	cmd.Flags().StringVar(&opts.RESTKey, "rest-key", "", "REST key header sent to the server")
	cmd.Flags().StringVar(&opts.URI, "uri", "", "MongoDB connection string")
	cmd.Flags().StringVar(&opts.Database, "database", "", "MongoDB database name")
	cmd.Flags().StringVar(&opts.SessionToken, "session-token", "", "session token forwarded with the query")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall time budget for the query")
	_ = cmd.MarkFlagRequired("sql")
}

/*
buildExecutor picks the query backend from the target flags: a quarry
server when --server is given, a direct MongoDB connection when --uri
and --database are. The returned cleanup releases the connection and is
safe to call in either case.
*/
func buildExecutor(ctx context.Context, opts *QueryOptions) (quarry.Executor, func(), error) {
	logger := commandLogger(opts.Verbose)

	if opts.Server != "" {
		clientOpts := []rest.ClientOption{rest.WithClientLogger(logger)}
		if opts.AppID != "" || opts.RESTKey != "" {
			clientOpts = append(clientOpts, rest.WithCredentials(opts.AppID, opts.RESTKey))
		}
		return rest.NewClient(opts.Server, clientOpts...), func() {}, nil
	}

	if opts.URI == "" || opts.Database == "" {
		return nil, nil, errors.New("either --server or --uri with --database is required")
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", opts.URI, err)
	}
	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}

	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ping %s: %w", opts.URI, err)
	}

	return mongoexec.New(mongoClient.Database(opts.Database), mongoexec.WithLogger(logger)), cleanup, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// commandLogger stays silent unless --verbose is given.
func commandLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
