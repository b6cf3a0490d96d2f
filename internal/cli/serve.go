package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/mongoexec"
	"github.com/quarryhq/quarry/rest"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	URI      string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query wire protocol over HTTP",
		Long: `Serve the query wire protocol over HTTP, backed by MongoDB.

The server answers GET /classes/:collection with the results and count
envelopes, and shuts down cleanly on SIGINT or SIGTERM.

Example:
  quarry serve --uri mongodb://localhost:27017 --database game --addr :8090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8090", "address to listen on")
	cmd.Flags().StringVar(&opts.URI, "uri", "mongodb://localhost:27017", "MongoDB connection string")
	cmd.Flags().StringVar(&opts.Database, "database", "", "MongoDB database name (required)")
	_ = cmd.MarkFlagRequired("database")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger, err := serveLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return fmt.Errorf("connect %s: %w", opts.URI, err)
	}
	defer func() {
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDisconnect()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping %s: %w", opts.URI, err)
	}

	exec := mongoexec.New(mongoClient.Database(opts.Database), mongoexec.WithLogger(logger))

	app := fiber.New()
	rest.NewHandler(exec, rest.WithHandlerLogger(logger)).Register(app)

	logger.Info("quarry serving",
		zap.String("addr", opts.Addr),
		zap.String("database", opts.Database))

	if err := app.Listen(opts.Addr, fiber.ListenConfig{
		DisableStartupMessage: true,
		GracefulContext:       ctx,
	}); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func serveLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
