// Package cli provides the command-line interface for jasper.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jasperlabs/jasper-go/internal/client"
	"github.com/jasperlabs/jasper-go/internal/config"
	"github.com/jasperlabs/jasper-go/internal/db"
	"github.com/jasperlabs/jasper-go/internal/engine"
	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config and db client
	cfg      config.Config
	logger   *slog.Logger
	logClose func() error
	dbClient *db.Client

	// Lazy-initialized components
	model     *llm.Model
	collector = metrics.NewCollector()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jasper",
	Short: "Conversational widget assistant for teachers and coaches",
	Long: `Jasper turns chat messages into structured widgets: meal plans,
lesson plans, workouts and attendance summaries.

Requests that need more information (dietary restrictions before a meal
plan) are gathered over multiple turns; generated plans are validated and
auto-corrected before they are accepted.

By default commands run against a local SurrealDB instance. Pass --server
to talk to a running jasper-server instead.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		// Remote mode needs no local database
		if serverURL != "" {
			return nil
		}

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logClose != nil {
			_ = logClose()
		}
	},
}

// getEngine builds the local engine with lazy model initialization.
func getEngine(ctx context.Context) (*engine.Engine, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	return engine.New(dbClient, model, collector, dbClient, logger, engine.Options{
		RetryCeiling:  cfg.RetryCeiling,
		ContextWindow: cfg.ContextWindow,
	}), nil
}

// getClient returns a client for the configured remote server.
func getClient() *client.Client {
	return client.New(serverURL)
}

// remoteMode reports whether commands should talk to a jasper-server.
func remoteMode() bool {
	return serverURL != ""
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "jasper-server URL (runs locally when unset)")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(intentsCmd)
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(wipeCmd)
}
