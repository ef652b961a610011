// Command hirelanectl is the operator CLI: schema migrations, the monthly
// reset, manual plan changes, and quota checks against a running API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/hirelane/internal"
	"github.com/DukeRupert/hirelane/internal/app"
)

var (
	apiURL   string
	apiToken string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "hirelanectl",
	Short:         "Hirelane operator tools",
	Long:          `Operate the Hirelane credit service: migrations, billing-cycle resets, and plan changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", os.Getenv("HIRELANE_API_URL"), "Base URL of a running API (remote commands)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("HIRELANE_TOKEN"), "Bearer token for remote commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(setPlanCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return internal.NewLogger(w, "development", level)
}

// withApp loads config, connects to the database, and runs fn against a
// fully wired App. Background work is drained before returning.
func withApp(ctx context.Context, cmd *cobra.Command, fn func(*app.App) error) error {
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr())

	db, err := app.OpenDB(ctx, cfg.DatabaseUrl)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, db, logger)
	if err != nil {
		db.Close()
		return err
	}

	runErr := fn(a)
	if err := a.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
