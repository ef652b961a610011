package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/hirelane/internal"
	"github.com/DukeRupert/hirelane/internal/app"
	"github.com/DukeRupert/hirelane/internal/client"
	"github.com/DukeRupert/hirelane/internal/domain"
)

const commandTimeout = 5 * time.Minute

func init() {
	resetCmd.Flags().BoolVar(&resetRemote, "remote", false, "Call the running API instead of the database")
	setPlanCmd.Flags().BoolVar(&keepUsage, "keep-usage", false, "Keep the current counter and period")
}

// =============================================================================
// migrate
// =============================================================================

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}
		if direction != "up" && direction != "down" && direction != "status" {
			return fmt.Errorf("unknown migrate direction %q", direction)
		}

		cfg, err := internal.NewConfig()
		if err != nil {
			return fmt.Errorf("config initialization failed: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		db, err := app.OpenDB(ctx, cfg.DatabaseUrl)
		if err != nil {
			return err
		}
		defer db.Close()

		switch direction {
		case "down":
			err = internal.MigrateDown(ctx, db)
		case "status":
			return internal.MigrationStatus(ctx, db)
		default:
			err = internal.MigrateUp(ctx, db)
		}
		if err != nil {
			return fmt.Errorf("migrate %s: %w", direction, err)
		}

		version, err := internal.MigrationVersion(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
		return nil
	},
}

// =============================================================================
// reset-monthly-counts
// =============================================================================

var resetRemote bool

var resetCmd = &cobra.Command{
	Use:   "reset-monthly-counts",
	Short: "Start a new billing cycle for every account due for one",
	Long: `Reset the monthly credit counters of accounts whose period started before
the current month. With --remote the running API does the work and --token
must be the cron secret.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		var (
			res *domain.ResetResult
			err error
		)
		if resetRemote {
			c, cerr := remoteClient()
			if cerr != nil {
				return cerr
			}
			res, err = c.ResetMonthlyCounts(ctx)
		} else {
			err = withApp(ctx, cmd, func(a *app.App) error {
				var runErr error
				res, runErr = a.Reset.Run(ctx)
				return runErr
			})
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reset %d accounts at %s\n", res.ResetCount, res.ResetAt.Format(time.RFC3339))
		return nil
	},
}

// =============================================================================
// set-plan
// =============================================================================

var keepUsage bool

var setPlanCmd = &cobra.Command{
	Use:   "set-plan <account-id> <plan>",
	Short: "Move an account to another plan",
	Long: `Move an account to another plan. Usage and notification state start over
unless --keep-usage is set.`,
	Example: `  hirelanectl set-plan 0b5e6f9c-3c39-4f0e-9d0c-0a4b5f0f7f11 business`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id %q", args[0])
		}
		plan, ok := domain.ParsePlan(strings.ToLower(strings.TrimSpace(args[1])))
		if !ok {
			return fmt.Errorf("unknown plan %q", args[1])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		return withApp(ctx, cmd, func(a *app.App) error {
			snap, err := a.Quota.ChangePlan(ctx, accountID, plan, !keepUsage)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		})
	},
}

// =============================================================================
// quota / analyze (remote)
// =============================================================================

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the credit position of the account behind --token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := remoteSession(cmd)
		if err != nil {
			return err
		}
		snap, err := session.Quota(cmd.Context(), true)
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <candidate-id>...",
	Short: "Send candidates to CV scoring, one credit each",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]uuid.UUID, 0, len(args))
		for _, arg := range args {
			id, err := uuid.Parse(arg)
			if err != nil {
				return fmt.Errorf("invalid candidate id %q", arg)
			}
			ids = append(ids, id)
		}

		session, err := remoteSession(cmd)
		if err != nil {
			return err
		}
		res, err := session.AnalyzePendingCVs(cmd.Context(), ids)
		if err != nil {
			if client.IsLimitReached(err) {
				return fmt.Errorf("no credits left this month: %w", err)
			}
			return err
		}
		return printJSON(cmd, res)
	},
}

func remoteClient() (*client.Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("--api-url or HIRELANE_API_URL is required")
	}
	if apiToken == "" {
		return nil, fmt.Errorf("--token or HIRELANE_TOKEN is required")
	}
	return client.New(apiURL, client.StaticToken(apiToken)), nil
}

// remoteSession keys the quota cache by uuid.Nil; the token decides the account.
func remoteSession(cmd *cobra.Command) (*client.Session, error) {
	c, err := remoteClient()
	if err != nil {
		return nil, err
	}
	return client.NewSession(uuid.Nil, c, nil, newLogger(cmd.ErrOrStderr())), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
