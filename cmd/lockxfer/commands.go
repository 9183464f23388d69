package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/lock"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/step"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Exit codes of the lockxfer command.
const (
	exitFailure = 1
	// exitBusiness marks failures a retry cannot fix, such as a count mismatch.
	exitBusiness = 2
)

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if exception.IsBusinessError(err) {
		return exitBusiness
	}
	return exitFailure
}

// rootOptions holds the global flags.
type rootOptions struct {
	envFile  string
	logLevel string
	embedded config.EmbeddedConfig
}

// loadConfig loads the configuration and applies the global flags to it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.envFile, o.embedded)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Lockxfer.System.Logging.Level = o.logLevel
	}
	logger.SetLogLevel(cfg.Lockxfer.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Lockxfer.System.Logging.Level)
	return cfg, nil
}

// NewRootCommand creates the lockxfer command tree around the given configuration.
func NewRootCommand(embedded config.EmbeddedConfig) *cobra.Command {
	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = ".env"
	}
	opts := &rootOptions{embedded: embedded}

	cmd := &cobra.Command{
		Use:   "lockxfer",
		Short: "Claim remote header rows and transfer their details into staging",
		Long: `lockxfer claims a batch of header rows in a remote source system for one
work unit and copies the detail rows of every claimed message id block-wise into
a local staging database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", envFile, ".env file loaded before the configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides lockxfer.system.logging.level")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newReleaseCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

// withApplication starts the application graph, runs fn and stops the graph again.
// Targets for fx.Populate are passed through extra.
func withApplication(ctx context.Context, cfg *config.Config, fn func(ctx context.Context) error, extra ...fx.Option) error {
	app := fx.New(append(GetApplicationOptions(cfg), extra...)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warnf("Application did not stop cleanly: %v", err)
	}
	logger.Infof("Application is shutting down.")
	return runErr
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var wfiid int64
	var name string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured workflow for one work unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if name == "" {
				name = cfg.Lockxfer.Workflow.Name
			}
			wu := model.WorkUnit{ID: wfiid, Name: name}

			var runner *step.Runner
			return withApplication(cmd.Context(), cfg, func(ctx context.Context) error {
				p, err := runner.Run(ctx, wu)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: claimed %d message id(s)\n", wu, p.Batch.Len())
				for _, r := range p.Results {
					fmt.Fprintf(out, "message_id %s: %d row(s) in %d block(s)\n", r.MessageID, r.Rows, r.Blocks)
				}
				return nil
			}, fx.Populate(&runner))
		},
	}
	cmd.Flags().Int64Var(&wfiid, "wfiid", 0, "work unit id stamped on claimed header rows (required)")
	cmd.Flags().StringVar(&name, "name", "", "work unit name used in logs (defaults to the workflow name)")
	_ = cmd.MarkFlagRequired("wfiid")
	return cmd
}

func newReleaseCommand(opts *rootOptions) *cobra.Command {
	var wfiid int64

	cmd := &cobra.Command{
		Use:   "release [message_id...]",
		Short: "Return headers locked by a work unit to status N",
		Long: `release requeues the header rows a work unit left in status x or W. With no
message ids every header of the work unit is released.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			wu := model.WorkUnit{ID: wfiid, Name: cfg.Lockxfer.Workflow.Name}

			var coordinator *lock.Coordinator
			return withApplication(cmd.Context(), cfg, func(ctx context.Context) error {
				released, err := coordinator.Release(ctx, wu, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: released %d header row(s)\n", wu, released)
				return nil
			}, fx.Populate(&coordinator))
		},
	}
	cmd.Flags().Int64Var(&wfiid, "wfiid", 0, "work unit id whose headers are released (required)")
	_ = cmd.MarkFlagRequired("wfiid")
	return cmd
}

// errNoJournal is returned when reconciliation events are only logged.
var errNoJournal = errors.New("reconciliation events are not journaled; set infrastructure.reconciliation to 'sql'")

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Inspect and resolve transfers whose two commits diverged",
	}

	withJournal := func(cmd *cobra.Command, fn func(ctx context.Context, j reconcile.Journal) error) error {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		var hook reconcile.Hook
		return withApplication(cmd.Context(), cfg, func(ctx context.Context) error {
			j, ok := hook.(reconcile.Journal)
			if !ok {
				return errNoJournal
			}
			return fn(ctx, j)
		}, fx.Populate(&hook))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List unresolved reconciliation events, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(ctx context.Context, j reconcile.Journal) error {
				events, err := j.Pending(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, ev := range events {
					fmt.Fprintf(out, "%s\t%s\tmessage_id=%s\t%s committed, %s failed\t%s\t%s\n",
						ev.ID, ev.OccurredAt.UTC().Format("2006-01-02T15:04:05Z"), ev.MessageID, ev.Committed, ev.Failed, ev.WorkUnit, ev.Cause)
				}
				fmt.Fprintf(out, "%d pending event(s)\n", len(events))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <event_id>...",
		Short: "Mark reconciliation events as resolved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(ctx context.Context, j reconcile.Journal) error {
				for _, id := range args {
					if err := j.Resolve(ctx, id); err != nil {
						return fmt.Errorf("event %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", id)
				}
				return nil
			})
		},
	})
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the staging schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// Run once, explicitly, instead of from the start hook.
			cfg.Lockxfer.Infrastructure.MigrateStaging = false

			var m *migration.StagingMigration
			return withApplication(cmd.Context(), cfg, func(ctx context.Context) error {
				if err := m.Execute(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "staging schema is up to date")
				return nil
			}, fx.Populate(&m))
		},
	}
}
