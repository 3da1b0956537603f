package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/auth"
	"github.com/phrazzld/autobuild/internal/config"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/platform/migrations"
	"github.com/phrazzld/autobuild/internal/task"
	"github.com/spf13/cobra"
)

// commandTimeout bounds the one-shot commands.
const commandTimeout = 30 * time.Second

// newRootCmd builds the command tree. Every command reads its
// configuration through config.Load, so AUTOBUILD_ environment variables
// apply everywhere.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "autobuild",
		Short:        "autobuild task engine: schedules update requests and applies their artifacts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./config.yaml)")

	load := func() (*config.Config, error) { return loadAppConfig(cfgFile) }

	root.AddCommand(
		newServeCmd(load),
		newAddCmd(load),
		newListCmd(load),
		newRequeueCmd(load),
		newMigrateCmd(load),
		newTokenCmd(load),
	)
	return root
}

type configLoader func() (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, artifact bridge and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := setupAppLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.cleanup()

			return app.Run(ctx)
		},
	}
}

func newAddCmd(load configLoader) *cobra.Command {
	var taskType, priority string

	cmd := &cobra.Command{
		Use:   "add <description...>",
		Short: "Add a task",
		Long: `Add a pending task to the shared collection.

Without --type or --priority the description is treated as a free-text
command and both are derived from its wording.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")

			return withOfflineService(cmd, load, func(ctx context.Context, svc *task.Service) error {
				var (
					t   domain.Task
					err error
				)
				if taskType == "" && priority == "" {
					t, err = svc.AddTaskFromText(ctx, description)
				} else {
					var p *domain.Priority
					if priority != "" {
						parsed, perr := domain.ParsePriority(priority)
						if perr != nil {
							return perr
						}
						p = &parsed
					}
					t, err = svc.AddTask(ctx, description, domain.TaskType(taskType), p)
				}
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					t.ID, t.Priority, t.Type, t.Description)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&taskType, "type", "", "task type: feature | bugfix | enhancement | refactor")
	cmd.Flags().StringVar(&priority, "priority", "", "priority: low | medium | high")
	return cmd
}

func newListCmd(load configLoader) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses := make([]domain.TaskStatus, 0, len(statusFilter))
			for _, s := range statusFilter {
				status, err := domain.ParseTaskStatus(s)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			return withOfflineService(cmd, load, func(_ context.Context, svc *task.Service) error {
				return printTasks(cmd.OutOrStdout(), svc.GetTasks(statuses...))
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "only show tasks with these statuses (repeatable or comma-separated)")
	return cmd
}

func newRequeueCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <task-id>",
		Short: "Create a new pending task from a failed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: invalid task id %q", domain.ErrValidation, args[0])
			}

			return withOfflineService(cmd, load, func(ctx context.Context, svc *task.Service) error {
				t, err := svc.Requeue(ctx, id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\trequeued from %s\n", t.ID, id)
				return err
			})
		},
	}
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|status|version>",
		Short:     "Manage the SQL schema of the postgres and sqlite backends",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{migrations.CommandUp, migrations.CommandDown, migrations.CommandStatus, migrations.CommandVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := setupCLILogger(cfg, cmd.ErrOrStderr())

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			db, dialect, err := openDatabase(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return migrations.Run(ctx, db, dialect, args[0], logger)
		},
	}
}

func newTokenCmd(load configLoader) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with server.auth_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Server.AuthSecret == "" {
				return errors.New("server.auth_secret is not set; API authentication is disabled")
			}

			tokens, err := auth.NewTokenService(cfg.Server.AuthSecret,
				time.Duration(cfg.Server.TokenLifetimeMinutes)*time.Minute)
			if err != nil {
				return err
			}

			token, err := tokens.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	return cmd
}

// withOfflineService runs fn against a Service over the configured storage.
// The scheduler is never started; a running server picks the change up
// through its storage watcher.
func withOfflineService(cmd *cobra.Command, load configLoader, fn func(context.Context, *task.Service) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	logger := setupCLILogger(cfg, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	s, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("error closing storage", "error", err)
		}
	}()

	return fn(ctx, newOfflineService(ctx, s, logger))
}

// errOfflineExecutor backs the never-started scheduler of offline commands.
var errOfflineExecutor = task.ExecutorFunc(func(context.Context, domain.Task) (task.Result, error) {
	return task.Result{}, errors.New("tasks are only executed by the serve command")
})

func newOfflineService(ctx context.Context, s *storage, logger *slog.Logger) *task.Service {
	bus := events.NewBus(logger)
	store := task.NewTaskStore(ctx, s.slot, bus, logger)
	scheduler := task.NewScheduler(store, errOfflineExecutor, events.NewLogNotifier(logger), logger, task.DefaultSchedulerConfig())
	return task.NewService(store, scheduler, bus, logger)
}

func printTasks(w io.Writer, tasks []domain.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTYPE\tCREATED\tDESCRIPTION")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Priority, t.Type,
			t.CreatedAt.Format(time.RFC3339), t.Description)
	}
	return tw.Flush()
}
