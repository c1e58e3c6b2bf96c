package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/config"
	"github.com/tkoenig/watchlab/internal/notify"
	"github.com/tkoenig/watchlab/internal/run"
	"github.com/tkoenig/watchlab/internal/runstore"
	"github.com/tkoenig/watchlab/internal/schedule"
)

var historyLimit int

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run all configured experiment repetitions",
		RunE:  runExperiment,
	}
	rootCmd.AddCommand(runCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule CRON",
		Short: "Run the experiment on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run only the preflight check",
		RunE:  runCheck,
	}
	rootCmd.AddCommand(checkCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// preflight gates every experiment start. On failure it prints the
// instructional message and terminates the process.
func preflight(cfg *config.Config) {
	if err := run.Preflight(cfg.Browser.ProfileDir); err != nil {
		fmt.Fprintln(os.Stderr, run.ProfileMissingMessage(cfg.Browser.ProfileDir))
		os.Exit(1)
	}
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func buildCoordinator(cfg *config.Config) (*run.Coordinator, func()) {
	coord := run.New(cfg, logger)
	closeStore := func() {}
	store, err := runstore.New(cfg.Store.DatabasePath)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
	} else {
		coord.SetStore(store)
		closeStore = func() { store.Close() }
	}
	return coord, closeStore
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	preflight(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, closeStore := buildCoordinator(cfg)
	defer closeStore()

	sum, err := coord.Run(ctx)
	if err != nil {
		return fmt.Errorf("experiment interrupted after %d runs: %w", sum.Total, err)
	}

	if err := newNotifier(cfg).Send(notify.ExperimentSummary(sum.Total, sum.Succeeded, sum.Failed)); err != nil {
		logger.Warn("sending summary notification", zap.Error(err))
	}
	fmt.Printf("%d runs: %d succeeded, %d failed and cleaned\n", sum.Total, sum.Succeeded, sum.Failed)
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	preflight(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, closeStore := buildCoordinator(cfg)
	defer closeStore()
	notifier := newNotifier(cfg)

	sched, err := schedule.New(args[0], func(ctx context.Context) error {
		sum, err := coord.Run(ctx)
		if err != nil {
			return err
		}
		if err := notifier.Send(notify.ExperimentSummary(sum.Total, sum.Succeeded, sum.Failed)); err != nil {
			logger.Warn("sending summary notification", zap.Error(err))
		}
		return nil
	}, logger)
	if err != nil {
		return err
	}

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := run.Preflight(cfg.Browser.ProfileDir); err != nil {
		fmt.Fprintln(os.Stderr, run.ProfileMissingMessage(cfg.Browser.ProfileDir))
		os.Exit(1)
	}
	fmt.Printf("profile directory %s is ready\n", cfg.Browser.ProfileDir)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := runstore.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRecent(historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tSTATUS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.Ordinal, r.Status, r.Error)
	}
	return w.Flush()
}
