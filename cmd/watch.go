package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelcloud/navwalk/internal/schedule"
	"github.com/babelcloud/navwalk/internal/walk"
	"github.com/babelcloud/navwalk/pkg/format"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// WatchOptions holds command options
type WatchOptions struct {
	walkOptions
	Schedule string
	Timeout  time.Duration
	MaxRuns  int
}

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the walkthrough on a schedule",
		Long: `Run the walkthrough on a cron schedule with a fresh session id per run.
A tick is skipped while the previous walkthrough is still running. SIGINT or
SIGTERM stops scheduling after the running walkthrough finishes.`,
		Example: `  navwalk watch --schedule "@every 5m"
  navwalk watch --schedule "*/10 * * * *" --wait poll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	addWalkFlags(cmd, &opts.walkOptions)
	flags := cmd.Flags()
	flags.StringVar(&opts.Schedule, "schedule", "@every 5m", "Cron expression or descriptor")
	flags.DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "Upper bound of a single walkthrough")
	flags.IntVar(&opts.MaxRuns, "max-runs", 0, "Stop after this many walkthroughs (0 runs until interrupted)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	if err := schedule.Validate(opts.Schedule); err != nil {
		return err
	}
	// Resolve once up front so bad flags fail before the first tick.
	if _, _, err := opts.resolve(cmd, "", time.Now()); err != nil {
		return err
	}

	log := logger.New()
	manager := schedule.NewManager(log, opts.Timeout)
	finished := make(chan struct{}, 1)
	var completed atomic.Int64

	job := func(ctx context.Context) error {
		defer func() {
			completed.Add(1)
			select {
			case finished <- struct{}{}:
			default:
			}
		}()

		cfg, wait, err := opts.resolve(cmd, "", time.Now())
		if err != nil {
			return err
		}
		runner, err := newRunner(cfg, wait, walk.NewPrinter(nil))
		if err != nil {
			return err
		}

		began := time.Now()
		report, err := runner.Run(ctx)
		log.Info("Walkthrough %s %s in %s", cfg.SessionID,
			format.FormatOutcome(string(report.Outcome)), format.FormatDuration(time.Since(began)))
		return err
	}

	if err := manager.Add(opts.Schedule, "walkthrough", job); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.Start()
	if next, ok := manager.Next(); ok {
		log.Info("Next walkthrough at %s", next.Format(time.RFC3339))
	}

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-finished:
			if opts.MaxRuns > 0 && completed.Load() >= int64(opts.MaxRuns) {
				running = false
			}
		}
	}
	manager.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Walkthroughs: %d, failed: %d\n", manager.Runs(), manager.Failures())
	return nil
}
