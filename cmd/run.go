package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/babelcloud/navwalk/internal/walk"
	"github.com/babelcloud/navwalk/pkg/format"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// openFile shows a file in the desktop viewer
var openFile = browser.OpenFile

// RunOptions holds command options
type RunOptions struct {
	walkOptions
	SessionID    string
	OutputFormat string
	Open         bool
	ExitZero     bool
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the walkthrough once",
		Long: `Run the walkthrough once against the browser API and print every request
and response. The session is stopped on every exit path except when the
server cannot be reached at all.`,
		Example: `  navwalk run
  navwalk run --endpoint http://localhost:3000 --url https://example.com
  navwalk run --wait poll --poll-timeout 10s --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd, opts)
		},
	}

	addWalkFlags(cmd, &opts.walkOptions)
	flags := cmd.Flags()
	flags.StringVar(&opts.SessionID, "session-id", "", "Session id (default <prefix>-<unix time>)")
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (text, json or yaml)")
	flags.BoolVar(&opts.Open, "open", false, "Open the screenshot when the walkthrough passes")
	flags.BoolVar(&opts.ExitZero, "exit-zero", false, "Exit with status zero even when the walkthrough fails")

	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runWalk(cmd *cobra.Command, opts *RunOptions) error {
	switch opts.OutputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q, must be text, json or yaml", opts.OutputFormat)
	}

	cfg, wait, err := opts.resolve(cmd, opts.SessionID, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var progress io.Writer
	if opts.OutputFormat == "text" {
		progress = out
	}
	runner, err := newRunner(cfg, wait, walk.NewPrinter(progress))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := runner.Run(ctx)

	if opts.OutputFormat == "text" {
		fmt.Fprintf(out, "Outcome: %s (%s)\n", format.FormatOutcome(string(report.Outcome)), report.Elapsed)
	} else if err := report.Encode(out, opts.OutputFormat); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if runErr == nil && opts.Open && report.Screenshot != nil {
		if err := openFile(report.Screenshot.Path); err != nil {
			logger.New().Warn("Failed to open %s: %v", report.Screenshot.Path, err)
		}
	}

	if runErr != nil && !opts.ExitZero {
		return fmt.Errorf("walkthrough %s: %w", report.Outcome, runErr)
	}
	return nil
}
