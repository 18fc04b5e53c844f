package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelcloud/navwalk/config"
	"github.com/babelcloud/navwalk/internal/browserapi"
	"github.com/babelcloud/navwalk/internal/walk"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// walkOptions holds the flags shared by run and watch. Only flags that were
// set on the command line override configuration.
type walkOptions struct {
	Endpoint         string
	SessionPrefix    string
	Headless         bool
	URLs             []string
	Script           string
	ScreenshotFormat string
	ScreenshotDir    string
	HTMLFormat       string
	HTMLPreview      int
	Strict           bool
	WaitStrategy     string
	StartSettle      time.Duration
	NavigateSettle   time.Duration
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

func addWalkFlags(cmd *cobra.Command, opts *walkOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.Endpoint, "endpoint", "", "Browser API base URL (default from api.endpoint)")
	flags.StringVar(&opts.SessionPrefix, "session-prefix", "", "Prefix of generated session ids")
	flags.BoolVar(&opts.Headless, "headless", true, "Start the browser headless")
	flags.StringSliceVar(&opts.URLs, "url", nil, "URL to visit, repeatable; the last one is also checked with a URL read")
	flags.StringVar(&opts.Script, "script", "", "Script evaluated in the page")
	flags.StringVar(&opts.ScreenshotFormat, "format", "", "Screenshot format (png or jpeg)")
	flags.StringVar(&opts.ScreenshotDir, "screenshot-dir", "", "Directory the screenshot is written to")
	flags.StringVar(&opts.HTMLFormat, "html-format", "", "HTML preview format (html or markdown)")
	flags.IntVar(&opts.HTMLPreview, "html-preview", 0, "Number of characters shown in the HTML preview")
	flags.BoolVar(&opts.Strict, "strict", false, "Fail when a response lacks the field a step reads")
	flags.StringVar(&opts.WaitStrategy, "wait", "", "Settle strategy (fixed or poll)")
	flags.DurationVar(&opts.StartSettle, "start-settle", 0, "Delay after starting the browser")
	flags.DurationVar(&opts.NavigateSettle, "navigate-settle", 0, "Delay after each navigation")
	flags.DurationVar(&opts.PollInterval, "poll-interval", 0, "Interval between readiness probes")
	flags.DurationVar(&opts.PollTimeout, "poll-timeout", 0, "Upper bound of a poll wait")

	cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"png", "jpeg"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.RegisterFlagCompletionFunc("html-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"html", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.RegisterFlagCompletionFunc("wait", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"fixed", "poll"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolve merges configuration and flags into a walkthrough config. sessionID
// is used as is when set, otherwise a fresh id is derived from now.
func (o *walkOptions) resolve(cmd *cobra.Command, sessionID string, now time.Time) (walk.Config, walk.WaitStrategy, error) {
	flags := cmd.Flags()
	w := config.GetWalk()
	wt := config.GetWait()

	cfg := walk.Config{
		Endpoint:         config.GetAPIURL(),
		Headless:         w.Headless,
		URLs:             w.URLs,
		Script:           w.Script,
		ScreenshotFormat: w.ScreenshotFormat,
		ScreenshotDir:    w.ScreenshotDir,
		HTMLFormat:       w.HTMLFormat,
		HTMLPreview:      w.HTMLPreview,
		Strict:           w.Strict,
		StartSettle:      wt.StartSettle,
		NavigateSettle:   wt.NavigateSettle,
		StartHint:        config.GetStartHint(),
	}
	prefix := w.SessionPrefix
	strategy := wt.Strategy
	interval := wt.PollInterval
	timeout := wt.PollTimeout

	if flags.Changed("endpoint") {
		cfg.Endpoint = strings.TrimSuffix(o.Endpoint, "/")
	}
	if flags.Changed("session-prefix") {
		prefix = o.SessionPrefix
	}
	if flags.Changed("headless") {
		cfg.Headless = o.Headless
	}
	if flags.Changed("url") {
		cfg.URLs = o.URLs
	}
	if flags.Changed("script") {
		cfg.Script = o.Script
	}
	if flags.Changed("format") {
		cfg.ScreenshotFormat = o.ScreenshotFormat
	}
	if flags.Changed("screenshot-dir") {
		cfg.ScreenshotDir = o.ScreenshotDir
	}
	if flags.Changed("html-format") {
		cfg.HTMLFormat = o.HTMLFormat
	}
	if flags.Changed("html-preview") {
		cfg.HTMLPreview = o.HTMLPreview
	}
	if flags.Changed("strict") {
		cfg.Strict = o.Strict
	}
	if flags.Changed("start-settle") {
		cfg.StartSettle = o.StartSettle
	}
	if flags.Changed("navigate-settle") {
		cfg.NavigateSettle = o.NavigateSettle
	}
	if flags.Changed("wait") {
		strategy = o.WaitStrategy
	}
	if flags.Changed("poll-interval") {
		interval = o.PollInterval
	}
	if flags.Changed("poll-timeout") {
		timeout = o.PollTimeout
	}

	cfg.SessionID = sessionID
	if cfg.SessionID == "" {
		cfg.SessionID = walk.NewSessionID(prefix, now)
	}

	wait, err := walk.NewWaitStrategy(strategy, interval, timeout)
	if err != nil {
		return walk.Config{}, nil, err
	}
	return cfg, wait, nil
}

// newRunner builds the API client and runner for cfg
func newRunner(cfg walk.Config, wait walk.WaitStrategy, printer *walk.Printer) (*walk.Runner, error) {
	log := logger.New()
	client, err := browserapi.NewClient(cfg.Endpoint,
		browserapi.WithTimeout(config.GetAPITimeout()),
		browserapi.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	return walk.NewRunner(client, cfg,
		walk.WithPrinter(printer),
		walk.WithWaitStrategy(wait),
		walk.WithLogger(log),
	)
}
