package cmd

import (
	"github.com/spf13/cobra"

	"github.com/babelcloud/navwalk/config"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// NewRootCommand builds the navwalk command tree
func NewRootCommand() *cobra.Command {
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "navwalk",
		Short: "Smoke-test a browser automation HTTP API",
		Long: `navwalk drives a browser automation HTTP API through a fixed walkthrough:
start a session, navigate, read the page, take a screenshot, run a script
and stop the session again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				logger.New().SetDebug(true)
			}
			if err := config.Load(configFile); err != nil {
				return err
			}
			if used := config.ConfigFileUsed(); used != "" {
				logger.New().Debug("Using config file %s", used)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default searches ./config.yaml and the user config dir)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		NewRunCommand(),
		NewWatchCommand(),
		NewServeCommand(),
		NewVersionCommand(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
