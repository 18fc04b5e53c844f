package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/babelcloud/navwalk/config"
	"github.com/babelcloud/navwalk/internal/stubserver"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// ServeOptions holds command options
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory browser API for local runs",
		Long: `Serve the browser automation endpoints from memory. Pages are not really
loaded: titles come from a small catalog and screenshots are solid images.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := opts.Addr
			if !cmd.Flags().Changed("addr") {
				addr = config.GetServerAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return stubserver.New(logger.New()).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from server.addr)")
	return cmd
}
