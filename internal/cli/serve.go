package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local API and automatic sync",
		Long: `Serve the local agent API and run automatic sync in the background:
periodically while online, and once connectivity has held for the debounce
window after being regained. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				return a.Serve(ctx)
			})
		},
	}
}

func newVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := opts.Build
			return opts.printer(cmd).print(b, func(w io.Writer) {
				fmt.Fprintf(w, "Build version:\t%s\n", b.BuildVersion())
				fmt.Fprintf(w, "Build date:\t%s\n", b.BuildDate())
				fmt.Fprintf(w, "Build commit:\t%s\n", b.BuildCommit())
			})
		},
	}
}
