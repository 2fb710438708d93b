package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/models"
)

type syncOptions struct {
	*RootOptions

	all bool
}

func newSyncCommand(root *RootOptions) *cobra.Command {
	opts := &syncOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "sync [project-id]",
		Short: "Reconcile projects with the remote store",
		Long: `Run one sync of a project: replay the offline queue, push finalized
submissions, pull remote changes and merge them. With --all every
registered project is synced in parallel.

Exits with code 1 when any step of any project failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var reports []models.SyncReport
				if opts.all {
					reports = a.Services.SyncService.SyncAll(ctx)
				} else {
					projectID, err := project(a, args)
					if err != nil {
						return err
					}
					reports = []models.SyncReport{a.Services.SyncService.SyncNow(ctx, projectID)}
				}

				if err := opts.printer(cmd).print(reports, func(w io.Writer) { writeReports(w, reports) }); err != nil {
					return err
				}

				for i := range reports {
					if err := reports[i].FirstErr(); err != nil {
						return WrapExitError(ExitFailure, "sync "+reports[i].ProjectID, err)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "sync every registered project")

	return cmd
}

func writeReports(w io.Writer, reports []models.SyncReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "no registered projects")
		return
	}

	for _, r := range reports {
		fmt.Fprintf(w, "project %s\t%s\n", r.ProjectID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(w, "  error:\t%s\n", r.Error)
		}
		if r.Hint != "" {
			fmt.Fprintf(w, "  hint:\t%s\n", r.Hint)
		}
		fmt.Fprintln(w, "  STEP\tATTEMPTED\tOK\tFAILED\tSKIPPED\tERROR")
		for _, s := range r.Steps {
			fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%d\t%s\n", s.Step, s.Attempted, s.Succeeded, s.Failed, s.Skipped, s.Error)
		}
	}
}
