package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/models"
)

func newQueueCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay the offline mutation queue",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [project-id]",
			Short: "List queued changes in replay order",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
					projectID, err := project(a, args)
					if err != nil {
						return err
					}
					intents, err := a.Services.QueueService.Pending(ctx, projectID)
					if err != nil {
						return err
					}
					if intents == nil {
						intents = []models.MutationIntent{}
					}
					return root.printer(cmd).print(intents, func(w io.Writer) {
						fmt.Fprintln(w, "SEQ\tKIND\tSUBMISSION\tENQUEUED\tATTEMPTS\tLAST ERROR")
						for _, in := range intents {
							fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", in.Seq, in.Kind, in.SubmissionID,
								in.EnqueuedAt.Format("2006-01-02 15:04:05"), in.Attempts, in.LastError)
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "drain [project-id]",
			Short: "Replay queued changes against the remote store",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
					projectID, err := project(a, args)
					if err != nil {
						return err
					}
					outcome := a.Services.QueueService.Drain(ctx, projectID)
					err = root.printer(cmd).print(outcome, func(w io.Writer) {
						fmt.Fprintf(w, "Applied:\t%d\n", outcome.Applied)
						fmt.Fprintf(w, "Remaining:\t%d\n", outcome.Remaining)
						if outcome.Held {
							fmt.Fprintln(w, "Held:\twaiting for conflict resolution")
						}
						if outcome.Error != "" {
							fmt.Fprintf(w, "Error:\t%s\n", outcome.Error)
						}
					})
					if err != nil {
						return err
					}
					if outcome.Err != nil {
						return WrapExitError(ExitFailure, "drain "+projectID, outcome.Err)
					}
					return nil
				})
			},
		},
	)

	return cmd
}
