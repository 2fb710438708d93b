// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/models"
)

var errNoData = errors.New("no data given: use --field name=value or --data")

// dataOptions collects submission data from --data and --field.
type dataOptions struct {
	file   string
	fields []string
}

func (d *dataOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.file, "data", "", `JSON object file with the collected data ("-" reads stdin)`)
	cmd.Flags().StringArrayVarP(&d.fields, "field", "f", nil,
		`field as name=value; the value is read as JSON when it parses, text otherwise (repeatable)`)
}

// fieldMap merges the --data object with --field pairs; later pairs replace
// earlier values of the same name.
func (d *dataOptions) fieldMap(stdin io.Reader) (models.FieldMap, error) {
	var data models.FieldMap

	if d.file != "" {
		var (
			raw []byte
			err error
		)
		if d.file == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(d.file)
		}
		if err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		if err = data.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
	}

	for _, pair := range d.fields {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: field %q must be name=value", models.ErrValidation, pair)
		}
		data = data.Set(name, parseFieldValue(value))
	}

	if data == nil {
		return nil, errNoData
	}
	return data, nil
}

// parseFieldValue reads 12, true, null and "quoted" as JSON scalars and
// anything else as plain text.
func parseFieldValue(s string) models.Value {
	var v models.Value
	if err := v.UnmarshalJSON([]byte(s)); err == nil && v.Kind() != models.KindBlob {
		return v
	}
	return models.StringValue(s)
}

func newSubmissionCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submission",
		Aliases: []string{"sub"},
		Short:   "Collect and manage field submissions",
	}

	cmd.AddCommand(
		newSubmissionCreateCommand(root),
		newSubmissionUpdateCommand(root),
		newSubmissionSealCommand(root),
		newSubmissionDeleteCommand(root),
		newSubmissionListCommand(root),
		newSubmissionShowCommand(root),
		newSubmissionReviewCommand(root),
		newSubmissionResolveCommand(root),
	)

	return cmd
}

func newSubmissionCreateCommand(root *RootOptions) *cobra.Command {
	var data dataOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft submission in the active project",
		Example: `  fieldsync submission create -p 0191c7a2-... -f crop=maize -f hectares=2.5
  fieldsync submission create -p 0191c7a2-... --data plot.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := data.fieldMap(cmd.InOrStdin())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid data", err)
			}

			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projectID, err := project(a, nil)
				if err != nil {
					return err
				}
				sub, err := a.Services.SubmissionService.Create(ctx, projectID, fields, nil)
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
	data.bind(cmd)

	return cmd
}

func newSubmissionUpdateCommand(root *RootOptions) *cobra.Command {
	var data dataOptions

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the collected data of a submission",
		Long: `Replace the collected data of a submission. Finalized, synced and
errored submissions are re-opened as modified and must be sealed again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := data.fieldMap(cmd.InOrStdin())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid data", err)
			}

			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Services.SubmissionService.Update(ctx, args[0], fields)
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
	data.bind(cmd)

	return cmd
}

func newSubmissionSealCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seal <id>",
		Short: "Finalize a submission for transmission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Services.SubmissionService.Seal(ctx, args[0])
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
}

func newSubmissionDeleteCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Services.SubmissionService.Delete(ctx, args[0]); err != nil {
					return err
				}
				result := map[string]string{"deleted": args[0]}
				return root.printer(cmd).print(result, func(w io.Writer) {
					fmt.Fprintf(w, "deleted %s\n", args[0])
				})
			})
		},
	}
}

func newSubmissionListCommand(root *RootOptions) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live submissions of the active project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := make([]models.Status, 0, len(statuses))
			for _, s := range statuses {
				st, err := models.ParseStatus(strings.TrimSpace(s))
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid flags", err)
				}
				filter = append(filter, st)
			}

			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projectID, err := project(a, nil)
				if err != nil {
					return err
				}
				subs, err := a.Services.SubmissionService.List(ctx, projectID, filter...)
				if err != nil {
					return err
				}
				if subs == nil {
					subs = []models.Submission{}
				}
				return root.printer(cmd).print(subs, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tSTATUS\tREVIEW\tUPDATED\tFIELDS")
					for _, s := range subs {
						review := string(s.Review)
						if review == "" {
							review = "-"
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
							s.ID, s.Status, review, s.UpdatedAt.Format("2006-01-02 15:04:05"), len(s.Data))
					}
				})
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only list these statuses (comma separated)")

	return cmd
}

func newSubmissionShowCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Services.SubmissionService.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
}

func newSubmissionReviewCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "review <id> <pending|approved|rejected|flagged>",
		Short: "Record a supervisor verdict",
		Long: `Record a supervisor verdict. Pending and rejected submissions are held
back from push until the verdict changes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			verdict, err := models.ParseReviewStatus(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid verdict", err)
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Services.SubmissionService.Review(ctx, args[0], verdict)
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
}

func newSubmissionResolveCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> <keepLocal|keepRemote>",
		Short: "Resolve a sync conflict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := service.ParseResolution(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid resolution", err)
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Services.SubmissionService.ResolveConflict(ctx, args[0], keep)
				if err != nil {
					return err
				}
				return root.printSubmission(cmd, sub)
			})
		},
	}
}

func (o *RootOptions) printSubmission(cmd *cobra.Command, sub models.Submission) error {
	return o.printer(cmd).print(sub, func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", sub.ID)
		fmt.Fprintf(w, "Project:\t%s\n", sub.ProjectID)
		fmt.Fprintf(w, "Status:\t%s\n", sub.Status)
		if sub.Review != models.ReviewNone {
			fmt.Fprintf(w, "Review:\t%s\n", sub.Review)
		}
		if sub.ErrorReason != "" {
			fmt.Fprintf(w, "Error:\t%s\n", sub.ErrorReason)
		}
		fmt.Fprintf(w, "Updated:\t%s\n", sub.UpdatedAt.Format("2006-01-02 15:04:05"))
		for _, f := range sub.Data {
			fmt.Fprintf(w, "  %s\t%s\n", f.Name, f.Value)
		}
	})
}
