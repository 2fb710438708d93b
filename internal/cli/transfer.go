package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/transfer"
	"github.com/MKhiriev/go-field-sync/models"
)

func newTransferCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move submissions between devices by QR code or file",
	}

	cmd.AddCommand(
		newTransferExportCommand(root),
		newTransferImportCommand(root),
		newTransferScanCommand(root),
		newTransferConfirmCommand(root),
	)

	return cmd
}

func newTransferExportCommand(root *RootOptions) *cobra.Command {
	var (
		medium   string
		ids      []string
		terminal bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a signed payload of sealed submissions",
		Long: `Write a signed payload of the active project's sealed submissions to the
transfer directory, as a payload file or as a QR code image. Without --ids
every sealed submission is exported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := service.ParseMedium(medium)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}

			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projectID, err := project(a, nil)
				if err != nil {
					return err
				}
				res, err := a.Services.TransferService.Export(ctx, projectID, ids, m)
				if err != nil {
					return err
				}

				var code string
				if terminal && m == service.MediumQR {
					if code, err = transfer.RenderTerminal(res.Payload); err != nil {
						return err
					}
				}

				return root.printer(cmd).print(res, func(w io.Writer) {
					fmt.Fprintf(w, "Exported:\t%d submission(s)\n", res.Count)
					fmt.Fprintf(w, "Medium:\t%s\n", res.Medium)
					fmt.Fprintf(w, "Written to:\t%s\n", res.Path)
					fmt.Fprintf(w, "Size:\t%d bytes\n", res.Size)
					if code != "" {
						fmt.Fprint(w, code)
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&medium, "medium", "m", string(service.MediumFile), "transfer medium (file|qr)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "submission ids to export (comma separated)")
	cmd.Flags().BoolVar(&terminal, "terminal", false, "also draw the QR code in the terminal")

	return cmd
}

func newTransferImportCommand(root *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import <payload-file>",
		Short: "Verify and merge a payload file",
		Long: `Verify the signature of a payload file and merge its records into the
active project. A payload of another project is only merged after
confirmation, asked on the terminal unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				raw, err := transfer.ReadFile(args[0], a.Config.Transfer.MaxFileBytes)
				if err != nil {
					return err
				}
				report, err := a.Services.TransferService.Import(ctx, raw, "", confirmer(cmd, yes))
				if err != nil {
					return err
				}
				return root.printImport(cmd, report)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "import payloads of other projects without asking")

	return cmd
}

func newTransferScanCommand(root *RootOptions) *cobra.Command {
	var (
		yes   bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "scan <frame-dir>",
		Short: "Import the first valid QR code found in captured frames",
		Long: `Read PNG and JPEG frames from a directory, in name order, until one carries
a valid payload, then import it. Frames with unreadable or tampered codes
are reported and skipped. With --watch the directory is polled for new
frames until a payload is imported or the command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				open := transfer.OpenDirectory(args[0], !watch)
				report, err := a.Services.TransferService.Scan(ctx, open, "", confirmer(cmd, yes))
				if err != nil {
					return err
				}
				return root.printImport(cmd, report)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "import payloads of other projects without asking")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling the directory for new frames")

	return cmd
}

func newTransferConfirmCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <submission-id>...",
		Short: "Mark exported submissions as handed off",
		Long: `Mark finalized submissions of the active project as synced once the
receiving device has imported them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projectID, err := project(a, nil)
				if err != nil {
					return err
				}
				n, err := a.Services.TransferService.ConfirmHandoff(ctx, projectID, args)
				if err != nil {
					return err
				}
				result := map[string]int{"confirmed": n}
				return root.printer(cmd).print(result, func(w io.Writer) {
					fmt.Fprintf(w, "confirmed %d submission(s)\n", n)
				})
			})
		},
	}
}

// confirmer asks on the terminal before a payload of another project is
// merged.
func confirmer(cmd *cobra.Command, yes bool) service.ConfirmFunc {
	if yes {
		return func(models.TransferPayload) bool { return true }
	}

	in := bufio.NewReader(cmd.InOrStdin())
	return func(p models.TransferPayload) bool {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Payload of project %q (%s) carries %d record(s). Import into the active project? [y/N] ",
			p.ProjectName, p.ProjectID, p.Count)

		answer, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func (o *RootOptions) printImport(cmd *cobra.Command, r models.ImportReport) error {
	return o.printer(cmd).print(r, func(w io.Writer) {
		fmt.Fprintf(w, "Project:\t%s\n", r.ProjectID)
		if r.SourceProjectID != r.ProjectID {
			fmt.Fprintf(w, "Source project:\t%s\n", r.SourceProjectID)
		}
		fmt.Fprintf(w, "Received:\t%d\n", r.Received)
		fmt.Fprintf(w, "Inserted:\t%d\n", r.Inserted)
		fmt.Fprintf(w, "Updated:\t%d\n", r.Updated)
		fmt.Fprintf(w, "Unchanged:\t%d\n", r.Unchanged)
		fmt.Fprintf(w, "Conflicts:\t%d\n", r.Conflicts)
		fmt.Fprintf(w, "Skipped:\t%d\n", r.Skipped)
	})
}
