// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/models"
)

func newProjectCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage local projects",
	}

	cmd.AddCommand(
		newProjectAddCommand(root),
		newProjectRegisterCommand(root),
		newProjectListCommand(root),
	)

	return cmd
}

func newProjectAddCommand(root *RootOptions) *cobra.Command {
	var definitionFile string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a local project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var definition json.RawMessage
			if definitionFile != "" {
				raw, err := os.ReadFile(definitionFile)
				if err != nil {
					return WrapExitError(ExitCommandError, "read definition", err)
				}
				definition = raw
			}

			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.ProjectService.Create(ctx, args[0], definition)
				if err != nil {
					return err
				}
				return root.printer(cmd).print(p, func(w io.Writer) { writeProjects(w, p) })
			})
		},
	}

	cmd.Flags().StringVar(&definitionFile, "definition", "", "JSON file with the form definition")

	return cmd
}

func newProjectRegisterCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register [project-id]",
		Short: "Register a project with the remote store",
		Long: `Create the project in the remote record store, or push its current
definition when it is already registered. Submissions of a project are only
pushed once it is registered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projectID, err := project(a, args)
				if err != nil {
					return err
				}
				p, err := a.Services.SyncService.RegisterProject(ctx, projectID)
				if err != nil {
					return err
				}
				return root.printer(cmd).print(p, func(w io.Writer) { writeProjects(w, p) })
			})
		},
	}
}

func newProjectListCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				projects, err := a.Services.ProjectService.List(ctx)
				if err != nil {
					return err
				}
				if projects == nil {
					projects = []models.Project{}
				}
				return root.printer(cmd).print(projects, func(w io.Writer) { writeProjects(w, projects...) })
			})
		},
	}
}

func writeProjects(w io.Writer, projects ...models.Project) {
	fmt.Fprintln(w, "ID\tNAME\tREMOTE\tLAST SYNC")
	for _, p := range projects {
		remote, lastSync := "-", "never"
		if p.Registered() {
			remote = p.RemoteID
		}
		if p.LastSyncedAt != nil {
			lastSync = p.LastSyncedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, remote, lastSync)
	}
}
