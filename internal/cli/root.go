// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-field-sync/internal/app"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	Build  models.AppBuildInfo

	flags *config.Flags
}

var errNoProject = errors.New("no project given: pass it as an argument, with --project or APP_ACTIVE_PROJECT")

// NewRootCommand creates the root command of the fieldsync agent.
func NewRootCommand(build models.AppBuildInfo) *cobra.Command {
	opts := &RootOptions{Build: build}

	cmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first field record sync agent",
		Long: `fieldsync keeps field submissions on the device, queues changes while
offline, reconciles them with the remote record store once connectivity
returns, and moves records between devices through signed QR codes or
files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	opts.flags = config.BindFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		newServeCommand(opts),
		newSyncCommand(opts),
		newProjectCommand(opts),
		newSubmissionCommand(opts),
		newQueueCommand(opts),
		newTransferCommand(opts),
		newVersionCommand(opts),
	)

	return cmd
}

// withApp loads the configuration, opens the agent runtime, runs fn and
// closes the runtime again.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.GetStructuredConfig(o.flags.Config())
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	if cfg.App.Version == "" {
		cfg.App.Version = o.Build.BuildVersion()
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	log, closeLog := logger.NewFileLogger("fieldsync", cfg.App.LogFile, level)
	defer closeLog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.WithContext(ctx)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "start agent", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Err(closeErr).Str("func", "RootOptions.withApp").Msg("close store")
		}
	}()

	return fn(ctx, a)
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.Format, w: cmd.OutOrStdout()}
}

// project returns the first argument, or the configured active project.
func project(a *app.App, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.Config.App.ActiveProject != "" {
		return a.Config.App.ActiveProject, nil
	}
	return "", WrapExitError(ExitCommandError, "resolve project", errNoProject)
}
