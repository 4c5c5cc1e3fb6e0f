// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the witness-lens command tree.
//
// Without a subcommand witness-lens starts the full-screen client, or the
// line-mode chat when stdout is not a terminal. The subcommands script the
// same REST and push stack:
//
//	witness-lens                        start the terminal UI
//	witness-lens chat [--new]           line-mode chat
//	witness-lens login <user>           sign in (shared with running clients)
//	witness-lens conversations list     list past conversations
//	witness-lens conversations export   write a transcript as Markdown or JSON
//	witness-lens calendar 2025 3        show planned days of a month
//	witness-lens config show            print the effective configuration
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/witness-lens/internal/config"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:           "witness-lens",
		Short:         "Terminal client for the Witness Lens assistant",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			if !IsStdoutTTY() || !IsTTY() {
				return withApp(cfg, false, func(app *App) error {
					return runLineChat(cmd.Context(), app, chatOptions{}, cmd.OutOrStdout())
				})
			}
			return withApp(cfg, true, func(app *App) error {
				return runTUI(cmd.Context(), app)
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file (default ~/.witness-lens/config.toml)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.APIURL, "api-url", "", "conversation API root, e.g. http://localhost:4000/api")
	pf.StringVar(&flags.WSURL, "ws-url", "", "push channel endpoint, e.g. ws://localhost:4000/ws")
	pf.BoolVar(&flags.Legacy, "legacy", false, "use the request/response mode instead of the push channel")

	root.AddCommand(
		newChatCommand(flags),
		newLoginCommand(flags),
		newLogoutCommand(flags),
		newWhoamiCommand(flags),
		newConversationsCommand(flags),
		newCalendarCommand(flags),
		newConfigCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// withApp wires an App for one command and releases it afterwards.
func withApp(cfg *config.Config, toFile bool, fn func(*App) error) error {
	app, err := NewApp(cfg, toFile)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// runWithApp loads the config and runs fn with CLI logging.
func runWithApp(flags *Flags, fn func(*App) error) error {
	cfg, err := flags.LoadConfig()
	if err != nil {
		return err
	}
	return withApp(cfg, false, fn)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "witness-lens %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
