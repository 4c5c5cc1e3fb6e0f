// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Sign-in state lives in the session file, so running terminal UIs follow
// these commands.

func newLoginCommand(flags *Flags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <user>",
		Short: "Sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				if !app.Verifier.Open() && password == "" {
					pw, err := readPassword("Password: ")
					if err != nil {
						return err
					}
					password = pw
				}
				user, err := app.Verifier.Verify(args[0], password)
				if err != nil {
					return err
				}
				if err := app.Session.SetUser(user); err != nil {
					return errors.Wrap(err, "save session")
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Signed in as "+user))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted and users are configured)")
	return cmd
}

func newLogoutCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the current conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				if err := app.Session.Logout(); err != nil {
					return errors.Wrap(err, "save session")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newWhoamiCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and current conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				user, err := app.RequireUser()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, RenderLabel("User")+user)
				conv := app.Session.ConversationID()
				if conv == "" {
					conv = "(none)"
				}
				fmt.Fprintln(out, RenderLabel("Conversation")+conv)
				fmt.Fprintln(out, RenderLabel("Session file")+app.Store.Path())
				return nil
			})
		},
	}
}
