// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/witness-lens/internal/auth"
	"github.com/jeranaias/witness-lens/internal/config"
)

func newConfigCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (password hashes redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one value, e.g. api.base_url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return NewUsageError("%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config, session, cache and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			file := flags.ConfigPath
			if file == "" {
				if file, err = config.ConfigPathTOML(); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, RenderLabel("Config")+file)
			fmt.Fprintln(out, RenderLabel("Session")+cfg.SessionPath())
			fmt.Fprintln(out, RenderLabel("Cache")+cfg.CachePath())
			fmt.Fprintln(out, RenderLabel("Log")+cfg.LogPath())
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := flags.ConfigPath
			if file == "" {
				var err error
				if file, err = config.ConfigPathTOML(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(file); err == nil && !force {
				return NewUsageError("%s already exists; use --force to overwrite", file)
			}
			if err := config.SaveTOML(config.Default(), file); err != nil {
				return errors.Wrap(err, "write config")
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Wrote "+file))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var password string
	hash := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for the [auth.users] table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}
			h, err := auth.HashPassword(password)
			if err != nil {
				return NewUsageError("%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	hash.Flags().StringVar(&password, "password", "", "password to hash (prompted when omitted)")

	cmd.AddCommand(show, get, path, initCmd, hash)
	return cmd
}
