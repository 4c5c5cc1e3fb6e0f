// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/storage"
	"github.com/jeranaias/witness-lens/internal/util"
)

func newConversationsCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show, delete and export conversations",
	}
	cmd.AddCommand(
		newConversationsListCommand(flags),
		newConversationsShowCommand(flags),
		newConversationsDeleteCommand(flags),
		newConversationsExportCommand(flags),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

func newConversationsListCommand(flags *Flags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				if _, err := app.RequireUser(); err != nil {
					return err
				}
				convs, err := listConversations(cmd.Context(), app)
				if err != nil {
					return NewCommandError("conversations", "list", err)
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(convs)
				}
				fmt.Fprint(out, storage.FormatConversationList(convs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// listConversations reads the history from the API, or from the local cache
// in legacy mode where the server keeps no list.
func listConversations(ctx context.Context, app *App) ([]model.Conversation, error) {
	var (
		convs []model.Conversation
		err   error
	)
	if app.Config.Legacy() {
		cache := app.OpenCache()
		if cache == nil {
			return nil, nil
		}
		defer cache.Close()
		convs, err = cache.ListConversations(ctx)
	} else {
		convs, err = app.API.ListConversations(ctx)
	}
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].Title = util.NormalizeTitle(convs[i].Title, "")
	}
	model.SortByCreatedDesc(convs)
	return convs, nil
}

// =============================================================================
// SHOW / EXPORT
// =============================================================================

// fetchTranscript loads a conversation's metadata, messages and references
// concurrently.
func fetchTranscript(ctx context.Context, app *App, id string) (storage.Transcript, error) {
	t := storage.Transcript{Conversation: model.Conversation{ID: id}}

	if app.Config.Legacy() {
		conv, err := app.API.GetLegacyConversation(ctx, id)
		if err != nil {
			return t, err
		}
		t.Conversation.Title = util.NormalizeTitle(conv.Title, "")
		t.Messages = conv.Messages
		return t, nil
	}

	var (
		snap *model.ConversationSnapshot
		refs []model.Reference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := app.API.GetConversation(gctx, id)
		snap = s
		return err
	})
	g.Go(func() error {
		r, err := app.API.ListReferences(gctx, id)
		if api.IsNotFound(err) {
			return nil
		}
		refs = r
		return err
	})
	g.Go(func() error {
		convs, err := app.API.ListConversations(gctx)
		if err != nil {
			// The title is cosmetic.
			log.Debug().Err(err).Msg("conversation list unavailable")
			return nil
		}
		for _, c := range convs {
			if c.ID == id {
				t.Conversation = c
				t.Conversation.Title = util.NormalizeTitle(c.Title, "")
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return t, err
	}

	t.Messages = snap.Messages
	t.References = refs
	if len(t.References) == 0 {
		t.References = snap.References
	}
	return t, nil
}

func newConversationsShowCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				if _, err := app.RequireUser(); err != nil {
					return err
				}
				t, err := fetchTranscript(cmd.Context(), app, args[0])
				if err != nil {
					return NewCommandError("conversations", "show", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), t.ExportMarkdown())
				return nil
			})
		},
	}
}

func newConversationsExportCommand(flags *Flags) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			switch strings.ToLower(format) {
			case "md", "markdown", "json":
			default:
				return NewUsageError("unknown format %q, use md or json", format)
			}
			return runWithApp(flags, func(app *App) error {
				if _, err := app.RequireUser(); err != nil {
					return err
				}
				ctx := cmd.Context()
				t, err := fetchTranscript(ctx, app, args[0])
				if err != nil {
					return NewCommandError("conversations", "export", err)
				}

				if strings.ToLower(format) == "json" {
					if data, err = t.ExportJSON(); err != nil {
						return err
					}
					data = append(data, '\n')
				} else {
					data = []byte(t.ExportMarkdown())
				}

				if cache := app.OpenCache(); cache != nil {
					cacheTranscript(ctx, cache, t)
					cache.Close()
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := util.AtomicWriteFile(output, data, 0600); err != nil {
					return errors.Wrap(err, "write export")
				}
				fmt.Fprintln(cmd.ErrOrStderr(), SuccessStyle.Render("Exported to "+output))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func cacheTranscript(ctx context.Context, cache *storage.Cache, t storage.Transcript) {
	if err := cache.PutConversation(ctx, t.Conversation); err != nil {
		log.Debug().Err(err).Msg("could not cache conversation")
		return
	}
	if err := cache.SaveTranscript(ctx, t.Conversation.ID, t.Messages); err != nil {
		log.Debug().Err(err).Msg("could not cache transcript")
	}
}

// =============================================================================
// DELETE
// =============================================================================

func newConversationsDeleteCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return runWithApp(flags, func(app *App) error {
				if _, err := app.RequireUser(); err != nil {
					return err
				}
				ctx := cmd.Context()
				if !app.Config.Legacy() {
					if err := app.API.DeleteConversation(ctx, id); err != nil {
						return NewCommandError("conversations", "delete", err)
					}
				}
				if cache := app.OpenCache(); cache != nil {
					err := cache.DeleteConversation(ctx, id)
					cache.Close()
					if err != nil && !(errors.Is(err, storage.ErrConversationNotFound) && !app.Config.Legacy()) {
						return NewCommandError("conversations", "delete", err)
					}
				}
				if app.Session.ConversationID() == id {
					if err := app.Session.ClearConversation(); err != nil {
						return errors.Wrap(err, "save session")
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted "+id)
				return nil
			})
		},
	}
}

