// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/ui/chat"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

// runTUI runs the full-screen client until the user quits or ctx ends.
func runTUI(ctx context.Context, app *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg := app.Config

	cache := app.OpenCache()
	if cache != nil {
		defer cache.Close()
	}

	// Other terminals signing in or out show up here.
	watch, err := app.Store.Watch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session file not watched")
		watch = nil
	}

	var pc *push.Client
	if !cfg.Legacy() {
		pc = NewPushClient(cfg)
	}

	m := chat.New(chat.Options{
		Context:      ctx,
		Config:       cfg,
		API:          app.API,
		Push:         pc,
		Session:      app.Session,
		SessionWatch: watch,
		Cache:        cache,
		Verifier:     app.Verifier,
		Theme:        styles.NewTheme(cfg.UI.Theme),
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	log.Info().Str("mode", cfg.Mode).Str("api", cfg.API.BaseURL).Msg("starting terminal UI")
	_, err = p.Run()
	return errors.Wrap(err, "run terminal UI")
}
