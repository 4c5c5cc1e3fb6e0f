// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/conversation"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/storage"
)

const (
	// connectTimeout bounds the wait for the push channel before the first
	// prompt.
	connectTimeout = 10 * time.Second
	// answerTimeout bounds the wait for a finished answer.
	answerTimeout = 3 * time.Minute

	lineChatBuffer = 256
)

type chatOptions struct {
	New          bool
	Conversation string
}

func newChatCommand(flags *Flags) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a line-mode chat session",
		Long: `Start a line-mode chat session over the same stack as the terminal UI.

Commands during chat:
  /new    start a new conversation
  /id     print the conversation id
  /help   show commands
  /quit   exit (ctrl+d also exits)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(flags, func(app *App) error {
				return runLineChat(cmd.Context(), app, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&opts.New, "new", false, "start a new conversation")
	cmd.Flags().StringVarP(&opts.Conversation, "conversation", "c", "", "resume the conversation with this id")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

// prompter reads one line of user input.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linePrompter reads input through liner with a persistent history file.
type linePrompter struct {
	line        *liner.State
	historyFile string
}

func newLinePrompter(historyFile string) *linePrompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	p := &linePrompter{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return p
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (p *linePrompter) Close() error {
	if err := os.MkdirAll(filepath.Dir(p.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			p.line.WriteHistory(f)
			f.Close()
		}
	}
	return p.line.Close()
}

// =============================================================================
// LINE CHAT
// =============================================================================

type lineChat struct {
	app   *App
	push  *push.Client
	sub   *push.Subscription
	cache *storage.Cache
	conv  *conversation.State
	in    prompter
	out   io.Writer

	answerTimeout time.Duration
}

func runLineChat(ctx context.Context, app *App, opts chatOptions, out io.Writer) error {
	c := &lineChat{
		app:           app,
		conv:          conversation.New(),
		out:           out,
		answerTimeout: answerTimeout,
	}
	if _, err := app.RequireUser(); err != nil {
		return err
	}
	c.in = newLinePrompter(app.Config.HistoryPath())
	defer c.in.Close()

	c.cache = app.OpenCache()
	if c.cache != nil {
		defer c.cache.Close()
	}
	return c.run(ctx, opts)
}

func (c *lineChat) legacy() bool {
	return c.app.Config.Legacy() || c.push == nil
}

func (c *lineChat) run(ctx context.Context, opts chatOptions) error {
	sess := c.app.Session
	user, err := c.app.RequireUser()
	if err != nil {
		return err
	}

	switch {
	case opts.Conversation != "":
		err = sess.SetConversation(opts.Conversation)
	case opts.New:
		_, err = sess.NewConversation()
	}
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	id, _, err := sess.EnsureConversation()
	if err != nil {
		return errors.Wrap(err, "save session")
	}

	if !c.app.Config.Legacy() && c.push == nil {
		c.push = NewPushClient(c.app.Config)
	}
	if !c.legacy() {
		ctx2, cancel := context.WithCancel(ctx)
		defer cancel()
		ctx = ctx2

		c.push.SetUser(user)
		c.sub = c.push.Hub().Subscribe(lineChatBuffer)
		defer c.sub.Close()
		go func() {
			if err := c.push.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("push client stopped")
			}
		}()
		if err := c.waitConnected(ctx, connectTimeout); err != nil {
			return err
		}
	}

	fmt.Fprintln(c.out, TitleStyle.Render("Witness Lens")+DimStyle.Render("  signed in as "+user+". /help for commands."))
	if err := c.open(ctx, id); err != nil {
		return err
	}

	for {
		line, err := c.in.Prompt("you › ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/q", "/exit":
			return nil
		case "/help", "/h":
			fmt.Fprintln(c.out, DimStyle.Render("/new  new conversation   /id  conversation id   /quit  exit"))
			continue
		case "/id":
			fmt.Fprintln(c.out, c.conv.ConversationID())
			continue
		case "/new":
			if _, err := sess.NewConversation(); err != nil {
				return errors.Wrap(err, "save session")
			}
			id, _, err := sess.EnsureConversation()
			if err != nil {
				return errors.Wrap(err, "save session")
			}
			c.openFresh(id)
			fmt.Fprintln(c.out, DimStyle.Render("New conversation "+id))
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(c.out, ErrorStyle.Render("Error:"), err)
		}
	}
}

func (c *lineChat) waitConnected(ctx context.Context, timeout time.Duration) error {
	if c.push.Connected() {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				return push.ErrNotConnected
			}
			if st, isStatus := ev.(push.StatusEvent); isStatus && st.Connected {
				return nil
			}
		case <-timer.C:
			return errors.Wrapf(push.ErrNotConnected, "no connection to %s after %s", c.app.Config.Push.URL, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// open loads an existing conversation and prints its last exchange.
func (c *lineChat) open(ctx context.Context, id string) error {
	ticket := c.conv.Select(id)
	var (
		snap *model.ConversationSnapshot
		err  error
	)
	if c.legacy() {
		var conv *model.LegacyConversation
		if conv, err = c.app.API.GetLegacyConversation(ctx, id); err == nil {
			snap = &model.ConversationSnapshot{Messages: conv.Messages}
		}
	} else {
		snap, err = c.app.API.GetConversation(ctx, id)
		if herr := c.push.Handshake(id); herr != nil {
			log.Debug().Err(herr).Msg("handshake not sent")
		}
	}
	if err != nil && !api.IsNotFound(err) {
		c.conv.ApplyFetchError(ticket, err)
		return errors.Wrap(err, "load conversation")
	}
	c.conv.ApplySnapshot(ticket, snap)

	msgs := c.conv.Messages()
	if n := len(msgs); n > 0 {
		fmt.Fprintln(c.out, DimStyle.Render(fmt.Sprintf("Resuming %s (%d messages)", id, n)))
		for _, m := range msgs[max(n-2, 0):] {
			c.printMessage(m)
		}
	}
	return nil
}

func (c *lineChat) openFresh(id string) {
	c.conv.ApplySnapshot(c.conv.Select(id), nil)
	if !c.legacy() {
		if err := c.push.Handshake(id); err != nil {
			log.Debug().Err(err).Msg("handshake not sent")
		}
	}
}

func (c *lineChat) printMessage(m model.Message) {
	label := PromptStyle.Render("you")
	if m.Role == model.RoleAssistant {
		label = AnswerLabelStyle.Render("witness lens")
	}
	fmt.Fprintf(c.out, "%s › %s\n", label, m.Content)
}

// ask sends one question and prints the answer.
func (c *lineChat) ask(ctx context.Context, text string) error {
	if _, err := c.conv.AppendLocal(text); err != nil {
		return err
	}
	id := c.conv.ConversationID()

	if c.legacy() {
		return c.askLegacy(ctx, id, text)
	}
	if err := c.push.Send(push.SendMessage{ConversationID: id, Content: text}); err != nil {
		c.conv.SendFailed()
		return errors.Wrap(err, "message not sent")
	}
	return c.stream(ctx, id)
}

func (c *lineChat) askLegacy(ctx context.Context, id, text string) error {
	ticket := c.conv.Ticket()
	if err := c.app.API.SendLegacyMessage(ctx, id, text); err != nil {
		c.conv.SendFailed()
		return errors.Wrap(err, "message not sent")
	}
	conv, err := c.app.API.GetLegacyConversation(ctx, id)
	if err != nil {
		c.conv.SendFailed()
		return errors.Wrap(err, "load answer")
	}
	c.conv.ApplySnapshot(ticket, &model.ConversationSnapshot{Messages: conv.Messages})
	if last, ok := c.conv.Last(); ok && last.Role == model.RoleAssistant {
		c.printMessage(last)
		c.printReferences(last.References)
	}
	c.save(ctx, model.Conversation{ID: id, Title: conv.Title})
	return nil
}

// stream prints answer deltas as they arrive. Each delta carries the full
// answer so far; only the new suffix is written.
func (c *lineChat) stream(ctx context.Context, id string) error {
	timer := time.NewTimer(c.answerTimeout)
	defer timer.Stop()

	printed := ""
	fmt.Fprint(c.out, AnswerLabelStyle.Render("witness lens")+" › ")
	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				return push.ErrNotConnected
			}
			switch ev := ev.(type) {
			case push.MessageDelta:
				if !c.conv.ApplyDelta(ev) {
					continue
				}
				if strings.HasPrefix(ev.Snapshot, printed) {
					fmt.Fprint(c.out, ev.Snapshot[len(printed):])
				} else {
					fmt.Fprint(c.out, "\n"+ev.Snapshot)
				}
				printed = ev.Snapshot
				if ev.Finished {
					fmt.Fprintln(c.out)
					c.printReferences(ev.References)
					c.save(ctx, model.Conversation{ID: id})
					return nil
				}
			case push.StatusEvent:
				if !ev.Connected {
					fmt.Fprintln(c.out)
					fmt.Fprintln(c.out, WarningStyle.Render("connection lost, reconnecting..."))
				}
			}
		case <-timer.C:
			c.conv.SendFailed()
			fmt.Fprintln(c.out)
			return errors.Errorf("no answer after %s", c.answerTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *lineChat) printReferences(refs []model.Reference) {
	for _, r := range model.DisplayReferences(refs) {
		fmt.Fprintln(c.out, DimStyle.Render("  ↳ "+r.DisplayName+"  "+r.DownloadURL))
	}
}

// save mirrors the transcript into the local cache.
func (c *lineChat) save(ctx context.Context, conv model.Conversation) {
	if c.cache == nil {
		return
	}
	if existing, err := c.cache.GetConversation(ctx, conv.ID); err == nil {
		if conv.Title == "" {
			conv.Title = existing.Title
		}
		conv.CreatedAt = existing.CreatedAt
	} else {
		conv.CreatedAt = time.Now()
	}
	if err := c.cache.PutConversation(ctx, conv); err != nil {
		log.Warn().Err(err).Msg("could not cache conversation")
		return
	}
	if err := c.cache.SaveTranscript(ctx, conv.ID, c.conv.Messages()); err != nil {
		log.Warn().Err(err).Msg("could not cache transcript")
	}
}
