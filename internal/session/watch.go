// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// watchDebounce coalesces the create/write/rename burst of an atomic save.
const watchDebounce = 50 * time.Millisecond

// Watch reports the session each time the file changes on disk, including
// changes made by this process. The channel is closed when ctx is done.
//
// The directory is watched rather than the file because atomic saves replace
// the file.
func (s *Store) Watch(ctx context.Context) (<-chan Session, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create session directory")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	out := make(chan Session, 1)
	go func() {
		defer close(out)
		defer w.Close()

		var (
			timer  *time.Timer
			fire   <-chan time.Time
			target = filepath.Clean(s.path)
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				sess := s.Load()
				select {
				case out <- sess:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("component", "session").Msg("session watcher error")
			}
		}
	}()
	return out, nil
}
