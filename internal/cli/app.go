// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/auth"
	"github.com/jeranaias/witness-lens/internal/config"
	"github.com/jeranaias/witness-lens/internal/logging"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/session"
	"github.com/jeranaias/witness-lens/internal/storage"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// Flags are the persistent flags of the root command.
type Flags struct {
	ConfigPath string
	LogLevel   string
	APIURL     string
	WSURL      string
	Legacy     bool
}

// LoadConfig reads the config file named by the flags (or the default one)
// and applies flag overrides on top of env overrides.
func (f *Flags) LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.ConfigPath != "" {
		cfg, err = config.LoadFromPath(f.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.APIURL != "" {
		// A planning URL derived from the old API root follows the override.
		if cfg.Planning.URL == strings.TrimRight(cfg.API.BaseURL, "/")+"/planning" {
			cfg.Planning.URL = strings.TrimRight(f.APIURL, "/") + "/planning"
		}
		cfg.API.BaseURL = f.APIURL
	}
	if f.WSURL != "" {
		cfg.Push.URL = f.WSURL
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Legacy {
		cfg.Mode = config.ModeLegacy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App bundles the collaborators shared by the commands.
type App struct {
	Config   *config.Config
	API      *api.Client
	Store    *session.Store
	Session  *session.Context
	Verifier *auth.Verifier

	logCloser io.Closer
}

// NewApp wires the REST client and the session for cfg. Logs go to the log
// file when toFile is set (the TUI owns the terminal), else to stderr.
func NewApp(cfg *config.Config, toFile bool) (*App, error) {
	opts := logging.Options{Level: cfg.Log.Level, Console: true}
	if toFile {
		opts = logging.Options{Level: cfg.Log.Level, File: cfg.LogPath()}
	}
	closer, err := logging.Init(opts)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(cfg.SessionPath())
	sess := session.NewContext(store, cfg.Session.MintIDs)
	if cfg.Session.User != "" && sess.UserID() != cfg.Session.User {
		if err := sess.SetUser(cfg.Session.User); err != nil {
			log.Warn().Err(err).Msg("could not persist configured user")
		}
	}

	client := NewAPIClient(cfg)
	client.SetUser(sess.UserID())

	return &App{
		Config:    cfg,
		API:       client,
		Store:     store,
		Session:   sess,
		Verifier:  auth.NewVerifier(cfg.Auth.Users),
		logCloser: closer,
	}, nil
}

// Close releases the log file.
func (a *App) Close() {
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// RequireUser returns the signed-in user or ErrNotSignedIn.
func (a *App) RequireUser() (string, error) {
	user := a.Session.UserID()
	if user == "" {
		return "", ErrNotSignedIn
	}
	a.API.SetUser(user)
	return user, nil
}

// OpenCache opens the local conversation cache. Failures are logged and
// yield nil: the cache is optional everywhere except legacy history.
func (a *App) OpenCache() *storage.Cache {
	cache, err := storage.Open(a.Config.CachePath())
	if err != nil {
		log.Warn().Err(err).Str("path", a.Config.CachePath()).Msg("local cache unavailable")
		return nil
	}
	return cache
}

// NewAPIClient builds the REST client from the config.
func NewAPIClient(cfg *config.Config) *api.Client {
	return api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		PlanningURL:       cfg.Planning.URL,
		UserHeader:        cfg.API.UserHeader,
		Timeout:           cfg.RequestTimeout(),
		MaxRetries:        cfg.API.MaxRetries,
		RetryDelay:        time.Duration(cfg.API.RetryDelayMs) * time.Millisecond,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	})
}

// NewPushClient builds the push client from the config.
func NewPushClient(cfg *config.Config) *push.Client {
	return push.NewClient(push.Config{
		URL:               cfg.Push.URL,
		UserHeader:        cfg.API.UserHeader,
		PingInterval:      time.Duration(cfg.Push.PingIntervalSecs) * time.Second,
		InitialBackoff:    time.Duration(cfg.Push.BackoffInitialMs) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.Push.BackoffMaxMs) * time.Millisecond,
		OutboxSize:        cfg.Push.OutboxSize,
		QueueWhileOffline: cfg.Push.QueueWhileOffline,
	})
}
