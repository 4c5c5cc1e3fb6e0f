// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/auth"
	"github.com/jeranaias/witness-lens/internal/config"
	"github.com/jeranaias/witness-lens/internal/conversation"
	"github.com/jeranaias/witness-lens/internal/session"
	"github.com/jeranaias/witness-lens/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

// setupEnv isolates the config and data directories and returns the data
// directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"WITNESS_LENS_API_URL", "WITNESS_LENS_WS_URL", "WITNESS_LENS_PLANNING_URL",
		"WITNESS_LENS_USER", "WITNESS_LENS_LOG_LEVEL", "WITNESS_LENS_LEGACY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
	dataDir := t.TempDir()
	t.Setenv("WITNESS_LENS_DATA_DIR", dataDir)
	t.Cleanup(config.ResetGlobalForTesting)
	return dataDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assistant/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"conversations": []map[string]string{
				{"id": "c1", "title": "Lyon trip", "createdAt": "2024-05-01T10:00:00Z"},
				{"id": "c2", "title": "Budget\nreview", "createdAt": "2024-05-03T10:00:00Z"},
			},
		})
	})
	mux.HandleFunc("/api/assistant/conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, map[string]interface{}{
			"messages": []map[string]string{
				{"id": "m1", "role": "user", "content": "Where to eat in Lyon?"},
				{"id": "m2", "role": "assistant", "content": "Try a bouchon."},
			},
		})
	})
	mux.HandleFunc("/api/assistant/conversations/c1/references", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"references": []map[string]string{
				{"displayName": "guide.pdf", "downloadURL": "http://files.test/guide.pdf"},
			},
		})
	})
	mux.HandleFunc("/api/planning/2025/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"items": map[string][]string{"5": {"a"}, "14": {"b"}}})
	})
	mux.HandleFunc("/api/planning/2025/3/14", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"items": []string{"Site visit"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func signInFile(t *testing.T, dataDir string, sess session.Session) {
	t.Helper()
	require.NoError(t, session.NewStore(filepath.Join(dataDir, "session.json")).Save(sess))
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "witness-lens "+Version)
}

func TestWhoami_NotSignedIn(t *testing.T) {
	setupEnv(t)
	_, err := runCLI(t, "whoami")
	require.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestLoginWhoamiLogout(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as alice")

	out, err = runCLI(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "(none)")

	_, err = runCLI(t, "logout")
	require.NoError(t, err)
	_, err = runCLI(t, "whoami")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestLogin_ConfiguredUsers(t *testing.T) {
	setupEnv(t)
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Auth.Users = map[string]string{"alice": hash}
	require.NoError(t, config.SaveTOML(cfg, cfgPath))

	_, err = runCLI(t, "--config", cfgPath, "login", "alice", "--password", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, ExitAuthError, ExitCode(err))

	out, err := runCLI(t, "--config", cfgPath, "login", "alice", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
}

func TestConversationsList(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice"})

	out, err := runCLI(t, "--api-url", srv.URL+"/api", "conversations", "list")
	require.NoError(t, err)
	// Newest first, titles on one line.
	require.Contains(t, out, "Budget review")
	assert.Less(t, strings.Index(out, "c2"), strings.Index(out, "c1"))

	out, err = runCLI(t, "--api-url", srv.URL+"/api", "conversations", "list", "--json")
	require.NoError(t, err)
	var convs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &convs))
	assert.Len(t, convs, 2)
}

func TestConversationsShow(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice"})

	out, err := runCLI(t, "--api-url", srv.URL+"/api", "conversations", "show", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Lyon trip")
	assert.Contains(t, out, "Try a bouchon.")
	assert.Contains(t, out, "- [guide.pdf](http://files.test/guide.pdf)")
}

func TestConversationsShow_NotFound(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice"})

	_, err := runCLI(t, "--api-url", srv.URL+"/api", "conversations", "show", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestConversationsExport_JSONFile(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice"})
	file := filepath.Join(t.TempDir(), "c1.json")

	_, err := runCLI(t, "--api-url", srv.URL+"/api", "conversations", "export", "c1", "-f", "json", "-o", file)
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var tr storage.Transcript
	require.NoError(t, json.Unmarshal(data, &tr))
	assert.Equal(t, "c1", tr.Conversation.ID)
	assert.Len(t, tr.Messages, 2)
	assert.Len(t, tr.References, 1)

	// The export is mirrored into the local cache.
	cache, err := storage.Open(filepath.Join(dataDir, "cache.db"))
	require.NoError(t, err)
	defer cache.Close()
	msgs, err := cache.LoadTranscript(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestConversationsExport_BadFormat(t *testing.T) {
	setupEnv(t)
	_, err := runCLI(t, "conversations", "export", "c1", "-f", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConversationsDelete_ClearsSession(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice", ConversationID: "c1"})

	out, err := runCLI(t, "--api-url", srv.URL+"/api", "conversations", "delete", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted c1")

	sess := session.NewStore(filepath.Join(dataDir, "session.json")).Load()
	assert.Equal(t, "alice", sess.UserID)
	assert.Empty(t, sess.ConversationID)
}

func TestCalendarCommand(t *testing.T) {
	dataDir := setupEnv(t)
	srv := newBackend(t)
	signInFile(t, dataDir, session.Session{UserID: "alice"})

	out, err := runCLI(t, "--api-url", srv.URL+"/api", "calendar", "2025", "3", "--day", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "March 2025")
	assert.Contains(t, out, "5*")
	assert.Contains(t, out, "14*")
	assert.NotContains(t, out, "6*")
	assert.Contains(t, out, "Site visit")

	_, err = runCLI(t, "calendar", "2025")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	setupEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	_, err := runCLI(t, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	_, err = runCLI(t, "--config", cfgPath, "config", "init")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	out, err := runCLI(t, "--config", cfgPath, "--api-url", "http://api.test/api", "config", "get", "api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api\n", out)

	out, err = runCLI(t, "--config", cfgPath, "--api-url", "http://api.test/api", "config", "get", "planning.url")
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api/planning\n", out)

	out, err = runCLI(t, "config", "hash-password", "--password", "pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "$2"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", NewUsageError("bad"), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "mode", Message: "bad"}}, ExitConfigError},
		{"not signed in", ErrNotSignedIn, ExitAuthError},
		{"not found", NewCommandError("conversations", "show", api.ErrNotFound), ExitNotFoundError},
		{"timeout", api.ErrTimeout, ExitTimeoutError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

// =============================================================================
// LINE CHAT
// =============================================================================

type scriptedPrompter struct {
	lines []string
}

func (p *scriptedPrompter) Prompt(string) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptedPrompter) Close() error { return nil }

func TestLineChat_Legacy(t *testing.T) {
	setupEnv(t)
	var answered atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/assistant/conversation/message":
			answered.Store(true)
			writeJSON(w, map[string]string{})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/assistant/conversation/"):
			if !answered.Load() {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, map[string]interface{}{
				"title": "Greeting",
				"messages": []map[string]string{
					{"id": "m1", "role": "user", "content": "Hello"},
					{"id": "m2", "role": "assistant", "content": "Hi there"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	flags := &Flags{APIURL: srv.URL + "/api", Legacy: true}
	cfg, err := flags.LoadConfig()
	require.NoError(t, err)
	app, err := NewApp(cfg, false)
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, app.Session.SetUser("alice"))

	var out bytes.Buffer
	c := &lineChat{
		app:           app,
		conv:          conversation.New(),
		in:            &scriptedPrompter{lines: []string{"", "Hello", "/id"}},
		out:           &out,
		answerTimeout: answerTimeout,
	}
	require.NoError(t, c.run(context.Background(), chatOptions{New: true}))

	assert.Contains(t, out.String(), "Hi there")
	assert.Contains(t, out.String(), app.Session.ConversationID())
	assert.False(t, c.conv.Waiting())
	assert.Len(t, c.conv.Messages(), 2)
}
