package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"coinclicker/pkg/tasks"
	"coinclicker/pkg/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type backendUser struct {
	ID       int    `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Coins    int    `json:"coins"`
	Token    string `json:"token,omitempty"`
}

// backend is a tiny stand-in for the coin service
type backend struct {
	mu          sync.Mutex
	users       map[string]*backendUser
	tokens      map[string]string
	rejectCoins bool
	coinCalls   int
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{users: map[string]*backendUser{}, tokens: map[string]string{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) caller(r *http.Request) *backendUser {
	name, ok := b.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	if !ok {
		return nil
	}
	return b.users[name]
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case "/signup":
		name, _ := body["username"].(string)
		if _, exists := b.users[name]; exists {
			b.reply(w, http.StatusBadRequest, map[string]string{"error": "Username already exists"})
			return
		}
		email, _ := body["email"].(string)
		b.users[name] = &backendUser{ID: len(b.users) + 1, Username: name, Email: email}
		b.issue(w, name)
	case "/signin":
		name, _ := body["username"].(string)
		if _, ok := b.users[name]; !ok {
			b.reply(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		b.issue(w, name)
	case "/user":
		u := b.caller(r)
		if u == nil {
			b.reply(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		b.reply(w, http.StatusOK, u)
	case "/signout":
		delete(b.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		w.WriteHeader(http.StatusNoContent)
	case "/add-coin", "/add-coins":
		b.coinCalls++
		u := b.caller(r)
		if u == nil {
			b.reply(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			return
		}
		if b.rejectCoins {
			b.reply(w, http.StatusBadRequest, map[string]string{"error": "rejected"})
			return
		}
		amount := 1
		if r.URL.Path == "/add-coins" {
			f, _ := body["amount"].(float64)
			amount = int(f)
		}
		u.Coins += amount
		b.reply(w, http.StatusOK, map[string]int{"coins": u.Coins})
	default:
		http.NotFound(w, r)
	}
}

func (b *backend) issue(w http.ResponseWriter, name string) {
	token := "tok-" + name
	b.tokens[token] = name
	resp := *b.users[name]
	resp.Token = token
	b.reply(w, http.StatusOK, resp)
}

func (b *backend) coins(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[name].Coins
}

func (b *backend) setRejectCoins(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectCoins = reject
}

// setupCLI isolates the data directory, keychain and config lookup
func setupCLI(t *testing.T) {
	t.Helper()
	keyring.MockInit()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("COINCLICKER_LOG_LEVEL", "disabled")
	t.Setenv("COINCLICKER_NOTIFICATIONS_ENABLED", "false")
}

// run executes the CLI with args and returns what it printed
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	configFile, apiURL, environment, storageBackend, logLevel = "", "", "", "", ""
	notifications = true
	signupEmail, signupReferral = "", ""
	clickCount = 1

	var out bytes.Buffer
	prev := ui.Output
	ui.Output = &out
	t.Cleanup(func() { ui.Output = prev })

	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRequireSession(t *testing.T) {
	setupCLI(t)
	_, srv := newBackend(t)

	for _, args := range [][]string{
		{"balance"},
		{"click"},
		{"share"},
		{"task", "list"},
		{"task", "complete", "daily"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, "", append(args, "--api-url", srv.URL)...)
			assert.ErrorIs(t, err, errNotSignedIn)
		})
	}
}

func TestSignupLoginLogout(t *testing.T) {
	setupCLI(t)
	_, srv := newBackend(t)

	out, err := run(t, "", "signup", "alice", "--email", "alice@example.com", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "C O I N C L I C K E R")
	assert.Contains(t, out, "welcome alice")

	_, err = run(t, "", "login", "bob", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already signed in as alice")

	out, err = run(t, "", "balance", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "0 coins")

	out, err = run(t, "", "logout", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = run(t, "", "balance", "--api-url", srv.URL)
	assert.ErrorIs(t, err, errNotSignedIn)

	out, err = run(t, "alice\n", "login", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as alice")
}

func TestLoginUnknownUser(t *testing.T) {
	setupCLI(t)
	_, srv := newBackend(t)

	_, err := run(t, "", "login", "ghost", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User not found")
}

func TestClickSyncsCoins(t *testing.T) {
	setupCLI(t)
	b, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	out, err := run(t, "", "click", "-n", "3", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "3/500")
	assert.Equal(t, 3, b.coins("alice"))

	out, err = run(t, "", "status", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "3/500")
	assert.Contains(t, out, "[READY]")
}

func TestClickStopsAtCooldown(t *testing.T) {
	setupCLI(t)
	t.Setenv("COINCLICKER_MAX_PROGRESS", "2")
	b, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	out, err := run(t, "", "click", "-n", "5", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "3 presses ignored")
	assert.Contains(t, out, "[COOLDOWN]")
	assert.Equal(t, 2, b.coins("alice"))

	out, err = run(t, "", "reset", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Coin progress reset")
	assert.Contains(t, out, "0/2")
	assert.Contains(t, out, "[READY]")
}

func TestUnsyncedCoinsCarryOver(t *testing.T) {
	setupCLI(t)
	b, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	b.setRejectCoins(true)
	out, err := run(t, "", "click", "-n", "2", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "not synced yet")
	assert.Equal(t, 0, b.coins("alice"))

	b.setRejectCoins(false)
	_, err = run(t, "", "click", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, b.coins("alice"))
}

func TestTasks(t *testing.T) {
	setupCLI(t)
	b, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	out, err := run(t, "", "task", "list", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "daily")
	assert.Contains(t, out, "available")

	daily, _ := tasks.Lookup(tasks.TypeDaily)
	_, err = run(t, "", "task", "complete", "daily", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, daily.Reward, b.coins("alice"))

	_, err = run(t, "", "task", "complete", "daily", "--api-url", srv.URL)
	assert.ErrorIs(t, err, tasks.ErrTaskUnavailable)

	_, err = run(t, "", "task", "complete", "dance", "--api-url", srv.URL)
	assert.ErrorIs(t, err, tasks.ErrUnknownTask)
}

func TestShareShowsReferralCode(t *testing.T) {
	setupCLI(t)
	_, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	out, err := run(t, "", "share", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "--referral alice")
	assert.Contains(t, out, "task complete share")
}

func TestConfigCommands(t *testing.T) {
	setupCLI(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "", "config", "init", "--config", path)
	assert.Error(t, err)

	out, err = run(t, "", "config", "validate", "--config", path, "--storage", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "memory storage forgets")

	out, err = run(t, "", "config", "show", "--config", path, "--env", "development")
	require.NoError(t, err)
	assert.Contains(t, out, "environment: development")

	_, err = run(t, "", "config", "validate", "--config", path, "--storage", "redis")
	assert.Error(t, err)
}

func TestAccountsOnOneDeviceKeepTheirOwnCoinsAndClaims(t *testing.T) {
	setupCLI(t)
	b, srv := newBackend(t)

	_, err := run(t, "", "signup", "alice", "--email", "a@example.com", "--api-url", srv.URL)
	require.NoError(t, err)

	b.setRejectCoins(true)
	out, err := run(t, "", "click", "-n", "3", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "not synced yet")
	b.setRejectCoins(false)

	_, err = run(t, "", "logout", "--api-url", srv.URL)
	require.NoError(t, err)

	_, err = run(t, "", "signup", "bob", "--email", "b@example.com", "--api-url", srv.URL)
	require.NoError(t, err)
	_, err = run(t, "", "task", "complete", "follow", "--api-url", srv.URL)
	require.NoError(t, err)
	_, err = run(t, "", "click", "--api-url", srv.URL)
	require.NoError(t, err)

	// alice's unsynced coins stay with alice
	assert.Equal(t, 11, b.coins("bob"))
	assert.Equal(t, 0, b.coins("alice"))

	_, err = run(t, "", "logout", "--api-url", srv.URL)
	require.NoError(t, err)
	_, err = run(t, "", "login", "alice", "--api-url", srv.URL)
	require.NoError(t, err)

	// bob's claim does not block alice
	_, err = run(t, "", "task", "complete", "follow", "--api-url", srv.URL)
	require.NoError(t, err)
	_, err = run(t, "", "click", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 10+3+1, b.coins("alice"))
	assert.Equal(t, 11, b.coins("bob"))
}
