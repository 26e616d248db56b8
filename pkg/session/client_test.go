package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	errs "coinclicker/pkg/errors"
	"coinclicker/pkg/kvstore"
	"coinclicker/pkg/logger"
	"coinclicker/pkg/retry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory stand-in for the coin service
type fakeBackend struct {
	mu         sync.Mutex
	users      map[string]*User
	tokens     map[string]string
	requestIDs map[string][]string
	failNext   map[string]int
	// failStatus is the status failNext answers with, 503 when unset
	failStatus map[string]int
	nextID     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:      map[string]*User{},
		tokens:     map[string]string{},
		requestIDs: map[string][]string{},
		failNext:   map[string]int{},
		failStatus: map[string]int{},
	}
}

func (b *fakeBackend) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) authUser(r *http.Request) *User {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 {
		return nil
	}
	name, ok := b.tokens[auth[7:]]
	if !ok {
		return nil
	}
	return b.users[name]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requestIDs[r.URL.Path] = append(b.requestIDs[r.URL.Path], r.Header.Get(RequestIDHeader))
	if b.failNext[r.URL.Path] > 0 {
		b.failNext[r.URL.Path]--
		status := b.failStatus[r.URL.Path]
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		b.writeJSON(w, status, errorResponse{Error: "try later"})
		return
	}

	switch r.URL.Path {
	case endpointSignUp:
		var req signUpRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username == "" {
			b.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Username is required"})
			return
		}
		if _, exists := b.users[req.Username]; exists {
			b.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Username already exists"})
			return
		}
		b.nextID++
		u := &User{ID: b.nextID, Username: req.Username, Email: req.Email}
		if referrer, ok := b.users[req.ReferralCode]; ok {
			referrer.Coins += 10
			u.Coins = 10
		}
		b.users[req.Username] = u
		b.issue(w, u)
	case endpointSignIn:
		var req signInRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username == "" {
			b.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing"})
			return
		}
		u, ok := b.users[req.Username]
		if !ok {
			b.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such user"})
			return
		}
		b.issue(w, u)
	case endpointUser:
		u := b.authUser(r)
		if u == nil {
			b.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		b.writeJSON(w, http.StatusOK, u)
	case endpointSignOut:
		delete(b.tokens, r.Header.Get("Authorization")[7:])
		w.WriteHeader(http.StatusNoContent)
	case endpointAddCoin:
		u := b.authUser(r)
		if u == nil {
			b.writeJSON(w, http.StatusUnauthorized, errorResponse{})
			return
		}
		u.Coins++
		b.writeJSON(w, http.StatusOK, coinsResponse{Coins: u.Coins})
	case endpointAddCoins:
		u := b.authUser(r)
		if u == nil {
			b.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Not authenticated"})
			return
		}
		var req addCoinsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.TaskType == "" {
			b.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "taskType is required"})
			return
		}
		u.Coins += req.Amount
		b.writeJSON(w, http.StatusOK, coinsResponse{Coins: u.Coins})
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) issue(w http.ResponseWriter, u *User) {
	token := uuid.NewString()
	b.tokens[token] = u.Username
	b.writeJSON(w, http.StatusOK, authResponse{User: *u, Token: token})
}

func (b *fakeBackend) ids(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs[path]...)
}

func newTestClient(t *testing.T, b *fakeBackend, secrets kvstore.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	return New(secrets, Options{
		BaseURL: srv.URL + "/",
		Timeout: 2 * time.Second,
		Retry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		Logger: log,
	})
}

func TestSignUpSignInFlow(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	secrets := kvstore.NewMemoryStore()
	c := newTestClient(t, b, secrets)

	u, err := c.SignUp(ctx, "alice", "alice@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice", u.Referral())
	assert.True(t, c.IsAuthenticated())

	token, ok, err := secrets.Get(TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	require.NoError(t, c.SignOut(ctx))
	assert.False(t, c.IsAuthenticated())
	assert.Nil(t, c.User())
	_, ok, _ = secrets.Get(TokenKey)
	assert.False(t, ok)

	u, err = c.SignIn(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice (0 coins)", c.String())
}

func TestSignUpWithReferral(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.SignUp(ctx, "alice", "alice@example.com", "")
	require.NoError(t, err)

	u, err := c.SignUp(ctx, "bob", "bob@example.com", "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, u.Coins)
	assert.Equal(t, 10, b.users["alice"].Coins)
}

func TestSignUpErrors(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.SignUp(ctx, "alice", "a@example.com", "")
	require.NoError(t, err)

	_, err = c.SignUp(ctx, "alice", "other@example.com", "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConflict))
	assert.Contains(t, err.Error(), "This username is already taken")

	_, err = c.SignUp(ctx, "", "x@example.com", "")
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))
}

func TestSignInErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newFakeBackend(), nil)

	_, err := c.SignIn(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "User not found. Please check your username or sign up.")

	_, err = c.SignIn(ctx, "  ")
	assert.Contains(t, err.Error(), "Username is required")
	assert.False(t, c.IsAuthenticated())
}

func TestStatusErrorMessages(t *testing.T) {
	tests := []struct {
		endpoint string
		status   int
		body     string
		want     string
	}{
		{endpointSignIn, 500, `{}`, serverErrorMessage},
		{endpointSignIn, 418, `{"error":"teapot"}`, "teapot"},
		{endpointSignIn, 418, `not json`, "Login failed. Please try again."},
		{endpointSignUp, 400, `{"error":"bad email"}`, "Invalid input. Please check your details."},
		{endpointSignUp, 401, `{}`, "Authentication failed. Please try again."},
		{endpointSignUp, 404, `{}`, "Username not found. Please check and try again."},
		{endpointAddCoins, 400, `{"error":"taskType is required"}`, "taskType is required"},
		{endpointAddCoins, 400, `{}`, "Failed to add coins"},
		{endpointAddCoin, 500, `{}`, "Failed to add coin"},
		{endpointUser, 401, `{}`, "Failed to fetch user data"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			err := statusError(tt.endpoint, tt.status, []byte(tt.body))
			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Code)
		})
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	secrets := kvstore.NewMemoryStore()

	first := newTestClient(t, b, secrets)
	_, err := first.SignUp(ctx, "carol", "carol@example.com", "")
	require.NoError(t, err)

	// a fresh process picks the session up from the secret store
	second := newTestClient(t, b, secrets)
	u, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Username)
	assert.True(t, second.IsAuthenticated())
}

func TestRestoreWithoutToken(t *testing.T) {
	c := newTestClient(t, newFakeBackend(), nil)
	_, err := c.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRestoreClearsInvalidToken(t *testing.T) {
	secrets := kvstore.NewMemoryStore()
	require.NoError(t, secrets.Set(TokenKey, "stale-token"))

	c := newTestClient(t, newFakeBackend(), secrets)
	_, err := c.Restore(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, c.IsAuthenticated())
	_, ok, _ := secrets.Get(TokenKey)
	assert.False(t, ok)
}

func TestRestoreKeepsTokenWhenBackendDown(t *testing.T) {
	secrets := kvstore.NewMemoryStore()
	require.NoError(t, secrets.Set(TokenKey, "maybe-valid"))

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(secrets, Options{
		BaseURL: srv.URL,
		Retry:   &retry.Config{MaxAttempts: 1},
		Logger:  logger.NewTestLogger(),
	})
	_, err := c.Restore(context.Background())

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
	value, ok, _ := secrets.Get(TokenKey)
	assert.True(t, ok)
	assert.Equal(t, "maybe-valid", value)
}

func TestAddCoins(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.AddCoins(ctx, 5, "click")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.SignUp(ctx, "dave", "dave@example.com", "")
	require.NoError(t, err)

	balance, err := c.AddCoins(ctx, 5, "click")
	require.NoError(t, err)
	assert.Equal(t, 5, balance)

	balance, err = c.AddCoin(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, balance)

	// a single click uses the per-coin endpoint
	balance, err = c.NotifyCoinsEarned(ctx, 1, "click")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
	assert.Len(t, b.ids(endpointAddCoin), 2)

	balance, err = c.NotifyCoinsEarned(ctx, 4, "daily")
	require.NoError(t, err)
	assert.Equal(t, 11, balance)
	assert.Equal(t, 11, c.User().Coins)

	_, err = c.AddCoins(ctx, 0, "click")
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))

	_, err = c.AddCoins(ctx, 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taskType is required")
}

func TestRetryReusesRequestID(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.SignUp(ctx, "erin", "erin@example.com", "")
	require.NoError(t, err)

	b.mu.Lock()
	b.failNext[endpointAddCoins] = 2
	b.failStatus[endpointAddCoins] = http.StatusTooManyRequests
	b.mu.Unlock()

	balance, err := c.AddCoins(ctx, 3, "click")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)

	ids := b.ids(endpointAddCoins)
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err)
}

func TestRetryGivesUp(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.SignUp(ctx, "frank", "frank@example.com", "")
	require.NoError(t, err)

	b.mu.Lock()
	b.failNext[endpointAddCoins] = 10
	b.failStatus[endpointAddCoins] = http.StatusTooManyRequests
	b.mu.Unlock()

	_, err = c.AddCoins(ctx, 1, "click")
	require.Error(t, err)
	assert.True(t, errs.IsRetryableError(err))
	assert.Len(t, b.ids(endpointAddCoins), 3)
}

func TestCoinCreditsAreNotResentAfterServerError(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.SignUp(ctx, "hank", "hank@example.com", "")
	require.NoError(t, err)

	b.mu.Lock()
	b.failNext[endpointAddCoins] = 1
	b.failNext[endpointAddCoin] = 1
	b.mu.Unlock()

	_, err = c.AddCoins(ctx, 5, "click")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeServerError))
	assert.Len(t, b.ids(endpointAddCoins), 1)

	_, err = c.AddCoin(ctx)
	require.Error(t, err)
	assert.Len(t, b.ids(endpointAddCoin), 1)

	// other calls still retry server errors
	b.mu.Lock()
	b.failNext[endpointSignIn] = 1
	b.mu.Unlock()
	_, err = c.SignIn(ctx, "hank")
	require.NoError(t, err)
	assert.Len(t, b.ids(endpointSignIn), 2)
}

func TestSignOutClearsLocallyOnFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	secrets := kvstore.NewMemoryStore()
	c := newTestClient(t, b, secrets)

	_, err := c.SignUp(ctx, "gina", "gina@example.com", "")
	require.NoError(t, err)

	b.mu.Lock()
	b.failNext[endpointSignOut] = 10
	b.mu.Unlock()

	assert.Error(t, c.SignOut(ctx))
	assert.False(t, c.IsAuthenticated())
	_, ok, _ := secrets.Get(TokenKey)
	assert.False(t, ok)
}
