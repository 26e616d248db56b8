package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"coinclicker/pkg/config"
	errs "coinclicker/pkg/errors"
	"coinclicker/pkg/kvstore"
	"coinclicker/pkg/logger"
	"coinclicker/pkg/ratelimit"
	"coinclicker/pkg/retry"

	"github.com/google/uuid"
)

// TokenKey is the secret store key holding the bearer token
const TokenKey = "token"

// RequestIDHeader carries a per-call identifier. Retries of one call reuse
// the same value so the backend can recognise duplicates.
const RequestIDHeader = "X-Request-ID"

// taskClick is the task type of coins earned by pressing the coin
const taskClick = "click"

// Options configures a Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Limiter   ratelimit.Limiter
	Retry     *retry.Config
	Logger    logger.Logger
}

// OptionsFromConfig builds client options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.API.Timeout,
		Limiter:   ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		Retry:     retry.FromConfig(cfg.Retry, log),
		Logger:    log,
	}
}

// Client talks to the coin backend and keeps the signed-in session
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	secrets    kvstore.Store
	logger     logger.Logger

	mu    sync.RWMutex
	token string
	user  *User
}

// New creates a Client storing its token in secrets
func New(secrets kvstore.Store, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
		opts.Retry.Logger = opts.Logger
	}
	if secrets == nil {
		secrets = kvstore.NewMemoryStore()
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		limiter:    opts.Limiter,
		retry:      opts.Retry,
		secrets:    secrets,
		logger:     opts.Logger.WithField("component", "session"),
	}
}

// IsAuthenticated reports whether a session token is held
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// User returns a copy of the signed-in user, or nil
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// SignIn authenticates an existing user
func (c *Client) SignIn(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errs.New(errs.ErrorTypeValidation, http.StatusBadRequest, "Username is required")
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, endpointSignIn, signInRequest{Username: username}, false, &resp); err != nil {
		return nil, err
	}

	c.establish(resp)
	c.logger.WithField("username", resp.Username).Info("signed in")
	return c.User(), nil
}

// SignUp creates an account, optionally crediting a referrer
func (c *Client) SignUp(ctx context.Context, username, email, referralCode string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, errs.New(errs.ErrorTypeValidation, http.StatusBadRequest, "Invalid input. Please check your details.")
	}

	req := signUpRequest{
		Username:     username,
		Email:        email,
		ReferralCode: strings.TrimSpace(referralCode),
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, endpointSignUp, req, false, &resp); err != nil {
		return nil, err
	}

	c.establish(resp)
	c.logger.WithFields(map[string]interface{}{
		"username": resp.Username,
		"referred": req.ReferralCode != "",
	}).Info("signed up")
	return c.User(), nil
}

// SignOut ends the session. The local session is cleared even when the
// backend cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if c.IsAuthenticated() {
		err = c.do(ctx, http.MethodPost, endpointSignOut, nil, true, nil)
		if err != nil {
			c.logger.WithError(err).Warn("sign out request failed, clearing local session anyway")
		}
	}

	c.clear()
	c.logger.Info("signed out")
	return err
}

// Restore loads the stored token and fetches the user it belongs to. A token
// the backend rejects is discarded.
func (c *Client) Restore(ctx context.Context) (*User, error) {
	token, ok, err := c.secrets.Get(TokenKey)
	if err != nil {
		c.logger.WithError(err).Warn("failed to read stored token")
		return nil, ErrNotAuthenticated
	}
	if !ok || token == "" {
		return nil, ErrNotAuthenticated
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	var user User
	if err := c.do(ctx, http.MethodGet, endpointUser, nil, true, &user); err != nil {
		switch errs.TypeOf(err) {
		case errs.ErrorTypeAuth, errs.ErrorTypeNotFound:
			c.logger.WithError(err).Warn("stored token rejected, clearing session")
			c.clear()
			return nil, ErrNotAuthenticated
		default:
			// keep the token; the backend may just be unreachable
			return nil, err
		}
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()

	c.logger.WithField("username", user.Username).Debug("session restored")
	return c.User(), nil
}

// AddCoin credits a single coin and returns the new balance
func (c *Client) AddCoin(ctx context.Context) (int, error) {
	if !c.IsAuthenticated() {
		return 0, ErrNotAuthenticated
	}

	var resp coinsResponse
	if err := c.do(ctx, http.MethodPost, endpointAddCoin, nil, true, &resp); err != nil {
		return 0, err
	}
	c.setCoins(resp.Coins)
	return resp.Coins, nil
}

// AddCoins credits amount coins for taskType and returns the new balance
func (c *Client) AddCoins(ctx context.Context, amount int, taskType string) (int, error) {
	if !c.IsAuthenticated() {
		return 0, ErrNotAuthenticated
	}
	if amount <= 0 {
		return 0, errs.New(errs.ErrorTypeValidation, http.StatusBadRequest, "amount must be positive, got %d", amount)
	}

	var resp coinsResponse
	req := addCoinsRequest{Amount: amount, TaskType: taskType}
	if err := c.do(ctx, http.MethodPost, endpointAddCoins, req, true, &resp); err != nil {
		return 0, err
	}

	c.setCoins(resp.Coins)
	c.logger.DebugWithFields("coins added", map[string]interface{}{
		"amount":    amount,
		"task_type": taskType,
		"balance":   resp.Coins,
	})
	return resp.Coins, nil
}

// NotifyCoinsEarned reports coins earned locally to the backend. A single
// click goes to the per-coin endpoint.
func (c *Client) NotifyCoinsEarned(ctx context.Context, amount int, taskType string) (int, error) {
	if amount == 1 && taskType == taskClick {
		return c.AddCoin(ctx)
	}
	return c.AddCoins(ctx, amount, taskType)
}

func (c *Client) establish(resp authResponse) {
	user := resp.User

	c.mu.Lock()
	c.token = resp.Token
	c.user = &user
	c.mu.Unlock()

	if err := c.secrets.Set(TokenKey, resp.Token); err != nil {
		c.logger.WithError(err).Warn("failed to store session token, session will not survive a restart")
	}
}

func (c *Client) clear() {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.mu.Unlock()

	if err := c.secrets.Remove(TokenKey); err != nil {
		c.logger.WithError(err).Warn("failed to remove stored token")
	}
}

func (c *Client) setCoins(coins int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != nil {
		c.user.Coins = coins
	}
}

// do sends one logical call, retrying per the retry policy. body and out may
// be nil.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, authed bool, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errs.New(errs.ErrorTypeUnknown, 0, "failed to encode request: %v", err)
		}
	}

	requestID := uuid.NewString()
	log := c.logger.WithField("request_id", requestID)

	return retry.Do(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return c.send(ctx, log, method, endpoint, requestID, payload, out, authed)
	}, c.retryFor(endpoint))
}

// retryFor returns the retry policy for endpoint. Crediting coins is not
// idempotent: after a network error or a 5xx the backend may already have
// applied the request, so only a rate limit rejection is sent again.
func (c *Client) retryFor(endpoint string) *retry.Config {
	if endpoint != endpointAddCoin && endpoint != endpointAddCoins {
		return c.retry
	}
	policy := *c.retry
	policy.RetryIf = func(err error) bool {
		return errs.Is(err, errs.ErrorTypeRateLimit)
	}
	return &policy
}

func (c *Client) send(ctx context.Context, log logger.Logger, method, endpoint, requestID string, payload []byte, out interface{}, authed bool) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if authed {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).WithField("endpoint", endpoint).Warn("request failed")
		return errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	logger.LogRequest(log, method, endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(endpoint, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to decode %s response: %v", endpoint, err)
	}
	return nil
}

// String describes the session for status output
func (c *Client) String() string {
	u := c.User()
	if u == nil {
		return "not signed in"
	}
	return fmt.Sprintf("%s (%d coins)", u.Username, u.Coins)
}
