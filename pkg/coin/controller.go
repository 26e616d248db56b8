package coin

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"sync"
	"time"

	"coinclicker/pkg/config"
	"coinclicker/pkg/kvstore"
	"coinclicker/pkg/logger"
)

// Options configures a Controller. Zero values fall back to the defaults.
type Options struct {
	MaxProgress  int
	Cooldown     time.Duration
	TickInterval time.Duration
	Clock        Clock
	Logger       logger.Logger
}

// OptionsFromConfig maps the coin section of the configuration onto Options
func OptionsFromConfig(cfg config.CoinConfig) Options {
	return Options{
		MaxProgress:  cfg.EffectiveMaxProgress(),
		Cooldown:     cfg.Cooldown,
		TickInterval: cfg.TickInterval,
	}
}

// Controller owns the coin button progress counter and its refill cooldown.
// All methods are safe for concurrent use.
type Controller struct {
	store        kvstore.Store
	clock        Clock
	log          logger.Logger
	maxProgress  int
	cooldown     time.Duration
	tickInterval time.Duration

	mu              sync.Mutex
	progress        int
	refilling       bool
	refillStartedAt time.Time
	showAlert       bool

	// generation is bumped whenever the refill task is replaced or cancelled;
	// ticks carrying an older generation are ignored.
	generation uint64
	refill     *refillTask

	storageDegraded bool
	events          []chan Event
	closed          bool
}

type refillTask struct {
	ticker Ticker
	done   chan struct{}
}

// NewController creates a controller persisting to store. Call Initialize
// before use to restore any saved state.
func NewController(store kvstore.Store, opts Options) *Controller {
	if opts.MaxProgress <= 0 {
		opts.MaxProgress = DefaultMaxProgress
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if store == nil {
		store = kvstore.NewMemoryStore()
	}

	return &Controller{
		store:        store,
		clock:        opts.Clock,
		log:          opts.Logger.WithField("component", "coin"),
		maxProgress:  opts.MaxProgress,
		cooldown:     opts.Cooldown,
		tickInterval: opts.TickInterval,
	}
}

// Subscribe registers a new observer channel. Events are dropped for
// subscribers whose buffer is full.
func (c *Controller) Subscribe(buffer int) <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, buffer)
	if c.closed {
		close(ch)
		return ch
	}
	c.events = append(c.events, ch)
	return ch
}

// Initialize restores the persisted state. Malformed values fall back to
// defaults, a cooldown that ended while the process was not running is
// replaced by the reset state, and an unfinished cooldown resumes with its
// remaining duration.
func (c *Controller) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRefillLocked()
	now := c.clock.Now()

	progress := c.readInt(KeyProgress, 0)
	if progress < 0 {
		c.invalid(KeyProgress, strconv.Itoa(progress), "negative progress")
		progress = 0
	}
	if progress > c.maxProgress {
		c.invalid(KeyProgress, strconv.Itoa(progress), "progress above maximum")
		progress = 0
	}
	refilling := c.readBool(KeyIsRefilling, false)
	showAlert := c.readBool(KeyShowAlert, refilling)

	if refilling {
		startedAt, ok := c.readTime(KeyRefillStartTime)
		if !ok {
			c.resetLocked(EventRestored)
			return
		}
		if startedAt.After(now) {
			startedAt = now
		}
		if now.Sub(startedAt) >= c.cooldown {
			c.log.WithError(ErrCooldownExpired).DebugWithFields("applying reset", map[string]interface{}{
				"refill_started_at": startedAt.UnixMilli(),
			})
			c.resetLocked(EventRestored)
			return
		}

		c.refilling = true
		c.refillStartedAt = startedAt
		c.showAlert = showAlert
		c.progress = c.drainProgress(c.remainingLocked(now))
		c.persistAllLocked()
		c.startRefillLocked()

		c.log.InfoWithFields("resumed cooldown", map[string]interface{}{
			"progress":     c.progress,
			"remaining_ms": c.remainingLocked(now).Milliseconds(),
		})
		c.emitLocked(EventRestored)
		return
	}

	c.progress = progress
	c.showAlert = showAlert
	c.refilling = false
	c.refillStartedAt = time.Time{}

	if c.progress >= c.maxProgress {
		// saved at the threshold without a cooldown, so begin one now
		c.enterCooldownLocked(now)
		return
	}

	c.log.DebugWithFields("restored progress", map[string]interface{}{
		"progress":     c.progress,
		"max_progress": c.maxProgress,
	})
	c.emitLocked(EventRestored)
}

// Increment adds one unit of progress. It returns false and leaves the state
// untouched while refilling or when progress is already at the maximum.
func (c *Controller) Increment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.settleLocked(now)

	if c.refilling || c.progress >= c.maxProgress {
		return false
	}

	c.progress++
	c.persistLocked(KeyProgress, strconv.Itoa(c.progress))

	if c.progress == c.maxProgress {
		c.enterCooldownLocked(now)
		return true
	}

	c.emitLocked(EventProgress)
	return true
}

// StartRefill starts the cooldown so that it ends after remaining, replacing
// any refill already running. A non-positive remaining, or one longer than
// the cooldown, runs the full cooldown.
func (c *Controller) StartRefill(remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remaining <= 0 || remaining > c.cooldown {
		remaining = c.cooldown
	}

	now := c.clock.Now()
	c.refilling = true
	c.refillStartedAt = now.Add(remaining - c.cooldown)
	c.progress = c.drainProgress(remaining)
	c.persistAllLocked()
	c.startRefillLocked()
	c.emitLocked(EventProgress)
}

// ResetProgress cancels any running refill and returns to idle with zero
// progress. Calling it repeatedly yields the same state.
func (c *Controller) ResetProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked(EventReset)
}

// DismissAlert hides the cooldown alert without touching the cooldown
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.showAlert {
		return
	}
	c.showAlert = false
	c.persistLocked(KeyShowAlert, strconv.FormatBool(false))
	c.emitLocked(EventAlertDismissed)
}

// Snapshot returns the current state with any due refill progress applied
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.settleLocked(now)
	return c.stateLocked(now)
}

// Close stops the refill ticker and closes all subscriber channels. The
// persisted state is left as is so the next Initialize can resume it.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelRefillLocked()

	for _, ch := range c.events {
		close(ch)
	}
	c.events = nil
}

func (c *Controller) enterCooldownLocked(now time.Time) {
	c.progress = c.maxProgress
	c.refilling = true
	c.showAlert = true
	c.refillStartedAt = now
	c.persistAllLocked()
	c.startRefillLocked()

	c.log.InfoWithFields("cooldown started", map[string]interface{}{
		"max_progress": c.maxProgress,
		"cooldown_ms":  c.cooldown.Milliseconds(),
	})
	c.emitLocked(EventCooldownStarted)
}

func (c *Controller) resetLocked(eventType EventType) {
	c.cancelRefillLocked()

	c.progress = 0
	c.refilling = false
	c.showAlert = false
	c.refillStartedAt = time.Time{}
	c.persistAllLocked()

	c.emitLocked(eventType)
}

// settleLocked applies refill progress due at now, finishing the cooldown if
// it has run its course.
func (c *Controller) settleLocked(now time.Time) {
	if !c.refilling {
		return
	}

	remaining := c.remainingLocked(now)
	if remaining <= 0 {
		c.log.Info("cooldown finished")
		c.resetLocked(EventCooldownFinished)
		return
	}

	if p := c.drainProgress(remaining); p != c.progress {
		c.progress = p
		c.persistLocked(KeyProgress, strconv.Itoa(p))
		c.emitLocked(EventProgress)
	}
}

func (c *Controller) remainingLocked(now time.Time) time.Duration {
	if !c.refilling {
		return 0
	}
	remaining := c.cooldown - now.Sub(c.refillStartedAt)
	if remaining < 0 {
		return 0
	}
	if remaining > c.cooldown {
		return c.cooldown
	}
	return remaining
}

// drainProgress maps the remaining cooldown onto progress: the maximum when
// the cooldown starts, zero when it ends. The product of maximum and
// remaining nanoseconds is taken in 128 bits.
func (c *Controller) drainProgress(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	if remaining >= c.cooldown {
		return c.maxProgress
	}

	cd := uint64(c.cooldown)
	hi, lo := bits.Mul64(uint64(c.maxProgress), uint64(remaining))
	lo, carry := bits.Add64(lo, cd-1, 0)
	hi += carry
	// quotient <= maxProgress, so hi < cd and Div64 cannot overflow
	p, _ := bits.Div64(hi, lo, cd)

	if p > uint64(c.maxProgress) {
		return c.maxProgress
	}
	return int(p)
}

func (c *Controller) stateLocked(now time.Time) State {
	return State{
		Progress:        c.progress,
		MaxProgress:     c.maxProgress,
		IsRefilling:     c.refilling,
		RefillStartedAt: c.refillStartedAt,
		ShowAlert:       c.showAlert,
		Remaining:       c.remainingLocked(now),
		Cooldown:        c.cooldown,
	}
}

func (c *Controller) startRefillLocked() {
	c.cancelRefillLocked()
	if c.closed {
		return
	}

	task := &refillTask{
		ticker: c.clock.NewTicker(c.tickInterval),
		done:   make(chan struct{}),
	}
	c.refill = task
	go c.runRefill(c.generation, task)
}

func (c *Controller) cancelRefillLocked() {
	c.generation++
	if c.refill == nil {
		return
	}
	c.refill.ticker.Stop()
	close(c.refill.done)
	c.refill = nil
}

func (c *Controller) runRefill(generation uint64, task *refillTask) {
	for {
		select {
		case <-task.done:
			return
		case <-task.ticker.C():
			if !c.tick(generation) {
				return
			}
		}
	}
}

// tick reports whether the refill task that produced it should keep running
func (c *Controller) tick(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || !c.refilling {
		return false
	}
	c.settleLocked(c.clock.Now())
	return c.refilling
}

func (c *Controller) emitLocked(eventType EventType) {
	event := Event{Type: eventType, State: c.stateLocked(c.clock.Now())}
	for _, ch := range c.events {
		select {
		case ch <- event:
		default:
		}
	}
}

func (c *Controller) persistAllLocked() {
	c.persistLocked(KeyProgress, strconv.Itoa(c.progress))
	c.persistLocked(KeyIsRefilling, strconv.FormatBool(c.refilling))
	c.persistLocked(KeyShowAlert, strconv.FormatBool(c.showAlert))
	if c.refilling {
		c.persistLocked(KeyRefillStartTime, strconv.FormatInt(c.refillStartedAt.UnixMilli(), 10))
	} else {
		c.removeLocked(KeyRefillStartTime)
	}
}

func (c *Controller) persistLocked(key, value string) {
	c.storageResult(key, c.store.Set(key, value))
}

func (c *Controller) removeLocked(key string) {
	c.storageResult(key, c.store.Remove(key))
}

// storageResult logs the first failure of a run of failures and the
// recovery, so a broken store does not flood the log on every tick.
func (c *Controller) storageResult(key string, err error) {
	if err == nil {
		if c.storageDegraded {
			c.storageDegraded = false
			c.log.Info("coin state storage recovered")
		}
		return
	}
	if c.storageDegraded {
		return
	}
	c.storageDegraded = true
	c.log.WithError(fmt.Errorf("%w: %v", ErrStorageUnavailable, err)).
		WithField("key", key).
		Warn("failed to persist coin state, continuing in memory")
}

func (c *Controller) readString(key string) (string, bool) {
	value, ok, err := c.store.Get(key)
	if err != nil {
		c.log.WithError(fmt.Errorf("%w: %v", ErrStorageUnavailable, err)).
			WithField("key", key).
			Warn("failed to read coin state")
		return "", false
	}
	return strings.TrimSpace(value), ok
}

func (c *Controller) readInt(key string, def int) int {
	raw, ok := c.readString(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.invalid(key, raw, "not an integer")
		return def
	}
	return n
}

func (c *Controller) readBool(key string, def bool) bool {
	raw, ok := c.readString(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.invalid(key, raw, "not a boolean")
		return def
	}
	return b
}

func (c *Controller) readTime(key string) (time.Time, bool) {
	raw, ok := c.readString(key)
	if !ok {
		c.invalid(key, "", "missing while refilling")
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		c.invalid(key, raw, "not a unix millisecond timestamp")
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (c *Controller) invalid(key, raw, reason string) {
	c.log.WithError(ErrInvalidPersistedState).WithFields(map[string]interface{}{
		"key":    key,
		"value":  raw,
		"reason": reason,
	}).Warn("ignoring persisted value")
}
