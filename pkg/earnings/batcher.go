package earnings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coinclicker/pkg/config"
	errs "coinclicker/pkg/errors"
	"coinclicker/pkg/logger"
)

// TaskClick is the task type reported for coin button clicks
const TaskClick = "click"

// ErrFlushFailed wraps the notifier error when a batch could not be reported.
// The units stay pending and the next flush sends them again.
var ErrFlushFailed = errors.New("failed to report earned coins")

// Notifier reports earned coins and returns the new balance
type Notifier interface {
	NotifyCoinsEarned(ctx context.Context, amount int, taskType string) (int, error)
}

// Result describes one completed flush
type Result struct {
	Sent    int
	Balance int
	Err     error
}

// Options configures a Batcher
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	TaskType      string
	Logger        logger.Logger
}

// OptionsFromConfig maps the earnings config section onto Options
func OptionsFromConfig(cfg config.EarningsConfig, log logger.Logger) Options {
	return Options{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		TaskType:      TaskClick,
		Logger:        log,
	}
}

// Batcher accumulates locally earned units and reports them in batches.
// A failed report never rolls anything back; the units wait for the next
// flush.
type Batcher struct {
	notifier      Notifier
	batchSize     int
	flushInterval time.Duration
	taskType      string
	logger        logger.Logger

	mu       sync.Mutex
	pending  int
	balance  int
	lastErr  error
	inFlight bool

	flushMu sync.Mutex
	trigger chan struct{}
	results chan Result

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
}

// NewBatcher creates a Batcher reporting through n
func NewBatcher(n Notifier, opts Options) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.TaskType == "" {
		opts.TaskType = TaskClick
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	return &Batcher{
		notifier:      n,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		taskType:      opts.TaskType,
		logger:        opts.Logger.WithField("component", "earnings"),
		trigger:       make(chan struct{}, 1),
		results:       make(chan Result, 16),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Record adds units to the pending batch and wakes the flush loop once the
// batch is full.
func (b *Batcher) Record(units int) {
	if units <= 0 {
		return
	}

	b.mu.Lock()
	b.pending += units
	full := b.pending >= b.batchSize
	b.mu.Unlock()

	if full {
		select {
		case b.trigger <- struct{}{}:
		default:
		}
	}
}

// Pending returns the units not yet reported
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Balance returns the last balance the backend reported
func (b *Batcher) Balance() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

// SetBalance seeds the balance, e.g. from the restored user
func (b *Batcher) SetBalance(balance int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = balance
}

// LastError returns the error of the most recent flush, or nil
func (b *Batcher) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// InFlight reports whether a flush is currently talking to the backend
func (b *Batcher) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

// Results delivers the outcome of every flush that sent something. Results
// are dropped when nobody drains the channel.
func (b *Batcher) Results() <-chan Result {
	return b.results
}

// Flush reports all pending units now. It returns the new balance.
func (b *Batcher) Flush(ctx context.Context) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	amount := b.pending
	if amount == 0 {
		balance := b.balance
		b.mu.Unlock()
		return balance, nil
	}
	b.pending = 0
	b.inFlight = true
	b.mu.Unlock()

	balance, err := b.notifier.NotifyCoinsEarned(ctx, amount, b.taskType)

	b.mu.Lock()
	b.inFlight = false
	if err != nil {
		b.pending += amount
		b.lastErr = fmt.Errorf("%w: %w", ErrFlushFailed, err)
		err = b.lastErr
		balance = b.balance
	} else {
		b.balance = balance
		b.lastErr = nil
	}
	pending := b.pending
	b.mu.Unlock()

	result := Result{Balance: balance, Err: err}
	if err != nil {
		b.logger.WithError(err).WarnWithFields("earnings flush failed", map[string]interface{}{
			"amount":    amount,
			"pending":   pending,
			"retryable": errs.IsRetryableError(err),
		})
	} else {
		result.Sent = amount
		b.logger.DebugWithFields("earnings flushed", map[string]interface{}{
			"amount":  amount,
			"balance": balance,
		})
	}

	select {
	case b.results <- result:
	default:
	}
	return balance, err
}

// Start runs the background flush loop until ctx is done or Stop is called
func (b *Batcher) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			_, _ = b.Flush(ctx)
		case <-b.trigger:
			_, _ = b.Flush(ctx)
		}
	}
}

// Stop ends the flush loop and makes a final attempt to report pending units
func (b *Batcher) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stopCh) })

	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		select {
		case <-b.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := b.Flush(ctx)
	return err
}
