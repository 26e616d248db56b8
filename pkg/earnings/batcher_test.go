package earnings

import (
	"context"
	"sync"
	"testing"
	"time"

	errs "coinclicker/pkg/errors"
	"coinclicker/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu      sync.Mutex
	balance int
	calls   []int
	fail    error
}

func (f *fakeNotifier) NotifyCoinsEarned(ctx context.Context, amount int, taskType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, amount)
	if f.fail != nil {
		return 0, f.fail
	}
	f.balance += amount
	return f.balance, nil
}

func (f *fakeNotifier) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFlushSendsPending(t *testing.T) {
	n := &fakeNotifier{balance: 100}
	b := NewBatcher(n, Options{BatchSize: 50, Logger: logger.NewTestLogger()})

	b.Record(3)
	b.Record(2)
	b.Record(0)
	assert.Equal(t, 5, b.Pending())

	balance, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105, balance)
	assert.Equal(t, 105, b.Balance())
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, []int{5}, n.calls)

	res := <-b.Results()
	assert.Equal(t, Result{Sent: 5, Balance: 105}, res)

	// nothing pending means no call
	_, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n.callCount())
}

func TestFlushFailureKeepsUnitsPending(t *testing.T) {
	n := &fakeNotifier{}
	n.setFail(errs.New(errs.ErrorTypeServerError, 503, "unavailable"))
	b := NewBatcher(n, Options{BatchSize: 50})
	b.SetBalance(40)

	b.Record(4)
	balance, err := b.Flush(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.True(t, errs.IsRetryableError(err))
	assert.Equal(t, 40, balance)
	assert.Equal(t, 4, b.Pending())
	assert.Equal(t, err, b.LastError())

	res := <-b.Results()
	assert.Equal(t, 0, res.Sent)
	assert.Error(t, res.Err)

	// retry after recovery sends everything, including new units
	n.setFail(nil)
	b.Record(1)
	balance, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
	assert.Nil(t, b.LastError())
	assert.Equal(t, []int{4, 5}, n.calls)
}

func TestAutoFlushOnBatchSize(t *testing.T) {
	n := &fakeNotifier{}
	b := NewBatcher(n, Options{BatchSize: 3, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	b.Record(1)
	b.Record(1)
	assert.Never(t, func() bool { return n.callCount() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	b.Record(1)
	assert.Eventually(t, func() bool { return b.Balance() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Stop(context.Background()))
}

func TestAutoFlushOnInterval(t *testing.T) {
	n := &fakeNotifier{}
	b := NewBatcher(n, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	b.Start(ctx)

	b.Record(2)
	assert.Eventually(t, func() bool { return b.Pending() == 0 && b.Balance() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Stop(context.Background()))
}

func TestStopFlushesRemainder(t *testing.T) {
	n := &fakeNotifier{}
	b := NewBatcher(n, Options{BatchSize: 100, FlushInterval: time.Hour})

	b.Start(context.Background())
	b.Record(7)
	require.NoError(t, b.Stop(context.Background()))

	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 7, b.Balance())

	// stopping twice is harmless
	require.NoError(t, b.Stop(context.Background()))
}
