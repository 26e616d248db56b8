package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coinclicker/pkg/earnings"
	"coinclicker/pkg/kvstore"
	"coinclicker/pkg/logger"
)

// Task types understood by the backend
const (
	TypeDaily  = "daily"
	TypeShare  = "share"
	TypeFollow = "follow"
)

// Errors
var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrTaskUnavailable = errors.New("task not available yet")
)

// Task is an entry of the task catalogue
type Task struct {
	Type        string
	Title       string
	Description string
	Reward      int
	// Repeat is how long until the task can be claimed again; zero means once
	Repeat time.Duration
}

// Catalogue lists the tasks in display order
var Catalogue = []Task{
	{TypeDaily, "Daily check-in", "Come back every day to collect a bonus.", 50, 24 * time.Hour},
	{TypeShare, "Share your referral code", "Share your code with a friend.", 20, 0},
	{TypeFollow, "Follow us", "Follow the project for updates.", 10, 0},
}

// Lookup returns the catalogue entry for taskType
func Lookup(taskType string) (Task, bool) {
	taskType = strings.ToLower(strings.TrimSpace(taskType))
	for _, t := range Catalogue {
		if t.Type == taskType {
			return t, true
		}
	}
	return Task{}, false
}

// Status is a task together with its claim state
type Status struct {
	Task
	Available     bool
	LastClaimed   time.Time
	NextAvailable time.Time
}

// Service claims task rewards and remembers when they were claimed
type Service struct {
	store    kvstore.Store
	notifier earnings.Notifier
	now      func() time.Time
	logger   logger.Logger
}

// NewService creates a Service recording claims in store
func NewService(store kvstore.Store, notifier earnings.Notifier, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		logger:   log.WithField("component", "tasks"),
	}
}

// List returns every task with its current availability
func (s *Service) List() []Status {
	now := s.now()
	out := make([]Status, 0, len(Catalogue))
	for _, t := range Catalogue {
		out = append(out, s.status(t, now))
	}
	return out
}

// Complete claims the reward for taskType and returns the new balance
func (s *Service) Complete(ctx context.Context, taskType string) (int, error) {
	task, ok := Lookup(taskType)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTask, taskType)
	}

	st := s.status(task, s.now())
	if !st.Available {
		if st.NextAvailable.IsZero() {
			return 0, fmt.Errorf("%w: %s already claimed", ErrTaskUnavailable, task.Type)
		}
		return 0, fmt.Errorf("%w: %s available again at %s", ErrTaskUnavailable, task.Type, st.NextAvailable.Format(time.Kitchen))
	}

	balance, err := s.notifier.NotifyCoinsEarned(ctx, task.Reward, task.Type)
	if err != nil {
		return 0, err
	}

	if err := s.store.Set(claimKey(task.Type), strconv.FormatInt(s.now().UnixMilli(), 10)); err != nil {
		s.logger.WithError(err).WithField("task", task.Type).Warn("failed to record task claim")
	}

	s.logger.InfoWithFields("task completed", map[string]interface{}{
		"task":    task.Type,
		"reward":  task.Reward,
		"balance": balance,
	})
	return balance, nil
}

func (s *Service) status(t Task, now time.Time) Status {
	st := Status{Task: t, Available: true}

	raw, ok, err := s.store.Get(claimKey(t.Type))
	if err != nil {
		s.logger.WithError(err).WithField("task", t.Type).Warn("failed to read task claim")
		return st
	}
	if !ok {
		return st
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return st
	}

	st.LastClaimed = time.UnixMilli(ms)
	if t.Repeat == 0 {
		st.Available = false
		return st
	}
	st.NextAvailable = st.LastClaimed.Add(t.Repeat)
	st.Available = !now.Before(st.NextAvailable)
	return st
}

func claimKey(taskType string) string {
	return "task." + taskType + ".claimedAt"
}
