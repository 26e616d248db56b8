package coin

import (
	"errors"
	"time"
)

// Keys under which the controller persists its state
const (
	KeyProgress        = "coinProgress"
	KeyIsRefilling     = "isRefilling"
	KeyRefillStartTime = "refillStartTime"
	KeyShowAlert       = "showAlert"
)

// Defaults used when the corresponding option is zero
const (
	DefaultCooldown     = 60 * time.Second
	DefaultTickInterval = 100 * time.Millisecond
	DefaultMaxProgress  = 500
)

// Errors. None of these are returned from controller operations; they are
// logged and handled locally.
var (
	ErrStorageUnavailable    = errors.New("coin state storage unavailable")
	ErrInvalidPersistedState = errors.New("invalid persisted coin state")
	ErrCooldownExpired       = errors.New("cooldown already expired")
)

// Phase is the controller's position in the click/cooldown cycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRefilling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRefilling:
		return "refilling"
	default:
		return "unknown"
	}
}

// State is a read-only copy of the controller state
type State struct {
	Progress        int
	MaxProgress     int
	IsRefilling     bool
	RefillStartedAt time.Time // zero unless IsRefilling
	ShowAlert       bool
	Remaining       time.Duration // cooldown left, zero unless IsRefilling
	Cooldown        time.Duration
}

// Phase derives the cycle phase from the state
func (s State) Phase() Phase {
	if s.IsRefilling {
		return PhaseRefilling
	}
	return PhaseIdle
}

// Fraction returns progress as a value between 0 and 1
func (s State) Fraction() float64 {
	if s.MaxProgress <= 0 {
		return 0
	}
	return float64(s.Progress) / float64(s.MaxProgress)
}

// EventType identifies what changed
type EventType int

const (
	EventRestored EventType = iota
	EventProgress
	EventCooldownStarted
	EventCooldownFinished
	EventAlertDismissed
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventRestored:
		return "restored"
	case EventProgress:
		return "progress"
	case EventCooldownStarted:
		return "cooldown_started"
	case EventCooldownFinished:
		return "cooldown_finished"
	case EventAlertDismissed:
		return "alert_dismissed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every state change
type Event struct {
	Type  EventType
	State State
}
