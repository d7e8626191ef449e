package realm

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/dop251/goja"
)

// ErrStopped is returned when work is scheduled on a closed realm.
var ErrStopped = errors.New("realm stopped")

// Config defines realm limits.
type Config struct {
	ExecTimeout    time.Duration // Per-mod execution timeout
	RetryInterval  time.Duration // Delay between attempts while the api is missing
	MaxRetries     int           // Attempts before giving up on a mod
	RequestTimeout time.Duration // Deadline for page requests
	ConsoleLimit   int           // Retained console entries
}

// DefaultConfig returns default realm limits.
func DefaultConfig() Config {
	return Config{
		ExecTimeout:    5 * time.Second,
		RetryInterval:  250 * time.Millisecond,
		MaxRetries:     20,
		RequestTimeout: 10 * time.Second,
		ConsoleLimit:   500,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = def.ExecTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ConsoleLimit <= 0 {
		c.ConsoleLimit = def.ConsoleLimit
	}
	return c
}

// Outcome describes what happened to an execution attempt.
type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
)

// ExecutedMod is a snapshot of a mod that ran successfully.
type ExecutedMod struct {
	ID      types.ModIdentifier
	Exports interface{}
	Runs    int
	LastRun time.Time
}

// LogEntry represents console output
type LogEntry struct {
	Mod     string    // mod id, or "page" outside executions
	Level   string    // log, info, warn, error, debug
	Message string    // Log message
	Time    time.Time // Timestamp
}

type executedMod struct {
	id      types.ModIdentifier
	context *goja.Object
	exports goja.Value
	runs    int
	lastRun time.Time
}

type execJob struct {
	id      types.ModIdentifier
	source  string
	config  types.Config
	force   bool
	attempt int
}

type button struct {
	label   string
	onClick goja.Callable
	owner   string
}
