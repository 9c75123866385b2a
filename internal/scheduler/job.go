package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// State is the lifecycle state of a job.
type State int

const (
	// StateScheduled means the job is waiting for its next tick.
	StateScheduled State = iota
	// StateRunning means a tick is in flight.
	StateRunning
	// StateBackoff means the job failed and is waiting out a backoff delay.
	StateBackoff
	// StateRemoved is terminal; the job was explicitly removed.
	StateRemoved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateRemoved:
		return "removed"
	}
	return "unknown"
}

// Job is one recurring scheduled unit: one search for one item against one
// marketplace instance.
type Job struct {
	Marketplace   string // marketplace instance name
	Item          string
	Interval      time.Duration
	AllowParallel bool // run concurrently with other jobs on the same instance

	mu           sync.Mutex
	state        State
	failures     int
	currentDelay time.Duration
	entryID      cron.EntryID
	lastRun      time.Time
	lastError    string
	busy         bool
}

// ID returns the job's identifier, unique per (marketplace, item) pair.
func (j *Job) ID() string {
	return j.Marketplace + "/" + j.Item
}

// Status is a point-in-time snapshot of a job for the ops API.
type Status struct {
	ID          string        `json:"id"`
	Marketplace string        `json:"marketplace"`
	Item        string        `json:"item"`
	State       string        `json:"state"`
	Interval    time.Duration `json:"interval"`
	Delay       time.Duration `json:"current_delay"`
	Failures    int           `json:"consecutive_failures"`
	LastRun     time.Time     `json:"last_run,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}

func (j *Job) status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		ID:          j.ID(),
		Marketplace: j.Marketplace,
		Item:        j.Item,
		State:       j.state.String(),
		Interval:    j.Interval,
		Delay:       j.currentDelay,
		Failures:    j.failures,
		LastRun:     j.lastRun,
		LastError:   j.lastError,
	}
}

// backoffDelay computes the delay before the next attempt after the given
// number of consecutive failures. The delay doubles per failure, starting
// from the base interval, and never exceeds max.
func backoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
