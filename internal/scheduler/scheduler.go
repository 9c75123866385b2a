// Package scheduler drives the recurring search jobs. One job exists per
// enabled (marketplace instance, item) pair; jobs on different instances run
// independently while jobs sharing an instance are serialized unless the
// instance allows parallel searches. A failing job backs off exponentially
// without delaying or crashing any other job.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calebh/marketscout/internal/logger"
)

// Runner executes one search tick for a job.
type Runner interface {
	// RunSearch performs one search pass.
	// Parameters:
	//   - ctx: canceled on shutdown; implementations stop at the next
	//     listing boundary.
	//   - marketplace: marketplace instance name.
	//   - item: item spec name.
	// Returns:
	//   - error: non-nil puts the job into backoff.
	RunSearch(ctx context.Context, marketplace, item string) error
}

// Config holds scheduler tuning.
type Config struct {
	// MaxConcurrency bounds the number of marketplace sessions in flight.
	MaxConcurrency int
	// BackoffMax caps the delay a failing job can reach.
	BackoffMax time.Duration
}

// Scheduler owns the job table and the cron timing wheel.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *logger.Logger
	cfg    Config

	sem         chan struct{}
	marketLocks map[string]*sync.Mutex

	mu   sync.Mutex
	jobs map[string]*Job

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a Scheduler.
// Parameters:
//   - runner: tick executor.
//   - cfg: scheduler tuning; zero values get defaults.
//   - log: logger; nil uses the default.
// Returns:
//   - *Scheduler: scheduler ready to accept jobs.
func New(runner Runner, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Hour
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Scheduler{
		cron:        cron.New(),
		runner:      runner,
		log:         log,
		cfg:         cfg,
		sem:         make(chan struct{}, cfg.MaxConcurrency),
		marketLocks: make(map[string]*sync.Mutex),
		jobs:        make(map[string]*Job),
	}
}

// Add registers a job and schedules it at its base interval.
// Parameters:
//   - job: job to register; Interval must be positive.
// Returns:
//   - error: non-nil on duplicate or invalid jobs.
func (s *Scheduler) Add(job *Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.ID())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID()]; exists {
		return fmt.Errorf("job %s already scheduled", job.ID())
	}
	if _, ok := s.marketLocks[job.Marketplace]; !ok {
		s.marketLocks[job.Marketplace] = &sync.Mutex{}
	}
	job.state = StateScheduled
	job.currentDelay = job.Interval
	job.entryID = s.cron.Schedule(cron.Every(job.Interval), cron.FuncJob(func() { s.fire(job) }))
	s.jobs[job.ID()] = job
	return nil
}

// Remove unschedules a job. Removal is the only terminal transition; it is
// used when an item is disabled or a marketplace is removed on reload.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	s.cron.Remove(job.entryID)
	job.mu.Lock()
	job.state = StateRemoved
	job.mu.Unlock()
	delete(s.jobs, id)
}

// Start begins ticking. Every job also gets one immediate tick so the first
// results do not wait for a full interval.
// Parameters:
//   - ctx: parent context; canceling it stops the scheduler.
// Returns: none.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	s.cron.Start()
	s.log.WithField(logger.FieldCount, len(jobs)).Info("Scheduler started")

	for _, job := range jobs {
		j := job
		go s.fire(j)
	}
}

// Stop shuts the scheduler down. In-flight ticks observe the canceled context
// and stop at their next listing boundary; Stop returns once they have all
// finished. Completed jobs are not rescheduled afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// Snapshot returns the current status of every job, sorted by ID.
func (s *Scheduler) Snapshot() []Status {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	statuses := make([]Status, 0, len(jobs))
	for _, job := range jobs {
		statuses = append(statuses, job.status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// fire runs one tick for a job. It is invoked by the cron wheel and by the
// startup kick; overlapping fires for the same job are dropped.
func (s *Scheduler) fire(job *Job) {
	// register on the wait group while still holding the scheduler lock, so a
	// concurrent Stop cannot pass wg.Wait between the started check and Add
	s.mu.Lock()
	ctx := s.ctx
	if !s.started || ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	job.mu.Lock()
	if job.busy || job.state == StateRemoved {
		job.mu.Unlock()
		return
	}
	job.busy = true
	job.mu.Unlock()
	defer func() {
		job.mu.Lock()
		job.busy = false
		job.mu.Unlock()
	}()

	// one in-flight search per marketplace session unless the instance
	// explicitly allows parallel jobs. The instance lock is taken before a
	// pool slot so a job queued behind a slow instance holds no slot and
	// cannot starve jobs on healthy instances.
	if !job.AllowParallel {
		s.mu.Lock()
		lock := s.marketLocks[job.Marketplace]
		s.mu.Unlock()
		lock.Lock()
		defer lock.Unlock()
	}
	if ctx.Err() != nil {
		return
	}

	// bounded worker pool
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()
	if ctx.Err() != nil {
		return
	}

	job.mu.Lock()
	job.state = StateRunning
	job.lastRun = time.Now()
	job.mu.Unlock()

	err := s.runner.RunSearch(ctx, job.Marketplace, job.Item)

	switch {
	case err == nil:
		s.onSuccess(job)
	case ctx.Err() != nil:
		// shutdown interrupted the tick; leave the job as it was
		job.mu.Lock()
		job.state = StateScheduled
		job.mu.Unlock()
	default:
		s.onFailure(job, err)
	}
}

func (s *Scheduler) onSuccess(job *Job) {
	job.mu.Lock()
	hadBackoff := job.currentDelay != job.Interval
	job.failures = 0
	job.lastError = ""
	job.state = StateScheduled
	job.mu.Unlock()

	// one success resets the cadence to the base interval
	if hadBackoff {
		s.reschedule(job, job.Interval)
	}
}

func (s *Scheduler) onFailure(job *Job, err error) {
	job.mu.Lock()
	job.failures++
	job.lastError = err.Error()
	job.state = StateBackoff
	failures := job.failures
	job.mu.Unlock()

	delay := backoffDelay(job.Interval, failures, s.cfg.BackoffMax)
	s.log.WithFields(logger.Fields{
		logger.FieldJob: job.ID(),
		"failures":      failures,
		"delay":         delay.String(),
	}).WithError(err).Warn("Search failed, backing off")
	s.reschedule(job, delay)
}

// reschedule swaps the job's cron entry for one with the given delay.
func (s *Scheduler) reschedule(job *Job, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.mu.Lock()
	if job.state == StateRemoved {
		job.mu.Unlock()
		return
	}
	oldEntry := job.entryID
	job.currentDelay = delay
	job.mu.Unlock()

	s.cron.Remove(oldEntry)
	newEntry := s.cron.Schedule(cron.Every(delay), cron.FuncJob(func() { s.fire(job) }))
	job.mu.Lock()
	job.entryID = newEntry
	job.mu.Unlock()
}
