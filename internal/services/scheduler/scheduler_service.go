package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// DefaultPollInterval is how often Run checks for due entries
const DefaultPollInterval = 60 * time.Second

// jobEntry represents a registered daily job
type jobEntry struct {
	name      string
	at        string
	spec      string
	schedule  cron.Schedule
	handler   interfaces.JobHandler
	next      time.Time
	lastRun   *time.Time
	isRunning bool
	lastError string
}

// Service implements SchedulerService as a single-goroutine polling loop.
// Due entries run synchronously inside RunPending, so runs never overlap.
type Service struct {
	logger   arbor.ILogger
	now      func() time.Time
	interval time.Duration
	jobMu    sync.Mutex // Protects jobs map
	runMu    sync.Mutex // Serialises RunPending
	jobs     map[string]*jobEntry
}

// Option configures the scheduler
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPollInterval sets how often Run polls for due entries
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		logger:   logger,
		now:      time.Now,
		interval: DefaultPollInterval,
		jobs:     make(map[string]*jobEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterDaily binds handler to a daily HH:MM trigger
func (s *Service) RegisterDaily(name string, at string, handler interfaces.JobHandler) error {
	if handler == nil {
		return fmt.Errorf("job %s has no handler", name)
	}

	schedule, spec, err := common.ParseDailySchedule(at)
	if err != nil {
		return err
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:     name,
		at:       at,
		spec:     spec,
		schedule: schedule,
		handler:  handler,
		next:     schedule.Next(s.now()),
	}
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("at", at).
		Str("next_run", entry.next.Format("2006-01-02 15:04:05")).
		Msg("Job registered")

	return nil
}

// RunPending fires every entry whose next fire time has passed.
// The next fire time is advanced before the handler runs, so an entry fires at most once per matching minute.
func (s *Service) RunPending(ctx context.Context) int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	now := s.now()

	s.jobMu.Lock()
	due := make([]*jobEntry, 0, len(s.jobs))
	for _, entry := range s.jobs {
		if !now.Before(entry.next) {
			entry.next = entry.schedule.Next(now)
			due = append(due, entry)
		}
	}
	s.jobMu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })

	for _, entry := range due {
		if ctx.Err() != nil {
			break
		}
		s.executeJob(ctx, entry)
	}
	return len(due)
}

// Run polls for due entries every poll interval until ctx is cancelled
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("poll_interval", s.interval).Msg("Scheduler started")

	for {
		s.RunPending(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) executeJob(ctx context.Context, entry *jobEntry) {
	s.jobMu.Lock()
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	start := s.now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error().
				Str("job_name", entry.name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job execution")
		}

		finished := s.now()
		s.jobMu.Lock()
		entry.isRunning = false
		entry.lastRun = &finished
		if err != nil {
			entry.lastError = err.Error()
		} else {
			entry.lastError = ""
		}
		next := entry.next
		s.jobMu.Unlock()

		if err != nil {
			s.logger.Error().
				Str("job_name", entry.name).
				Err(err).
				Dur("duration", finished.Sub(start)).
				Msg("Job execution failed")
			return
		}
		s.logger.Info().
			Str("job_name", entry.name).
			Dur("duration", finished.Sub(start)).
			Str("next_run", next.Format("2006-01-02 15:04:05")).
			Msg("Job execution completed")
	}()

	s.logger.Debug().Str("job_name", entry.name).Msg("Job execution started")
	err = handler(ctx)
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return entry.status(), nil
}

// GetAllJobStatuses returns all job statuses
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = entry.status()
	}
	return statuses
}

// status snapshots the entry; caller holds jobMu
func (e *jobEntry) status() *interfaces.JobStatus {
	var lastRun *time.Time
	if e.lastRun != nil {
		t := *e.lastRun
		lastRun = &t
	}
	return &interfaces.JobStatus{
		Name:      e.name,
		At:        e.at,
		Schedule:  e.spec,
		LastRun:   lastRun,
		NextRun:   e.next,
		IsRunning: e.isRunning,
		LastError: e.lastError,
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)
