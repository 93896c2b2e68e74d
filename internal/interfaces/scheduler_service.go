package interfaces

import (
	"context"
	"time"
)

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	Name      string
	At        string // Daily wall-clock time, HH:MM
	Schedule  string // Equivalent 5-field cron expression
	LastRun   *time.Time
	NextRun   time.Time
	IsRunning bool
	LastError string
}

// JobHandler is the action bound to a schedule entry
type JobHandler func(ctx context.Context) error

// SchedulerService polls daily schedule entries and fires them synchronously
type SchedulerService interface {
	// RegisterDaily binds handler to a daily HH:MM trigger
	RegisterDaily(name string, at string, handler JobHandler) error

	// RunPending fires every due entry and returns how many ran
	RunPending(ctx context.Context) int

	// Run polls until ctx is cancelled
	Run(ctx context.Context) error

	// GetJobStatus returns the status of a specific job
	GetJobStatus(name string) (*JobStatus, error)

	// GetAllJobStatuses returns all job statuses
	GetAllJobStatuses() map[string]*JobStatus
}
