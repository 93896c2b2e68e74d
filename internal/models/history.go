package models

import (
	"time"
)

// RunState is a step of the check-in state machine
type RunState string

const (
	RunStateIdle         RunState = "idle"
	RunStateInitializing RunState = "initializing"
	RunStateInfoFetch    RunState = "info_fetch"
	RunStateCheckingIn   RunState = "checking_in"
	RunStateDone         RunState = "done"
)

// CheckinTrigger records why a check-in ran
type CheckinTrigger string

const (
	TriggerOnce     CheckinTrigger = "once"
	TriggerStartup  CheckinTrigger = "startup"
	TriggerSchedule CheckinTrigger = "schedule"
)

// RunReport summarises one orchestrator run
type RunReport struct {
	RunID      string         `json:"run_id"`
	Trigger    CheckinTrigger `json:"trigger"`
	States     []RunState     `json:"states"` // States visited, in order
	UserInfo   *UserInfo      `json:"user_info,omitempty"`
	Result     CheckinResult  `json:"result"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// State returns the last state the run reached
func (r *RunReport) State() RunState {
	if r == nil || len(r.States) == 0 {
		return RunStateIdle
	}
	return r.States[len(r.States)-1]
}

// Enter appends a state transition
func (r *RunReport) Enter(state RunState) {
	r.States = append(r.States, state)
}

// CheckinRecord is one persisted check-in attempt
type CheckinRecord struct {
	ID         string         `json:"id" badgerhold:"key"`
	RunID      string         `json:"run_id"`
	Trigger    CheckinTrigger `json:"trigger"`
	StartedAt  time.Time      `json:"started_at" badgerholdIndex:"StartedAt"`
	FinishedAt time.Time      `json:"finished_at"`
	Success    bool           `json:"success"`
	Outcome    CheckinOutcome `json:"outcome"`
	StatusCode int            `json:"status_code"`
	Message    string         `json:"message"`
	Username   string         `json:"username,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
}

// Duration returns how long the attempt took
func (r CheckinRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
