package operations

import (
	"context"
	"sync"
	"time"
)

// Step identifiers in pipeline order.
const (
	StepLoad     = "load"
	StepBind     = "bind"
	StepDepth    = "depth-analysis"
	StepPosition = "position-analysis"
	StepRanges   = "ranges"
	StepCharts   = "charts"
	StepReports  = "reports"
)

// Step is a single unit of pipeline work.
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Validate checks the request before the operation starts. A
	// validation failure rejects the whole request; nothing runs.
	Validate(req Request) error

	// Execute runs the step against the shared operation state. It
	// reads the artifacts of earlier steps from the state and writes
	// its own back. Returning a *SkipError marks the step skipped
	// rather than failed.
	Execute(ctx context.Context, st *State) error
}

// StepStatus represents the current status of a step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState is the runtime state of one step. Steps in the same phase
// run concurrently, so every field access goes through the mutex.
type StepState struct {
	mu        sync.RWMutex
	id        string
	name      string
	status    StepStatus
	startTime *time.Time
	endTime   *time.Time
	progress  float64
	message   string
	err       error
}

// NewStepState creates a pending step state.
func NewStepState(id, name string) *StepState {
	return &StepState{
		id:     id,
		name:   name,
		status: StepStatusPending,
	}
}

// ID returns the step identifier.
func (s *StepState) ID() string { return s.id }

// Name returns the step display name.
func (s *StepState) Name() string { return s.name }

// Start marks the step active and stamps the start time.
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.startTime = &now
	s.status = StepStatusActive
	s.progress = 0
}

// Complete marks the step completed and stamps the end time.
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StepStatusCompleted
	s.progress = 100
}

// Fail marks the step failed with the given error.
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StepStatusFailed
	s.err = err
}

// Skip marks the step skipped with the given reason.
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StepStatusSkipped
	s.message = reason
}

// UpdateProgress updates the step progress percentage and message.
func (s *StepState) UpdateProgress(progress float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = progress
	s.message = message
}

// Status returns the current step status.
func (s *StepState) Status() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the failure recorded on the step, if any.
func (s *StepState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Terminal reports whether the step reached a final status.
func (s *StepState) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.status {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// Duration returns how long the step has been running, or ran.
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.startTime == nil {
		return 0
	}
	if s.endTime != nil {
		return s.endTime.Sub(*s.startTime)
	}
	return time.Since(*s.startTime)
}

// StepSnapshot is a point-in-time copy of a step state, safe to
// serialize while the operation keeps running.
type StepSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  float64    `json:"duration_seconds"`
	Progress  float64    `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Snapshot returns a copy of the current step state.
func (s *StepState) Snapshot() StepSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StepSnapshot{
		ID:       s.id,
		Name:     s.name,
		Status:   s.status,
		Progress: s.progress,
		Message:  s.message,
	}
	if s.startTime != nil {
		t := *s.startTime
		snap.StartTime = &t
		if s.endTime != nil {
			e := *s.endTime
			snap.EndTime = &e
			snap.Duration = e.Sub(t).Seconds()
		} else {
			snap.Duration = time.Since(t).Seconds()
		}
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
