package operations

import (
	"sync"
	"time"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
	"github.com/tomdowns/cbatool/internal/ranges"
)

// Status represents the overall operation status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusPartial means some steps failed but at least one analysis
	// produced results, so reports and charts may still exist.
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// State is the complete state of one analysis operation: the request
// it was started with, the per-step states, and the artifacts the
// steps accumulate. Steps from the same phase write concurrently, so
// all access goes through the mutex.
type State struct {
	mu sync.RWMutex

	id        string
	req       Request
	status    Status
	startTime time.Time
	endTime   *time.Time
	err       error

	steps map[string]*StepState
	order []string

	data     *dataset.Dataset
	fileInfo *dataset.FileInfo
	binding  dataset.Binding
	axis     dataset.PositionAxis
	bound    bool

	depthResult    *depth.Result
	positionResult *position.Result
	viewRanges     []ranges.Range
	chartPaths     []string
	snapshotPath   string
	reportPaths    []string
}

// NewState creates a pending operation state with one step state per
// pipeline step, in execution order.
func NewState(id string, req Request, steps []Step) *State {
	st := &State{
		id:        id,
		req:       req,
		status:    StatusPending,
		startTime: time.Now(),
		steps:     make(map[string]*StepState, len(steps)),
	}
	for _, step := range steps {
		st.steps[step.ID()] = NewStepState(step.ID(), step.Name())
		st.order = append(st.order, step.ID())
	}
	return st
}

// ID returns the operation identifier.
func (s *State) ID() string { return s.id }

// Request returns the request the operation was started with.
func (s *State) Request() Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.req
}

// Start marks the operation running.
func (s *State) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusRunning
	s.startTime = time.Now()
}

// Complete marks the operation completed.
func (s *State) Complete() {
	s.finish(StatusCompleted, nil)
}

// Partial marks the operation partially completed with the error that
// broke the failing branch.
func (s *State) Partial(err error) {
	s.finish(StatusPartial, err)
}

// Fail marks the operation failed.
func (s *State) Fail(err error) {
	s.finish(StatusFailed, err)
}

// Cancel marks the operation cancelled.
func (s *State) Cancel() {
	s.finish(StatusCancelled, nil)
}

func (s *State) finish(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = status
	s.err = err
}

// Status returns the current operation status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the operation error, if any.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Duration returns how long the operation has been running, or ran.
func (s *State) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.endTime != nil {
		return s.endTime.Sub(s.startTime)
	}
	return time.Since(s.startTime)
}

// Step returns the state of one step, or nil for an unknown id.
func (s *State) Step(id string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[id]
}

// Steps returns the step states in execution order.
func (s *State) Steps() []*StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*StepState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.steps[id])
	}
	return out
}

// Progress returns the share of steps that reached a terminal status,
// as a percentage.
func (s *State) Progress() int {
	steps := s.Steps()
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, ss := range steps {
		if ss.Terminal() {
			done++
		}
	}
	return done * 100 / len(steps)
}

// HasFailures reports whether any step failed.
func (s *State) HasFailures() bool {
	for _, ss := range s.Steps() {
		if ss.Status() == StepStatusFailed {
			return true
		}
	}
	return false
}

// FirstFailure returns the error of the earliest failed step.
func (s *State) FirstFailure() error {
	for _, ss := range s.Steps() {
		if ss.Status() == StepStatusFailed {
			return ss.Err()
		}
	}
	return nil
}

// SetDataset stores the loaded dataset and its file description.
func (s *State) SetDataset(ds *dataset.Dataset, info *dataset.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = ds
	s.fileInfo = info
}

// Data returns the loaded dataset, or nil before the load step ran.
func (s *State) Data() *dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// FileInfo returns the loaded file description, or nil.
func (s *State) FileInfo() *dataset.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileInfo
}

// SetBinding stores the resolved schema binding and position axis.
func (s *State) SetBinding(b dataset.Binding, axis dataset.PositionAxis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binding = b
	s.axis = axis
	s.bound = true
}

// Bound returns the resolved binding and axis. The bool is false until
// the bind step has completed.
func (s *State) Bound() (dataset.Binding, dataset.PositionAxis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.binding, s.axis, s.bound
}

// SetDepthResult stores the burial depth analysis result.
func (s *State) SetDepthResult(r *depth.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depthResult = r
}

// DepthResult returns the burial depth analysis result, or nil.
func (s *State) DepthResult() *depth.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.depthResult
}

// SetPositionResult stores the position quality analysis result.
func (s *State) SetPositionResult(r *position.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positionResult = r
}

// PositionResult returns the position quality analysis result, or nil.
func (s *State) PositionResult() *position.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionResult
}

// SetRanges stores the recommended viewing ranges.
func (s *State) SetRanges(rs []ranges.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewRanges = rs
}

// Ranges returns the recommended viewing ranges.
func (s *State) Ranges() []ranges.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewRanges
}

// SetCharts stores the written chart paths and the snapshot image
// path, which is empty when no snapshot was captured.
func (s *State) SetCharts(paths []string, snapshot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chartPaths = paths
	s.snapshotPath = snapshot
}

// Charts returns the written chart paths and the snapshot image path.
func (s *State) Charts() ([]string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chartPaths, s.snapshotPath
}

// SetReports stores the written report paths.
func (s *State) SetReports(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportPaths = paths
}

// Reports returns the written report paths.
func (s *State) Reports() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportPaths
}

// Snapshot is a point-in-time copy of an operation state, safe to
// serialize while steps keep running.
type Snapshot struct {
	ID        string         `json:"id"`
	Cable     string         `json:"cable,omitempty"`
	File      string         `json:"file"`
	Status    Status         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Duration  float64        `json:"duration_seconds"`
	Progress  int            `json:"progress"`
	Error     string         `json:"error,omitempty"`
	Steps     []StepSnapshot `json:"steps"`
}

// Snapshot returns a copy of the current operation state.
func (s *State) Snapshot() *Snapshot {
	s.mu.RLock()
	snap := &Snapshot{
		ID:        s.id,
		Cable:     s.req.Cable,
		File:      s.req.File,
		Status:    s.status,
		StartTime: s.startTime,
	}
	if s.endTime != nil {
		t := *s.endTime
		snap.EndTime = &t
		snap.Duration = t.Sub(s.startTime).Seconds()
	} else {
		snap.Duration = time.Since(s.startTime).Seconds()
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	order := append([]string(nil), s.order...)
	steps := s.steps
	s.mu.RUnlock()

	for _, id := range order {
		snap.Steps = append(snap.Steps, steps[id].Snapshot())
	}
	snap.Progress = s.Progress()
	return snap
}

// Results bundles the artifacts of a finished operation in the
// standardized result envelope, plus the paths of everything written
// to disk.
type Results struct {
	OperationID  string                 `json:"operation_id"`
	Cable        string                 `json:"cable,omitempty"`
	File         string                 `json:"file"`
	Depth        *analysis.Standardized `json:"depth,omitempty"`
	Position     *analysis.Standardized `json:"position,omitempty"`
	Ranges       []ranges.Range         `json:"ranges,omitempty"`
	Reports      []string               `json:"reports,omitempty"`
	Charts       []string               `json:"charts,omitempty"`
	SnapshotPath string                 `json:"snapshot_path,omitempty"`
}

// Results assembles the result envelope from the current artifacts.
func (s *State) Results() *Results {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &Results{
		OperationID:  s.id,
		Cable:        s.req.Cable,
		File:         s.req.File,
		Ranges:       s.viewRanges,
		Reports:      s.reportPaths,
		Charts:       s.chartPaths,
		SnapshotPath: s.snapshotPath,
	}
	if s.depthResult != nil {
		std := s.depthResult.Standardized()
		res.Depth = &std
	}
	if s.positionResult != nil {
		std := s.positionResult.Standardized()
		res.Position = &std
	}
	return res
}
