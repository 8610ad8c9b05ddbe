package operations

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/report"
	"github.com/tomdowns/cbatool/internal/viz"
)

// TracerName identifies operation spans.
const TracerName = "cbatool.operations"

// Manager runs analysis operations through the staged pipeline and
// retains their states for later inspection. States are kept for the
// life of the process, so snapshots and results stay retrievable
// after an operation finishes.
type Manager struct {
	logger      *slog.Logger
	publisher   Publisher
	metrics     *infrastructure.BusinessMetrics
	snapshotter *viz.Snapshotter
	tracer      trace.Tracer
	timeout     time.Duration
	phases      [][]Step

	mu      sync.RWMutex
	states  map[string]*State
	cancels map[string]context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPublisher sets the event sink for operation state changes.
func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics wires the business metric instruments.
func WithMetrics(metrics *infrastructure.BusinessMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithTimeout caps the wall-clock time of one operation. Zero means
// no limit.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithSnapshotter replaces the chart snapshotter.
func WithSnapshotter(s *viz.Snapshotter) ManagerOption {
	return func(m *Manager) { m.snapshotter = s }
}

// WithSteps replaces the default pipeline. Steps in the same phase
// run concurrently; phases run in order.
func WithSteps(phases [][]Step) ManagerOption {
	return func(m *Manager) { m.phases = phases }
}

// NewManager creates a manager with the default analysis pipeline:
// load, bind, depth and position analysis in parallel, viewing
// ranges, charts, reports.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	m := &Manager{
		logger:  infrastructure.WithComponent(logger, "operations"),
		tracer:  otel.Tracer(TracerName),
		timeout: config.DefaultOperationTimeout,
		states:  make(map[string]*State),
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.snapshotter == nil {
		m.snapshotter = viz.NewSnapshotter(logger)
	}
	if m.phases == nil {
		loader := dataset.NewLoader(logger)
		renderer := viz.NewRenderer(logger)
		generator := report.NewGenerator(logger)
		m.phases = [][]Step{
			{newLoadStep(loader, m.metrics)},
			{newBindStep()},
			{newDepthStep(m.logger, m.metrics), newPositionStep(m.logger)},
			{newRangesStep(m.logger)},
			{newChartsStep(m.logger, renderer, m.snapshotter, m.metrics)},
			{newReportsStep(generator, m.metrics)},
		}
	}
	return m
}

// Steps returns the pipeline steps in execution order.
func (m *Manager) Steps() []Step {
	var steps []Step
	for _, phase := range m.phases {
		steps = append(steps, phase...)
	}
	return steps
}

// Execute runs one analysis synchronously and returns its final
// state. The returned error covers request validation only; pipeline
// failures are recorded on the state instead, so a partial run still
// hands back its artifacts.
func (m *Manager) Execute(ctx context.Context, req Request) (*State, error) {
	st, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	m.run(ctx, st)
	return st, nil
}

// Start launches an analysis in the background and returns its
// operation id. The operation outlives the caller's context, which
// is how HTTP handlers hand work off and answer immediately.
func (m *Manager) Start(ctx context.Context, req Request) (string, error) {
	st, err := m.prepare(req)
	if err != nil {
		return "", err
	}
	go m.run(context.WithoutCancel(ctx), st)
	return st.ID(), nil
}

func (m *Manager) prepare(req Request) (*State, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	steps := m.Steps()
	for _, step := range steps {
		if err := step.Validate(req); err != nil {
			return nil, err
		}
	}
	st := NewState(uuid.New().String(), req, steps)
	m.mu.Lock()
	m.states[st.ID()] = st
	m.mu.Unlock()
	return st, nil
}

func (m *Manager) run(ctx context.Context, st *State) {
	if m.timeout > 0 {
		tctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		ctx = tctx
	}
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = cctx

	m.mu.Lock()
	m.cancels[st.ID()] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, st.ID())
		m.mu.Unlock()
	}()

	req := st.Request()
	ctx, span := m.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", st.ID()),
			attribute.String("cable.id", req.Cable),
			attribute.String("file", req.File),
		),
	)
	defer span.End()

	st.Start()
	infrastructure.RecordActiveOperationChange(ctx, m.metrics, 1)
	m.logger.InfoContext(ctx, "operation started",
		slog.String("operation_id", st.ID()),
		slog.String("cable", req.Cable),
		slog.String("file", req.File),
	)
	m.publish(ctx, Event{
		Type:        EventOperationStatus,
		OperationID: st.ID(),
		Status:      string(StatusRunning),
		Message:     "analysis started",
	})

	for _, phase := range m.phases {
		if ctx.Err() != nil {
			break
		}
		if len(phase) == 1 {
			m.runStep(ctx, st, phase[0])
			continue
		}
		// Steps of one phase run concurrently with failures isolated:
		// one analyzer failing must not tear down its sibling, so the
		// group carries no shared cancellation.
		var g errgroup.Group
		for _, step := range phase {
			g.Go(func() error {
				m.runStep(ctx, st, step)
				return nil
			})
		}
		_ = g.Wait()
	}

	status := m.finalize(ctx, st)
	duration := st.Duration()

	infrastructure.RecordActiveOperationChange(ctx, m.metrics, -1)
	infrastructure.RecordOperationMetrics(ctx, m.metrics, st.ID(), req.Cable, duration,
		status == StatusCompleted, st.Err())

	span.SetAttributes(
		attribute.String("operation.status", string(status)),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
	)
	if status == StatusFailed {
		span.SetStatus(codes.Error, "operation failed")
		if err := st.Err(); err != nil {
			span.RecordError(err)
		}
	}

	m.logger.InfoContext(ctx, "operation finished",
		slog.String("operation_id", st.ID()),
		slog.String("status", string(status)),
		slog.Duration("duration", duration),
	)
}

// runStep executes one step, recording its transitions, metrics and
// events.
func (m *Manager) runStep(ctx context.Context, st *State, step Step) {
	ss := st.Step(step.ID())
	if ctx.Err() != nil {
		ss.Skip("operation cancelled")
		m.publishStep(ctx, st, ss)
		return
	}

	ctx, span := m.tracer.Start(ctx, "operation.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", st.ID()),
			attribute.String("step.id", step.ID()),
		),
	)
	defer span.End()

	ss.Start()
	m.logger.InfoContext(ctx, "step started",
		slog.String("operation_id", st.ID()),
		slog.String("step", step.ID()),
	)
	m.publishStep(ctx, st, ss)

	start := time.Now()
	err := step.Execute(ctx, st)
	duration := time.Since(start)

	var skip *SkipError
	switch {
	case err == nil:
		ss.Complete()
		infrastructure.RecordStepMetrics(ctx, m.metrics, st.ID(), step.ID(), duration, true)
		m.logger.InfoContext(ctx, "step completed",
			slog.String("operation_id", st.ID()),
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
		)
	case errors.As(err, &skip):
		ss.Skip(skip.Reason)
		m.logger.InfoContext(ctx, "step skipped",
			slog.String("operation_id", st.ID()),
			slog.String("step", step.ID()),
			slog.String("reason", skip.Reason),
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		ss.Fail(NewCancellationError(step.ID()))
		m.logger.WarnContext(ctx, "step interrupted",
			slog.String("operation_id", st.ID()),
			slog.String("step", step.ID()),
		)
	default:
		ss.Fail(err)
		infrastructure.RecordStepMetrics(ctx, m.metrics, st.ID(), step.ID(), duration, false)
		infrastructure.RecordError(ctx, err)
		m.logger.ErrorContext(ctx, "step failed",
			slog.String("operation_id", st.ID()),
			slog.String("step", step.ID()),
			slog.String("error", err.Error()),
		)
	}
	m.publishStep(ctx, st, ss)
}

// finalize decides the terminal status, marks unvisited steps skipped
// and publishes the closing event.
func (m *Manager) finalize(ctx context.Context, st *State) Status {
	cancelled := ctx.Err() != nil
	if cancelled {
		for _, ss := range st.Steps() {
			if ss.Status() == StepStatusPending {
				ss.Skip("operation cancelled")
			}
		}
	}

	var status Status
	switch {
	case cancelled:
		st.Cancel()
		status = StatusCancelled
		infrastructure.RecordOperationCancellation(ctx, m.metrics, st.ID(), ctx.Err().Error())
	case !st.HasFailures():
		st.Complete()
		status = StatusCompleted
	case st.DepthResult() != nil || st.PositionResult() != nil:
		st.Partial(st.FirstFailure())
		status = StatusPartial
	default:
		st.Fail(st.FirstFailure())
		status = StatusFailed
	}

	event := Event{
		Type:        EventOperationComplete,
		OperationID: st.ID(),
		Status:      string(status),
		Progress:    100,
	}
	switch status {
	case StatusFailed:
		event.Type = EventOperationError
		if err := st.Err(); err != nil {
			event.Message = err.Error()
		}
	case StatusCancelled:
		event.Type = EventOperationStatus
		event.Message = "operation cancelled"
	case StatusPartial:
		event.Message = "analysis finished with failed steps"
	default:
		event.Message = "analysis complete"
	}
	m.publish(ctx, event)
	return status
}

// publishStep emits a progress event reflecting one step's current
// state.
func (m *Manager) publishStep(ctx context.Context, st *State, ss *StepState) {
	snap := ss.Snapshot()
	event := Event{
		Type:        EventOperationProgress,
		OperationID: st.ID(),
		Step:        snap.ID,
		Status:      string(snap.Status),
		Progress:    st.Progress(),
		Message:     snap.Message,
	}
	if snap.Status == StepStatusFailed {
		event.Type = EventOperationError
		event.Message = snap.Error
	}
	m.publish(ctx, event)
}

func (m *Manager) publish(ctx context.Context, event Event) {
	if m.publisher == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	m.publisher.Publish(ctx, event)
}

// Get returns a snapshot of one operation.
func (m *Manager) Get(id string) (*Snapshot, error) {
	m.mu.RLock()
	st, ok := m.states[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrOperationNotFound
	}
	return st.Snapshot(), nil
}

// List returns snapshots of all known operations, newest first.
func (m *Manager) List() []*Snapshot {
	m.mu.RLock()
	states := make([]*State, 0, len(m.states))
	for _, st := range m.states {
		states = append(states, st)
	}
	m.mu.RUnlock()

	snaps := make([]*Snapshot, 0, len(states))
	for _, st := range states {
		snaps = append(snaps, st.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartTime.After(snaps[j].StartTime)
	})
	return snaps
}

// Results returns the standardized results of a finished operation.
// Operations still running report ErrOperationRunning.
func (m *Manager) Results(id string) (*Results, error) {
	m.mu.RLock()
	st, ok := m.states[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrOperationNotFound
	}
	if !st.Status().Terminal() {
		return nil, ErrOperationRunning
	}
	return st.Results(), nil
}

// Cancel aborts a running operation. The pipeline stops between
// phases; a step already running sees its context cancelled.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	_, known := m.states[id]
	cancel, running := m.cancels[id]
	m.mu.RUnlock()
	if !known {
		return ErrOperationNotFound
	}
	if !running {
		return ErrOperationNotRunning
	}
	cancel()
	return nil
}
