package operations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
	"github.com/tomdowns/cbatool/internal/ranges"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusPartial.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStateTransitions(t *testing.T) {
	st := NewState("op-1", Request{File: "survey.csv"}, nil)
	assert.Equal(t, "op-1", st.ID())
	assert.Equal(t, StatusPending, st.Status())

	st.Start()
	assert.Equal(t, StatusRunning, st.Status())

	st.Complete()
	assert.Equal(t, StatusCompleted, st.Status())
	assert.NoError(t, st.Err())
	assert.GreaterOrEqual(t, st.Duration().Nanoseconds(), int64(0))
}

func TestStateTerminalErrors(t *testing.T) {
	boom := errors.New("boom")

	partial := NewState("op-2", Request{File: "survey.csv"}, nil)
	partial.Start()
	partial.Partial(boom)
	assert.Equal(t, StatusPartial, partial.Status())
	assert.ErrorIs(t, partial.Err(), boom)

	failed := NewState("op-3", Request{File: "survey.csv"}, nil)
	failed.Start()
	failed.Fail(boom)
	assert.Equal(t, StatusFailed, failed.Status())
	assert.ErrorIs(t, failed.Err(), boom)

	cancelled := NewState("op-4", Request{File: "survey.csv"}, nil)
	cancelled.Start()
	cancelled.Cancel()
	assert.Equal(t, StatusCancelled, cancelled.Status())
	assert.NoError(t, cancelled.Err())
}

func TestStateStepTracking(t *testing.T) {
	steps := []Step{
		&stubStep{id: "one", name: "Step one"},
		&stubStep{id: "two", name: "Step two"},
		&stubStep{id: "three", name: "Step three"},
	}
	st := NewState("op-5", Request{File: "survey.csv"}, steps)

	require.Len(t, st.Steps(), 3)
	assert.Equal(t, "one", st.Steps()[0].ID())
	assert.Equal(t, "three", st.Steps()[2].ID())
	require.NotNil(t, st.Step("two"))
	assert.Nil(t, st.Step("missing"))

	assert.Equal(t, 0, st.Progress())
	st.Step("one").Start()
	assert.Equal(t, 0, st.Progress())
	st.Step("one").Complete()
	assert.Equal(t, 33, st.Progress())
	st.Step("two").Skip("nothing to do")
	assert.Equal(t, 66, st.Progress())

	boom := errors.New("boom")
	st.Step("three").Start()
	st.Step("three").Fail(boom)
	assert.Equal(t, 100, st.Progress())

	assert.True(t, st.HasFailures())
	assert.ErrorIs(t, st.FirstFailure(), boom)
}

func TestStateFirstFailureKeepsPipelineOrder(t *testing.T) {
	steps := []Step{&stubStep{id: "a"}, &stubStep{id: "b"}}
	st := NewState("op-6", Request{File: "survey.csv"}, steps)

	first := errors.New("first")
	st.Step("a").Fail(first)
	st.Step("b").Fail(errors.New("second"))

	assert.ErrorIs(t, st.FirstFailure(), first)
}

func TestStateArtifacts(t *testing.T) {
	st := NewState("op-7", Request{File: "survey.csv"}, nil)

	assert.Nil(t, st.Data())
	assert.Nil(t, st.FileInfo())
	_, _, bound := st.Bound()
	assert.False(t, bound)

	ds := dataset.New(3)
	_ = ds.SetFloats("DOB", []float64{1.6, 1.7, 1.8})
	_ = ds.SetFloats("KP", []float64{0, 0.001, 0.002})
	st.SetDataset(ds, &dataset.FileInfo{Path: "survey.csv", Rows: 3})
	require.NotNil(t, st.Data())
	assert.Equal(t, 3, st.Data().Len())
	assert.Equal(t, "survey.csv", st.FileInfo().Path)

	b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB", KP: "KP"})
	require.NoError(t, err)
	st.SetBinding(b, dataset.ResolvePositionAxis(ds, b))
	got, axis, ok := st.Bound()
	require.True(t, ok)
	assert.Equal(t, "DOB", got.Depth)
	assert.Equal(t, dataset.PositionKP, axis.Kind)

	st.SetDepthResult(&depth.Result{})
	st.SetPositionResult(&position.Result{})
	st.SetRanges([]ranges.Range{{Name: "Full Dataset", Type: ranges.TypeFull}})
	st.SetCharts([]string{"chart.html"}, "chart.png")
	st.SetReports([]string{"report.csv"})

	assert.NotNil(t, st.DepthResult())
	assert.NotNil(t, st.PositionResult())
	assert.Len(t, st.Ranges(), 1)
	charts, snapshot := st.Charts()
	assert.Equal(t, []string{"chart.html"}, charts)
	assert.Equal(t, "chart.png", snapshot)
	assert.Equal(t, []string{"report.csv"}, st.Reports())
}

func TestStateSnapshot(t *testing.T) {
	steps := []Step{&stubStep{id: "a", name: "Step A"}, &stubStep{id: "b", name: "Step B"}}
	st := NewState("op-8", Request{Cable: "EXC-01", File: "survey.csv"}, steps)
	st.Start()
	st.Step("a").Start()
	st.Step("a").Complete()
	st.Step("b").Start()
	st.Step("b").Fail(errors.New("boom"))
	st.Fail(errors.New("boom"))

	snap := st.Snapshot()
	assert.Equal(t, "op-8", snap.ID)
	assert.Equal(t, "EXC-01", snap.Cable)
	assert.Equal(t, "survey.csv", snap.File)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "boom", snap.Error)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.EndTime)

	require.Len(t, snap.Steps, 2)
	assert.Equal(t, "a", snap.Steps[0].ID)
	assert.Equal(t, "Step A", snap.Steps[0].Name)
	assert.Equal(t, StepStatusCompleted, snap.Steps[0].Status)
	assert.Equal(t, StepStatusFailed, snap.Steps[1].Status)
	assert.Equal(t, "boom", snap.Steps[1].Error)
}

func TestStateResults(t *testing.T) {
	st := NewState("op-9", Request{Cable: "EXC-01", File: "survey.csv"}, nil)
	st.SetDepthResult(&depth.Result{})
	st.SetRanges([]ranges.Range{{Name: "Full Dataset", Type: ranges.TypeFull}})
	st.SetCharts([]string{"chart.html"}, "chart.png")
	st.SetReports([]string{"report.csv"})

	res := st.Results()
	assert.Equal(t, "op-9", res.OperationID)
	assert.Equal(t, "EXC-01", res.Cable)
	assert.Equal(t, "survey.csv", res.File)
	require.NotNil(t, res.Depth)
	assert.Nil(t, res.Position)
	assert.Len(t, res.Ranges, 1)
	assert.Equal(t, []string{"chart.html"}, res.Charts)
	assert.Equal(t, "chart.png", res.SnapshotPath)
	assert.Equal(t, []string{"report.csv"}, res.Reports)
}
