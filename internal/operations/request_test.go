package operations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/report"
)

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest(nil)

	assert.InDelta(t, 1.5, req.Depth.TargetDepth, 1e-9)
	assert.InDelta(t, 3.0, req.Depth.MaxDepth, 1e-9)
	assert.InDelta(t, 0.5, req.Depth.SpikeThreshold, 1e-9)
	assert.Equal(t, 5, req.Depth.WindowSize)
	assert.InDelta(t, 0.1, req.Position.JumpThreshold, 1e-9)
	assert.InDelta(t, 5.0, req.Position.CrossTrackThreshold, 1e-9)
	assert.InDelta(t, 1.5, req.Ranges.TargetDepth, 1e-9)
	assert.Equal(t, 5, req.Ranges.MaxRanges)

	assert.Equal(t, config.DefaultOutputDir, req.OutputDir)
	assert.Equal(t, report.FormatBoth, req.Format)
	assert.True(t, req.Charts)
	assert.True(t, req.IncludeAnomalies)
	assert.True(t, req.SegmentOverlays)
	assert.False(t, req.Snapshots)

	require.NoError(t, req.Depth.Validate())
	require.NoError(t, req.Position.Validate())
	require.NoError(t, req.Ranges.Validate())
}

func TestNewRequestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Depth.TargetDepth = 2.0
	cfg.Analysis.Ranges.MaxRanges = 3
	cfg.Paths.OutputDir = "/srv/surveys/output"
	cfg.Visualization.Snapshots = true

	req := NewRequest(cfg)
	assert.InDelta(t, 2.0, req.Depth.TargetDepth, 1e-9)
	assert.InDelta(t, 2.0, req.Ranges.TargetDepth, 1e-9)
	assert.Equal(t, 3, req.Ranges.MaxRanges)
	assert.Equal(t, "/srv/surveys/output", req.OutputDir)
	assert.True(t, req.Snapshots)
}

func TestRequestNormalize(t *testing.T) {
	var req Request
	req.Depth.TargetDepth = 2.5
	req.MaxRows = -10
	req.normalize()

	assert.Equal(t, report.FormatBoth, req.Format)
	assert.Equal(t, ".", req.OutputDir)
	assert.Equal(t, 0, req.MaxRows)
	assert.InDelta(t, 2.5, req.Ranges.TargetDepth, 1e-9)

	// Explicit settings survive normalization.
	req2 := Request{Format: report.FormatCSV, OutputDir: "out"}
	req2.Ranges.TargetDepth = 1.0
	req2.normalize()
	assert.Equal(t, report.FormatCSV, req2.Format)
	assert.Equal(t, "out", req2.OutputDir)
	assert.InDelta(t, 1.0, req2.Ranges.TargetDepth, 1e-9)
}

func TestRequestValidate(t *testing.T) {
	req := NewRequest(nil)
	req.File = "survey.csv"
	require.NoError(t, req.Validate())

	missing := NewRequest(nil)
	err := missing.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Contains(t, err.Error(), "File")

	long := NewRequest(nil)
	long.File = "survey.csv"
	long.Cable = strings.Repeat("x", 65)
	err = long.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cable")
}
