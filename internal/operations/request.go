package operations

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
	"github.com/tomdowns/cbatool/internal/ranges"
	"github.com/tomdowns/cbatool/internal/report"
)

var validate = validator.New()

// Request describes one complete analysis run: which file to analyze,
// how to interpret its columns, the analysis parameters and which
// outputs to produce. Build one with NewRequest so the configured
// defaults apply, then override what the caller knows better.
type Request struct {
	// Cable optionally names the cable under review. It is carried
	// into events, reports and metrics but never interpreted.
	Cable string `json:"cable,omitempty" validate:"omitempty,max=64"`

	// File is the survey data file to analyze.
	File string `json:"file" validate:"required"`

	// Sheet selects an Excel sheet by name; empty picks automatically.
	Sheet string `json:"sheet,omitempty"`

	// MaxRows limits the number of data rows read; 0 reads everything.
	MaxRows int `json:"max_rows,omitempty" validate:"min=0"`

	// Schema declares the survey columns. Fields left blank are
	// filled from the loader's suggestions during the bind step.
	Schema dataset.Schema `json:"schema" validate:"-"`

	Depth    depth.Params    `json:"depth"`
	Position position.Params `json:"position"`
	Ranges   ranges.Params   `json:"ranges"`

	// OutputDir receives every written file; blank means the current
	// directory.
	OutputDir string `json:"output_dir,omitempty"`

	// Format selects the report flavor: csv, xlsx or both.
	Format report.Format `json:"format,omitempty"`

	// Charts enables HTML chart generation.
	Charts bool `json:"charts"`

	// IncludeAnomalies draws anomaly markers on the depth chart.
	IncludeAnomalies bool `json:"include_anomalies"`

	// SegmentOverlays draws poor-quality segment bands on the
	// position chart.
	SegmentOverlays bool `json:"segment_overlays"`

	// Snapshots captures a PNG of the depth chart for embedding in
	// the summary workbook. Requires a headless browser.
	Snapshots bool `json:"snapshots"`

	// Project annotates the summary report.
	Project report.ProjectInfo `json:"project"`
}

// NewRequest returns a request seeded with the configured analysis
// parameters and output settings. A nil config seeds from the
// built-in defaults.
func NewRequest(cfg *config.Config) Request {
	if cfg == nil {
		cfg = config.Default()
	}
	a := cfg.Analysis
	return Request{
		Depth: depth.Params{
			TargetDepth:     a.Depth.TargetDepth,
			MaxDepth:        a.Depth.MaxDepth,
			MinDepth:        a.Depth.MinDepth,
			SpikeThreshold:  a.Depth.SpikeThreshold,
			WindowSize:      a.Depth.WindowSize,
			StdThreshold:    a.Depth.StdThreshold,
			IgnoreAnomalies: a.Depth.IgnoreAnomalies,
		},
		Position: position.Params{
			JumpThreshold:       a.Position.KPJumpThreshold,
			ReversalThreshold:   a.Position.KPReversalThreshold,
			CrossTrackThreshold: a.Position.DCCThreshold,
			MinSegmentLength:    a.Position.MinSegmentLength,
			KPDistanceRatio:     a.Position.KPDistanceRatio,
		},
		Ranges: ranges.Params{
			TargetDepth:    a.Depth.TargetDepth,
			MinSectionSize: a.Ranges.MinSectionSize,
			MinDeficit:     a.Ranges.MinDeficit,
			WindowSize:     a.Ranges.WindowSize,
			StdThreshold:   a.Ranges.StdThreshold,
			MaxRanges:      a.Ranges.MaxRanges,
		},
		OutputDir:        cfg.GetOutputDir(),
		Format:           report.FormatBoth,
		Charts:           true,
		IncludeAnomalies: cfg.Visualization.IncludeAnomalies,
		SegmentOverlays:  cfg.Visualization.UseSegmented,
		Snapshots:        cfg.Visualization.Snapshots,
	}
}

// normalize fills derived fields a caller may have left unset.
func (r *Request) normalize() {
	if r.Format == "" {
		r.Format = report.FormatBoth
	}
	if r.OutputDir == "" {
		r.OutputDir = "."
	}
	if r.MaxRows < 0 {
		r.MaxRows = 0
	}
	// Viewing ranges measure deficits against the same target the
	// depth analysis uses unless the caller set one explicitly.
	if r.Ranges.TargetDepth == 0 {
		r.Ranges.TargetDepth = r.Depth.TargetDepth
	}
}

// Validate checks the request's own fields. Analysis parameters are
// validated by the steps that consume them, so a full check is the
// combination of this and every step's Validate.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewValidationError("", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())
	}
	return err.Error()
}
