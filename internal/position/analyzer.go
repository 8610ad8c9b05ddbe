package position

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// Analyzer runs position quality checks over a bound dataset.
type Analyzer struct {
	params Params
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer after validating the parameters.
func NewAnalyzer(params Params, logger *slog.Logger) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("position analyzer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{params: params, logger: logger}, nil
}

// Params returns the analyzer's configuration.
func (a *Analyzer) Params() Params {
	return a.params
}

// Analyze runs quality scoring, segment detection and summarization.
// A KP binding is required; cross-track and coordinate consistency
// checks run only when their columns are bound.
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*Result, error) {
	q, err := a.score(ctx, ds, b)
	if err != nil {
		return nil, err
	}

	segments := a.buildSegments(q)
	summary := a.summarize(q, segments)

	a.logger.InfoContext(ctx, "position analysis complete",
		"records", q.n,
		"kp_jumps", summary.Jumps,
		"kp_reversals", summary.Reversals,
		"poor_segments", len(segments),
	)

	return &Result{Data: q.aug, Segments: segments, Summary: summary}, nil
}

// AnalyzeQuality runs only the per-record scoring pass.
func (a *Analyzer) AnalyzeQuality(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*Result, error) {
	q, err := a.score(ctx, ds, b)
	if err != nil {
		return nil, err
	}
	return &Result{Data: q.aug, Summary: a.summarize(q, nil)}, nil
}

// DetectSegments runs scoring and returns only the poor-quality
// segments.
func (a *Analyzer) DetectSegments(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) ([]Segment, error) {
	q, err := a.score(ctx, ds, b)
	if err != nil {
		return nil, err
	}
	return a.buildSegments(q), nil
}

// quality carries the intermediate slices of one scoring pass between
// the phases.
type quality struct {
	n          int
	aug        *dataset.Dataset
	kp         []float64
	diffs      []float64
	medianInc  float64
	scores     []float64
	categories []string
	jumps      []bool
	reversals  []bool
	duplicates []bool
	dcc        []float64 // nil when cross-track not bound
	signif     []bool
}

func (a *Analyzer) score(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*quality, error) {
	if !b.HasKP() {
		return nil, fmt.Errorf("position analyzer: no KP column bound")
	}
	kp, ok := ds.Floats(b.KP)
	if !ok {
		return nil, fmt.Errorf("position analyzer: column %q is not bound to numeric data", b.KP)
	}

	a.logger.InfoContext(ctx, "starting position analysis",
		"records", len(kp),
		"cross_track", b.HasCrossTrack(),
		"coordinates", b.Coordinates.String(),
	)

	q := &quality{n: len(kp), aug: ds.Augment(), kp: kp}
	q.diffs, q.medianInc = kpDiffs(kp)
	q.scores, q.jumps, q.reversals, q.duplicates = a.continuity(q.diffs, q.medianInc)

	_ = q.aug.SetFloats(ColKPDiff, q.diffs)
	_ = q.aug.SetBools(ColIsJump, q.jumps)
	_ = q.aug.SetBools(ColIsReversal, q.reversals)
	_ = q.aug.SetBools(ColIsDuplicate, q.duplicates)
	continuityCopy := make([]float64, q.n)
	copy(continuityCopy, q.scores)
	_ = q.aug.SetFloats(ColContinuityScore, continuityCopy)

	if b.HasCrossTrack() {
		if dcc, ok := ds.Floats(b.CrossTrack); ok {
			q.dcc = dcc
			ctScores, signif := a.crossTrack(dcc)
			q.signif = signif
			_ = q.aug.SetBools(ColSignificantDev, signif)
			_ = q.aug.SetFloats(ColCrossTrackScore, ctScores)
			for i := range q.scores {
				q.scores[i] = q.scores[i]*0.6 + ctScores[i]*0.4
			}
		}
	}

	if b.HasCoordinates() {
		xs, okX := ds.Floats(b.CoordX)
		ys, okY := ds.Floats(b.CoordY)
		if okX && okY {
			coordScores := a.coordConsistency(q.diffs, xs, ys, b.Coordinates)
			_ = q.aug.SetFloats(ColCoordScore, coordScores)
			for i := range q.scores {
				q.scores[i] = q.scores[i]*0.7 + coordScores[i]*0.3
			}
		}
	}

	q.categories = make([]string, q.n)
	for i, s := range q.scores {
		q.categories[i] = category(s)
	}
	_ = q.aug.SetFloats(ColQualityScore, q.scores)
	_ = q.aug.SetStrings(ColQuality, q.categories)

	return q, nil
}

func category(score float64) string {
	switch {
	case score <= PoorScoreMax:
		return QualityPoor
	case score <= SuspectScoreMax:
		return QualitySuspect
	default:
		return QualityGood
	}
}
