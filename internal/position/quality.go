package position

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// kpDiffs computes record-to-record KP increments and their median.
// The first record and records adjacent to a missing KP get a missing
// diff. The median is 0 when no increment can be computed.
func kpDiffs(kp []float64) ([]float64, float64) {
	n := len(kp)
	diffs := make([]float64, n)
	if n == 0 {
		return diffs, 0
	}

	clean := make([]float64, 0, n-1)
	diffs[0] = dataset.Missing()
	for i := 1; i < n; i++ {
		if dataset.IsMissing(kp[i]) || dataset.IsMissing(kp[i-1]) {
			diffs[i] = dataset.Missing()
			continue
		}
		diffs[i] = kp[i] - kp[i-1]
		clean = append(clean, diffs[i])
	}

	median := 0.0
	if len(clean) > 0 {
		median, _ = stats.Median(clean)
	}
	return diffs, median
}

// continuity flags jumps, reversals and duplicates and scores each
// increment against the median. Jumps and reversals force a zero
// score; the first record is always 1.
func (a *Analyzer) continuity(diffs []float64, median float64) (scores []float64, jumps, reversals, duplicates []bool) {
	n := len(diffs)
	scores = make([]float64, n)
	jumps = make([]bool, n)
	reversals = make([]bool, n)
	duplicates = make([]bool, n)
	if n == 0 {
		return
	}

	scores[0] = 1.0
	for i := 1; i < n; i++ {
		d := diffs[i]
		if dataset.IsMissing(d) {
			// A gap in the KP axis is itself a continuity defect.
			scores[i] = 0
			continue
		}

		jumps[i] = d > median+a.params.JumpThreshold
		reversals[i] = d < -a.params.ReversalThreshold
		duplicates[i] = math.Abs(d) < a.params.ReversalThreshold

		if jumps[i] || reversals[i] {
			scores[i] = 0
			continue
		}
		scores[i] = continuityScore(d, median)
	}
	return
}

// continuityScore maps the increment's relative deviation from the
// median onto (0, 1) with a logistic falloff centered at 50% deviation.
// Degenerate axes (zero median) collapse to 0.
func continuityScore(diff, median float64) float64 {
	ratio := math.Abs(diff/median - 1)
	s := 1 / (1 + math.Exp(5*(ratio-0.5)))
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// crossTrack scores absolute deviation from the planned route with an
// exponential falloff. Missing measurements score neutral.
func (a *Analyzer) crossTrack(dcc []float64) (scores []float64, significant []bool) {
	n := len(dcc)
	scores = make([]float64, n)
	significant = make([]bool, n)

	for i, v := range dcc {
		if dataset.IsMissing(v) {
			scores[i] = 1.0
			continue
		}
		abs := math.Abs(v)
		significant[i] = abs > a.params.CrossTrackThreshold
		scores[i] = math.Exp(-abs / a.params.CrossTrackThreshold)
	}
	return
}

// coordConsistency compares actual coordinate movement against the
// movement the KP increment implies. Records where the comparison is
// undefined (first record, missing values, non-positive expected
// movement) score neutral.
func (a *Analyzer) coordConsistency(kpDiffs, xs, ys []float64, kind dataset.CoordinateKind) []float64 {
	n := len(xs)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	scale := a.params.KPDistanceRatio
	if kind == dataset.CoordinateProjected {
		scale = 1000.0 // KP kilometers to meters
	}

	scores[0] = 1.0
	for i := 1; i < n; i++ {
		scores[i] = 1.0
		if dataset.IsMissing(kpDiffs[i]) ||
			dataset.IsMissing(xs[i]) || dataset.IsMissing(ys[i]) ||
			dataset.IsMissing(xs[i-1]) || dataset.IsMissing(ys[i-1]) {
			continue
		}
		expected := kpDiffs[i] * scale
		if expected <= 0 {
			continue
		}
		change := math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
		ratio := change / expected
		scores[i] = math.Exp(-2 * math.Abs(ratio-1))
	}
	return scores
}
