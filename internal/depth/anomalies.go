package depth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
)

// detectAnomalies flags physically implausible depths, sudden spikes
// and statistical outliers, writes the detection columns onto aug and
// returns the filtered anomaly table plus the per-record flag slice.
//
// Classification picks exactly one reason per record with priority
// exceeds-max > below-min > spike > outlier. Records with a missing
// depth are never anomalous.
func (a *Analyzer) detectAnomalies(aug *dataset.Dataset, depths []float64, axis dataset.PositionAxis) ([]Anomaly, []bool) {
	n := len(depths)
	p := a.params

	exceeds := make([]bool, n)
	below := make([]bool, n)
	change := make([]float64, n)
	spike := make([]bool, n)

	for i, d := range depths {
		change[i] = dataset.Missing()
		if dataset.IsMissing(d) {
			continue
		}
		exceeds[i] = d > p.MaxDepth
		below[i] = d < p.MinDepth
		// The first record has no predecessor and is never a spike.
		if i > 0 && !dataset.IsMissing(depths[i-1]) {
			change[i] = math.Abs(d - depths[i-1])
			spike[i] = change[i] > p.SpikeThreshold
		}
	}

	means := make([]float64, n)
	stds := make([]float64, n)
	zs := make([]float64, n)
	outlier := make([]bool, n)

	if n >= p.WindowSize {
		means, stds = rollingStats(depths, p.WindowSize)
		for i := range stds {
			if dataset.IsMissing(stds[i]) || stds[i] == 0 {
				stds[i] = zScoreEpsilon
			}
		}
		for i := range zs {
			if dataset.IsMissing(means[i]) || dataset.IsMissing(depths[i]) {
				zs[i] = dataset.Missing()
				continue
			}
			zs[i] = (depths[i] - means[i]) / stds[i]
			outlier[i] = math.Abs(zs[i]) > p.StdThreshold
		}
	} else {
		// Too few records for a full window: no outlier detection.
		for i := range means {
			means[i] = dataset.Missing()
			stds[i] = dataset.Missing()
			zs[i] = dataset.Missing()
		}
	}

	isAnom := make([]bool, n)
	types := make([]string, n)
	sevs := make([]string, n)
	var anomalies []Anomaly

	for i, d := range depths {
		if !(exceeds[i] || below[i] || spike[i] || outlier[i]) {
			continue
		}
		isAnom[i] = true

		var typ, sev string
		switch {
		case exceeds[i]:
			typ, sev = ReasonExceedsMax, analysis.SeverityHigh
		case below[i]:
			typ, sev = ReasonBelowMin, analysis.SeverityHigh
		case spike[i]:
			typ, sev = fmt.Sprintf(ReasonSpikeFormat, change[i]), analysis.SeverityMedium
		case outlier[i]:
			typ, sev = fmt.Sprintf(ReasonOutlierFormat, zs[i]), analysis.SeverityMedium
		default:
			typ, sev = ReasonUnknown, analysis.SeverityLow
		}
		types[i], sevs[i] = typ, sev

		anomalies = append(anomalies, Anomaly{
			Index:    i,
			Position: axis.Value(i),
			Depth:    d,
			Type:     typ,
			Severity: sev,
		})
	}

	_ = aug.SetBools(ColIsAnomaly, isAnom)
	_ = aug.SetStrings(ColAnomalyType, types)
	_ = aug.SetStrings(ColAnomalySeverity, sevs)
	_ = aug.SetBools(ColExceedsMaxDepth, exceeds)
	_ = aug.SetBools(ColBelowMinDepth, below)
	_ = aug.SetFloats(ColDepthChange, change)
	_ = aug.SetBools(ColIsSpike, spike)
	_ = aug.SetFloats(ColRollingMean, means)
	_ = aug.SetFloats(ColRollingStd, stds)
	_ = aug.SetFloats(ColZScore, zs)
	_ = aug.SetBools(ColIsOutlier, outlier)

	return anomalies, isAnom
}

// rollingStats computes centered moving mean and sample standard
// deviation. A record's window spans [i-(w-1)/2, i+w/2]; records whose
// window runs off either edge or contains a missing value get missing
// statistics.
func rollingStats(depths []float64, window int) (means, stds []float64) {
	n := len(depths)
	means = make([]float64, n)
	stds = make([]float64, n)
	lead := (window - 1) / 2
	trail := window / 2

	buf := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		means[i] = dataset.Missing()
		stds[i] = dataset.Missing()

		lo, hi := i-lead, i+trail
		if lo < 0 || hi >= n {
			continue
		}

		buf = buf[:0]
		complete := true
		for j := lo; j <= hi; j++ {
			if dataset.IsMissing(depths[j]) {
				complete = false
				break
			}
			buf = append(buf, depths[j])
		}
		if !complete {
			continue
		}

		means[i] = stat.Mean(buf, nil)
		stds[i] = stat.StdDev(buf, nil)
	}
	return means, stds
}
