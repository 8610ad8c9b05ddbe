package ranges

import (
	"gonum.org/v1/gonum/stat"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// rollingStd computes the centered rolling sample standard deviation.
// Even windows carry the extra point after the center. Windows that run
// off either edge or contain a missing value are themselves missing.
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = dataset.Missing()
	}
	if window < 2 || len(values) < window {
		return out
	}
	lead := (window - 1) / 2
	trail := window / 2
	for i := range values {
		lo, hi := i-lead, i+trail
		if lo < 0 || hi >= len(values) {
			continue
		}
		win := values[lo : hi+1]
		complete := true
		for _, v := range win {
			if dataset.IsMissing(v) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		out[i] = stat.StdDev(win, nil)
	}
	return out
}

// zoneStats returns the sample standard deviation and max-min spread of
// the non-missing values in a zone. Zones too sparse for a std report
// zero so their importance never ranks them.
func zoneStats(values []float64) (std, depthRange float64) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !dataset.IsMissing(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0
	}
	minV, maxV := valid[0], valid[0]
	for _, v := range valid[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if len(valid) >= 2 {
		std = stat.StdDev(valid, nil)
	}
	return std, maxV - minV
}

// contextWindow expands a section to a viewing window around its
// midpoint: a tenth of the dataset capped at 100 points, clipped to
// dataset bounds.
func contextWindow(n, start, end int) (int, int) {
	context := n / 10
	if context > 100 {
		context = 100
	}
	mid := (start + end) / 2
	lo := mid - context/2
	if lo < 0 {
		lo = 0
	}
	hi := mid + context/2
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// rangesOverlap reports whether the intersection of two ranges exceeds
// the threshold fraction of either range's extent.
func rangesOverlap(a, b Range, threshold float64) bool {
	startMax := a.StartIndex
	if b.StartIndex > startMax {
		startMax = b.StartIndex
	}
	endMin := a.EndIndex
	if b.EndIndex < endMin {
		endMin = b.EndIndex
	}
	if startMax > endMin {
		return false
	}
	overlap := float64(endMin - startMax + 1)
	lenA := float64(a.EndIndex - a.StartIndex + 1)
	lenB := float64(b.EndIndex - b.StartIndex + 1)
	return overlap/lenA > threshold || overlap/lenB > threshold
}

func overlapsAny(r Range, existing []Range, threshold float64) bool {
	for _, e := range existing {
		if rangesOverlap(r, e, threshold) {
			return true
		}
	}
	return false
}
