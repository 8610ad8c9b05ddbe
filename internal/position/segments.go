package position

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
)

// buildSegments extracts maximal runs of Poor quality at least
// MinSegmentLength records long. Shorter runs are discarded, never
// merged across better records.
func (a *Analyzer) buildSegments(q *quality) []Segment {
	var segs []Segment

	for start := 0; start < q.n; {
		if q.categories[start] != QualityPoor {
			start++
			continue
		}
		end := start
		for end+1 < q.n && q.categories[end+1] == QualityPoor {
			end++
		}
		if end-start+1 >= a.params.MinSegmentLength {
			segs = append(segs, a.newSegment(len(segs)+1, start, end, q))
		}
		start = end + 1
	}

	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].StartKP < segs[j].StartKP
	})
	return segs
}

func (a *Analyzer) newSegment(id, start, end int, q *quality) Segment {
	s := Segment{
		ID:         id,
		StartIndex: start,
		EndIndex:   end,
		StartKP:    q.kp[start],
		EndKP:      q.kp[end],
		PointCount: end - start + 1,
	}
	if !dataset.IsMissing(s.StartKP) && !dataset.IsMissing(s.EndKP) {
		s.LengthKP = s.EndKP - s.StartKP
	}

	var scoreSum, dccSum float64
	dccCnt := 0
	for i := start; i <= end; i++ {
		scoreSum += q.scores[i]
		if q.jumps[i] {
			s.HasJumps = true
		}
		if q.reversals[i] {
			s.HasReversals = true
		}
		if q.dcc != nil && !dataset.IsMissing(q.dcc[i]) {
			abs := math.Abs(q.dcc[i])
			if abs > s.MaxDCC {
				s.MaxDCC = abs
			}
			dccSum += abs
			dccCnt++
		}
	}
	s.AvgScore = scoreSum / float64(s.PointCount)
	if dccCnt > 0 {
		s.AvgDCC = dccSum / float64(dccCnt)
	}

	switch {
	case s.HasReversals:
		s.Severity = analysis.SeverityHigh
	case s.HasJumps:
		s.Severity = analysis.SeverityMedium
	case s.AvgScore < 0.2:
		s.Severity = analysis.SeverityHigh
	case s.AvgScore < 0.5:
		s.Severity = analysis.SeverityMedium
	default:
		s.Severity = analysis.SeverityLow
	}
	return s
}

// summarize reduces one scoring pass to scalar aggregates.
func (a *Analyzer) summarize(q *quality, segments []Segment) Summary {
	s := Summary{
		TotalPoints: q.n,
		QualityCounts: map[string]int{
			QualityGood:    0,
			QualitySuspect: 0,
			QualityPoor:    0,
		},
		SegmentCount: len(segments),
	}

	kpMin, kpMax := math.Inf(1), math.Inf(-1)
	kpSeen := false
	for _, v := range q.kp {
		if dataset.IsMissing(v) {
			continue
		}
		kpSeen = true
		kpMin = math.Min(kpMin, v)
		kpMax = math.Max(kpMax, v)
	}
	if kpSeen {
		s.KPStart = kpMin
		s.KPEnd = kpMax
		s.KPLength = kpMax - kpMin
	}

	var scoreSum float64
	for i := 0; i < q.n; i++ {
		s.QualityCounts[q.categories[i]]++
		scoreSum += q.scores[i]
		if q.jumps[i] {
			s.Jumps++
		}
		if q.reversals[i] {
			s.Reversals++
		}
		if q.duplicates[i] {
			s.Duplicates++
		}
	}
	if q.n > 0 {
		s.AvgScore = scoreSum / float64(q.n)
	}

	if q.dcc != nil {
		abs := make([]float64, 0, q.n)
		signifCount := 0
		for i, v := range q.dcc {
			if dataset.IsMissing(v) {
				continue
			}
			abs = append(abs, math.Abs(v))
			if q.signif != nil && q.signif[i] {
				signifCount++
			}
		}
		if len(abs) > 0 {
			d := &DCCStats{SignificantCount: signifCount}
			d.Max, _ = stats.Max(abs)
			d.Mean, _ = stats.Mean(abs)
			d.P95, _ = stats.Percentile(abs, 95)
			s.DCC = d
		}
	}

	return s
}
