package depth

import (
	"math"
	"sort"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
)

// applyCompliance writes the target-comparison columns onto aug and
// returns the per-record compliance flags. Records with a missing depth
// count as non-compliant, so survey gaps surface as problem sections
// instead of silently passing.
func (a *Analyzer) applyCompliance(aug *dataset.Dataset, depths []float64) []bool {
	n := len(depths)
	p := a.params

	meets := make([]bool, n)
	deficit := make([]float64, n)
	pct := make([]float64, n)
	sectionID := make([]float64, n)

	sections := 0
	prevMeets := true
	for i, d := range depths {
		if dataset.IsMissing(d) {
			deficit[i] = dataset.Missing()
			pct[i] = dataset.Missing()
		} else {
			meets[i] = d >= p.TargetDepth
			deficit[i] = math.Max(0, p.TargetDepth-d)
			pct[i] = round1(d / p.TargetDepth * 100)
		}

		if !meets[i] {
			if prevMeets {
				sections++
			}
			sectionID[i] = float64(sections)
		} else {
			sectionID[i] = dataset.Missing()
		}
		prevMeets = meets[i]
	}

	_ = aug.SetBools(ColMeetsTarget, meets)
	_ = aug.SetFloats(ColDepthDeficit, deficit)
	_ = aug.SetFloats(ColTargetPct, pct)
	_ = aug.SetFloats(ColSectionID, sectionID)

	return meets
}

// buildSections summarizes each maximal non-compliant run. Sections
// keep their positional ids but the returned slice is sorted most
// urgent first: severity High before Medium before Low, ties broken by
// descending max deficit.
func (a *Analyzer) buildSections(meets []bool, depths []float64, axis dataset.PositionAxis) []Section {
	p := a.params
	n := len(meets)
	var sections []Section

	for start := 0; start < n; {
		if meets[start] {
			start++
			continue
		}
		end := start
		for end+1 < n && !meets[end+1] {
			end++
		}

		s := Section{
			ID:         len(sections) + 1,
			StartIndex: start,
			EndIndex:   end,
			StartPos:   axis.Value(start),
			EndPos:     axis.Value(end),
			Length:     axis.SpanMeters(start, end),
			PointCount: end - start + 1,
		}

		minD, maxD, sum := math.Inf(1), math.Inf(-1), 0.0
		cnt := 0
		for i := start; i <= end; i++ {
			d := depths[i]
			if dataset.IsMissing(d) {
				continue
			}
			minD = math.Min(minD, d)
			maxD = math.Max(maxD, d)
			sum += d
			cnt++
		}
		if cnt > 0 {
			s.MinDepth = minD
			s.MaxDepth = maxD
			s.AvgDepth = sum / float64(cnt)
			s.MaxDeficit = p.TargetDepth - minD
			s.TargetPct = round1(minD / p.TargetDepth * 100)
		}

		switch {
		case s.MaxDeficit > 0.5:
			s.Severity = analysis.SeverityHigh
		case s.MaxDeficit > 0.2:
			s.Severity = analysis.SeverityMedium
		default:
			s.Severity = analysis.SeverityLow
		}
		s.Recommendation = sectionRecommendation(s.Severity)

		sections = append(sections, s)
		start = end + 1
	}

	sort.SliceStable(sections, func(i, j int) bool {
		ri := analysis.SeverityRank(sections[i].Severity)
		rj := analysis.SeverityRank(sections[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return sections[i].MaxDeficit > sections[j].MaxDeficit
	})

	return sections
}

func sectionRecommendation(severity string) string {
	switch severity {
	case analysis.SeverityHigh:
		return "Requires remedial burial"
	case analysis.SeverityMedium:
		return "Consider additional protection"
	default:
		return "Monitor during maintenance"
	}
}
