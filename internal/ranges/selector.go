// Package ranges picks viewing ranges worth an operator's attention:
// deficit sections and variation zones ranked by importance, plus the
// always-present full-dataset view.
package ranges

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// Selector identifies recommended viewing ranges over a bound dataset.
// Instances are immutable after construction and safe for concurrent use.
type Selector struct {
	params Params
	logger *slog.Logger
}

// NewSelector validates params and returns a ready selector.
func NewSelector(params Params, logger *slog.Logger) (*Selector, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("range selector: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{params: params, logger: logger}, nil
}

// Params returns the selection parameters in use.
func (s *Selector) Params() Params { return s.params }

// FindProblemSections returns runs of at least MinSectionSize points
// whose depth falls below target minus MinDeficit.
func (s *Selector) FindProblemSections(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) ([]Section, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("range selector: column %q is not bound to numeric data", b.Depth)
	}
	axis := dataset.ResolvePositionAxis(ds, b)
	return s.problemSections(depths, axis, s.params.MinSectionSize, s.params.MinDeficit), nil
}

// FindVariationZones returns stretches where the centered rolling
// standard deviation of depth exceeds StdThreshold.
func (s *Selector) FindVariationZones(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) ([]Zone, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("range selector: column %q is not bound to numeric data", b.Depth)
	}
	axis := dataset.ResolvePositionAxis(ds, b)
	return s.variationZones(depths, axis, s.params.WindowSize, s.params.StdThreshold), nil
}

// Recommend assembles up to MaxRanges viewing ranges: the full dataset
// first, then the worst deficit section, then the strongest variation
// zone that does not collide with it, then remaining candidates by
// importance.
func (s *Selector) Recommend(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) ([]Range, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("range selector: column %q is not bound to numeric data", b.Depth)
	}
	n := len(depths)
	if n == 0 {
		return nil, nil
	}
	axis := dataset.ResolvePositionAxis(ds, b)

	sections := s.problemSections(depths, axis, recommendSectionSize, recommendMinDeficit)
	zones := s.variationZones(depths, axis, recommendWindowSize, recommendStdThreshold)

	out := []Range{{
		StartIndex:  0,
		EndIndex:    n - 1,
		StartPos:    axis.Value(0),
		EndPos:      axis.Value(n - 1),
		Name:        "Full Dataset",
		Description: fmt.Sprintf("Complete view of all %d data points", n),
		Type:        TypeFull,
	}}

	if len(sections) > 0 {
		top := sections[0]
		for _, sec := range sections[1:] {
			if sec.MaxDeficit > top.MaxDeficit {
				top = sec
			}
		}
		out = append(out, s.deficitRange(n, axis, top))
	}

	if len(zones) > 0 {
		top := zones[0]
		for _, z := range zones[1:] {
			if z.StdDev > top.StdDev {
				top = z
			}
		}
		r := s.variationRange(n, axis, top)
		switch {
		case !overlapsAny(r, out[1:], 0.7):
			out = append(out, r)
		case len(zones) > 1:
			// Fall back to the next zone along the cable.
			alt := s.variationRange(n, axis, zones[1])
			if !overlapsAny(alt, out[1:], 0.7) {
				out = append(out, alt)
			}
		}
	}

	if len(out) < s.params.MaxRanges {
		candidates := make([]Range, 0, len(sections)+len(zones))
		importance := make(map[int]float64, len(sections)+len(zones))
		for _, sec := range sections {
			candidates = append(candidates, s.deficitRange(n, axis, sec))
			importance[len(candidates)-1] = sec.Importance
		}
		for _, z := range zones {
			candidates = append(candidates, s.variationRange(n, axis, z))
			importance[len(candidates)-1] = z.Importance
		}
		order := make([]int, len(candidates))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return importance[order[i]] > importance[order[j]]
		})

		for _, idx := range order {
			if len(out) >= s.params.MaxRanges {
				break
			}
			// Overlap is measured against the picked ranges only; the
			// full-dataset view spans everything and would veto every
			// candidate.
			if !overlapsAny(candidates[idx], out[1:], 0.5) {
				out = append(out, candidates[idx])
			}
		}
	}

	s.logger.InfoContext(ctx, "viewing ranges recommended",
		slog.Int("ranges", len(out)),
		slog.Int("problem_sections", len(sections)),
		slog.Int("variation_zones", len(zones)))
	return out, nil
}

func (s *Selector) problemSections(depths []float64, axis dataset.PositionAxis, minSize int, minDeficit float64) []Section {
	cutoff := s.params.TargetDepth - minDeficit

	var sections []Section
	start := -1
	for i := 0; i <= len(depths); i++ {
		// Missing depths compare false and so break runs.
		below := i < len(depths) && depths[i] < cutoff
		if below && start < 0 {
			start = i
		}
		if !below && start >= 0 {
			end := i - 1
			if size := end - start + 1; size >= minSize {
				minDepth := depths[start]
				for _, d := range depths[start+1 : end+1] {
					if d < minDepth {
						minDepth = d
					}
				}
				maxDeficit := s.params.TargetDepth - minDepth
				sections = append(sections, Section{
					StartIndex: start,
					EndIndex:   end,
					StartPos:   axis.Value(start),
					EndPos:     axis.Value(end),
					Size:       size,
					MinDepth:   minDepth,
					MaxDeficit: maxDeficit,
					Importance: maxDeficit * float64(size),
				})
			}
			start = -1
		}
	}
	return sections
}

func (s *Selector) variationZones(depths []float64, axis dataset.PositionAxis, window int, threshold float64) []Zone {
	stds := rollingStd(depths, window)

	var zones []Zone
	start := -1
	for i := 0; i <= len(stds); i++ {
		high := i < len(stds) && stds[i] > threshold
		if high && start < 0 {
			start = i
		}
		if !high && start >= 0 {
			end := i - 1
			lo := start - window/2
			if lo < 0 {
				lo = 0
			}
			hi := end + window/2
			if hi > len(depths)-1 {
				hi = len(depths) - 1
			}
			if size := hi - lo + 1; size >= window/2 {
				std, depthRange := zoneStats(depths[lo : hi+1])
				zones = append(zones, Zone{
					StartIndex: lo,
					EndIndex:   hi,
					StartPos:   axis.Value(lo),
					EndPos:     axis.Value(hi),
					Size:       size,
					StdDev:     std,
					DepthRange: depthRange,
					Importance: std * float64(size),
				})
			}
			start = -1
		}
	}
	return zones
}

func (s *Selector) deficitRange(n int, axis dataset.PositionAxis, sec Section) Range {
	lo, hi := contextWindow(n, sec.StartIndex, sec.EndIndex)
	return Range{
		StartIndex:  lo,
		EndIndex:    hi,
		StartPos:    axis.Value(lo),
		EndPos:      axis.Value(hi),
		Name:        fmt.Sprintf("Depth Deficit (%.2fm)", sec.MaxDeficit),
		Description: fmt.Sprintf("Section with burial depth %.2fm below target", sec.MaxDeficit),
		Type:        TypeDeficit,
	}
}

func (s *Selector) variationRange(n int, axis dataset.PositionAxis, z Zone) Range {
	lo, hi := contextWindow(n, z.StartIndex, z.EndIndex)
	return Range{
		StartIndex:  lo,
		EndIndex:    hi,
		StartPos:    axis.Value(lo),
		EndPos:      axis.Value(hi),
		Name:        fmt.Sprintf("Depth Variation (±%.2fm)", z.DepthRange),
		Description: fmt.Sprintf("Section with significant depth variations (std: %.2fm)", z.StdDev),
		Type:        TypeVariation,
	}
}
