package recommend

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// WeightProfile maps a source name to its non-negative weight. Profiles are
// meant to sum to about 1 but this is not enforced.
type WeightProfile map[string]float64

func (p WeightProfile) Clone() WeightProfile {
	return maps.Clone(p)
}

// Sources returns the sources with a positive weight, sorted by name.
func (p WeightProfile) Sources() []string {
	out := make([]string, 0, len(p))
	for name, w := range p {
		if w > 0 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (p WeightProfile) validate() error {
	for name, w := range p {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weight %q must be a non-negative number, got %v", name, w)
		}
	}
	return nil
}

// normalized scales the profile so that it sums to 1. A zero profile is
// returned unchanged.
func (p WeightProfile) normalized() WeightProfile {
	var sum float64
	for _, w := range p {
		sum += w
	}
	out := make(WeightProfile, len(p))
	for name, w := range p {
		if sum > 0 {
			out[name] = w / sum
		} else {
			out[name] = w
		}
	}
	return out
}

// applyColdStart zeroes content_based and raises hot to at least floor,
// scaling the remaining sources down so the profile still sums to 1.
func (p WeightProfile) applyColdStart(floor float64) WeightProfile {
	out := p.Clone()
	if out == nil {
		out = WeightProfile{}
	}
	out[SourceContentBased] = 0
	out = out.normalized()

	if out[SourceHot] >= floor {
		return out
	}
	var rest float64
	for name, w := range out {
		if name != SourceHot {
			rest += w
		}
	}
	for name, w := range out {
		if name == SourceHot {
			continue
		}
		if rest > 0 {
			out[name] = w / rest * (1 - floor)
		}
	}
	if rest > 0 {
		out[SourceHot] = floor
	} else {
		out[SourceHot] = 1
	}
	return out
}
