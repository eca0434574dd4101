package timeline

import (
	"math"
	"slices"
)

// rebuildSilo derives a silo timeline from its unload events. Between two
// consecutive cut points each overlapping unload contributes its mass times
// min(1, Δcut/Δunload), so overlapping unloads accumulate piecewise
// linearly. Unloads of zero duration add their mass as a step.
func rebuildSilo(initial float64, unloads []*UnloadEvent) *Timeline[SiloInterval] {
	tl := &Timeline[SiloInterval]{}
	cuts := make([]float64, 0, 2*len(unloads))
	for _, u := range unloads {
		cuts = append(cuts, u.TsStart, u.TsEnd)
	}
	slices.Sort(cuts)
	cuts = slices.CompactFunc(cuts, func(a, b float64) bool { return math.Abs(a-b) <= routeEps })

	mass := initial
	if len(cuts) == 0 || cuts[0] > 0 {
		tl.Push(SiloInterval{Span: openAt(0), MassStart: mass, MassEnd: mass})
	}
	for i, c := range cuts {
		for _, u := range unloads {
			if u.TsEnd-u.TsStart <= routeEps && math.Abs(u.TsStart-c) <= routeEps {
				mass += u.Mass
			}
		}
		if i == len(cuts)-1 {
			tl.Push(SiloInterval{Span: openAt(c), MassStart: mass, MassEnd: mass})
			break
		}
		next := cuts[i+1]
		var inflow float64
		for _, u := range unloads {
			du := u.TsEnd - u.TsStart
			if du <= routeEps || u.TsStart > c+routeEps || u.TsEnd < next-routeEps {
				continue
			}
			inflow += u.Mass * math.Min(1, (next-c)/du)
		}
		tl.Push(SiloInterval{Span: closed(c, next), MassStart: mass, MassEnd: mass + inflow})
		mass += inflow
	}
	return tl
}
