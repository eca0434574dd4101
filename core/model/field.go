package model

import "math"

// Field is a harvestable area with its access points on the boundary.
type Field struct {
	ID   FieldID `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	// Area in m².
	Area float64 `json:"area" yaml:"area"`
	// YieldMass is the total yield of the field in kg.
	YieldMass float64 `json:"yield_mass" yaml:"yield_mass"`
	Boundary  []Point `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	Accesses  []Point `json:"accesses" yaml:"accesses"`
}

// AreaPerYieldMass returns m² per kg of yield, 0 for fields without yield.
func (f Field) AreaPerYieldMass() float64 {
	if f.YieldMass <= 0 {
		return 0
	}
	return f.Area / f.YieldMass
}

// Center returns the boundary centroid, falling back to the access centroid.
func (f Field) Center() Point {
	if len(f.Boundary) > 0 {
		return Centroid(f.Boundary)
	}
	return Centroid(f.Accesses)
}

// WorkLine returns the segment along which harvesting progresses: from the
// first access point to the boundary vertex farthest from it.
func (f Field) WorkLine() (Point, Point) {
	var a Point
	if len(f.Accesses) > 0 {
		a = f.Accesses[0]
	} else {
		a = f.Center()
	}
	b := f.Center()
	best := -math.MaxFloat64
	for _, p := range f.Boundary {
		if d := a.Dist(p); d > best {
			best = d
			b = p
		}
	}
	return a, b
}

// Silo stores harvested yield. A Capacity <= 0 means unlimited.
type Silo struct {
	ID       SiloID  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
	Accesses []Point `json:"accesses" yaml:"accesses"`
}

// EffectiveCapacity returns Capacity, or +Inf when unlimited.
func (s Silo) EffectiveCapacity() float64 {
	if s.Capacity <= 0 {
		return math.Inf(1)
	}
	return s.Capacity
}
