package routing

import "github.com/kilianp07/harvestplan/core/model"

// StraightRoad routes along the straight line between two points at the
// machine's load-dependent speed.
type StraightRoad struct{}

// Route implements RoadPlanner.
func (StraightRoad) Route(from, to model.Point, m model.Machine, ref model.Waypoint, end model.SegmentType) ([]model.Waypoint, error) {
	start := model.Waypoint{Position: from, Timestamp: ref.Timestamp, Type: model.SegmentTransitOffField, BunkerMass: ref.BunkerMass}
	d := from.Dist(to)
	speed := m.TransitSpeed(ref.BunkerMass)
	if d < 1e-9 || speed <= 0 {
		last := start
		last.Position = to
		last.Type = end
		return []model.Waypoint{start, last}, nil
	}
	dur := d / speed
	mid := start
	mid.Position = from.Lerp(to, 0.5)
	mid.Timestamp = ref.Timestamp + dur/2
	last := start
	last.Position = to
	last.Timestamp = ref.Timestamp + dur
	last.Type = end
	return []model.Waypoint{start, mid, last}, nil
}
