package timeline

import (
	"fmt"
	"math"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/routing"
)

// posEps is the distance under which a machine is considered to be at a point.
const posEps = 1e-6

// roadTo appends an off-field connector from the machine's position to dst.
// The connector is rescaled so that it starts at start and ends exactly at
// arrival, whatever duration the road planner computed.
func (dc *decoding) roadTo(id model.MachineID, m model.Machine, dst model.Point, start, arrival, bunker float64, end model.SegmentType) error {
	cur := dc.cursors[id]
	ref := model.Waypoint{Position: cur.pos, Timestamp: start, Type: model.SegmentTransitOffField, BunkerMass: bunker}
	wps, err := dc.opts.Road.Route(cur.pos, dst, m, ref, end)
	if err != nil {
		return fmt.Errorf("road route for machine %d: %w", id, err)
	}
	if len(wps) < 2 {
		return structural(dc.index, dc.action, "road route for machine %d has %d waypoints", id, len(wps))
	}
	rescale(wps, start, arrival)
	dc.appendRoute(id, wps)
	return nil
}

// enterField plans the infield segment of a machine arriving at a field.
// When the segment does not start where the machine is, a road connector
// from start to the first infield waypoint is spliced in front of it.
func (dc *decoding) enterField(id model.MachineID, m model.Machine, req routing.InfieldRequest, start float64) (routing.InfieldResult, error) {
	res, err := dc.planInfield(id, req)
	if err != nil {
		return res, err
	}
	first := res.Route[0]
	if dc.cursors[id].pos.Dist(first.Position) > posEps {
		if err := dc.roadTo(id, m, first.Position, start, first.Timestamp, req.State.BunkerMass, model.SegmentFieldEntry); err != nil {
			return res, err
		}
	}
	dc.appendRoute(id, res.Route)
	return res, nil
}

// infield plans and appends an infield segment.
func (dc *decoding) infield(id model.MachineID, req routing.InfieldRequest) (routing.InfieldResult, error) {
	res, err := dc.planInfield(id, req)
	if err != nil {
		return res, err
	}
	dc.appendRoute(id, res.Route)
	return res, nil
}

func (dc *decoding) planInfield(id model.MachineID, req routing.InfieldRequest) (routing.InfieldResult, error) {
	res, err := dc.opts.Infield.Plan(req)
	if err != nil {
		return res, fmt.Errorf("infield route for machine %d: %w", id, err)
	}
	if len(res.Route) < 2 {
		return res, structural(dc.index, dc.action, "infield route for machine %d has %d waypoints", id, len(res.Route))
	}
	return res, nil
}

// appendRoute concatenates seg to the machine route. Waypoints later than the
// segment start are dropped first and a first waypoint duplicating the route
// end is elided.
func (dc *decoding) appendRoute(id model.MachineID, seg []model.Waypoint) {
	if len(seg) == 0 {
		return
	}
	r := dc.res.Routes[id]
	for len(r) > 0 && r[len(r)-1].Timestamp > seg[0].Timestamp+routeEps {
		r = r[:len(r)-1]
	}
	if len(r) > 0 && math.Abs(r[len(r)-1].Timestamp-seg[0].Timestamp) <= routeEps {
		seg = seg[1:]
	}
	dc.res.Routes[id] = append(r, seg...)
}

// rescale maps the waypoint timestamps linearly onto [start, target].
func rescale(wps []model.Waypoint, start, target float64) {
	t0 := wps[0].Timestamp
	orig := wps[len(wps)-1].Timestamp - t0
	dur := target - start
	for i := range wps {
		if orig > routeEps {
			wps[i].Timestamp = start + (wps[i].Timestamp-t0)*dur/orig
		} else {
			wps[i].Timestamp = start
		}
	}
	wps[len(wps)-1].Timestamp = target
}

// positionOf returns the position of the first waypoint of type typ.
func positionOf(route []model.Waypoint, typ model.SegmentType, fallback model.Point) model.Point {
	for _, wp := range route {
		if wp.Type == typ {
			return wp.Position
		}
	}
	return fallback
}
