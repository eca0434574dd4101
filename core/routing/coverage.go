package routing

import (
	"fmt"
	"math"

	"github.com/kilianp07/harvestplan/core/model"
)

// Coverage is a minimal infield planner: harvesting progresses along the
// field's work line in proportion to the harvested fraction.
type Coverage struct{}

// Plan implements InfieldPlanner.
func (Coverage) Plan(req InfieldRequest) (InfieldResult, error) {
	a, b := req.Field.WorkLine()
	at := func(p float64) model.Point { return a.Lerp(b, clamp01(p)) }
	p0, p1 := at(req.HarvestedBefore), at(req.HarvestedAfter)
	s := req.Schedule
	before := req.State.BunkerMass
	after := before
	wp := func(p model.Point, ts float64, typ model.SegmentType, mass float64) model.Waypoint {
		return model.Waypoint{Position: p, Timestamp: ts, Type: typ, BunkerMass: mass}
	}

	var route []model.Waypoint
	switch req.Mode {
	case ModeEnter:
		route = []model.Waypoint{
			wp(req.Entry, s.Arrival, model.SegmentFieldEntry, before),
			wp(p0, s.Leave, model.SegmentTransitInField, before),
		}
	case ModeWork:
		route = []model.Waypoint{
			wp(p0, s.WorkStart, model.SegmentOverloadingStart, before),
			wp(p1, s.WorkEnd, model.SegmentOverloadingFinish, before),
		}
	case ModeServe:
		after = before + req.Mass
		route = []model.Waypoint{
			wp(req.Entry, s.Arrival, model.SegmentFieldEntry, before),
			wp(p0, s.Reach, model.SegmentTransitInField, before),
			wp(p0, s.WorkStart, model.SegmentOverloadingStart, before),
			wp(p1, s.WorkEnd, model.SegmentOverloadingFinish, after),
			wp(req.Entry, s.Leave, model.SegmentFieldExit, after),
		}
	case ModeExit:
		route = []model.Waypoint{
			wp(req.State.Position, s.Arrival, model.SegmentTransitInField, before),
			wp(req.Entry, s.Leave, model.SegmentFieldExit, before),
		}
	default:
		return InfieldResult{}, fmt.Errorf("infield mode %d not supported", req.Mode)
	}
	last := route[len(route)-1]
	return InfieldResult{
		Route:           route,
		State:           MachineSnapshot{Position: last.Position, Timestamp: last.Timestamp, BunkerMass: after},
		FinishedField:   req.HarvestedAfter >= 1-1e-9,
		YieldMassFactor: 1,
	}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
