// Package routing defines the road and infield routing collaborators used by
// the timeline decoder, with straight-line defaults.
package routing

import "github.com/kilianp07/harvestplan/core/model"

// RoadPlanner plans off-field transit between two points.
type RoadPlanner interface {
	// Route returns a timed path from -> to. The first waypoint carries
	// ref's timestamp and bunker mass; the last one is tagged with end.
	Route(from, to model.Point, m model.Machine, ref model.Waypoint, end model.SegmentType) ([]model.Waypoint, error)
}

// InfieldPlanner plans the part of a machine route inside a field.
type InfieldPlanner interface {
	Plan(req InfieldRequest) (InfieldResult, error)
}

// Mode selects what an infield route covers.
type Mode uint8

const (
	// ModeEnter drives a harvester from the access point to its working position.
	ModeEnter Mode = iota + 1
	// ModeWork harvests and overloads into a vehicle.
	ModeWork
	// ModeServe drives a vehicle in, receives the overload and drives it out.
	ModeServe
	// ModeExit drives a machine from its working position to an access point.
	ModeExit
)

func (m Mode) String() string {
	switch m {
	case ModeEnter:
		return "enter"
	case ModeWork:
		return "work"
	case ModeServe:
		return "serve"
	case ModeExit:
		return "exit"
	default:
		return "unknown"
	}
}

// MachineSnapshot is the state of a machine handed to and returned by an
// infield planner.
type MachineSnapshot struct {
	Position   model.Point
	Timestamp  float64
	BunkerMass float64
}

// Schedule holds the timestamps an infield route has to honour.
type Schedule struct {
	Arrival   float64
	Reach     float64
	WorkStart float64
	WorkEnd   float64
	Leave     float64
}

// InfieldRequest describes one infield segment.
type InfieldRequest struct {
	Field   model.Field
	Machine model.Machine
	State   MachineSnapshot
	Mode    Mode
	// Entry is the access point used to enter or leave the field.
	Entry model.Point
	// HarvestedBefore and HarvestedAfter are harvested fractions of the field.
	HarvestedBefore float64
	HarvestedAfter  float64
	// Mass is the yield overloaded during the segment.
	Mass     float64
	Schedule Schedule
}

// InfieldResult is the planned segment.
type InfieldResult struct {
	Route         []model.Waypoint
	State         MachineSnapshot
	FinishedField bool
	// YieldMassFactor corrects the nominal field yield for what the
	// coverage route actually achieves.
	YieldMassFactor float64
}
