package timeline

import (
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/state"
)

// PlanReplaySource resolves the timing of the actions being decoded. The
// decoder behaves the same whichever source produced the action list.
type PlanReplaySource interface {
	Name() string
	// Turns returns the turn queues the actions were planned with.
	Turns(c *model.Campaign, actions []model.Action) (state.Turns, error)
	// Resolve applies a to st and returns its effect.
	Resolve(st *state.State, a model.Action) (state.Effect, error)
}

// PhysicsReplay derives every timestamp from the machine physics, ignoring
// embedded timings. It replays plans built by the scheduler.
type PhysicsReplay struct {
	// Plan holds the scheduler's turn queues. When empty they are inferred
	// from the actions.
	Plan state.Turns
}

// Name implements PlanReplaySource.
func (PhysicsReplay) Name() string { return "physics" }

// Turns implements PlanReplaySource.
func (p PhysicsReplay) Turns(_ *model.Campaign, actions []model.Action) (state.Turns, error) {
	if len(p.Plan.Fields) > 0 {
		return p.Plan, nil
	}
	return InferTurns(actions), nil
}

// Resolve implements PlanReplaySource.
func (PhysicsReplay) Resolve(st *state.State, a model.Action) (state.Effect, error) {
	a.Timing = nil
	return st.Apply(a)
}

// EmbeddedPlan decodes action lists received from an external planner,
// honouring embedded timings when present.
type EmbeddedPlan struct{}

// Name implements PlanReplaySource.
func (EmbeddedPlan) Name() string { return "embedded" }

// Turns implements PlanReplaySource.
func (EmbeddedPlan) Turns(_ *model.Campaign, actions []model.Action) (state.Turns, error) {
	return InferTurns(actions), nil
}

// Resolve implements PlanReplaySource.
func (EmbeddedPlan) Resolve(st *state.State, a model.Action) (state.Effect, error) {
	return st.Apply(a)
}

// InferTurns rebuilds non-cyclic turn queues from an action list: fields in
// the order harvesters initialise them, and one vehicle turn per service
// run, a run ending when the vehicle drives to a silo.
func InferTurns(actions []model.Action) state.Turns {
	turns := state.Turns{
		Fields:   make(map[model.MachineID][]model.FieldID),
		Vehicles: make(map[model.MachineID][]model.MachineID),
	}
	serving := make(map[model.MachineID]bool)
	for _, a := range actions {
		switch a.Kind {
		case model.DriveHarvesterToFieldAndInit:
			turns.Fields[a.Machine] = append(turns.Fields[a.Machine], a.Field)
		case model.DriveVehicleToFieldAndOverload:
			if !serving[a.Machine] {
				turns.Vehicles[a.Harvester] = append(turns.Vehicles[a.Harvester], a.Machine)
				serving[a.Machine] = true
			}
		case model.DriveToSilo:
			serving[a.Machine] = false
		}
	}
	return turns
}
