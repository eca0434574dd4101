package scheduler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/state"
	"github.com/kilianp07/harvestplan/internal/fixture"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	return s
}

func kinds(actions []model.Action) []model.ActionKind {
	out := make([]model.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestScheduleScenarioA(t *testing.T) {
	plan, err := newScheduler(t).Schedule(fixture.ScenarioA(t))
	require.NoError(t, err)
	assert.Equal(t, []model.ActionKind{
		model.DriveHarvesterToFieldAndInit,
		model.DriveVehicleToFieldAndOverload,
		model.DriveToSilo,
		model.UnloadAtSilo,
		model.DriveVehicleToFieldAndOverload,
		model.DriveToSilo,
		model.UnloadAtSilo,
	}, kinds(plan.Actions))
	assert.Nil(t, plan.Failed)
	assert.Equal(t, model.FieldAccessLoc(fixture.FieldA, 0), plan.Actions[0].FieldAccess)
}

func TestSchedulePicksSiloWithCapacity(t *testing.T) {
	plan, err := newScheduler(t).Schedule(fixture.ScenarioC(t))
	require.NoError(t, err)
	var silos []model.SiloID
	for _, a := range plan.Actions {
		if a.Kind == model.UnloadAtSilo {
			silos = append(silos, a.Silo)
		}
	}
	// The near silo only takes 5 t: the first 6 t load must go far.
	assert.Equal(t, []model.SiloID{fixture.FarSilo, fixture.NearSilo}, silos)
}

func TestSchedulePlanReplays(t *testing.T) {
	c := fixture.Fleet(t)
	s := newScheduler(t)
	plan, err := s.Schedule(c)
	require.NoError(t, err)

	st, err := state.New(c, s.Config.Physics, plan.Turns)
	require.NoError(t, err)
	for i, a := range plan.Actions {
		if _, err := st.Apply(a); err != nil {
			t.Fatalf("action %d %s: %v", i, a, err)
		}
	}
	var total float64
	for _, f := range c.Fields {
		fs, _ := st.Field(f.ID)
		assert.True(t, fs.Finished, "field %d", f.ID)
		total += fs.Harvested()
	}
	sl, _ := st.Silo(fixture.NearSilo)
	assert.InDelta(t, total, sl.Mass, 1e-6)
	for _, v := range []model.MachineID{fixture.Vehicle, fixture.SecondVehicle} {
		m, _ := st.Machine(v)
		assert.Zero(t, m.BunkerMass, "vehicle %d ends empty", v)
	}
}

func TestScheduleReturnsPartialPlan(t *testing.T) {
	c := fixture.ScenarioA(t)
	c.Transit = c.Transit[:3]
	require.NoError(t, c.Prepare())

	plan, err := newScheduler(t).Schedule(c)
	require.Error(t, err)
	r, ok := state.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, state.NoSiloAccess, r)
	assert.Len(t, plan.Actions, 2)
	require.NotNil(t, plan.Failed)
	assert.Equal(t, model.DriveToSilo, plan.Failed.Kind)
}

func TestScheduleExitsFinishedField(t *testing.T) {
	c := fixture.Fleet(t)
	c.Assignments.Fields = []model.FieldTurn{
		{Field: fixture.FieldA, Harvester: fixture.Harvester, Turn: 1},
		{Field: fixture.FieldB, Harvester: fixture.Harvester, Turn: 2},
		{Field: fixture.FieldC, Harvester: fixture.Harvester, Turn: 3},
	}
	require.NoError(t, c.Prepare())
	plan, err := newScheduler(t).Schedule(c)
	require.NoError(t, err)
	var exits int
	for _, a := range plan.Actions {
		if a.Kind == model.DriveToFieldExit {
			exits++
			assert.Equal(t, fixture.Harvester, a.Machine)
		}
	}
	assert.Equal(t, 2, exits)
}

func TestResolveAssignmentsFleet(t *testing.T) {
	turns, err := ResolveAssignments(fixture.Fleet(t), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []model.FieldID{fixture.FieldA, fixture.FieldC}, turns.Fields[fixture.Harvester])
	assert.Equal(t, []model.FieldID{fixture.FieldB}, turns.Fields[fixture.SlowHarvester])
	assert.Equal(t, []model.MachineID{fixture.Vehicle}, turns.Vehicles[fixture.Harvester])
	assert.Equal(t, []model.MachineID{fixture.SecondVehicle}, turns.Vehicles[fixture.SlowHarvester])
	assert.True(t, turns.Cyclic)
}

func TestResolveAssignmentsKeepsPreassigned(t *testing.T) {
	c := fixture.Fleet(t)
	c.Assignments = model.Assignments{
		Fields: []model.FieldTurn{
			{Field: fixture.FieldC, Harvester: fixture.SlowHarvester, Turn: 1},
			{Field: fixture.FieldA, Harvester: fixture.SlowHarvester, Turn: 2},
		},
		Vehicles: []model.VehicleTurn{
			{Vehicle: fixture.SecondVehicle, Harvester: fixture.SlowHarvester, Turn: 1},
			{Vehicle: fixture.Vehicle, Harvester: fixture.SlowHarvester, Turn: 2},
		},
	}
	require.NoError(t, c.Prepare())
	turns, err := ResolveAssignments(c, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []model.FieldID{fixture.FieldC, fixture.FieldA}, turns.Fields[fixture.SlowHarvester][:2])
	assert.Equal(t, []model.MachineID{fixture.SecondVehicle, fixture.Vehicle}, turns.Vehicles[fixture.SlowHarvester])
}

func TestResolveAssignmentsRejectsGaps(t *testing.T) {
	c := fixture.ScenarioA(t)
	c.Assignments.Fields = []model.FieldTurn{{Field: fixture.FieldA, Harvester: fixture.Harvester, Turn: 2}}
	require.NoError(t, c.Prepare())
	_, err := ResolveAssignments(c, DefaultConfig())
	assert.Error(t, err)

	c.Assignments.Fields = []model.FieldTurn{{Field: fixture.FieldA, Harvester: fixture.Vehicle, Turn: 1}}
	require.NoError(t, c.Prepare())
	_, err = ResolveAssignments(c, DefaultConfig())
	assert.ErrorIs(t, err, model.ErrUnknownEntity)
}

func TestDecodeConfig(t *testing.T) {
	data := "unload_after_fill: 0.6\ncyclic_vehicle_turns: false\nphysics:\n  infield_transit_seconds: 10\n"
	cfg, err := DecodeConfig(bytes.NewBufferString(data), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, 0.6, cfg.UnloadAfterFill)
	assert.Equal(t, 0.9, cfg.UnloadBeforeFill)
	assert.False(t, cfg.Cyclic())
	assert.Equal(t, 10.0, cfg.Physics.InfieldTransitSeconds)
	assert.Equal(t, 1.2, cfg.Physics.OverloadTimeFactor)

	_, err = DecodeConfig(bytes.NewBufferString(`{"unload_before_fill": 2}`), "json")
	assert.Error(t, err)
	_, err = DecodeConfig(bytes.NewBufferString(""), "toml")
	assert.Error(t, err)
}
