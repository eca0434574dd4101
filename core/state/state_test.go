package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/internal/fixture"
)

var (
	fa = model.FieldAccessLoc(fixture.FieldA, 0)
	sa = model.SiloAccessLoc(fixture.NearSilo, 0)
)

func singleTurns() Turns {
	return Turns{
		Fields:   map[model.MachineID][]model.FieldID{fixture.Harvester: {fixture.FieldA}},
		Vehicles: map[model.MachineID][]model.MachineID{fixture.Harvester: {fixture.Vehicle}},
		Cyclic:   true,
	}
}

func newState(t *testing.T, c *model.Campaign) *State {
	t.Helper()
	st, err := New(c, DefaultSettings(), singleTurns())
	require.NoError(t, err)
	return st
}

func initAction() model.Action {
	return model.Action{Kind: model.DriveHarvesterToFieldAndInit, Machine: fixture.Harvester, Field: fixture.FieldA, FieldAccess: fa}
}

func overloadAction() model.Action {
	return model.Action{
		Kind:        model.DriveVehicleToFieldAndOverload,
		Machine:     fixture.Vehicle,
		Harvester:   fixture.Harvester,
		Field:       fixture.FieldA,
		FieldAccess: fa,
	}
}

func siloActions(silo model.SiloID, access model.LocationRef) (model.Action, model.Action) {
	drive := model.Action{Kind: model.DriveToSilo, Machine: fixture.Vehicle, Silo: silo, SiloAccess: access}
	unload := drive
	unload.Kind = model.UnloadAtSilo
	return drive, unload
}

func mustApply(t *testing.T, st *State, a model.Action) Effect {
	t.Helper()
	e, err := st.Apply(a)
	if err != nil {
		t.Fatalf("apply %s: %v", a, err)
	}
	return e
}

func TestApplyScenarioA(t *testing.T) {
	st := newState(t, fixture.ScenarioA(t))
	drive, unload := siloActions(fixture.NearSilo, sa)

	e := mustApply(t, st, initAction())
	assert.InDelta(t, 100, e.Arrival, 1e-9)
	assert.InDelta(t, 130, e.End, 1e-9)
	h, _ := st.Machine(fixture.Harvester)
	assert.Equal(t, model.FieldLoc(fixture.FieldA), h.Location)

	e = mustApply(t, st, overloadAction())
	assert.InDelta(t, 50, e.Arrival, 1e-9)
	assert.InDelta(t, 80, e.Reach, 1e-9)
	assert.InDelta(t, 130, e.OpStart, 1e-9)
	assert.InDelta(t, 274, e.OpEnd, 1e-9)
	assert.InDelta(t, 304, e.End, 1e-9)
	assert.InDelta(t, 50, e.Wait, 1e-9)
	assert.InDelta(t, 6000, e.Mass, 1e-9)
	assert.InDelta(t, 4000, e.RemainingAfter, 1e-9)
	assert.False(t, e.FieldFinished)

	e = mustApply(t, st, drive)
	assert.InDelta(t, 504, e.Arrival, 1e-9)
	assert.True(t, e.TurnAdvanced)
	v, _ := st.Machine(fixture.Vehicle)
	assert.Equal(t, sa, v.Location)

	e = mustApply(t, st, unload)
	assert.InDelta(t, 504, e.OpStart, 1e-9)
	assert.InDelta(t, 564, e.OpEnd, 1e-9)
	assert.InDelta(t, 6000, e.SiloMassAfter, 1e-9)

	e = mustApply(t, st, overloadAction())
	assert.InDelta(t, 694, e.OpStart, 1e-9)
	assert.InDelta(t, 790, e.OpEnd, 1e-9)
	assert.InDelta(t, 420, e.HarvesterWait, 1e-9)
	assert.InDelta(t, 4000, e.Mass, 1e-9)
	assert.True(t, e.FieldFinished)
	_, ok := st.CurrentField(fixture.Harvester)
	assert.False(t, ok, "field cursor advances once the field is finished")

	e = mustApply(t, st, drive)
	assert.InDelta(t, 970, e.Arrival, 1e-6)
	e = mustApply(t, st, unload)
	assert.InDelta(t, 1010, e.OpEnd, 1e-6)

	sl, _ := st.Silo(fixture.NearSilo)
	assert.InDelta(t, 10000, sl.Mass, 1e-9)
	f, _ := st.Field(fixture.FieldA)
	assert.True(t, f.Finished)
	assert.InDelta(t, 10000, f.Harvested(), 1e-9)
	v, _ = st.Machine(fixture.Vehicle)
	assert.Zero(t, v.BunkerMass)
}

func TestApplyFailureLeavesStateUntouched(t *testing.T) {
	st := newState(t, fixture.ScenarioA(t))
	before := st.Clone()

	_, err := st.Apply(overloadAction())
	r, ok := ReasonOf(err)
	require.True(t, ok, "want Infeasible, got %v", err)
	assert.Equal(t, TurnViolation, r)
	assert.Equal(t, before.machines, st.machines)
	assert.Equal(t, before.fields, st.fields)
}

func withCampaign(edit func(c *model.Campaign)) func(t *testing.T) *model.Campaign {
	return func(t *testing.T) *model.Campaign {
		c := fixture.ScenarioA(t)
		edit(c)
		require.NoError(t, c.Prepare())
		return c
	}
}

func TestApplyReasons(t *testing.T) {
	drive, unload := siloActions(fixture.NearSilo, sa)
	tests := []struct {
		name     string
		campaign func(t *testing.T) *model.Campaign
		setup    []model.Action
		action   model.Action
		reason   Reason
	}{
		{
			name:   "overload before init",
			action: overloadAction(),
			reason: TurnViolation,
		},
		{
			name:   "unload away from silo",
			setup:  []model.Action{initAction(), overloadAction()},
			action: unload,
			reason: NoSiloAccess,
		},
		{
			name:     "no route to field",
			campaign: withCampaign(func(c *model.Campaign) { c.Transit = c.Transit[1:] }),
			action:   initAction(),
			reason:   NoFieldAccess,
		},
		{
			name: "field already harvested",
			campaign: withCampaign(func(c *model.Campaign) {
				c.FieldInit = []model.FieldInit{{Field: fixture.FieldA, HarvestedPercentage: 100}}
			}),
			action: initAction(),
			reason: FieldAlreadyFinished,
		},
		{
			name: "vehicle already full",
			campaign: withCampaign(func(c *model.Campaign) {
				c.MachineInit[1].BunkerMass = 6000
			}),
			setup:  []model.Action{initAction()},
			action: overloadAction(),
			reason: NoCapacity,
		},
		{
			name:     "silo too small",
			campaign: func(t *testing.T) *model.Campaign { return fixture.ScenarioC(t) },
			setup:    []model.Action{initAction(), overloadAction()},
			action:   drive,
			reason:   NoCapacity,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := fixture.ScenarioA(t)
			if tc.campaign != nil {
				c = tc.campaign(t)
			}
			st := newState(t, c)
			for _, a := range tc.setup {
				mustApply(t, st, a)
			}
			_, err := st.Apply(tc.action)
			r, ok := ReasonOf(err)
			require.True(t, ok, "want Infeasible, got %v", err)
			assert.Equal(t, tc.reason, r)
		})
	}
}

func TestApplyUnknownEntity(t *testing.T) {
	st := newState(t, fixture.ScenarioA(t))
	a := initAction()
	a.Machine = fixture.Vehicle
	_, err := st.Apply(a)
	assert.ErrorIs(t, err, model.ErrUnknownEntity)

	a = overloadAction()
	a.FieldAccess = model.SiloAccessLoc(fixture.NearSilo, 0)
	_, err = st.Apply(a)
	assert.ErrorIs(t, err, model.ErrUnknownEntity)
}

func TestApplyEmbeddedTiming(t *testing.T) {
	st := newState(t, fixture.ScenarioA(t))
	a := initAction()
	a.Timing = &model.Timing{Start: 10, Arrival: 200, End: 240}
	e := mustApply(t, st, a)
	assert.InDelta(t, 200, e.Arrival, 1e-9)
	h, _ := st.Machine(fixture.Harvester)
	assert.InDelta(t, 240, h.Timestamp, 1e-9)

	o := overloadAction()
	o.Timing = &model.Timing{Start: 0, Arrival: 100, Reach: 90, OpStart: 80, OpEnd: 300, End: 330}
	_, err := st.Apply(o)
	require.True(t, errors.Is(err, ErrInvalidTiming), "got %v", err)

	o.Timing = &model.Timing{Start: 0, Arrival: 100, OpStart: 200, OpEnd: 300, End: 330}
	_, err = st.Apply(o)
	require.True(t, errors.Is(err, ErrInvalidTiming), "harvester busy until 240, got %v", err)
	h, _ = st.Machine(fixture.Harvester)
	assert.InDelta(t, 240, h.Timestamp, 1e-9, "rejected action leaves the snapshot unchanged")

	o.Timing = &model.Timing{Start: 0, Arrival: 100, OpStart: 240, OpEnd: 400, End: 430}
	e = mustApply(t, st, o)
	assert.InDelta(t, 100, e.Reach, 1e-9, "missing reach falls back to arrival")
	assert.InDelta(t, 140, e.Wait, 1e-9)

	drive, unload := siloActions(fixture.NearSilo, sa)
	drive.Timing = &model.Timing{Start: 400, Arrival: 600}
	_, err = st.Apply(drive)
	require.True(t, errors.Is(err, ErrInvalidTiming), "vehicle busy until 430, got %v", err)
	drive.Timing = &model.Timing{Start: 430, Arrival: 600}
	mustApply(t, st, drive)

	unload.Timing = &model.Timing{OpStart: 590, OpEnd: 650, End: 650}
	_, err = st.Apply(unload)
	require.True(t, errors.Is(err, ErrInvalidTiming), "vehicle busy until 600, got %v", err)
	unload.Timing = &model.Timing{OpStart: 620, OpEnd: 680, End: 680}
	e = mustApply(t, st, unload)
	assert.InDelta(t, 20, e.Wait, 1e-9)
}

func TestNewHonoursFieldProgress(t *testing.T) {
	c := withCampaign(func(c *model.Campaign) {
		c.FieldInit = []model.FieldInit{{Field: fixture.FieldA, HarvestedPercentage: 40}}
	})(t)
	st := newState(t, c)
	f, ok := st.Field(fixture.FieldA)
	require.True(t, ok)
	assert.InDelta(t, 6000, f.Remaining, 1e-9)
	assert.InDelta(t, 4000, f.Harvested(), 1e-9)

	mustApply(t, st, initAction())
	e := mustApply(t, st, overloadAction())
	assert.True(t, e.FieldFinished)
	assert.InDelta(t, 6000, e.Mass, 1e-9)
}

func TestCyclicVehicleTurns(t *testing.T) {
	c := fixture.Fleet(t)
	turns := Turns{
		Fields:   map[model.MachineID][]model.FieldID{fixture.Harvester: {fixture.FieldA}},
		Vehicles: map[model.MachineID][]model.MachineID{fixture.Harvester: {fixture.Vehicle, fixture.SecondVehicle}},
		Cyclic:   true,
	}
	st, err := New(c, DefaultSettings(), turns)
	require.NoError(t, err)
	mustApply(t, st, initAction())
	mustApply(t, st, overloadAction())

	drive, _ := siloActions(fixture.NearSilo, sa)
	mustApply(t, st, drive)
	cur, _ := st.CurrentVehicle(fixture.Harvester)
	assert.Equal(t, fixture.SecondVehicle, cur)

	o := overloadAction()
	o.Machine = fixture.SecondVehicle
	mustApply(t, st, o)
	drive.Machine = fixture.SecondVehicle
	e := mustApply(t, st, drive)
	assert.True(t, e.TurnAdvanced)
	cur, _ = st.CurrentVehicle(fixture.Harvester)
	assert.Equal(t, fixture.Vehicle, cur, "rotation wraps")
}

func TestCloneIsIndependent(t *testing.T) {
	st := newState(t, fixture.ScenarioA(t))
	cp := st.Clone()
	mustApply(t, cp, initAction())
	h, _ := st.Machine(fixture.Harvester)
	assert.Equal(t, model.MachineInitLoc(fixture.Harvester), h.Location)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	s.InfieldTransitSeconds = -1
	assert.Error(t, s.Validate())
}
