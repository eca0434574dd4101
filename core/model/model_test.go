package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationRefText(t *testing.T) {
	refs := []LocationRef{
		FieldLoc(3),
		FieldAccessLoc(3, 1),
		SiloLoc(2),
		SiloAccessLoc(2, 0),
		MachineInitLoc(7),
	}
	for _, r := range refs {
		got, err := ParseLocation(r.String())
		require.NoError(t, err, r.String())
		assert.Equal(t, r, got)
	}
	assert.Equal(t, "field_access:3:1", FieldAccessLoc(3, 1).String())

	for _, bad := range []string{"barn:1", "field:x", "silo_access:1", "init:1:2"} {
		_, err := ParseLocation(bad)
		if !errors.Is(err, ErrUnknownLocation) {
			t.Fatalf("%s: expected ErrUnknownLocation, got %v", bad, err)
		}
	}
}

func TestTransitTableDistance(t *testing.T) {
	a, b, c := FieldAccessLoc(1, 0), SiloAccessLoc(1, 0), MachineInitLoc(1)
	tbl := NewTransitTable([]TransitEntry{
		{From: a, To: b, Distance: 100, Symmetric: true},
		{From: c, To: b, Distance: -1},
	})
	d, ok := tbl.Distance(a, b)
	assert.True(t, ok)
	assert.Equal(t, 100.0, d)
	d, ok = tbl.Distance(b, a)
	assert.True(t, ok)
	assert.Equal(t, 100.0, d)
	_, ok = tbl.Distance(c, b)
	assert.False(t, ok, "negative sentinel must be unreachable")
	_, ok = tbl.Distance(c, a)
	assert.False(t, ok, "missing entry must be unreachable")
	d, ok = tbl.Distance(c, c)
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestMachineTransitSpeed(t *testing.T) {
	m := Machine{SpeedEmpty: 10, SpeedFull: 6, BunkerCapacity: 1000}
	assert.InDelta(t, 10, m.TransitSpeed(0), 1e-12)
	assert.InDelta(t, 8, m.TransitSpeed(500), 1e-12)
	assert.InDelta(t, 6, m.TransitSpeed(2000), 1e-12)
	assert.InDelta(t, 0.25, m.Fill(250), 1e-12)
}

const campaignYAML = `
name: small
fields:
  - id: 1
    area: 10000
    yield_mass: 10000
    accesses: [{x: 0, y: 0}]
machines:
  - {id: 1, kind: harvester, speed_empty: 5, working_time_per_area: 0.1}
  - {id: 2, kind: transport_vehicle, speed_empty: 10, speed_full: 8, bunker_capacity: 6000, unloading_speed: 100}
silos:
  - id: 1
    accesses: [{x: 1000, y: 0}]
transit:
  - {from: "init:1", to: "field_access:1:0", distance: 500}
  - {from: "field_access:1:0", to: "silo_access:1:0", distance: 1000, symmetric: true}
machine_init:
  - {machine: 1, position: {x: -500, y: 0}}
  - {machine: 2, location: "silo_access:1:0"}
`

func TestDecodeCampaignYAML(t *testing.T) {
	c, err := DecodeCampaign(strings.NewReader(campaignYAML), "yaml")
	require.NoError(t, err)
	assert.True(t, c.Prepared())
	assert.Equal(t, []MachineID{1}, c.MachinesOfKind(Harvester))
	assert.Equal(t, []MachineID{2}, c.MachinesOfKind(TransportVehicle))

	d, ok := c.Transits().Distance(SiloAccessLoc(1, 0), FieldAccessLoc(1, 0))
	require.True(t, ok)
	assert.Equal(t, 1000.0, d)

	assert.Equal(t, Point{X: 1000}, c.InitialPosition(2))
	assert.Equal(t, Point{X: -500}, c.InitialPosition(1))

	_, err = c.Position(FieldAccessLoc(1, 4))
	assert.ErrorIs(t, err, ErrUnknownLocation)
	_, err = c.Position(SiloLoc(9))
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestPrepareRejectsInvalid(t *testing.T) {
	c := Campaign{
		Machines: []Machine{{ID: 1, Kind: TransportVehicle, SpeedEmpty: 1}},
		Silos:    []Silo{{ID: 1}},
	}
	err := c.Prepare()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bunker_capacity")
	assert.Contains(t, err.Error(), "no access points")
	assert.False(t, c.Prepared())
}

func TestActionJSON(t *testing.T) {
	a := Action{
		Kind:        DriveVehicleToFieldAndOverload,
		Machine:     2,
		Harvester:   1,
		Field:       1,
		FieldAccess: FieldAccessLoc(1, 0),
		Origin:      SiloAccessLoc(1, 0),
	}
	require.NoError(t, a.Validate())
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"drive_vehicle_to_field_and_overload"`)
	var back Action
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)
}

func TestActionValidate(t *testing.T) {
	bad := Action{Kind: DriveToSilo, Machine: 2, Silo: 1, SiloAccess: SiloAccessLoc(2, 0)}
	assert.Error(t, bad.Validate())
	bad = Action{Kind: DriveVehicleToFieldAndOverload, Machine: 2, Field: 1}
	assert.Error(t, bad.Validate())
	assert.Error(t, Action{}.Validate())
	ok := Action{Kind: DriveHarvesterToFieldAndInit, Machine: 1, Field: 1}
	assert.NoError(t, ok.Validate())
}

func TestFieldWorkLine(t *testing.T) {
	f := Field{
		Accesses: []Point{{X: 0, Y: 0}},
		Boundary: []Point{{0, 0}, {100, 0}, {100, 50}, {0, 50}},
	}
	a, b := f.WorkLine()
	assert.Equal(t, Point{}, a)
	assert.Equal(t, Point{X: 100, Y: 50}, b)
	assert.Equal(t, Point{X: 50, Y: 25}, f.Center())
}
