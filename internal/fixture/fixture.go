// Package fixture builds small prepared campaigns shared by package tests.
package fixture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
)

// Machine and location ids used by the fixtures.
const (
	Harvester     model.MachineID = 1
	Vehicle       model.MachineID = 2
	SlowHarvester model.MachineID = 3
	SecondVehicle model.MachineID = 4

	FieldA model.FieldID = 1
	FieldB model.FieldID = 2
	FieldC model.FieldID = 3

	NearSilo model.SiloID = 1
	FarSilo  model.SiloID = 2
)

// HarvesterSpec harvests 0.01 s/m² and drives at 5 m/s.
func HarvesterSpec(id model.MachineID) model.Machine {
	return model.Machine{
		ID:                 id,
		Name:               "harvester",
		Kind:               model.Harvester,
		SpeedEmpty:         5,
		SpeedFull:          5,
		WorkingWidth:       6,
		WorkingTimePerArea: 0.01,
	}
}

// VehicleSpec carries 6 t, drives 10 m/s empty and 5 m/s full and unloads 100 kg/s.
func VehicleSpec(id model.MachineID) model.Machine {
	return model.Machine{
		ID:             id,
		Name:           "tv",
		Kind:           model.TransportVehicle,
		SpeedEmpty:     10,
		SpeedFull:      5,
		BunkerCapacity: 6000,
		UnloadingSpeed: 100,
	}
}

// Rect returns a 200 m x 100 m field with 10 t of yield and one access point
// at its lower left corner.
func Rect(id model.FieldID, x, y float64) model.Field {
	return model.Field{
		ID:        id,
		Name:      "field",
		Area:      20000,
		YieldMass: 10000,
		Boundary: []model.Point{
			{X: x, Y: y}, {X: x + 200, Y: y}, {X: x + 200, Y: y + 100}, {X: x, Y: y + 100},
		},
		Accesses: []model.Point{{X: x, Y: y}},
	}
}

func entry(from, to model.LocationRef, d float64) model.TransitEntry {
	return model.TransitEntry{From: from, To: to, Distance: d, Symmetric: true}
}

// ScenarioA is one harvester, one 10 t field, one 6 t vehicle and one
// unlimited silo 1 km away from the field access.
//
// With the default physics the harvester is ready at t=130 and the vehicle
// reaches the overload point at t=80.
func ScenarioA(t testing.TB) *model.Campaign {
	t.Helper()
	fa := model.FieldAccessLoc(FieldA, 0)
	sa := model.SiloAccessLoc(NearSilo, 0)
	c := &model.Campaign{
		Name:     "scenario-a",
		Fields:   []model.Field{Rect(FieldA, 0, 0)},
		Machines: []model.Machine{HarvesterSpec(Harvester), VehicleSpec(Vehicle)},
		Silos: []model.Silo{
			{ID: NearSilo, Name: "silo", Accesses: []model.Point{{X: 1000, Y: 0}}},
		},
		Transit: []model.TransitEntry{
			{From: model.MachineInitLoc(Harvester), To: fa, Distance: 500},
			{From: model.MachineInitLoc(Vehicle), To: fa, Distance: 500},
			{From: model.MachineInitLoc(Vehicle), To: sa, Distance: 1500},
			entry(fa, sa, 1000),
		},
		MachineInit: []model.MachineInit{
			{Machine: Harvester, Position: model.Point{X: -500, Y: 0}},
			{Machine: Vehicle, Position: model.Point{X: -500, Y: 20}},
		},
	}
	require.NoError(t, c.Prepare())
	return c
}

// ScenarioC extends ScenarioA with a near silo that can only take 5 t and an
// unlimited far silo.
func ScenarioC(t testing.TB) *model.Campaign {
	t.Helper()
	fa := model.FieldAccessLoc(FieldA, 0)
	near := model.SiloAccessLoc(NearSilo, 0)
	far := model.SiloAccessLoc(FarSilo, 0)
	c := &model.Campaign{
		Name:     "scenario-c",
		Fields:   []model.Field{Rect(FieldA, 0, 0)},
		Machines: []model.Machine{HarvesterSpec(Harvester), VehicleSpec(Vehicle)},
		Silos: []model.Silo{
			{ID: NearSilo, Name: "near", Capacity: 5000, Accesses: []model.Point{{X: 300, Y: 0}}},
			{ID: FarSilo, Name: "far", Accesses: []model.Point{{X: 0, Y: 1200}}},
		},
		Transit: []model.TransitEntry{
			{From: model.MachineInitLoc(Harvester), To: fa, Distance: 500},
			{From: model.MachineInitLoc(Vehicle), To: fa, Distance: 500},
			entry(fa, near, 300),
			entry(fa, far, 1200),
			entry(near, far, 1250),
		},
		MachineInit: []model.MachineInit{
			{Machine: Harvester, Position: model.Point{X: -500, Y: 0}},
			{Machine: Vehicle, Position: model.Point{X: -500, Y: 20}},
		},
	}
	require.NoError(t, c.Prepare())
	return c
}

// Fleet has two harvesters, two vehicles, three fields in a row and one
// unlimited silo, without pre-assignments. SlowHarvester works twice as
// slowly as Harvester.
func Fleet(t testing.TB) *model.Campaign {
	t.Helper()
	slow := HarvesterSpec(SlowHarvester)
	slow.WorkingTimePerArea = 0.02
	fields := []model.Field{Rect(FieldA, 0, 0), Rect(FieldB, 400, 0), Rect(FieldC, 800, 0)}
	sa := model.SiloAccessLoc(NearSilo, 0)
	c := &model.Campaign{
		Name:     "fleet",
		Fields:   fields,
		Machines: []model.Machine{HarvesterSpec(Harvester), VehicleSpec(Vehicle), slow, VehicleSpec(SecondVehicle)},
		Silos: []model.Silo{
			{ID: NearSilo, Name: "silo", Accesses: []model.Point{{X: 400, Y: -600}}},
		},
		MachineInit: []model.MachineInit{
			{Machine: Harvester, Position: model.Point{X: -500, Y: 0}},
			{Machine: Vehicle, Position: model.Point{X: -500, Y: 20}},
			{Machine: SlowHarvester, Position: model.Point{X: -500, Y: 40}},
			{Machine: SecondVehicle, Position: model.Point{X: -500, Y: 60}},
		},
	}
	// Straight-line distances between every init location and access point.
	var locs []model.LocationRef
	for _, f := range fields {
		locs = append(locs, model.FieldAccessLoc(f.ID, 0))
	}
	locs = append(locs, sa)
	for _, m := range c.Machines {
		for _, to := range locs {
			c.Transit = append(c.Transit, model.TransitEntry{
				From:     model.MachineInitLoc(m.ID),
				To:       to,
				Distance: pos(c, m.ID).Dist(locPos(fields, to)),
			})
		}
	}
	for i, a := range locs {
		for _, b := range locs[i+1:] {
			c.Transit = append(c.Transit, entry(a, b, locPos(fields, a).Dist(locPos(fields, b))))
		}
	}
	require.NoError(t, c.Prepare())
	return c
}

func pos(c *model.Campaign, id model.MachineID) model.Point {
	for _, mi := range c.MachineInit {
		if mi.Machine == id {
			return mi.Position
		}
	}
	return model.Point{}
}

func locPos(fields []model.Field, l model.LocationRef) model.Point {
	if l.Kind == model.LocSiloAccess {
		return model.Point{X: 400, Y: -600}
	}
	for _, f := range fields {
		if int(f.ID) == l.ID {
			return f.Accesses[l.Index]
		}
	}
	return model.Point{}
}
