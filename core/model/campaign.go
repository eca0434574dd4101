package model

import (
	"errors"
	"fmt"
	"sort"
)

// MachineInit is the state of a machine at the start of the campaign.
type MachineInit struct {
	Machine MachineID `json:"machine" yaml:"machine"`
	// Location is where the machine stands. The zero value means its own
	// initial location (MachineInitLoc).
	Location   LocationRef `json:"location,omitempty" yaml:"location,omitempty"`
	Position   Point       `json:"position" yaml:"position"`
	BunkerMass float64     `json:"bunker_mass,omitempty" yaml:"bunker_mass,omitempty"`
	Timestamp  float64     `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// FieldInit is the harvest progress of a field at the start of the campaign.
type FieldInit struct {
	Field FieldID `json:"field" yaml:"field"`
	// HarvestedPercentage in [0, 100].
	HarvestedPercentage float64 `json:"harvested_percentage" yaml:"harvested_percentage"`
}

// SiloInit is the stored yield of a silo at the start of the campaign.
type SiloInit struct {
	Silo      SiloID  `json:"silo" yaml:"silo"`
	YieldMass float64 `json:"yield_mass" yaml:"yield_mass"`
}

// FieldTurn pre-assigns a field to a harvester at a 1-based turn.
type FieldTurn struct {
	Field     FieldID   `json:"field" yaml:"field"`
	Harvester MachineID `json:"harvester" yaml:"harvester"`
	Turn      int       `json:"turn" yaml:"turn"`
}

// VehicleTurn pre-assigns a vehicle to a harvester's service rotation.
type VehicleTurn struct {
	Vehicle   MachineID `json:"vehicle" yaml:"vehicle"`
	Harvester MachineID `json:"harvester" yaml:"harvester"`
	Turn      int       `json:"turn" yaml:"turn"`
}

// Assignments holds the pre-assignment hints of a campaign.
type Assignments struct {
	Fields   []FieldTurn   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Vehicles []VehicleTurn `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`
}

// Campaign is the static domain model consumed by the scheduler and decoder.
type Campaign struct {
	Name        string         `json:"name" yaml:"name"`
	Fields      []Field        `json:"fields" yaml:"fields"`
	Machines    []Machine      `json:"machines" yaml:"machines"`
	Silos       []Silo         `json:"silos" yaml:"silos"`
	Transit     []TransitEntry `json:"transit" yaml:"transit"`
	MachineInit []MachineInit  `json:"machine_init,omitempty" yaml:"machine_init,omitempty"`
	FieldInit   []FieldInit    `json:"field_init,omitempty" yaml:"field_init,omitempty"`
	SiloInit    []SiloInit     `json:"silo_init,omitempty" yaml:"silo_init,omitempty"`
	Assignments Assignments    `json:"assignments" yaml:"assignments"`

	fields   map[FieldID]int
	machines map[MachineID]int
	silos    map[SiloID]int
	inits    map[MachineID]MachineInit
	table    *TransitTable
	prepared bool
}

// Prepare validates the campaign and builds its lookup indexes. It must be
// called before the campaign is handed to the scheduler or decoder.
func (c *Campaign) Prepare() error {
	c.fields = make(map[FieldID]int, len(c.Fields))
	c.machines = make(map[MachineID]int, len(c.Machines))
	c.silos = make(map[SiloID]int, len(c.Silos))
	c.inits = make(map[MachineID]MachineInit, len(c.MachineInit))
	var errs []error
	for i, f := range c.Fields {
		if _, dup := c.fields[f.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate field id %d", f.ID))
		}
		if f.YieldMass < 0 || f.Area < 0 {
			errs = append(errs, fmt.Errorf("field %d: negative area or yield", f.ID))
		}
		c.fields[f.ID] = i
	}
	for i, m := range c.Machines {
		if _, dup := c.machines[m.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate machine id %d", m.ID))
		}
		if m.Kind != Harvester && m.Kind != TransportVehicle {
			errs = append(errs, fmt.Errorf("machine %d: invalid kind", m.ID))
		}
		if m.SpeedEmpty <= 0 {
			errs = append(errs, fmt.Errorf("machine %d: speed_empty must be positive", m.ID))
		}
		if m.IsVehicle() && m.BunkerCapacity <= 0 {
			errs = append(errs, fmt.Errorf("machine %d: bunker_capacity must be positive", m.ID))
		}
		c.machines[m.ID] = i
	}
	for i, s := range c.Silos {
		if _, dup := c.silos[s.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate silo id %d", s.ID))
		}
		if len(s.Accesses) == 0 {
			errs = append(errs, fmt.Errorf("silo %d: no access points", s.ID))
		}
		c.silos[s.ID] = i
	}
	for _, mi := range c.MachineInit {
		if _, ok := c.machines[mi.Machine]; !ok {
			errs = append(errs, fmt.Errorf("machine_init: %w: machine %d", ErrUnknownEntity, mi.Machine))
			continue
		}
		if mi.Location.IsZero() {
			mi.Location = MachineInitLoc(mi.Machine)
		}
		c.inits[mi.Machine] = mi
	}
	for _, fi := range c.FieldInit {
		if _, ok := c.fields[fi.Field]; !ok {
			errs = append(errs, fmt.Errorf("field_init: %w: field %d", ErrUnknownEntity, fi.Field))
		}
		if fi.HarvestedPercentage < 0 || fi.HarvestedPercentage > 100 {
			errs = append(errs, fmt.Errorf("field_init %d: harvested_percentage out of range", fi.Field))
		}
	}
	c.table = NewTransitTable(c.Transit)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.prepared = true
	return nil
}

// Prepared reports whether Prepare succeeded.
func (c *Campaign) Prepared() bool { return c.prepared }

// Field returns the field with the given id.
func (c *Campaign) Field(id FieldID) (Field, bool) {
	i, ok := c.fields[id]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// Machine returns the machine with the given id.
func (c *Campaign) Machine(id MachineID) (Machine, bool) {
	i, ok := c.machines[id]
	if !ok {
		return Machine{}, false
	}
	return c.Machines[i], true
}

// Silo returns the silo with the given id.
func (c *Campaign) Silo(id SiloID) (Silo, bool) {
	i, ok := c.silos[id]
	if !ok {
		return Silo{}, false
	}
	return c.Silos[i], true
}

// Transits returns the prepared transit table.
func (c *Campaign) Transits() *TransitTable { return c.table }

// Initial returns the initial state of a machine. Machines without an entry
// start empty at their own init location at t=0.
func (c *Campaign) Initial(id MachineID) MachineInit {
	if mi, ok := c.inits[id]; ok {
		return mi
	}
	return MachineInit{Machine: id, Location: MachineInitLoc(id)}
}

// FieldProgress returns the initial harvested percentage of a field.
func (c *Campaign) FieldProgress(id FieldID) float64 {
	for _, fi := range c.FieldInit {
		if fi.Field == id {
			return fi.HarvestedPercentage
		}
	}
	return 0
}

// SiloMass returns the initial stored mass of a silo.
func (c *Campaign) SiloMass(id SiloID) float64 {
	for _, si := range c.SiloInit {
		if si.Silo == id {
			return si.YieldMass
		}
	}
	return 0
}

// MachinesOfKind returns the ids of all machines of kind k in ascending order.
func (c *Campaign) MachinesOfKind(k MachineKind) []MachineID {
	var ids []MachineID
	for _, m := range c.Machines {
		if m.Kind == k {
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Position resolves the planar position of a location.
func (c *Campaign) Position(loc LocationRef) (Point, error) {
	switch loc.Kind {
	case LocField:
		if f, ok := c.Field(FieldID(loc.ID)); ok {
			return f.Center(), nil
		}
	case LocFieldAccess:
		if f, ok := c.Field(FieldID(loc.ID)); ok && loc.Index >= 0 && loc.Index < len(f.Accesses) {
			return f.Accesses[loc.Index], nil
		}
	case LocSilo:
		if s, ok := c.Silo(SiloID(loc.ID)); ok {
			return Centroid(s.Accesses), nil
		}
	case LocSiloAccess:
		if s, ok := c.Silo(SiloID(loc.ID)); ok && loc.Index >= 0 && loc.Index < len(s.Accesses) {
			return s.Accesses[loc.Index], nil
		}
	case LocMachineInit:
		if _, ok := c.Machine(MachineID(loc.ID)); ok {
			return c.Initial(MachineID(loc.ID)).Position, nil
		}
	}
	return Point{}, fmt.Errorf("%w: %q", ErrUnknownLocation, loc.String())
}

// FieldAccesses returns references to every access point of a field.
func (c *Campaign) FieldAccesses(id FieldID) []LocationRef {
	f, ok := c.Field(id)
	if !ok {
		return nil
	}
	refs := make([]LocationRef, len(f.Accesses))
	for i := range f.Accesses {
		refs[i] = FieldAccessLoc(id, i)
	}
	return refs
}

// SiloAccesses returns references to every access point of a silo.
func (c *Campaign) SiloAccesses(id SiloID) []LocationRef {
	s, ok := c.Silo(id)
	if !ok {
		return nil
	}
	refs := make([]LocationRef, len(s.Accesses))
	for i := range s.Accesses {
		refs[i] = SiloAccessLoc(id, i)
	}
	return refs
}

// InitialPosition returns the starting position of a machine. Machines that
// start at a named location without an explicit position take that
// location's position.
func (c *Campaign) InitialPosition(id MachineID) Point {
	mi := c.Initial(id)
	if mi.Location.Kind != LocMachineInit && mi.Position == (Point{}) {
		if p, err := c.Position(mi.Location); err == nil {
			return p
		}
	}
	return mi.Position
}
