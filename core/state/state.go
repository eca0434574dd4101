package state

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kilianp07/harvestplan/core/model"
)

// Machine is the dynamic state of one machine.
type Machine struct {
	Spec        model.Machine
	Location    model.LocationRef
	BunkerMass  float64
	Timestamp   float64
	TransitTime float64
	WaitingTime float64

	// servedBy is the harvester the vehicle overloaded from since its last
	// trip to a silo.
	servedBy  model.MachineID
	hasServed bool
}

// Spare returns the free bunker capacity.
func (m Machine) Spare() float64 { return m.Spec.BunkerCapacity - m.BunkerMass }

// Fill returns the bunker fill fraction.
func (m Machine) Fill() float64 { return m.Spec.Fill(m.BunkerMass) }

// Field is the dynamic state of one field.
type Field struct {
	Spec      model.Field
	Total     float64
	Remaining float64
	Harvester model.MachineID
	Assigned  bool
	Finished  bool
	// AssignedAt is the timestamp at which the harvester started driving to the field.
	AssignedAt float64
}

// Harvested returns the harvested yield mass.
func (f Field) Harvested() float64 { return f.Total - f.Remaining }

// Silo is the dynamic state of one silo.
type Silo struct {
	Spec      model.Silo
	Mass      float64
	Remaining float64
	// accessFree holds when each access point becomes free.
	accessFree map[int]float64
}

// Turns is the resolved turn order: fields per harvester and vehicles per
// harvester, both in turn order.
type Turns struct {
	Fields   map[model.MachineID][]model.FieldID
	Vehicles map[model.MachineID][]model.MachineID
	// Cyclic makes the vehicle rotation wrap around after the last turn.
	Cyclic bool
}

// State is the scheduling snapshot. It is not safe for concurrent use.
type State struct {
	campaign *model.Campaign
	settings Settings
	turns    Turns

	machines      map[model.MachineID]Machine
	fields        map[model.FieldID]Field
	silos         map[model.SiloID]Silo
	fieldCursor   map[model.MachineID]int
	vehicleCursor map[model.MachineID]int
}

// New builds the initial snapshot of a prepared campaign.
func New(c *model.Campaign, s Settings, t Turns) (*State, error) {
	if !c.Prepared() {
		return nil, fmt.Errorf("campaign %q is not prepared", c.Name)
	}
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	st := &State{
		campaign:      c,
		settings:      s,
		turns: Turns{
			Fields:   make(map[model.MachineID][]model.FieldID, len(t.Fields)),
			Vehicles: make(map[model.MachineID][]model.MachineID, len(t.Vehicles)),
			Cyclic:   t.Cyclic,
		},
		machines:      make(map[model.MachineID]Machine, len(c.Machines)),
		fields:        make(map[model.FieldID]Field, len(c.Fields)),
		silos:         make(map[model.SiloID]Silo, len(c.Silos)),
		fieldCursor:   make(map[model.MachineID]int),
		vehicleCursor: make(map[model.MachineID]int),
	}
	for _, m := range c.Machines {
		init := c.Initial(m.ID)
		st.machines[m.ID] = Machine{
			Spec:       m,
			Location:   init.Location,
			BunkerMass: init.BunkerMass,
			Timestamp:  init.Timestamp,
		}
	}
	for _, f := range c.Fields {
		pct := c.FieldProgress(f.ID)
		remaining := f.YieldMass * (1 - pct/100)
		st.fields[f.ID] = Field{
			Spec:      f,
			Total:     f.YieldMass,
			Remaining: remaining,
			Finished:  remaining < s.FinishedMassEpsilon,
		}
	}
	for _, sl := range c.Silos {
		mass := c.SiloMass(sl.ID)
		st.silos[sl.ID] = Silo{
			Spec:       sl,
			Mass:       mass,
			Remaining:  sl.EffectiveCapacity() - mass,
			accessFree: make(map[int]float64),
		}
	}
	// Fields already harvested at the start of the campaign do not occupy a turn.
	for h, q := range t.Fields {
		st.turns.Fields[h] = slices.DeleteFunc(slices.Clone(q), func(f model.FieldID) bool {
			return st.fields[f].Finished
		})
	}
	for h, q := range t.Vehicles {
		st.turns.Vehicles[h] = slices.Clone(q)
	}
	return st, nil
}

// Clone returns an independent copy of the snapshot.
func (s *State) Clone() *State {
	cp := *s
	cp.machines = maps.Clone(s.machines)
	cp.fields = maps.Clone(s.fields)
	cp.silos = make(map[model.SiloID]Silo, len(s.silos))
	for id, sl := range s.silos {
		sl.accessFree = maps.Clone(sl.accessFree)
		cp.silos[id] = sl
	}
	cp.fieldCursor = maps.Clone(s.fieldCursor)
	cp.vehicleCursor = maps.Clone(s.vehicleCursor)
	return &cp
}

// Campaign returns the static model behind the snapshot.
func (s *State) Campaign() *model.Campaign { return s.campaign }

// Settings returns the physics settings in use.
func (s *State) Settings() Settings { return s.settings }

// Machine returns the state of a machine.
func (s *State) Machine(id model.MachineID) (Machine, bool) {
	m, ok := s.machines[id]
	return m, ok
}

// Field returns the state of a field.
func (s *State) Field(id model.FieldID) (Field, bool) {
	f, ok := s.fields[id]
	return f, ok
}

// Silo returns the state of a silo.
func (s *State) Silo(id model.SiloID) (Silo, bool) {
	sl, ok := s.silos[id]
	return sl, ok
}

// FieldQueue returns the fields of a harvester in turn order.
func (s *State) FieldQueue(h model.MachineID) []model.FieldID {
	return slices.Clone(s.turns.Fields[h])
}

// CurrentField returns the field the harvester has to work next.
func (s *State) CurrentField(h model.MachineID) (model.FieldID, bool) {
	q := s.turns.Fields[h]
	c := s.fieldCursor[h]
	if c >= len(q) {
		return 0, false
	}
	return q[c], true
}

// IsLastField reports whether f is the last field in the harvester's queue.
func (s *State) IsLastField(h model.MachineID, f model.FieldID) bool {
	q := s.turns.Fields[h]
	return len(q) > 0 && q[len(q)-1] == f
}

// CurrentVehicle returns the vehicle whose turn it is to serve harvester h.
func (s *State) CurrentVehicle(h model.MachineID) (model.MachineID, bool) {
	q := s.turns.Vehicles[h]
	c := s.vehicleCursor[h]
	if c >= len(q) {
		return 0, false
	}
	return q[c], true
}

func (s *State) advanceVehicle(h model.MachineID) {
	c := s.vehicleCursor[h] + 1
	if s.turns.Cyclic && c >= len(s.turns.Vehicles[h]) {
		c = 0
	}
	s.vehicleCursor[h] = c
}

func (s *State) machineOfKind(id model.MachineID, k model.MachineKind) (Machine, error) {
	m, ok := s.machines[id]
	if !ok {
		return Machine{}, fmt.Errorf("%w: machine %d", model.ErrUnknownEntity, id)
	}
	if m.Spec.Kind != k {
		return Machine{}, fmt.Errorf("%w: machine %d is a %s, not a %s", model.ErrUnknownEntity, id, m.Spec.Kind, k)
	}
	return m, nil
}

func (s *State) field(id model.FieldID) (Field, error) {
	f, ok := s.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: field %d", model.ErrUnknownEntity, id)
	}
	return f, nil
}

func (s *State) silo(id model.SiloID) (Silo, error) {
	sl, ok := s.silos[id]
	if !ok {
		return Silo{}, fmt.Errorf("%w: silo %d", model.ErrUnknownEntity, id)
	}
	return sl, nil
}

// Distance looks up the transit distance between two locations.
func (s *State) Distance(from, to model.LocationRef) (float64, bool) {
	return s.campaign.Transits().Distance(from, to)
}
