package scheduler

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/state"
)

// ResolveAssignments turns the campaign's pre-assignment hints into complete
// turn queues.
//
// Pre-assigned turns are kept and must be numbered 1..n per harvester.
// Remaining unfinished fields go to the harvester with the fewest fields;
// idle harvesters join the pool, fastest first, while there are more free
// vehicles than harvesters waiting for one. Remaining vehicles go to the
// working harvester with the fewest vehicles.
func ResolveAssignments(c *model.Campaign, cfg Config) (state.Turns, error) {
	turns := state.Turns{
		Fields:   make(map[model.MachineID][]model.FieldID),
		Vehicles: make(map[model.MachineID][]model.MachineID),
		Cyclic:   cfg.Cyclic(),
	}
	harvesters := c.MachinesOfKind(model.Harvester)
	vehicles := c.MachinesOfKind(model.TransportVehicle)

	fieldTurns, err := groupFieldTurns(c)
	if err != nil {
		return turns, err
	}
	vehicleTurns, err := groupVehicleTurns(c)
	if err != nil {
		return turns, err
	}

	var pool []model.MachineID
	var idle []model.Machine
	assignedField := make(map[model.FieldID]bool)
	for _, h := range harvesters {
		q, ok := fieldTurns[h]
		if !ok {
			m, _ := c.Machine(h)
			idle = append(idle, m)
			continue
		}
		pool = append(pool, h)
		turns.Fields[h] = q
		for _, f := range q {
			assignedField[f] = true
		}
	}
	sort.SliceStable(idle, func(i, j int) bool {
		return idle[i].WorkingTimePerArea < idle[j].WorkingTimePerArea
	})

	eps := cfg.Physics.FinishedMassEpsilon
	if eps == 0 {
		eps = state.DefaultSettings().FinishedMassEpsilon
	}
	var open []model.FieldID
	for _, f := range c.Fields {
		remaining := f.YieldMass * (1 - c.FieldProgress(f.ID)/100)
		if !assignedField[f.ID] && remaining >= eps {
			open = append(open, f.ID)
		}
	}
	slices.Sort(open)

	free := len(vehicles)
	for _, q := range vehicleTurns {
		free -= len(q)
	}
	needy := 0
	for _, h := range pool {
		if len(vehicleTurns[h]) == 0 {
			needy++
		}
	}
	for added := 0; len(idle) > 0 && added < len(open) && (len(pool) == 0 || free > needy); added++ {
		pool = append(pool, idle[0].ID)
		idle = idle[1:]
		needy++
	}
	if len(open) > 0 && len(pool) == 0 {
		return turns, fmt.Errorf("%d fields left but no harvester", len(open))
	}
	for _, f := range open {
		h := fewest(pool, func(h model.MachineID) int { return len(turns.Fields[h]) })
		turns.Fields[h] = append(turns.Fields[h], f)
	}

	var working []model.MachineID
	for _, h := range pool {
		if len(turns.Fields[h]) > 0 {
			working = append(working, h)
		}
	}
	taken := make(map[model.MachineID]bool)
	for h, q := range vehicleTurns {
		turns.Vehicles[h] = q
		for _, v := range q {
			taken[v] = true
		}
	}
	for _, v := range vehicles {
		if taken[v] || len(working) == 0 {
			continue
		}
		h := fewest(working, func(h model.MachineID) int { return len(turns.Vehicles[h]) })
		turns.Vehicles[h] = append(turns.Vehicles[h], v)
	}
	for _, h := range working {
		if len(turns.Vehicles[h]) == 0 {
			return turns, fmt.Errorf("harvester %d has %d fields but no vehicle", h, len(turns.Fields[h]))
		}
	}
	return turns, nil
}

// fewest returns the first candidate with the lowest count.
func fewest(candidates []model.MachineID, count func(model.MachineID) int) model.MachineID {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if count(c) < count(best) {
			best = c
		}
	}
	return best
}

func groupFieldTurns(c *model.Campaign) (map[model.MachineID][]model.FieldID, error) {
	byHarvester := make(map[model.MachineID][]model.FieldTurn)
	seen := make(map[model.FieldID]bool)
	for _, ft := range c.Assignments.Fields {
		m, ok := c.Machine(ft.Harvester)
		if !ok || !m.IsHarvester() {
			return nil, fmt.Errorf("field turn: %w: harvester %d", model.ErrUnknownEntity, ft.Harvester)
		}
		if _, ok := c.Field(ft.Field); !ok {
			return nil, fmt.Errorf("field turn: %w: field %d", model.ErrUnknownEntity, ft.Field)
		}
		if seen[ft.Field] {
			return nil, fmt.Errorf("field %d assigned twice", ft.Field)
		}
		seen[ft.Field] = true
		byHarvester[ft.Harvester] = append(byHarvester[ft.Harvester], ft)
	}
	out := make(map[model.MachineID][]model.FieldID, len(byHarvester))
	for h, fts := range byHarvester {
		sort.Slice(fts, func(i, j int) bool { return fts[i].Turn < fts[j].Turn })
		q := make([]model.FieldID, len(fts))
		for i, ft := range fts {
			if ft.Turn != i+1 {
				return nil, fmt.Errorf("harvester %d: field turns must be numbered from 1 without gaps, got %d at position %d", h, ft.Turn, i+1)
			}
			q[i] = ft.Field
		}
		out[h] = q
	}
	return out, nil
}

func groupVehicleTurns(c *model.Campaign) (map[model.MachineID][]model.MachineID, error) {
	byHarvester := make(map[model.MachineID][]model.VehicleTurn)
	seen := make(map[model.MachineID]bool)
	for _, vt := range c.Assignments.Vehicles {
		h, ok := c.Machine(vt.Harvester)
		if !ok || !h.IsHarvester() {
			return nil, fmt.Errorf("vehicle turn: %w: harvester %d", model.ErrUnknownEntity, vt.Harvester)
		}
		v, ok := c.Machine(vt.Vehicle)
		if !ok || !v.IsVehicle() {
			return nil, fmt.Errorf("vehicle turn: %w: vehicle %d", model.ErrUnknownEntity, vt.Vehicle)
		}
		if seen[vt.Vehicle] {
			return nil, fmt.Errorf("vehicle %d assigned twice", vt.Vehicle)
		}
		seen[vt.Vehicle] = true
		byHarvester[vt.Harvester] = append(byHarvester[vt.Harvester], vt)
	}
	out := make(map[model.MachineID][]model.MachineID, len(byHarvester))
	for h, vts := range byHarvester {
		sort.Slice(vts, func(i, j int) bool { return vts[i].Turn < vts[j].Turn })
		q := make([]model.MachineID, len(vts))
		for i, vt := range vts {
			if vt.Turn != i+1 {
				return nil, fmt.Errorf("harvester %d: vehicle turns must be numbered from 1 without gaps, got %d at position %d", h, vt.Turn, i+1)
			}
			q[i] = vt.Vehicle
		}
		out[h] = q
	}
	return out, nil
}
