package query

import (
	"github.com/kilianp07/harvestplan/core/model"
)

// Frame is the state of every entity at one timestamp.
type Frame struct {
	Timestamp float64           `json:"timestamp"`
	Machines  []MachineSnapshot `json:"machines"`
	Fields    []FieldSnapshot   `json:"fields"`
	Silos     []SiloSnapshot    `json:"silos"`
}

// Sampler walks every timeline of a run with its own cursors. Sampling with
// non-decreasing timestamps is amortised O(1) per entity. A Sampler is not
// safe for concurrent use.
type Sampler struct {
	e        *Engine
	machines map[model.MachineID]Cursor
	fields   map[model.FieldID]Cursor
	silos    map[model.SiloID]Cursor
}

// Sampler returns a fresh Sampler over the engine's result.
func (e *Engine) Sampler() *Sampler {
	return &Sampler{
		e:        e,
		machines: make(map[model.MachineID]Cursor),
		fields:   make(map[model.FieldID]Cursor),
		silos:    make(map[model.SiloID]Cursor),
	}
}

// At returns the frame at t. Entities are ordered by id.
func (s *Sampler) At(t float64) (Frame, error) {
	f := Frame{Timestamp: t}
	res := s.e.res
	for _, id := range res.MachineIDs() {
		snap, cur, err := s.e.Machine(id, t, s.machines[id])
		if err != nil {
			return f, err
		}
		s.machines[id] = cur
		f.Machines = append(f.Machines, snap)
	}
	for _, id := range res.FieldIDs() {
		snap, cur, err := s.e.Field(id, t, s.fields[id])
		if err != nil {
			return f, err
		}
		s.fields[id] = cur
		f.Fields = append(f.Fields, snap)
	}
	for _, id := range res.SiloIDs() {
		snap, cur, err := s.e.Silo(id, t, s.silos[id])
		if err != nil {
			return f, err
		}
		s.silos[id] = cur
		f.Silos = append(f.Silos, snap)
	}
	return f, nil
}

// Frames samples the run every step seconds from 0 to its end, both
// included.
func (e *Engine) Frames(step float64) ([]Frame, error) {
	if step <= 0 {
		step = 60
	}
	s := e.Sampler()
	end := e.res.End
	var out []Frame
	for i := 0; ; i++ {
		t := float64(i) * step
		if t > end {
			t = end
		}
		f, err := s.At(t)
		if err != nil {
			return out, err
		}
		out = append(out, f)
		if t >= end {
			return out, nil
		}
	}
}
