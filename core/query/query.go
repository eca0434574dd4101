package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// ErrNoTimeline is returned for an entity that has no decoded timeline.
var ErrNoTimeline = errors.New("no timeline")

// Cursor remembers where the previous lookup for an entity ended. The zero
// value starts from the beginning.
type Cursor struct {
	Interval int `json:"interval"`
	Route    int `json:"route"`
}

// MachineSnapshot is the interpolated state of a machine.
type MachineSnapshot struct {
	Machine     model.MachineID   `json:"machine"`
	Timestamp   float64           `json:"timestamp"`
	Activity    timeline.Activity `json:"activity"`
	Location    model.LocationRef `json:"location"`
	Destination model.LocationRef `json:"destination"`
	Position    model.Point       `json:"position"`
	Bunker      float64           `json:"bunker"`
	Transit     float64           `json:"transit"`
	Waiting     float64           `json:"waiting"`
	Counterpart *model.MachineID  `json:"counterpart,omitempty"`
	Interval    int               `json:"interval"`
}

// FieldSnapshot is the interpolated harvesting state of a field.
type FieldSnapshot struct {
	Field      model.FieldID         `json:"field"`
	Timestamp  float64               `json:"timestamp"`
	State      timeline.HarvestState `json:"state"`
	Percentage float64               `json:"percentage"`
	Mass       float64               `json:"mass"`
	Harvester  *model.MachineID      `json:"harvester,omitempty"`
	Vehicle    *model.MachineID      `json:"vehicle,omitempty"`
	Interval   int                   `json:"interval"`
}

// SiloSnapshot is the interpolated inventory of a silo.
type SiloSnapshot struct {
	Silo      model.SiloID `json:"silo"`
	Timestamp float64      `json:"timestamp"`
	Mass      float64      `json:"mass"`
	// Fill is Mass over the silo capacity, zero for unlimited silos.
	Fill     float64 `json:"fill"`
	Interval int     `json:"interval"`
}

// Engine serves snapshots from a decode result.
type Engine struct {
	res *timeline.Result
}

// New wraps a decode result. The result must not change afterwards.
func New(res *timeline.Result) (*Engine, error) {
	if res == nil {
		return nil, errors.New("query: nil result")
	}
	return &Engine{res: res}, nil
}

// Result returns the wrapped decode result.
func (e *Engine) Result() *timeline.Result { return e.res }

// Machine returns the state of machine id at t.
func (e *Engine) Machine(id model.MachineID, t float64, cur Cursor) (MachineSnapshot, Cursor, error) {
	tl, ok := e.res.Machines[id]
	if !ok || tl.Len() == 0 {
		return MachineSnapshot{}, cur, fmt.Errorf("machine %d: %w", id, ErrNoTimeline)
	}
	i := locate(tl, t, cur.Interval)
	iv := tl.At(i)
	frac := iv.Frac(t)
	s := MachineSnapshot{
		Machine:     id,
		Timestamp:   t,
		Activity:    iv.Activity,
		Location:    iv.LocStart,
		Destination: iv.LocEnd,
		Bunker:      lerp(iv.BunkerStart, iv.BunkerEnd, frac),
		Transit:     lerp(iv.TransitStart, iv.TransitEnd, frac),
		Waiting:     lerp(iv.WaitingStart, iv.WaitingEnd, frac),
		Counterpart: iv.Counterpart,
		Interval:    i,
	}
	if frac >= 1 {
		s.Location = iv.LocEnd
	}
	var placed bool
	s.Position, cur.Route, placed = routePosition(e.res.Routes[id], t, cur.Route)
	if !placed {
		s.Position = iv.PosStart.Lerp(iv.PosEnd, frac)
	}
	cur.Interval = i
	return s, cur, nil
}

// Field returns the state of field id at t.
func (e *Engine) Field(id model.FieldID, t float64, cur Cursor) (FieldSnapshot, Cursor, error) {
	tl, ok := e.res.Fields[id]
	if !ok || tl.Len() == 0 {
		return FieldSnapshot{}, cur, fmt.Errorf("field %d: %w", id, ErrNoTimeline)
	}
	i := locate(tl, t, cur.Interval)
	iv := tl.At(i)
	frac := iv.Frac(t)
	cur.Interval = i
	return FieldSnapshot{
		Field:      id,
		Timestamp:  t,
		State:      iv.State,
		Percentage: lerp(iv.PctStart, iv.PctEnd, frac),
		Mass:       lerp(iv.MassStart, iv.MassEnd, frac),
		Harvester:  iv.Harvester,
		Vehicle:    iv.Vehicle,
		Interval:   i,
	}, cur, nil
}

// Silo returns the inventory of silo id at t.
func (e *Engine) Silo(id model.SiloID, t float64, cur Cursor) (SiloSnapshot, Cursor, error) {
	tl, ok := e.res.Silos[id]
	if !ok || tl.Len() == 0 {
		return SiloSnapshot{}, cur, fmt.Errorf("silo %d: %w", id, ErrNoTimeline)
	}
	i := locate(tl, t, cur.Interval)
	iv := tl.At(i)
	s := SiloSnapshot{
		Silo:      id,
		Timestamp: t,
		Mass:      lerp(iv.MassStart, iv.MassEnd, iv.Frac(t)),
		Interval:  i,
	}
	if e.res.Campaign != nil {
		if silo, ok := e.res.Campaign.Silo(id); ok && silo.Capacity > 0 {
			s.Fill = s.Mass / silo.Capacity
		}
	}
	cur.Interval = i
	return s, cur, nil
}

// locate returns the interval covering t. Timestamps before the first
// interval resolve to it.
func locate[T timeline.Interval[T]](tl *timeline.Timeline[T], t float64, from int) int {
	if i := tl.Search(t, from); i >= 0 {
		return i
	}
	return 0
}

// routePosition interpolates the route position at t, resuming from index
// from. It reports false when the route cannot place the machine.
func routePosition(route model.Route, t float64, from int) (model.Point, int, bool) {
	n := len(route)
	if n == 0 || t < route[0].Timestamp {
		return model.Point{}, 0, false
	}
	i := from
	if i < 0 || i >= n || route[i].Timestamp > t {
		i = sort.Search(n, func(k int) bool { return route[k].Timestamp > t }) - 1
	} else {
		for i+1 < n && route[i+1].Timestamp <= t {
			i++
		}
	}
	if i == n-1 {
		return route[i].Position, i, true
	}
	a, b := route[i], route[i+1]
	dt := b.Timestamp - a.Timestamp
	if dt <= 0 {
		return b.Position, i, true
	}
	return a.Position.Lerp(b.Position, (t-a.Timestamp)/dt), i, true
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }
