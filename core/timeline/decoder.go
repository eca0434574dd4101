package timeline

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/kilianp07/harvestplan/core/logger"
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/routing"
	"github.com/kilianp07/harvestplan/core/state"
	"github.com/kilianp07/harvestplan/internal/eventbus"
)

// DefaultWaitTolerance is the idle time below which no waiting interval is
// inserted, in seconds.
const DefaultWaitTolerance = 1e-3

// routeEps is the timestamp distance under which two route waypoints are
// considered the same.
const routeEps = 1e-9

// Options configure a Decoder. Zero values select the defaults.
type Options struct {
	Road    routing.RoadPlanner
	Infield routing.InfieldPlanner
	Source  PlanReplaySource
	Physics state.Settings
	// WaitTolerance is the idle time below which no waiting interval is
	// inserted.
	WaitTolerance float64
	// Bus receives decoded actions and events when set.
	Bus    *eventbus.TypedBus[Event]
	Logger logger.Logger
}

// Decoder replays action lists into timelines.
type Decoder struct {
	opts Options
}

// NewDecoder returns a Decoder with defaults applied to opts.
func NewDecoder(opts Options) *Decoder {
	if opts.Road == nil {
		opts.Road = routing.StraightRoad{}
	}
	if opts.Infield == nil {
		opts.Infield = routing.Coverage{}
	}
	if opts.Source == nil {
		opts.Source = EmbeddedPlan{}
	}
	if opts.WaitTolerance <= 0 {
		opts.WaitTolerance = DefaultWaitTolerance
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	opts.Physics.SetDefaults()
	return &Decoder{opts: opts}
}

// Result holds everything a decode run produced. It is read-only once
// Decode returns.
type Result struct {
	RunID    string          `json:"run_id"`
	Source   string          `json:"source"`
	Campaign *model.Campaign `json:"-"`
	// Decoded is the number of actions decoded successfully.
	Decoded int     `json:"decoded"`
	End     float64 `json:"end"`

	Machines map[model.MachineID]*Timeline[MachineInterval] `json:"machines"`
	Fields   map[model.FieldID]*Timeline[FieldInterval]     `json:"fields"`
	Silos    map[model.SiloID]*Timeline[SiloInterval]       `json:"silos"`
	Routes   map[model.MachineID]model.Route                `json:"routes"`

	Overloads        []*OverloadEvent                    `json:"overloads"`
	Unloads          []*UnloadEvent                      `json:"unloads"`
	VehicleOverloads map[model.MachineID][]*OverloadEvent `json:"-"`
	VehicleUnloads   map[model.MachineID][]*UnloadEvent   `json:"-"`
}

// MachineIDs returns the ids of the decoded machines in ascending order.
func (r *Result) MachineIDs() []model.MachineID {
	ids := make([]model.MachineID, 0, len(r.Machines))
	for id := range r.Machines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FieldIDs returns the ids of the decoded fields in ascending order.
func (r *Result) FieldIDs() []model.FieldID {
	ids := make([]model.FieldID, 0, len(r.Fields))
	for id := range r.Fields {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SiloIDs returns the ids of the decoded silos in ascending order.
func (r *Result) SiloIDs() []model.SiloID {
	ids := make([]model.SiloID, 0, len(r.Silos))
	for id := range r.Silos {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// cursor is the decoder's view of a machine between actions.
type cursor struct {
	loc     model.LocationRef
	pos     model.Point
	ts      float64
	bunker  float64
	transit float64
	waiting float64
	// pending are the overloads loaded since the last unload.
	pending []*OverloadEvent
}

// decoding is the mutable scope of one Decode call.
type decoding struct {
	opts    Options
	c       *model.Campaign
	st      *state.State
	res     *Result
	cursors map[model.MachineID]*cursor
	index   int
	action  model.Action
	nextID  int

	// fieldTotals is the yield-compensated total mass per field, fixed by
	// the first overload on it.
	fieldTotals map[model.FieldID]float64
}

// Decode replays actions against the campaign. On failure the partial result
// decoded so far is returned together with the error: a *StructuralError, a
// *state.Infeasible or a wrapped model data error.
func (d *Decoder) Decode(c *model.Campaign, actions []model.Action) (*Result, error) {
	res := &Result{
		RunID:            uuid.NewString(),
		Source:           d.opts.Source.Name(),
		Campaign:         c,
		Machines:         make(map[model.MachineID]*Timeline[MachineInterval]),
		Fields:           make(map[model.FieldID]*Timeline[FieldInterval]),
		Silos:            make(map[model.SiloID]*Timeline[SiloInterval]),
		Routes:           make(map[model.MachineID]model.Route),
		VehicleOverloads: make(map[model.MachineID][]*OverloadEvent),
		VehicleUnloads:   make(map[model.MachineID][]*UnloadEvent),
	}
	if !c.Prepared() {
		return res, fmt.Errorf("campaign %q is not prepared", c.Name)
	}
	turns, err := d.opts.Source.Turns(c, actions)
	if err != nil {
		return res, fmt.Errorf("resolve turns: %w", err)
	}
	st, err := state.New(c, d.opts.Physics, turns)
	if err != nil {
		return res, err
	}
	dc := &decoding{opts: d.opts, c: c, st: st, res: res, cursors: make(map[model.MachineID]*cursor), fieldTotals: make(map[model.FieldID]float64)}
	dc.initialIntervals()

	for i, a := range actions {
		dc.index, dc.action = i, a
		if err := dc.decode(a); err != nil {
			dc.finish()
			d.opts.Logger.Warnf("run %s: decode stopped at action %d: %v", res.RunID, i, err)
			return res, err
		}
		res.Decoded++
		d.opts.Logger.Debugw("decoded", map[string]any{
			"run":     res.RunID,
			"index":   i,
			"kind":    a.Kind.String(),
			"machine": int(a.Machine),
		})
		dc.publish(Event{Kind: EventAction, Action: &actions[i]})
	}
	dc.finish()
	d.opts.Logger.Infof("run %s: decoded %d actions, %d overloads, %d unloads, end %.1f s",
		res.RunID, res.Decoded, len(res.Overloads), len(res.Unloads), res.End)
	return res, nil
}

func (dc *decoding) initialIntervals() {
	for _, m := range dc.c.Machines {
		ms, _ := dc.st.Machine(m.ID)
		pos := dc.c.InitialPosition(m.ID)
		tl := &Timeline[MachineInterval]{}
		tl.Push(MachineInterval{
			Span:        openAt(ms.Timestamp),
			Activity:    WaitingToDrive,
			LocStart:    ms.Location,
			LocEnd:      ms.Location,
			PosStart:    pos,
			PosEnd:      pos,
			BunkerStart: ms.BunkerMass,
			BunkerEnd:   ms.BunkerMass,
		})
		dc.res.Machines[m.ID] = tl
		dc.res.Routes[m.ID] = model.Route{{Position: pos, Timestamp: ms.Timestamp, Type: model.SegmentInitial, BunkerMass: ms.BunkerMass}}
		dc.cursors[m.ID] = &cursor{loc: ms.Location, pos: pos, ts: ms.Timestamp, bunker: ms.BunkerMass}
	}
	for _, f := range dc.c.Fields {
		fs, _ := dc.st.Field(f.ID)
		hs := Unreserved
		if fs.Finished {
			hs = Harvested
		}
		mass := fs.Harvested()
		pct := percent(mass, fs.Total)
		tl := &Timeline[FieldInterval]{}
		tl.Push(FieldInterval{Span: openAt(0), State: hs, PctStart: pct, PctEnd: pct, MassStart: mass, MassEnd: mass})
		dc.res.Fields[f.ID] = tl
	}
}

func (dc *decoding) decode(a model.Action) error {
	switch a.Kind {
	case model.DriveHarvesterToFieldAndInit:
		return dc.init(a)
	case model.DriveVehicleToFieldAndOverload:
		return dc.overload(a)
	case model.DriveToFieldExit:
		return dc.exit(a)
	case model.DriveToSilo:
		return dc.driveToSilo(a)
	case model.UnloadAtSilo:
		return dc.unload(a)
	default:
		return structural(dc.index, a, "unknown action kind %d", a.Kind)
	}
}

// finish closes every machine timeline with an open idle interval, rebuilds
// the silo timelines and records the makespan.
func (dc *decoding) finish() {
	for _, id := range dc.res.MachineIDs() {
		cur := dc.cursors[id]
		tl := dc.res.Machines[id]
		if cur.ts > dc.res.End {
			dc.res.End = cur.ts
		}
		last, _ := tl.Last()
		if last.Open() {
			continue
		}
		tl.Push(MachineInterval{
			Span:         openAt(cur.ts),
			Activity:     WaitingToDrive,
			LocStart:     last.LocEnd,
			LocEnd:       last.LocEnd,
			PosStart:     cur.pos,
			PosEnd:       cur.pos,
			BunkerStart:  last.BunkerEnd,
			BunkerEnd:    last.BunkerEnd,
			TransitStart: cur.transit,
			TransitEnd:   cur.transit,
			WaitingStart: cur.waiting,
			WaitingEnd:   cur.waiting,
		})
	}
	for _, s := range dc.c.Silos {
		dc.res.Silos[s.ID] = rebuildSilo(dc.c.SiloMass(s.ID), dc.siloUnloads(s.ID))
	}
}

func (dc *decoding) siloUnloads(id model.SiloID) []*UnloadEvent {
	var out []*UnloadEvent
	for _, u := range dc.res.Unloads {
		if u.Silo == id {
			out = append(out, u)
		}
	}
	return out
}

func (dc *decoding) publish(e Event) {
	if dc.opts.Bus == nil {
		return
	}
	e.RunID = dc.res.RunID
	e.Index = dc.index
	dc.opts.Bus.Publish(e)
}

func percent(mass, total float64) float64 {
	if total <= 0 {
		return 100
	}
	p := 100 * mass / total
	if p > 100 {
		return 100
	}
	return p
}
