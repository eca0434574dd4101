package timeline

import (
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/routing"
	"github.com/kilianp07/harvestplan/core/state"
)

// seg is one machine interval produced by a handler. Start values come from
// the machine cursor.
type seg struct {
	activity    Activity
	start, end  float64
	loc         model.LocationRef
	pos         model.Point
	bunker      float64
	counterpart *model.MachineID
}

// push appends the interval described by s and moves the cursor to its end.
func (dc *decoding) push(id model.MachineID, s seg) {
	cur := dc.cursors[id]
	iv := MachineInterval{
		Span:         closed(s.start, s.end),
		Activity:     s.activity,
		Action:       dc.action.Kind,
		LocStart:     cur.loc,
		LocEnd:       s.loc,
		PosStart:     cur.pos,
		PosEnd:       s.pos,
		BunkerStart:  cur.bunker,
		BunkerEnd:    s.bunker,
		TransitStart: cur.transit,
		TransitEnd:   cur.transit,
		WaitingStart: cur.waiting,
		WaitingEnd:   cur.waiting,
		Counterpart:  s.counterpart,
	}
	d := s.end - s.start
	switch {
	case s.activity == TransitInField || s.activity == TransitOffField:
		iv.TransitEnd += d
	case s.activity.Waiting():
		iv.WaitingEnd += d
	}
	dc.res.Machines[id].Append(iv)
	cur.loc, cur.pos, cur.bunker, cur.ts = s.loc, s.pos, s.bunker, s.end
	cur.transit, cur.waiting = iv.TransitEnd, iv.WaitingEnd
}

// wait inserts an idle interval up to until when the machine has been idle
// for longer than the wait tolerance.
func (dc *decoding) wait(id model.MachineID, until float64, act Activity, counterpart *model.MachineID) {
	cur := dc.cursors[id]
	if until-cur.ts <= dc.opts.WaitTolerance {
		return
	}
	dc.push(id, seg{
		activity:    act,
		start:       cur.ts,
		end:         until,
		loc:         cur.loc,
		pos:         cur.pos,
		bunker:      cur.bunker,
		counterpart: counterpart,
	})
}

func (dc *decoding) snapshot(id model.MachineID) routing.MachineSnapshot {
	cur := dc.cursors[id]
	return routing.MachineSnapshot{Position: cur.pos, Timestamp: cur.ts, BunkerMass: cur.bunker}
}

// fieldState truncates the field timeline at ts and opens a new interval
// carrying the harvested values of the interval it follows.
func (dc *decoding) fieldState(id model.FieldID, ts float64, hs HarvestState, harvester, vehicle *model.MachineID) {
	tl := dc.res.Fields[id]
	pct, mass := truncateField(tl, ts)
	tl.Push(FieldInterval{
		Span:      openAt(ts),
		State:     hs,
		PctStart:  pct,
		PctEnd:    pct,
		MassStart: mass,
		MassEnd:   mass,
		Harvester: harvester,
		Vehicle:   vehicle,
	})
}

// truncateField drops the intervals starting at or after ts and returns the
// harvested percentage and mass the field had at ts.
func truncateField(tl *Timeline[FieldInterval], ts float64) (pct, mass float64) {
	n := tl.Len()
	for n > 0 && tl.At(n-1).TsStart >= ts {
		n--
	}
	switch {
	case n > 0:
		pct, mass = tl.At(n-1).PctEnd, tl.At(n-1).MassEnd
	case tl.Len() > 0:
		pct, mass = tl.At(0).PctStart, tl.At(0).MassStart
	}
	tl.TruncateFrom(ts)
	return pct, mass
}

func harvestedFrac(f state.Field) float64 {
	if f.Total <= 0 {
		return 1
	}
	return f.Harvested() / f.Total
}

func (dc *decoding) init(a model.Action) error {
	h := a.Machine
	fs, _ := dc.st.Field(a.Field)
	e, err := dc.opts.Source.Resolve(dc.st, a)
	if err != nil {
		return err
	}
	hm, _ := dc.st.Machine(h)
	f, _ := dc.c.Field(a.Field)
	bunker := dc.cursors[h].bunker

	dc.wait(h, e.Start, WaitingToDrive, nil)
	if e.From != model.FieldLoc(a.Field) {
		entry, err := dc.c.Position(a.FieldAccess)
		if err != nil {
			return err
		}
		frac := harvestedFrac(fs)
		res, err := dc.enterField(h, hm.Spec, routing.InfieldRequest{
			Field:           f,
			Machine:         hm.Spec,
			State:           routing.MachineSnapshot{Position: entry, Timestamp: e.Arrival, BunkerMass: bunker},
			Mode:            routing.ModeEnter,
			Entry:           entry,
			HarvestedBefore: frac,
			HarvestedAfter:  frac,
			Schedule:        routing.Schedule{Arrival: e.Arrival, Leave: e.End},
		}, e.Start)
		if err != nil {
			return err
		}
		dc.push(h, seg{activity: TransitOffField, start: e.Start, end: e.Arrival, loc: a.FieldAccess, pos: entry, bunker: bunker})
		dc.push(h, seg{activity: TransitInField, start: e.Arrival, end: e.End, loc: model.FieldLoc(a.Field), pos: res.State.Position, bunker: bunker})
	}
	dc.fieldState(a.Field, e.Start, Reserved, idPtr(h), nil)
	return nil
}

func (dc *decoding) overload(a model.Action) error {
	v, h := a.Machine, a.Harvester
	ftl, ok := dc.res.Fields[a.Field]
	if !ok {
		return structural(dc.index, a, "field %d has no timeline", a.Field)
	}
	open, _ := ftl.Last()
	if !open.Open() || (open.State != Reserved && open.State != BeingHarvestedWaiting) {
		return structural(dc.index, a, "field %d has no open reserved interval (state %s)", a.Field, open.State)
	}
	if open.Harvester == nil || *open.Harvester != h {
		return structural(dc.index, a, "field %d is not reserved by harvester %d", a.Field, h)
	}
	if _, ok := dc.cursors[h]; !ok {
		return structural(dc.index, a, "harvester %d has no timeline", h)
	}

	fs, _ := dc.st.Field(a.Field)
	e, err := dc.opts.Source.Resolve(dc.st, a)
	if err != nil {
		return err
	}
	vm, _ := dc.st.Machine(v)
	hm, _ := dc.st.Machine(h)
	f, _ := dc.c.Field(a.Field)
	entry, err := dc.c.Position(a.FieldAccess)
	if err != nil {
		return err
	}
	before := harvestedFrac(fs)
	after := 1.0
	if fs.Total > 0 {
		after = (fs.Total - e.RemainingAfter) / fs.Total
	}
	inField := model.FieldLoc(a.Field)

	// Vehicle: drive in, reach the harvester, overload, drive back to the access.
	dc.wait(v, e.Start, WaitingToDrive, nil)
	serve, err := dc.enterField(v, vm.Spec, routing.InfieldRequest{
		Field:           f,
		Machine:         vm.Spec,
		State:           routing.MachineSnapshot{Position: entry, Timestamp: e.Arrival, BunkerMass: e.BunkerBefore},
		Mode:            routing.ModeServe,
		Entry:           entry,
		HarvestedBefore: before,
		HarvestedAfter:  after,
		Mass:            e.Mass,
		Schedule:        routing.Schedule{Arrival: e.Arrival, Reach: e.Reach, WorkStart: e.OpStart, WorkEnd: e.OpEnd, Leave: e.End},
	}, e.Start)
	if err != nil {
		return err
	}
	dc.push(v, seg{activity: TransitOffField, start: e.Start, end: e.Arrival, loc: a.FieldAccess, pos: entry, bunker: e.BunkerBefore})
	p0 := positionOf(serve.Route, model.SegmentOverloadingStart, entry)
	p1 := positionOf(serve.Route, model.SegmentOverloadingFinish, p0)
	dc.push(v, seg{activity: TransitInField, start: e.Arrival, end: e.Reach, loc: inField, pos: p0, bunker: e.BunkerBefore})
	if e.OpStart-e.Reach > dc.opts.WaitTolerance {
		dc.push(v, seg{activity: WaitingToOverload, start: e.Reach, end: e.OpStart, loc: inField, pos: p0, bunker: e.BunkerBefore, counterpart: idPtr(h)})
	}
	dc.push(v, seg{activity: Overloading, start: e.OpStart, end: e.OpEnd, loc: inField, pos: p1, bunker: e.BunkerAfter, counterpart: idPtr(h)})
	dc.push(v, seg{activity: TransitInField, start: e.OpEnd, end: e.End, loc: a.FieldAccess, pos: entry, bunker: e.BunkerAfter})

	// Harvester: wait for the vehicle if needed, then harvest into it.
	hb := dc.cursors[h].bunker
	dc.wait(h, e.OpStart, WaitingToOverload, idPtr(v))
	work, err := dc.infield(h, routing.InfieldRequest{
		Field:           f,
		Machine:         hm.Spec,
		State:           dc.snapshot(h),
		Mode:            routing.ModeWork,
		HarvestedBefore: before,
		HarvestedAfter:  after,
		Mass:            e.Mass,
		Schedule:        routing.Schedule{WorkStart: e.OpStart, WorkEnd: e.OpEnd},
	})
	if err != nil {
		return err
	}
	dc.push(h, seg{activity: Overloading, start: e.OpStart, end: e.OpEnd, loc: inField, pos: work.State.Position, bunker: hb, counterpart: idPtr(v)})

	// Field: harvested while overloading, then waiting for the next vehicle or done.
	// Masses are compensated by the planner's yield factor, percentages are
	// taken against the compensated total.
	factor := work.YieldMassFactor
	if factor <= 0 {
		factor = 1
	}
	total, ok := dc.fieldTotals[a.Field]
	if !ok {
		total = fs.Total * factor
		dc.fieldTotals[a.Field] = total
	}
	pct, mass := truncateField(ftl, e.OpStart)
	massEnd := mass + e.Mass*factor
	pctEnd := percent(massEnd, total)
	if e.FieldFinished {
		pctEnd = 100
	}
	ftl.Push(FieldInterval{
		Span:      closed(e.OpStart, e.OpEnd),
		State:     BeingHarvested,
		PctStart:  pct,
		PctEnd:    pctEnd,
		MassStart: mass,
		MassEnd:   massEnd,
		Harvester: idPtr(h),
		Vehicle:   idPtr(v),
	})
	next := BeingHarvestedWaiting
	if e.FieldFinished {
		next = Harvested
	}
	dc.fieldState(a.Field, e.OpEnd, next, idPtr(h), nil)

	ev := &OverloadEvent{
		ID:        dc.nextID,
		Field:     a.Field,
		Harvester: h,
		Vehicle:   v,
		TsStart:   e.OpStart,
		TsEnd:     e.OpEnd,
		Mass:      e.Mass,
	}
	dc.nextID++
	dc.res.Overloads = insertByStart(dc.res.Overloads, ev, overloadStart)
	dc.res.VehicleOverloads[v] = insertByStart(dc.res.VehicleOverloads[v], ev, overloadStart)
	cur := dc.cursors[v]
	cur.pending = append(cur.pending, ev)
	dc.publish(Event{Kind: EventOverload, Overload: ev})
	return nil
}

func (dc *decoding) exit(a model.Action) error {
	m := a.Machine
	fs, _ := dc.st.Field(a.Field)
	e, err := dc.opts.Source.Resolve(dc.st, a)
	if err != nil {
		return err
	}
	ms, _ := dc.st.Machine(m)
	f, _ := dc.c.Field(a.Field)
	entry, err := dc.c.Position(a.FieldAccess)
	if err != nil {
		return err
	}
	dc.wait(m, e.Start, WaitingToDrive, nil)
	frac := harvestedFrac(fs)
	if _, err := dc.infield(m, routing.InfieldRequest{
		Field:           f,
		Machine:         ms.Spec,
		State:           dc.snapshot(m),
		Mode:            routing.ModeExit,
		Entry:           entry,
		HarvestedBefore: frac,
		HarvestedAfter:  frac,
		Schedule:        routing.Schedule{Arrival: e.Start, Leave: e.End},
	}); err != nil {
		return err
	}
	dc.push(m, seg{activity: TransitInField, start: e.Start, end: e.End, loc: a.FieldAccess, pos: entry, bunker: e.BunkerAfter})
	return nil
}

func (dc *decoding) driveToSilo(a model.Action) error {
	v := a.Machine
	e, err := dc.opts.Source.Resolve(dc.st, a)
	if err != nil {
		return err
	}
	vm, _ := dc.st.Machine(v)
	pos, err := dc.c.Position(a.SiloAccess)
	if err != nil {
		return err
	}
	dc.wait(v, e.Start, WaitingToDrive, nil)
	if err := dc.roadTo(v, vm.Spec, pos, e.Start, e.Arrival, e.BunkerBefore, model.SegmentResourcePoint); err != nil {
		return err
	}
	dc.push(v, seg{activity: TransitOffField, start: e.Start, end: e.Arrival, loc: a.SiloAccess, pos: pos, bunker: e.BunkerBefore})
	for _, ov := range dc.cursors[v].pending {
		access := a.SiloAccess
		ov.SiloAccess = &access
	}
	return nil
}

func (dc *decoding) unload(a model.Action) error {
	v := a.Machine
	e, err := dc.opts.Source.Resolve(dc.st, a)
	if err != nil {
		return err
	}
	pos, err := dc.c.Position(a.SiloAccess)
	if err != nil {
		return err
	}
	dc.wait(v, e.OpStart, WaitingToUnload, nil)
	dc.appendRoute(v, []model.Waypoint{
		{Position: pos, Timestamp: e.OpStart, Type: model.SegmentResourcePoint, BunkerMass: e.BunkerBefore},
		{Position: pos, Timestamp: e.OpEnd, Type: model.SegmentResourcePoint, BunkerMass: 0},
	})
	dc.push(v, seg{activity: Unloading, start: e.OpStart, end: e.OpEnd, loc: a.SiloAccess, pos: pos, bunker: 0})

	ev := &UnloadEvent{
		ID:         dc.nextID,
		Vehicle:    v,
		Silo:       a.Silo,
		SiloAccess: a.SiloAccess,
		TsStart:    e.OpStart,
		TsEnd:      e.OpEnd,
		Mass:       e.Mass,
	}
	dc.nextID++
	cur := dc.cursors[v]
	if n := len(cur.pending); n > 0 {
		ev.Overload = cur.pending[n-1]
		id := ev.Overload.ID
		ev.OverloadID = &id
	}
	cur.pending = nil
	dc.res.Unloads = insertByStart(dc.res.Unloads, ev, unloadStart)
	dc.res.VehicleUnloads[v] = insertByStart(dc.res.VehicleUnloads[v], ev, unloadStart)
	dc.publish(Event{Kind: EventUnload, Unload: ev})
	return nil
}
