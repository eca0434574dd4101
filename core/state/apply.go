package state

import (
	"fmt"
	"math"

	"github.com/kilianp07/harvestplan/core/model"
)

const timingTolerance = 1e-6

// Effect describes what applying an action did. Timestamps are in seconds
// from the campaign start.
type Effect struct {
	Action model.Action
	From   model.LocationRef
	To     model.LocationRef
	// Distance is the off-field distance driven.
	Distance float64
	// Start is when the acting machine leaves; Arrival when it reaches the
	// access point; End when it is free again.
	Start   float64
	Arrival float64
	End     float64
	// Reach is when a vehicle reaches the overload point.
	Reach float64
	// OpStart and OpEnd bound the overload or unload.
	OpStart float64
	OpEnd   float64
	// Wait is the waiting time added to the acting machine.
	Wait         float64
	Mass         float64
	BunkerBefore float64
	BunkerAfter  float64

	HarvesterFree   float64
	HarvesterWait   float64
	RemainingBefore float64
	RemainingAfter  float64
	FieldFinished   bool

	SiloMassBefore float64
	SiloMassAfter  float64
	// TurnAdvanced is set when a drive to a silo ended the vehicle's turn.
	TurnAdvanced bool
}

// Apply validates a against the snapshot and commits its effects. When an
// error is returned the snapshot is unchanged. Infeasibility is reported as
// *Infeasible; unknown ids and malformed timings as wrapped sentinels.
func (s *State) Apply(a model.Action) (Effect, error) {
	if err := a.Validate(); err != nil {
		return Effect{}, fmt.Errorf("%w: %v", model.ErrUnknownEntity, err)
	}
	switch a.Kind {
	case model.DriveHarvesterToFieldAndInit:
		return s.applyInit(a)
	case model.DriveVehicleToFieldAndOverload:
		return s.applyOverload(a)
	case model.DriveToFieldExit:
		return s.applyFieldExit(a)
	case model.DriveToSilo:
		return s.applyDriveToSilo(a)
	default:
		return s.applyUnload(a)
	}
}

func (s *State) applyInit(a model.Action) (Effect, error) {
	h, err := s.machineOfKind(a.Machine, model.Harvester)
	if err != nil {
		return Effect{}, err
	}
	f, err := s.field(a.Field)
	if err != nil {
		return Effect{}, err
	}
	if f.Finished {
		return Effect{}, infeasible(FieldAlreadyFinished, a, "field %d", a.Field)
	}
	if cur, ok := s.CurrentField(a.Machine); !ok || cur != a.Field {
		return Effect{}, infeasible(TurnViolation, a, "field %d is not the current turn of harvester %d", a.Field, a.Machine)
	}
	if f.Assigned && f.Harvester != a.Machine {
		return Effect{}, infeasible(TurnViolation, a, "field %d already worked by harvester %d", a.Field, f.Harvester)
	}

	e := Effect{Action: a, From: h.Location, To: model.FieldLoc(a.Field), Start: h.Timestamp}
	e.BunkerBefore, e.BunkerAfter = h.BunkerMass, h.BunkerMass
	if h.Location == model.FieldLoc(a.Field) {
		e.Arrival, e.End = e.Start, e.Start
	} else {
		d, err := s.reachField(h, a)
		if err != nil {
			return Effect{}, err
		}
		e.Distance = d
		e.Arrival = e.Start + d/h.Spec.SpeedEmpty
		e.End = e.Arrival + s.settings.InfieldTransitSeconds
	}
	if t := a.Timing; t != nil {
		if err := checkTiming(a, t.Start, t.Arrival, t.End); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Machine, h.Timestamp, t.Start); err != nil {
			return Effect{}, err
		}
		e.Start, e.Arrival, e.End = t.Start, t.Arrival, t.End
	}

	h.Location = e.To
	h.TransitTime += e.End - e.Start
	h.Timestamp = e.End
	f.Assigned = true
	f.Harvester = a.Machine
	f.AssignedAt = e.Start
	s.machines[a.Machine] = h
	s.fields[a.Field] = f
	return e, nil
}

func (s *State) applyOverload(a model.Action) (Effect, error) {
	v, err := s.machineOfKind(a.Machine, model.TransportVehicle)
	if err != nil {
		return Effect{}, err
	}
	h, err := s.machineOfKind(a.Harvester, model.Harvester)
	if err != nil {
		return Effect{}, err
	}
	f, err := s.field(a.Field)
	if err != nil {
		return Effect{}, err
	}
	if f.Finished {
		return Effect{}, infeasible(FieldAlreadyFinished, a, "field %d", a.Field)
	}
	if !f.Assigned || f.Harvester != a.Harvester || h.Location != model.FieldLoc(a.Field) {
		return Effect{}, infeasible(TurnViolation, a, "harvester %d is not working field %d", a.Harvester, a.Field)
	}
	if cur, ok := s.CurrentVehicle(a.Harvester); !ok || cur != a.Machine {
		return Effect{}, infeasible(TurnViolation, a, "vehicle %d is not the current turn of harvester %d", a.Machine, a.Harvester)
	}
	spare := v.Spare()
	if spare <= s.settings.CapacityEpsilon {
		return Effect{}, infeasible(NoCapacity, a, "vehicle %d has %.3f kg spare", a.Machine, spare)
	}
	d, err := s.reachField(v, a)
	if err != nil {
		return Effect{}, err
	}

	e := Effect{
		Action:          a,
		From:            v.Location,
		To:              a.FieldAccess,
		Distance:        d,
		Start:           v.Timestamp,
		Mass:            math.Min(spare, f.Remaining),
		BunkerBefore:    v.BunkerMass,
		HarvesterFree:   h.Timestamp,
		RemainingBefore: f.Remaining,
	}
	infield := s.settings.InfieldTransitSeconds
	e.Arrival = e.Start + d/v.Spec.TransitSpeed(v.BunkerMass)
	e.Reach = e.Arrival + infield
	e.OpStart = math.Max(e.Reach, h.Timestamp)
	duration := s.settings.OverloadTimeFactor * h.Spec.WorkingTimePerArea * e.Mass * f.Spec.AreaPerYieldMass()
	e.OpEnd = e.OpStart + duration
	e.End = e.OpEnd + infield
	if t := a.Timing; t != nil {
		reach := t.Reach
		if reach < t.Arrival {
			reach = t.Arrival
		}
		if err := checkTiming(a, t.Start, t.Arrival, reach, t.OpStart, t.OpEnd, t.End); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Machine, v.Timestamp, t.Start); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Harvester, h.Timestamp, t.OpStart); err != nil {
			return Effect{}, err
		}
		e.Start, e.Arrival, e.Reach = t.Start, t.Arrival, reach
		e.OpStart, e.OpEnd, e.End = t.OpStart, t.OpEnd, t.End
	}
	e.Wait = e.OpStart - e.Reach
	e.HarvesterWait = math.Max(0, e.OpStart-h.Timestamp)
	e.BunkerAfter = v.BunkerMass + e.Mass
	e.RemainingAfter = f.Remaining - e.Mass
	if e.RemainingAfter < s.settings.FinishedMassEpsilon {
		e.RemainingAfter = 0
		e.FieldFinished = true
	}

	v.BunkerMass = e.BunkerAfter
	v.Location = a.FieldAccess
	v.TransitTime += (e.Reach - e.Start) + (e.End - e.OpEnd)
	v.WaitingTime += e.Wait
	v.Timestamp = e.End
	v.servedBy, v.hasServed = a.Harvester, true
	h.WaitingTime += e.HarvesterWait
	h.Timestamp = e.OpEnd
	f.Remaining = e.RemainingAfter
	if e.FieldFinished {
		f.Finished = true
		s.fieldCursor[a.Harvester]++
	}
	s.machines[a.Machine] = v
	s.machines[a.Harvester] = h
	s.fields[a.Field] = f
	return e, nil
}

func (s *State) applyFieldExit(a model.Action) (Effect, error) {
	m, ok := s.machines[a.Machine]
	if !ok {
		return Effect{}, fmt.Errorf("%w: machine %d", model.ErrUnknownEntity, a.Machine)
	}
	if _, err := s.field(a.Field); err != nil {
		return Effect{}, err
	}
	if m.Location != model.FieldLoc(a.Field) {
		return Effect{}, infeasible(TurnViolation, a, "machine %d is at %s, not inside field %d", a.Machine, m.Location, a.Field)
	}
	if _, err := s.campaign.Position(a.FieldAccess); err != nil {
		return Effect{}, err
	}
	e := Effect{Action: a, From: m.Location, To: a.FieldAccess, Start: m.Timestamp}
	e.End = e.Start + s.settings.InfieldTransitSeconds
	e.Arrival = e.End
	e.BunkerBefore, e.BunkerAfter = m.BunkerMass, m.BunkerMass
	if t := a.Timing; t != nil {
		if err := checkTiming(a, t.Start, t.End); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Machine, m.Timestamp, t.Start); err != nil {
			return Effect{}, err
		}
		e.Start, e.Arrival, e.End = t.Start, t.End, t.End
	}
	m.Location = a.FieldAccess
	m.TransitTime += e.End - e.Start
	m.Timestamp = e.End
	s.machines[a.Machine] = m
	return e, nil
}

func (s *State) applyDriveToSilo(a model.Action) (Effect, error) {
	v, err := s.machineOfKind(a.Machine, model.TransportVehicle)
	if err != nil {
		return Effect{}, err
	}
	sl, err := s.silo(a.Silo)
	if err != nil {
		return Effect{}, err
	}
	if _, err := s.campaign.Position(a.SiloAccess); err != nil {
		return Effect{}, err
	}
	if v.Location.InField() {
		return Effect{}, infeasible(NoSiloAccess, a, "vehicle %d must leave field %d first", a.Machine, v.Location.ID)
	}
	d, ok := s.Distance(v.Location, a.SiloAccess)
	if !ok {
		return Effect{}, infeasible(NoSiloAccess, a, "no route from %s to %s", v.Location, a.SiloAccess)
	}
	if sl.Remaining < v.BunkerMass-s.settings.CapacityEpsilon {
		return Effect{}, infeasible(NoCapacity, a, "silo %d has %.3f kg left for %.3f kg", a.Silo, sl.Remaining, v.BunkerMass)
	}
	e := Effect{
		Action:       a,
		From:         v.Location,
		To:           a.SiloAccess,
		Distance:     d,
		Start:        v.Timestamp,
		BunkerBefore: v.BunkerMass,
		BunkerAfter:  v.BunkerMass,
	}
	e.Arrival = e.Start + d/v.Spec.TransitSpeed(v.BunkerMass)
	e.End = e.Arrival
	if t := a.Timing; t != nil {
		if err := checkTiming(a, t.Start, t.Arrival); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Machine, v.Timestamp, t.Start); err != nil {
			return Effect{}, err
		}
		e.Start, e.Arrival, e.End = t.Start, t.Arrival, t.Arrival
	}
	v.Location = a.SiloAccess
	v.TransitTime += e.Arrival - e.Start
	v.Timestamp = e.End
	if v.hasServed {
		if cur, ok := s.CurrentVehicle(v.servedBy); ok && cur == a.Machine {
			s.advanceVehicle(v.servedBy)
			e.TurnAdvanced = true
		}
		v.hasServed = false
	}
	s.machines[a.Machine] = v
	return e, nil
}

func (s *State) applyUnload(a model.Action) (Effect, error) {
	v, err := s.machineOfKind(a.Machine, model.TransportVehicle)
	if err != nil {
		return Effect{}, err
	}
	sl, err := s.silo(a.Silo)
	if err != nil {
		return Effect{}, err
	}
	if v.Location != a.SiloAccess {
		return Effect{}, infeasible(NoSiloAccess, a, "vehicle %d is at %s, not at %s", a.Machine, v.Location, a.SiloAccess)
	}
	if sl.Remaining < v.BunkerMass-s.settings.CapacityEpsilon {
		return Effect{}, infeasible(NoCapacity, a, "silo %d has %.3f kg left for %.3f kg", a.Silo, sl.Remaining, v.BunkerMass)
	}
	e := Effect{
		Action:         a,
		From:           a.SiloAccess,
		To:             a.SiloAccess,
		Start:          v.Timestamp,
		Arrival:        v.Timestamp,
		Mass:           v.BunkerMass,
		BunkerBefore:   v.BunkerMass,
		SiloMassBefore: sl.Mass,
	}
	e.OpStart = v.Timestamp
	if free, ok := sl.accessFree[a.SiloAccess.Index]; ok && s.settings.serializeSilo() && free > e.OpStart {
		e.OpStart = free
	}
	var duration float64
	if v.Spec.UnloadingSpeed > 0 {
		duration = v.BunkerMass / v.Spec.UnloadingSpeed
	}
	e.OpEnd = e.OpStart + duration
	e.End = e.OpEnd
	if t := a.Timing; t != nil {
		if err := checkTiming(a, t.OpStart, t.OpEnd); err != nil {
			return Effect{}, err
		}
		if err := checkFree(a, a.Machine, v.Timestamp, t.OpStart); err != nil {
			return Effect{}, err
		}
		e.OpStart, e.OpEnd, e.End = t.OpStart, t.OpEnd, math.Max(t.OpEnd, t.End)
	}
	e.Wait = math.Max(0, e.OpStart-v.Timestamp)
	e.SiloMassAfter = sl.Mass + e.Mass

	sl.Mass = e.SiloMassAfter
	sl.Remaining -= e.Mass
	sl.accessFree[a.SiloAccess.Index] = e.OpEnd
	v.BunkerMass = 0
	v.WaitingTime += e.Wait
	v.Timestamp = e.End
	s.silos[a.Silo] = sl
	s.machines[a.Machine] = v
	return e, nil
}

// reachField checks that machine m can drive from its location to the
// action's field access and returns the distance.
func (s *State) reachField(m Machine, a model.Action) (float64, error) {
	if a.FieldAccess.IsZero() {
		return 0, infeasible(NoFieldAccess, a, "no field access given")
	}
	if _, err := s.campaign.Position(a.FieldAccess); err != nil {
		return 0, err
	}
	if m.Location.InField() {
		return 0, infeasible(NoFieldAccess, a, "machine %d must leave field %d first", m.Spec.ID, m.Location.ID)
	}
	d, ok := s.Distance(m.Location, a.FieldAccess)
	if !ok {
		return 0, infeasible(NoFieldAccess, a, "no route from %s to %s", m.Location, a.FieldAccess)
	}
	return d, nil
}

func checkTiming(a model.Action, ts ...float64) error {
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1]-timingTolerance {
			return fmt.Errorf("%w: %s: %v", ErrInvalidTiming, a, ts)
		}
	}
	return nil
}

// checkFree rejects an embedded start earlier than the time machine m is
// free, which would rewrite intervals already committed for it.
func checkFree(a model.Action, m model.MachineID, free, start float64) error {
	if start < free-timingTolerance {
		return fmt.Errorf("%w: %s: machine %d starts at %.3f but is busy until %.3f", ErrInvalidTiming, a, m, start, free)
	}
	return nil
}
