package scheduler

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/harvestplan/core/logger"
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/state"
)

// ErrNoVehicle is returned when a harvester has fields left but nobody to
// overload into.
var ErrNoVehicle = errors.New("no vehicle turn left")

// Plan is the result of a scheduling run.
type Plan struct {
	Campaign string         `json:"campaign"`
	Actions  []model.Action `json:"actions"`
	Turns    state.Turns    `json:"turns"`
	// Failed is the action that could not be applied when the run aborted.
	Failed *model.Action `json:"failed,omitempty"`
}

// Scheduler generates dispatch plans.
type Scheduler struct {
	Config Config
	Logger logger.Logger
}

// New returns a Scheduler with defaults applied to cfg.
func New(cfg Config, log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{Config: cfg, Logger: log}, nil
}

// Schedule builds the action list for the whole campaign. On failure the
// partial plan built so far is returned together with the error.
func (s *Scheduler) Schedule(c *model.Campaign) (*Plan, error) {
	if s.Logger == nil {
		s.Logger = logger.NopLogger{}
	}
	turns, err := ResolveAssignments(c, s.Config)
	if err != nil {
		return &Plan{Campaign: c.Name, Turns: turns}, fmt.Errorf("resolve assignments: %w", err)
	}
	st, err := state.New(c, s.Config.Physics, turns)
	if err != nil {
		return &Plan{Campaign: c.Name, Turns: turns}, err
	}
	r := &run{cfg: s.Config, log: s.Logger, st: st, plan: &Plan{Campaign: c.Name, Turns: turns}}

	harvesters := make([]model.MachineID, 0, len(turns.Fields))
	for h := range turns.Fields {
		harvesters = append(harvesters, h)
	}
	slices.Sort(harvesters)
	for _, h := range harvesters {
		for {
			f, ok := st.CurrentField(h)
			if !ok {
				break
			}
			if err := r.harvestField(h, f); err != nil {
				s.Logger.Warnf("campaign %s: aborted after %d actions: %v", c.Name, len(r.plan.Actions), err)
				return r.plan, err
			}
		}
	}
	s.Logger.Infof("campaign %s: planned %d actions", c.Name, len(r.plan.Actions))
	return r.plan, nil
}

// run is the mutable scope of one Schedule call.
type run struct {
	cfg  Config
	log  logger.Logger
	st   *state.State
	plan *Plan
}

func (r *run) apply(a model.Action) (state.Effect, error) {
	e, err := r.st.Apply(a)
	if err != nil {
		failed := a
		r.plan.Failed = &failed
		return e, err
	}
	r.plan.Actions = append(r.plan.Actions, a)
	r.log.Debugw("action", map[string]any{
		"kind":    a.Kind.String(),
		"machine": int(a.Machine),
		"start":   e.Start,
		"end":     e.End,
		"mass":    e.Mass,
	})
	return e, nil
}

func (r *run) harvestField(h model.MachineID, f model.FieldID) error {
	hm, _ := r.st.Machine(h)
	target := model.FieldLoc(f)
	if hm.Location.InField() && hm.Location != target {
		from, _ := hm.Location.FieldID()
		exit := r.bestExit(from, f)
		if _, err := r.apply(model.Action{Kind: model.DriveToFieldExit, Machine: h, Field: from, FieldAccess: exit}); err != nil {
			return err
		}
		hm, _ = r.st.Machine(h)
	}
	init := model.Action{Kind: model.DriveHarvesterToFieldAndInit, Machine: h, Field: f, Origin: hm.Location}
	if hm.Location != target {
		init.FieldAccess = r.nearestFieldAccess(hm.Location, f)
	}
	if _, err := r.apply(init); err != nil {
		return err
	}

	eps := r.st.Settings().FinishedMassEpsilon
	for {
		fs, _ := r.st.Field(f)
		if fs.Finished || fs.Remaining < eps {
			return nil
		}
		v, ok := r.st.CurrentVehicle(h)
		if !ok {
			return fmt.Errorf("harvester %d field %d: %w", h, f, ErrNoVehicle)
		}
		vm, _ := r.st.Machine(v)
		if vm.Fill() > r.cfg.UnloadBeforeFill || vm.Spare() <= r.st.Settings().CapacityEpsilon {
			if err := r.unload(v); err != nil {
				return err
			}
			if cur, _ := r.st.CurrentVehicle(h); cur != v {
				continue
			}
			vm, _ = r.st.Machine(v)
		}
		overload := model.Action{
			Kind:        model.DriveVehicleToFieldAndOverload,
			Machine:     v,
			Harvester:   h,
			Field:       f,
			Origin:      vm.Location,
			FieldAccess: r.nearestFieldAccess(vm.Location, f),
		}
		if _, err := r.apply(overload); err != nil {
			return err
		}
		vm, _ = r.st.Machine(v)
		if vm.Fill() > r.cfg.UnloadAfterFill || r.st.IsLastField(h, f) {
			if err := r.unload(v); err != nil {
				return err
			}
		}
	}
}

// unload drives v to the nearest silo that can take its load and unloads it.
func (r *run) unload(v model.MachineID) error {
	vm, _ := r.st.Machine(v)
	access, err := r.nearestSilo(vm.Location, vm.BunkerMass)
	if err != nil {
		return err
	}
	silo, _ := access.SiloID()
	drive := model.Action{Kind: model.DriveToSilo, Machine: v, Silo: silo, Origin: vm.Location, SiloAccess: access}
	if _, err := r.apply(drive); err != nil {
		return err
	}
	drive.Kind = model.UnloadAtSilo
	drive.Origin = access
	_, err = r.apply(drive)
	return err
}

// nearestFieldAccess returns the closest reachable access of f, ties broken
// by the lowest index. When none is reachable the first access is returned
// and the applier reports the failure.
func (r *run) nearestFieldAccess(from model.LocationRef, f model.FieldID) model.LocationRef {
	accesses := r.st.Campaign().FieldAccesses(f)
	if len(accesses) == 0 {
		return model.FieldAccessLoc(f, 0)
	}
	best, bestD := accesses[0], math.Inf(1)
	for _, a := range accesses {
		if d, ok := r.st.Distance(from, a); ok && d < bestD {
			best, bestD = a, d
		}
	}
	return best
}

// bestExit picks the access of the current field closest to any access of
// the next field.
func (r *run) bestExit(current, next model.FieldID) model.LocationRef {
	exits := r.st.Campaign().FieldAccesses(current)
	if len(exits) == 0 {
		return model.FieldAccessLoc(current, 0)
	}
	best, bestD := exits[0], math.Inf(1)
	for _, e := range exits {
		for _, a := range r.st.Campaign().FieldAccesses(next) {
			if d, ok := r.st.Distance(e, a); ok && d < bestD {
				best, bestD = e, d
			}
		}
	}
	return best
}

// nearestSilo returns the closest reachable silo access whose silo can take
// load. Ties are broken by distance, then silo id, then access index.
func (r *run) nearestSilo(from model.LocationRef, load float64) (model.LocationRef, error) {
	c := r.st.Campaign()
	silos := make([]model.SiloID, 0, len(c.Silos))
	for _, s := range c.Silos {
		silos = append(silos, s.ID)
	}
	if len(silos) == 0 {
		return model.LocationRef{}, fmt.Errorf("campaign %s has no silo", c.Name)
	}
	slices.Sort(silos)
	eps := r.st.Settings().CapacityEpsilon
	var best model.LocationRef
	bestD := math.Inf(1)
	for _, id := range silos {
		s, _ := r.st.Silo(id)
		if s.Remaining < load-eps {
			continue
		}
		for _, a := range c.SiloAccesses(id) {
			if d, ok := r.st.Distance(from, a); ok && d < bestD {
				best, bestD = a, d
			}
		}
	}
	if best.IsZero() {
		// Let the applier report why the first silo cannot be used.
		return c.SiloAccesses(silos[0])[0], nil
	}
	return best, nil
}
