package timeline

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/harvestplan/core/model"
)

// MachineSummary aggregates the time a machine spent per activity.
type MachineSummary struct {
	Machine     model.MachineID `json:"machine"`
	Transit     float64         `json:"transit"`
	Waiting     float64         `json:"waiting"`
	Overloading float64         `json:"overloading"`
	Unloading   float64         `json:"unloading"`
	// Utilisation is the busy share of the run's makespan.
	Utilisation float64 `json:"utilisation"`
}

// Summary aggregates a decoded run.
type Summary struct {
	RunID     string           `json:"run_id"`
	Makespan  float64          `json:"makespan"`
	Harvested float64          `json:"harvested"`
	Unloaded  float64          `json:"unloaded"`
	Overloads int              `json:"overloads"`
	Unloads   int              `json:"unloads"`
	Machines  []MachineSummary `json:"machines"`
	// MeanWaiting and StdDevWaiting are taken over the machines.
	MeanWaiting   float64 `json:"mean_waiting"`
	StdDevWaiting float64 `json:"stddev_waiting"`
}

// Summarize computes per-machine and run totals from a decode result.
func Summarize(r *Result) Summary {
	s := Summary{RunID: r.RunID, Makespan: r.End, Overloads: len(r.Overloads), Unloads: len(r.Unloads)}
	masses := make([]float64, 0, len(r.Overloads))
	for _, o := range r.Overloads {
		masses = append(masses, o.Mass)
	}
	s.Harvested = floats.Sum(masses)
	masses = masses[:0]
	for _, u := range r.Unloads {
		masses = append(masses, u.Mass)
	}
	s.Unloaded = floats.Sum(masses)

	waiting := make([]float64, 0, len(r.Machines))
	for _, id := range r.MachineIDs() {
		ms := MachineSummary{Machine: id}
		for _, iv := range r.Machines[id].Intervals() {
			end, ok := iv.End()
			if !ok {
				continue
			}
			d := end - iv.TsStart
			switch {
			case iv.Activity == TransitInField || iv.Activity == TransitOffField:
				ms.Transit += d
			case iv.Activity.Waiting():
				ms.Waiting += d
			case iv.Activity == Overloading:
				ms.Overloading += d
			case iv.Activity == Unloading:
				ms.Unloading += d
			}
		}
		if r.End > 0 {
			ms.Utilisation = (ms.Transit + ms.Overloading + ms.Unloading) / r.End
		}
		waiting = append(waiting, ms.Waiting)
		s.Machines = append(s.Machines, ms)
	}
	switch {
	case len(waiting) > 1:
		s.MeanWaiting, s.StdDevWaiting = stat.MeanStdDev(waiting, nil)
	case len(waiting) == 1:
		s.MeanWaiting = waiting[0]
	}
	return s
}
