package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// PromSink records planning and decoding runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	schedules *prometheus.CounterVec
	makespan  *prometheus.GaugeVec
	waiting   *prometheus.HistogramVec
	overloads *prometheus.CounterVec
	mass      *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by the serve command.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvestplan_decode_runs_total",
			Help: "Decode runs by replay source and outcome",
		}, []string{"source", "outcome"}),
		schedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvestplan_schedule_runs_total",
			Help: "Scheduler runs by outcome",
		}, []string{"failed"}),
		makespan: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harvestplan_makespan_seconds",
			Help: "End of the last decoded activity per campaign",
		}, []string{"campaign"}),
		waiting: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvestplan_machine_waiting_seconds",
			Help:    "Total waiting time per machine and run",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}, []string{"campaign"}),
		overloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvestplan_overloads_total",
			Help: "Decoded overloads per field",
		}, []string{"field"}),
		mass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvestplan_transferred_mass_kg_total",
			Help: "Mass moved by decoded overloads and unloads",
		}, []string{"kind"}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.schedules, err = register(reg, s.schedules); err != nil {
		return nil, err
	}
	if s.makespan, err = register(reg, s.makespan); err != nil {
		return nil, err
	}
	if s.waiting, err = register(reg, s.waiting); err != nil {
		return nil, err
	}
	if s.overloads, err = register(reg, s.overloads); err != nil {
		return nil, err
	}
	if s.mass, err = register(reg, s.mass); err != nil {
		return nil, err
	}
	return s, nil
}

// register registers c, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun implements coremetrics.Sink.
func (s *PromSink) RecordRun(r coremetrics.RunReport) error {
	s.runs.WithLabelValues(r.Source, r.Outcome).Inc()
	s.makespan.WithLabelValues(r.Campaign).Set(r.Summary.Makespan)
	for _, m := range r.Summary.Machines {
		s.waiting.WithLabelValues(r.Campaign).Observe(m.Waiting)
	}
	return nil
}

// RecordSchedule implements coremetrics.ScheduleRecorder.
func (s *PromSink) RecordSchedule(r coremetrics.ScheduleReport) error {
	s.schedules.WithLabelValues(strconv.FormatBool(r.Failed)).Inc()
	return nil
}

// RecordEvent implements coremetrics.EventRecorder.
func (s *PromSink) RecordEvent(ev timeline.Event) error {
	switch ev.Kind {
	case timeline.EventOverload:
		if o := ev.Overload; o != nil {
			s.overloads.WithLabelValues(strconv.Itoa(int(o.Field))).Inc()
			s.mass.WithLabelValues("overload").Add(o.Mass)
		}
	case timeline.EventUnload:
		if u := ev.Unload; u != nil {
			s.mass.WithLabelValues("unload").Add(u.Mass)
		}
	}
	return nil
}
