package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/app"
	"github.com/kilianp07/harvestplan/config"
	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	coremqtt "github.com/kilianp07/harvestplan/core/mqtt"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/infra/metrics"
	"github.com/kilianp07/harvestplan/infra/mqtt"
)

const tolerance = 1e-6

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	pub := mqtt.NewMemoryPublisher("")
	for _, k := range sc.FailKinds {
		pub.FailKinds[k] = true
	}

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Export.Disabled = true
	svc, err := app.NewWithDeps(cfg, app.Deps{Sink: sink, Publisher: pub})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	out, runErr := svc.Run(context.Background(), &sc.Campaign, nil)
	outcome, reason := coremetrics.Outcome(runErr)
	if outcome != sc.Expected.Outcome {
		t.Fatalf("scenario %s expected outcome %s, got %s (%s)", sc.Name, sc.Expected.Outcome, outcome, reason)
	}
	if out.Result == nil {
		return
	}
	res := out.Result
	s := timeline.Summarize(res)
	exp := sc.Expected
	if exp.Makespan > 0 {
		assert.InDelta(t, exp.Makespan, s.Makespan, tolerance, "makespan")
	}
	if exp.Harvested > 0 {
		assert.InDelta(t, exp.Harvested, s.Harvested, tolerance, "harvested")
	}
	if exp.Unloaded > 0 {
		assert.InDelta(t, exp.Unloaded, s.Unloaded, tolerance, "unloaded")
	}
	if exp.Overloads > 0 {
		assert.Equal(t, exp.Overloads, s.Overloads, "overloads")
	}
	if exp.Unloads > 0 {
		assert.Equal(t, exp.Unloads, s.Unloads, "unloads")
	}
	for id, mass := range exp.SiloMass {
		tl, ok := res.Silos[id]
		require.True(t, ok, "silo %d", id)
		last, ok := tl.Last()
		require.True(t, ok, "silo %d has no interval", id)
		assert.InDelta(t, mass, last.MassEnd, tolerance, "silo %d", id)
	}

	// every event reached the publisher unless its kind was made to fail
	failing := map[timeline.EventKind]bool{}
	for _, k := range sc.FailKinds {
		failing[k] = true
	}
	want := map[timeline.EventKind]int{
		timeline.EventAction:   res.Decoded,
		timeline.EventOverload: len(res.Overloads),
		timeline.EventUnload:   len(res.Unloads),
	}
	for kind, n := range want {
		if failing[kind] {
			n = 0
		}
		topic := coremqtt.Topic("", timeline.Event{RunID: res.RunID, Kind: kind})
		assert.Len(t, pub.Messages(topic), n, topic)
	}

	assert.InDelta(t, 1, counterTotal(t, reg, "harvestplan_decode_runs_total"), tolerance)
	assert.InDelta(t, 1, counterTotal(t, reg, "harvestplan_schedule_runs_total"), tolerance)
	assert.InDelta(t, s.Harvested+s.Unloaded, counterTotal(t, reg, "harvestplan_transferred_mass_kg_total"), tolerance)
}

// counterTotal sums every series of a counter family.
func counterTotal(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
