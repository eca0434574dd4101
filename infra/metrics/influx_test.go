package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/timeline"
)

func TestInfluxSink_RecordSchedule(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	now := time.Unix(1700000000, 0)
	rep := coremetrics.ScheduleReport{Campaign: "scenario-a", Actions: 7, Duration: 2 * time.Millisecond, Time: now}
	if err := sink.RecordSchedule(rep); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("campaign", "scenario-a").
		AddTag("failed", "false").
		AddField("actions", 7).
		AddField("duration_ms", 2.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestInfluxSink_RecordRunAndEvents(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(data)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	rep := coremetrics.RunReport{
		RunID:    "run-1",
		Campaign: "scenario-a",
		Source:   "physics",
		Outcome:  "ok",
		Summary: timeline.Summary{
			Makespan: 1010,
			Machines: []timeline.MachineSummary{{Machine: 1, Waiting: 420}, {Machine: 2}},
		},
	}
	require.NoError(t, sink.RecordRun(rep))
	require.NoError(t, sink.RecordEvent(timeline.Event{
		RunID:    "run-1",
		Kind:     timeline.EventOverload,
		Overload: &timeline.OverloadEvent{Field: 1, Harvester: 1, Vehicle: 2, TsStart: 130, TsEnd: 274, Mass: 6000},
	}))
	require.NoError(t, sink.RecordEvent(timeline.Event{RunID: "run-1", Kind: timeline.EventAction}))

	require.Len(t, bodies, 2, "action events are not written")
	lines := strings.Split(bodies[0], "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "decode_run,"))
	assert.Contains(t, lines[0], "makespan_s=1010")
	assert.Contains(t, lines[1], "machine=1")
	assert.Contains(t, lines[1], "waiting_s=420")
	assert.True(t, strings.HasPrefix(bodies[1], "overload,"))
	assert.Contains(t, bodies[1], "mass_kg=6000")
}

func TestInfluxSink_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket", BreakerFailures: 2, BreakerOpen: time.Minute})
	rep := coremetrics.ScheduleReport{Campaign: "c"}
	assert.Error(t, sink.RecordSchedule(rep))
	assert.Error(t, sink.RecordSchedule(rep))
	err := sink.RecordSchedule(rep)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
