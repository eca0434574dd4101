package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/eventlog"
	corequery "github.com/kilianp07/harvestplan/core/query"
	"github.com/kilianp07/harvestplan/core/scheduler"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/internal/eventbus"
	"github.com/kilianp07/harvestplan/internal/fixture"
)

const token = "secret"

func newServer(t *testing.T, withEvents bool) (*httptest.Server, *timeline.Result) {
	t.Helper()
	c := fixture.ScenarioA(t)
	s, err := scheduler.New(scheduler.Config{}, nil)
	require.NoError(t, err)
	plan, err := s.Schedule(c)
	require.NoError(t, err)

	opts := Options{Token: token}
	dec := timeline.Options{Source: timeline.PhysicsReplay{Plan: plan.Turns}}
	var done <-chan struct{}
	var bus *eventbus.TypedBus[timeline.Event]
	if withEvents {
		store, err := eventlog.NewJSONLStore(filepath.Join(t.TempDir(), "events.jsonl"))
		require.NoError(t, err)
		bus = eventbus.NewBlocking[timeline.Event](8)
		done = eventlog.RecordBus(context.Background(), bus, store, nil)
		dec.Bus = bus
		opts.Events = store
	}
	res, err := timeline.NewDecoder(dec).Decode(c, plan.Actions)
	require.NoError(t, err)
	if bus != nil {
		bus.Close()
		<-done
	}
	engine, err := corequery.New(res)
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(engine, opts))
	t.Cleanup(srv.Close)
	return srv, res
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAuth(t *testing.T) {
	srv, _ := newServer(t, false)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/run")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/run", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSnapshots(t *testing.T) {
	srv, res := newServer(t, false)

	var m corequery.MachineSnapshot
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/machines/1?t=25", &m))
	assert.InDelta(t, -375, m.Position.X, 1e-6)
	assert.InDelta(t, 0, m.Position.Y, 1e-6)
	assert.Equal(t, timeline.TransitOffField, m.Activity)

	var f corequery.FieldSnapshot
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/fields/1?t=274", &f))
	assert.InDelta(t, 60, f.Percentage, 1e-6)
	assert.InDelta(t, 6000, f.Mass, 1e-6)

	var s corequery.SiloSnapshot
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/silos/1?t=534", &s))
	assert.InDelta(t, 3000, s.Mass, 1e-6)

	var run runResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/run", &run))
	assert.Equal(t, res.RunID, run.RunID)
	assert.InDelta(t, 1010, run.Summary.Makespan, 1e-6)
	assert.InDelta(t, 10000, run.Summary.Unloaded, 1e-6)
}

func TestBadRequests(t *testing.T) {
	srv, _ := newServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/machines/99", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/machines/harvester", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/fields/1?t=noon", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/frames?step=0", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/frames?step=0.01", nil))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/events", nil))
}

func TestFrames(t *testing.T) {
	srv, _ := newServer(t, false)
	var frames []corequery.Frame
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/frames?step=100", &frames))
	require.Len(t, frames, 12)
	assert.Len(t, frames[0].Machines, 2)
	assert.Equal(t, timeline.Harvested, frames[11].Fields[0].State)
}

func TestEvents(t *testing.T) {
	srv, res := newServer(t, true)
	var all []eventlog.Record
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/events", &all))
	assert.Len(t, all, res.Decoded+len(res.Overloads)+len(res.Unloads))

	var unloads []eventlog.Record
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/events?kind=unload&machine=2", &unloads))
	assert.Len(t, unloads, 2)

	var none []eventlog.Record
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/events?run_id=other", &none))
	assert.Empty(t, none)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/events?machine=x", nil))
}
