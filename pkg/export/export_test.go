package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/scheduler"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/internal/fixture"
)

func decodeScenarioA(t *testing.T) (*timeline.Result, []model.Action) {
	t.Helper()
	c := fixture.ScenarioA(t)
	s, err := scheduler.New(scheduler.Config{}, nil)
	require.NoError(t, err)
	plan, err := s.Schedule(c)
	require.NoError(t, err)
	res, err := timeline.NewDecoder(timeline.Options{Source: timeline.PhysicsReplay{Plan: plan.Turns}}).Decode(c, plan.Actions)
	require.NoError(t, err)
	return res, plan.Actions
}

func TestWriteStates(t *testing.T) {
	res, _ := decodeScenarioA(t)
	var buf bytes.Buffer
	require.NoError(t, WriteStates(&buf, res, ';', AllSections))
	out := buf.String()

	for _, title := range []string{"FIELD STATES", "FIELD OVERLOADS", "MACHINE STATES", "TV OVERLOADS", "TV UNLOADS", "TV OVERLOADS (ALL)", "SILO STATES"} {
		assert.Contains(t, out, "*** "+title+" ***\n")
	}
	assert.Contains(t, out, "FIELD\nts_start;ts_end;harv_state;harvested_percentage_start;harvested_percentage_end;harvested_yield_mass_start;harvested_yield_mass_end;harvester;tv\n")
	assert.Contains(t, out, "TV\nts_start;ts_end;silo;field_overload;harvester_overload\n")
	assert.Equal(t, 2, strings.Count(out, ";silo;field;harvester\n"))
	assert.Contains(t, out, ";OVERLOADING;tv\n")
	assert.Contains(t, out, ";HARVESTED;")
}

func TestWriteStatesSections(t *testing.T) {
	res, _ := decodeScenarioA(t)
	var buf bytes.Buffer
	require.NoError(t, WriteStates(&buf, res, ',', AllOverloads))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "*** TV OVERLOADS (ALL) ***\n\n"), out)

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "*** TV OVERLOADS (ALL) ***\n\n")))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ts_start", "ts_end", "field", "harvester", "tv"}, rows[0])
	for i, want := range [][2]float64{{130, 274}, {694, 790}} {
		row := rows[i+1]
		assert.InDelta(t, want[0], parseFloat(t, row[0]), 1e-6)
		assert.InDelta(t, want[1], parseFloat(t, row[1]), 1e-6)
		assert.Equal(t, []string{"field", "harvester", "tv"}, row[2:])
	}

	assert.Error(t, WriteStates(&buf, nil, ';', AllSections))
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestReadActions(t *testing.T) {
	_, actions := decodeScenarioA(t)
	var buf bytes.Buffer
	require.NoError(t, WriteActions(&buf, actions))
	got, err := ReadActions(&buf)
	require.NoError(t, err)
	assert.Equal(t, actions, got)

	bare := `[{"kind":"drive_harvester_to_field_and_init","machine":1,"field":1,"field_access":"field_access:1:0"}]`
	got, err = ReadActions(strings.NewReader(bare))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.FieldAccessLoc(1, 0), got[0].FieldAccess)

	_, err = ReadActions(strings.NewReader(`{"actions":[{"kind":"drive_to_silo","machine":2}]}`))
	assert.ErrorContains(t, err, "action 0")

	_, err = ReadActions(strings.NewReader(`{"actions":`))
	assert.Error(t, err)
}

func TestBuildRouteFile(t *testing.T) {
	res, _ := decodeScenarioA(t)
	rf := BuildRouteFile(res)
	require.Len(t, rf.Machines, 2)
	assert.Equal(t, "harvester", rf.Machines[0].Name)
	assert.Equal(t, model.Harvester, rf.Machines[0].Kind)
	assert.Equal(t, model.TransportVehicle, rf.Machines[1].Kind)
	assert.NotEmpty(t, rf.Machines[1].Route)
	assert.Equal(t, []model.Point{{X: -500, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 100}, {X: -500, Y: 100}}, rf.Bounds)
}

func TestWriteAll(t *testing.T) {
	res, actions := decodeScenarioA(t)
	dir := filepath.Join(t.TempDir(), "out")
	files, err := WriteAll(Config{Dir: dir}, "scenario-a", res, actions)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scenario-a.states.csv"), files.States)

	loaded, err := LoadActions(files.Actions)
	require.NoError(t, err)
	assert.Len(t, loaded, len(actions))

	b, err := os.ReadFile(files.Routes)
	require.NoError(t, err)
	var rf RouteFile
	require.NoError(t, json.Unmarshal(b, &rf))
	assert.Len(t, rf.Machines, 2)

	_, err = os.Stat(files.Chart)
	assert.NoError(t, err)

	_, err = WriteAll(Config{Dir: dir, Separator: ";;"}, "x", res, actions)
	assert.Error(t, err)
}

func TestWriteChart(t *testing.T) {
	res, _ := decodeScenarioA(t)
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, res, 100))
	html := buf.String()
	assert.Contains(t, html, "<html")
	for _, title := range []string{"Field progress", "Silo inventory", "Bunker mass"} {
		assert.Contains(t, html, title)
	}
	assert.Contains(t, html, res.RunID)
}
