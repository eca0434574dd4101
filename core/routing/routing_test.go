package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
)

func TestStraightRoadUsesLoadSpeed(t *testing.T) {
	m := model.Machine{SpeedEmpty: 10, SpeedFull: 5, BunkerCapacity: 100}
	ref := model.Waypoint{Timestamp: 20, BunkerMass: 100}
	wps, err := StraightRoad{}.Route(model.Point{}, model.Point{X: 100}, m, ref, model.SegmentFieldEntry)
	require.NoError(t, err)
	require.Len(t, wps, 3)
	assert.InDelta(t, 20, wps[0].Timestamp, 1e-9)
	assert.InDelta(t, 30, wps[1].Timestamp, 1e-9)
	assert.InDelta(t, 40, wps[2].Timestamp, 1e-9)
	assert.Equal(t, model.SegmentFieldEntry, wps[2].Type)
	assert.Equal(t, 100.0, wps[2].BunkerMass)
}

func TestStraightRoadZeroLength(t *testing.T) {
	p := model.Point{X: 3, Y: 4}
	wps, err := StraightRoad{}.Route(p, p, model.Machine{SpeedEmpty: 1}, model.Waypoint{Timestamp: 7}, model.SegmentResourcePoint)
	require.NoError(t, err)
	require.Len(t, wps, 2)
	assert.Equal(t, wps[0].Timestamp, wps[1].Timestamp)
}

func TestCoverageServe(t *testing.T) {
	f := model.Field{
		Area:      100,
		YieldMass: 10,
		Boundary:  []model.Point{{X: 0, Y: 0}, {X: 100, Y: 0}},
		Accesses:  []model.Point{{X: 0, Y: 0}},
	}
	req := InfieldRequest{
		Field:           f,
		Mode:            ModeServe,
		Entry:           f.Accesses[0],
		State:           MachineSnapshot{BunkerMass: 1},
		HarvestedBefore: 0.25,
		HarvestedAfter:  1,
		Mass:            4,
		Schedule:        Schedule{Arrival: 10, Reach: 20, WorkStart: 30, WorkEnd: 40, Leave: 50},
	}
	res, err := Coverage{}.Plan(req)
	require.NoError(t, err)
	require.Len(t, res.Route, 5)
	assert.Equal(t, model.Point{X: 25}, res.Route[1].Position)
	assert.Equal(t, model.Point{X: 100}, res.Route[3].Position)
	assert.Equal(t, 5.0, res.Route[3].BunkerMass)
	assert.Equal(t, model.SegmentFieldExit, res.Route[4].Type)
	assert.True(t, res.FinishedField)
	assert.Equal(t, 1.0, res.YieldMassFactor)
	assert.InDelta(t, 50, res.State.Timestamp, 1e-9)
	for i := 1; i < len(res.Route); i++ {
		if res.Route[i].Timestamp < res.Route[i-1].Timestamp {
			t.Fatalf("route not monotonic at %d", i)
		}
	}
}

func TestCoverageRejectsUnknownMode(t *testing.T) {
	_, err := Coverage{}.Plan(InfieldRequest{})
	assert.Error(t, err)
}
