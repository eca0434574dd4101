package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

func sampleRecords(run string, base time.Time) []Record {
	a := model.Action{Kind: model.DriveHarvesterToFieldAndInit, Machine: 1, Field: 1, FieldAccess: model.FieldAccessLoc(1, 0)}
	return []Record{
		FromEvent(timeline.Event{RunID: run, Kind: timeline.EventAction, Index: 0, Action: &a}, base),
		FromEvent(timeline.Event{RunID: run, Kind: timeline.EventOverload, Index: 1,
			Overload: &timeline.OverloadEvent{Field: 1, Harvester: 1, Vehicle: 2, TsStart: 130, TsEnd: 274, Mass: 6000}}, base.Add(time.Second)),
		FromEvent(timeline.Event{RunID: run, Kind: timeline.EventUnload, Index: 3,
			Unload: &timeline.UnloadEvent{Vehicle: 2, Silo: 1, SiloAccess: model.SiloAccessLoc(1, 0), TsStart: 504, TsEnd: 564, Mass: 6000}}, base.Add(2*time.Second)),
	}
}

func TestStores(t *testing.T) {
	open := map[string]func(t *testing.T) Store{
		"jsonl": func(t *testing.T) Store {
			s, err := NewJSONLStore(filepath.Join(t.TempDir(), "events.jsonl"))
			require.NoError(t, err)
			return s
		},
		"rotating": func(t *testing.T) Store {
			s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "log", "events.jsonl"), 1, 2, 1)
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore("file:eventlog_stores?mode=memory&cache=shared")
			require.NoError(t, err)
			return s
		},
	}
	for name, mk := range open {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
			for _, r := range append(sampleRecords("run-1", base), sampleRecords("run-2", base.Add(time.Hour))...) {
				require.NoError(t, s.Append(ctx, r))
			}

			all, err := s.Query(ctx, Query{})
			require.NoError(t, err)
			assert.Len(t, all, 6)

			run1, err := s.Query(ctx, Query{RunID: "run-1"})
			require.NoError(t, err)
			require.Len(t, run1, 3)
			assert.Equal(t, timeline.EventAction, run1[0].Kind)
			require.NotNil(t, run1[0].Action)
			assert.Equal(t, model.FieldAccessLoc(1, 0), run1[0].Action.FieldAccess)
			require.NotNil(t, run1[2].Unload)
			assert.InDelta(t, 6000, run1[2].Unload.Mass, 1e-9)

			vehicle, err := s.Query(ctx, Query{Machine: 2})
			require.NoError(t, err)
			assert.Len(t, vehicle, 4)

			unloads, err := s.Query(ctx, Query{Kind: timeline.EventUnload, Start: base.Add(30 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, unloads, 1)
			assert.Equal(t, "run-2", unloads[0].RunID)
		})
	}
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 3, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	recs := sampleRecords("run", time.Now())
	n := 0
	for i := 0; i < 2500; i++ {
		for _, r := range recs {
			r.Index = n
			if err := store.Append(ctx, r); err != nil {
				t.Fatalf("append: %v", err)
			}
			n++
		}
	}
	backups, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	if len(backups) == 0 {
		t.Fatalf("expected rotated files")
	}
	out, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, out, n)
	for i, r := range out {
		if r.Index != i {
			t.Fatalf("record %d has index %d; backups are read oldest first", i, r.Index)
		}
	}
}

func TestQueryMatch(t *testing.T) {
	r := sampleRecords("r", time.Unix(100, 0))[1]
	assert.Equal(t, []model.MachineID{1, 2}, r.Machines)
	assert.True(t, Query{}.Match(r))
	assert.True(t, Query{Machine: 1, Kind: timeline.EventOverload}.Match(r))
	assert.False(t, Query{Machine: 3}.Match(r))
	assert.False(t, Query{End: time.Unix(50, 0)}.Match(r))
	assert.False(t, Query{RunID: "other"}.Match(r))
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(Config{Backend: BackendJSONL, Path: filepath.Join(t.TempDir(), "e.jsonl")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Config{Backend: "kafka"})
	assert.Error(t, err)
}
