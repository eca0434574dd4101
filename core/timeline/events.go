package timeline

import (
	"sort"

	"github.com/kilianp07/harvestplan/core/model"
)

// OverloadEvent records a transfer from a harvester into a vehicle.
type OverloadEvent struct {
	ID        int             `json:"id"`
	Field     model.FieldID   `json:"field"`
	Harvester model.MachineID `json:"harvester"`
	Vehicle   model.MachineID `json:"vehicle"`
	TsStart   float64         `json:"ts_start"`
	TsEnd     float64         `json:"ts_end"`
	Mass      float64         `json:"mass"`
	// SiloAccess is where the vehicle unloads this mass next, once known.
	SiloAccess *model.LocationRef `json:"silo_access,omitempty"`
}

// UnloadEvent records a vehicle emptying its bunker into a silo.
type UnloadEvent struct {
	ID         int               `json:"id"`
	Vehicle    model.MachineID   `json:"vehicle"`
	Silo       model.SiloID      `json:"silo"`
	SiloAccess model.LocationRef `json:"silo_access"`
	TsStart    float64           `json:"ts_start"`
	TsEnd      float64           `json:"ts_end"`
	Mass       float64           `json:"mass"`
	// Overload is the last overload that filled the unloaded load.
	Overload   *OverloadEvent `json:"-"`
	OverloadID *int           `json:"overload_id,omitempty"`
}

// EventKind tags the payload of an Event.
type EventKind string

const (
	EventAction   EventKind = "action"
	EventOverload EventKind = "overload"
	EventUnload   EventKind = "unload"
)

// Event is published on the decoder bus while decoding.
type Event struct {
	RunID    string         `json:"run_id"`
	Kind     EventKind      `json:"kind"`
	Index    int            `json:"index"`
	Action   *model.Action  `json:"action,omitempty"`
	Overload *OverloadEvent `json:"overload,omitempty"`
	Unload   *UnloadEvent   `json:"unload,omitempty"`
}

// insertByStart inserts e after every element starting at or before it.
func insertByStart[E any](list []E, e E, start func(E) float64) []E {
	ts := start(e)
	i := sort.Search(len(list), func(i int) bool { return start(list[i]) > ts })
	list = append(list, e)
	copy(list[i+1:], list[i:])
	list[i] = e
	return list
}

func overloadStart(e *OverloadEvent) float64 { return e.TsStart }

func unloadStart(e *UnloadEvent) float64 { return e.TsStart }
