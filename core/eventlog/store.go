package eventlog

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Record is one persisted decoder event.
type Record struct {
	Timestamp time.Time               `json:"timestamp"`
	RunID     string                  `json:"run_id"`
	Kind      timeline.EventKind      `json:"kind"`
	Index     int                     `json:"index"`
	Machines  []model.MachineID       `json:"machines,omitempty"`
	Action    *model.Action           `json:"action,omitempty"`
	Overload  *timeline.OverloadEvent `json:"overload,omitempty"`
	Unload    *timeline.UnloadEvent   `json:"unload,omitempty"`
}

// FromEvent builds the record of ev, stamped with now.
func FromEvent(ev timeline.Event, now time.Time) Record {
	r := Record{
		Timestamp: now,
		RunID:     ev.RunID,
		Kind:      ev.Kind,
		Index:     ev.Index,
		Action:    ev.Action,
		Overload:  ev.Overload,
		Unload:    ev.Unload,
	}
	switch {
	case ev.Action != nil:
		r.Machines = append(r.Machines, ev.Action.Machine)
		if ev.Action.Harvester != 0 {
			r.Machines = append(r.Machines, ev.Action.Harvester)
		}
	case ev.Overload != nil:
		r.Machines = []model.MachineID{ev.Overload.Harvester, ev.Overload.Vehicle}
	case ev.Unload != nil:
		r.Machines = []model.MachineID{ev.Unload.Vehicle}
	}
	return r
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	RunID   string
	Kind    timeline.EventKind
	Machine model.MachineID
	Start   time.Time
	End     time.Time
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Machine != 0 && !slices.Contains(r.Machines, q.Machine) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
