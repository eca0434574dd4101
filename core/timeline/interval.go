package timeline

import (
	"fmt"

	"github.com/kilianp07/harvestplan/core/model"
)

// Span bounds an interval. A nil TsEnd marks the open last interval of a
// timeline.
type Span struct {
	TsStart float64  `json:"ts_start"`
	TsEnd   *float64 `json:"ts_end,omitempty"`
}

// Bounds returns the span itself.
func (s Span) Bounds() Span { return s }

// End returns the end timestamp and whether the span is closed.
func (s Span) End() (float64, bool) {
	if s.TsEnd == nil {
		return 0, false
	}
	return *s.TsEnd, true
}

// Open reports whether the span has no end.
func (s Span) Open() bool { return s.TsEnd == nil }

// Frac returns the clamped fraction of the span elapsed at t. Open and
// zero-length spans yield 0.
func (s Span) Frac(t float64) float64 {
	end, ok := s.End()
	if !ok || end-s.TsStart <= 0 {
		return 0
	}
	f := (t - s.TsStart) / (end - s.TsStart)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func closed(start, end float64) Span {
	return Span{TsStart: start, TsEnd: &end}
}

func openAt(start float64) Span { return Span{TsStart: start} }

// Activity is what a machine does during an interval.
type Activity uint8

const (
	WaitingToDrive Activity = iota
	WaitingToOverload
	Overloading
	TransitInField
	TransitOffField
	WaitingToUnload
	Unloading
)

var activityNames = [...]string{
	"WAITING_TO_DRIVE",
	"WAITING_TO_OVERLOAD",
	"OVERLOADING",
	"TRANSIT_IN_FIELD",
	"TRANSIT_OFF_FIELD",
	"WAITING_TO_UNLOAD",
	"UNLOADING",
}

func (a Activity) String() string {
	if int(a) < len(activityNames) {
		return activityNames[a]
	}
	return fmt.Sprintf("ACTIVITY(%d)", uint8(a))
}

// Waiting reports whether the activity is idle time.
func (a Activity) Waiting() bool {
	return a == WaitingToDrive || a == WaitingToOverload || a == WaitingToUnload
}

// MarshalText implements encoding.TextMarshaler.
func (a Activity) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Activity) UnmarshalText(b []byte) error {
	for i, n := range activityNames {
		if n == string(b) {
			*a = Activity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown activity %q", string(b))
}

// HarvestState is the harvesting progress tag of a field interval.
type HarvestState uint8

const (
	Unreserved HarvestState = iota
	Reserved
	BeingHarvested
	BeingHarvestedWaiting
	Harvested
)

var harvestStateNames = [...]string{
	"UNRESERVED",
	"RESERVED",
	"BEING_HARVESTED",
	"BEING_HARVESTED_WAITING",
	"HARVESTED",
}

func (h HarvestState) String() string {
	if int(h) < len(harvestStateNames) {
		return harvestStateNames[h]
	}
	return fmt.Sprintf("HARVEST_STATE(%d)", uint8(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h HarvestState) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HarvestState) UnmarshalText(b []byte) error {
	for i, n := range harvestStateNames {
		if n == string(b) {
			*h = HarvestState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown harvest state %q", string(b))
}

// MachineInterval is one state of a machine. Transit and waiting are
// cumulative since the start of the campaign.
type MachineInterval struct {
	Span
	Activity Activity `json:"activity"`
	// Action is the kind of the action that caused the interval, zero for
	// the initial interval.
	Action       model.ActionKind  `json:"action,omitempty"`
	LocStart     model.LocationRef `json:"loc_start"`
	LocEnd       model.LocationRef `json:"loc_end"`
	PosStart     model.Point       `json:"pos_start"`
	PosEnd       model.Point       `json:"pos_end"`
	BunkerStart  float64           `json:"bunker_start"`
	BunkerEnd    float64           `json:"bunker_end"`
	TransitStart float64           `json:"transit_start"`
	TransitEnd   float64           `json:"transit_end"`
	WaitingStart float64           `json:"waiting_start"`
	WaitingEnd   float64           `json:"waiting_end"`
	// Counterpart is the other machine of an overload.
	Counterpart *model.MachineID `json:"counterpart,omitempty"`
}

func (iv MachineInterval) closedAt(ts float64) MachineInterval {
	iv.TsEnd = &ts
	return iv
}

// FieldInterval is one harvesting state of a field.
type FieldInterval struct {
	Span
	State     HarvestState     `json:"state"`
	PctStart  float64          `json:"pct_start"`
	PctEnd    float64          `json:"pct_end"`
	MassStart float64          `json:"mass_start"`
	MassEnd   float64          `json:"mass_end"`
	Harvester *model.MachineID `json:"harvester,omitempty"`
	Vehicle   *model.MachineID `json:"vehicle,omitempty"`
}

func (iv FieldInterval) closedAt(ts float64) FieldInterval {
	iv.TsEnd = &ts
	return iv
}

// SiloInterval is the accumulated mass of a silo over a span.
type SiloInterval struct {
	Span
	MassStart float64 `json:"mass_start"`
	MassEnd   float64 `json:"mass_end"`
}

func (iv SiloInterval) closedAt(ts float64) SiloInterval {
	iv.TsEnd = &ts
	return iv
}

func idPtr(id model.MachineID) *model.MachineID { return &id }
