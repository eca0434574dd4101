package model

import "fmt"

// SegmentType tags a route waypoint with what the machine is doing there.
type SegmentType uint8

const (
	SegmentInitial SegmentType = iota
	SegmentTransitOffField
	SegmentFieldEntry
	SegmentTransitInField
	SegmentOverloadingStart
	SegmentOverloading
	SegmentOverloadingFinish
	SegmentFieldExit
	SegmentResourcePoint
)

var segmentNames = [...]string{
	"initial",
	"transit_off_field",
	"field_entry",
	"transit_in_field",
	"overloading_start",
	"overloading",
	"overloading_finish",
	"field_exit",
	"resource_point",
}

func (s SegmentType) String() string {
	if int(s) < len(segmentNames) {
		return segmentNames[s]
	}
	return fmt.Sprintf("segment(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s SegmentType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SegmentType) UnmarshalText(b []byte) error {
	for i, n := range segmentNames {
		if n == string(b) {
			*s = SegmentType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown segment type %q", string(b))
}

// Waypoint is one timed point of a machine route.
type Waypoint struct {
	Position   Point       `json:"position"`
	Timestamp  float64     `json:"timestamp"`
	Type       SegmentType `json:"type"`
	BunkerMass float64     `json:"bunker_mass"`
}

// Route is a time-ordered waypoint sequence.
type Route []Waypoint
