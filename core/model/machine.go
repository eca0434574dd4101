package model

import "fmt"

// MachineID identifies a harvester or a transport vehicle.
type MachineID int

// FieldID identifies a field.
type FieldID int

// SiloID identifies a silo.
type SiloID int

// MachineKind distinguishes harvesters from transport vehicles.
type MachineKind uint8

const (
	Harvester MachineKind = iota + 1
	TransportVehicle
)

func (k MachineKind) String() string {
	switch k {
	case Harvester:
		return "harvester"
	case TransportVehicle:
		return "transport_vehicle"
	default:
		return fmt.Sprintf("machine_kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k MachineKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MachineKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "harvester":
		*k = Harvester
	case "transport_vehicle", "tv":
		*k = TransportVehicle
	default:
		return fmt.Errorf("unknown machine kind %q", string(b))
	}
	return nil
}

// Machine describes the static properties of a harvester or transport vehicle.
// Speeds are in m/s, masses in kg.
type Machine struct {
	ID             MachineID   `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Kind           MachineKind `json:"kind" yaml:"kind"`
	SpeedEmpty     float64     `json:"speed_empty" yaml:"speed_empty"`
	SpeedFull      float64     `json:"speed_full" yaml:"speed_full"`
	BunkerCapacity float64     `json:"bunker_capacity" yaml:"bunker_capacity"`
	WorkingWidth   float64     `json:"working_width" yaml:"working_width"`
	// WorkingTimePerArea is the harvesting time in s/m².
	WorkingTimePerArea float64 `json:"working_time_per_area" yaml:"working_time_per_area"`
	// UnloadingSpeed is in kg/s.
	UnloadingSpeed float64 `json:"unloading_speed" yaml:"unloading_speed"`
}

// IsHarvester reports whether m is a harvester.
func (m Machine) IsHarvester() bool { return m.Kind == Harvester }

// IsVehicle reports whether m is a transport vehicle.
func (m Machine) IsVehicle() bool { return m.Kind == TransportVehicle }

// TransitSpeed returns the off-field speed for the given bunker mass. The
// speed varies linearly between SpeedEmpty and SpeedFull with the fill level.
func (m Machine) TransitSpeed(bunkerMass float64) float64 {
	if m.BunkerCapacity <= 0 || m.SpeedFull <= 0 {
		return m.SpeedEmpty
	}
	fill := bunkerMass / m.BunkerCapacity
	if fill < 0 {
		fill = 0
	} else if fill > 1 {
		fill = 1
	}
	return m.SpeedEmpty + fill*(m.SpeedFull-m.SpeedEmpty)
}

// Fill returns the bunker fill fraction for the given mass.
func (m Machine) Fill(bunkerMass float64) float64 {
	if m.BunkerCapacity <= 0 {
		return 0
	}
	return bunkerMass / m.BunkerCapacity
}
