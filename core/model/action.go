package model

import "fmt"

// ActionKind enumerates the dispatch decisions.
type ActionKind uint8

const (
	DriveHarvesterToFieldAndInit ActionKind = iota + 1
	DriveVehicleToFieldAndOverload
	DriveToFieldExit
	DriveToSilo
	UnloadAtSilo
)

var actionNames = map[ActionKind]string{
	DriveHarvesterToFieldAndInit:   "drive_harvester_to_field_and_init",
	DriveVehicleToFieldAndOverload: "drive_vehicle_to_field_and_overload",
	DriveToFieldExit:               "drive_to_field_exit",
	DriveToSilo:                    "drive_to_silo",
	UnloadAtSilo:                   "unload_at_silo",
}

func (k ActionKind) String() string {
	if n, ok := actionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionNames[k]; !ok {
		return nil, fmt.Errorf("invalid action kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActionKind) UnmarshalText(b []byte) error {
	for kind, n := range actionNames {
		if n == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", string(b))
}

// Timing carries timestamps computed by an external planner. Fields that do
// not apply to an action kind are left zero.
type Timing struct {
	// Start is when the machine leaves its current location.
	Start float64 `json:"start"`
	// Arrival is when the machine reaches the access point.
	Arrival float64 `json:"arrival"`
	// Reach is when a vehicle reaches the overload point inside the field.
	Reach float64 `json:"reach,omitempty"`
	// OpStart and OpEnd bound the overload or unload operation.
	OpStart float64 `json:"op_start,omitempty"`
	OpEnd   float64 `json:"op_end,omitempty"`
	// End is when the machine is free again.
	End float64 `json:"end"`
}

// Action is one dispatch decision. Machine is the acting machine: the
// harvester for an init, the vehicle for overload/silo actions and either
// kind for a field exit. Harvester is only set for overloads.
type Action struct {
	Kind        ActionKind  `json:"kind" yaml:"kind"`
	Machine     MachineID   `json:"machine" yaml:"machine"`
	Harvester   MachineID   `json:"harvester,omitempty" yaml:"harvester,omitempty"`
	Field       FieldID     `json:"field,omitempty" yaml:"field,omitempty"`
	Silo        SiloID      `json:"silo,omitempty" yaml:"silo,omitempty"`
	Origin      LocationRef `json:"origin,omitempty" yaml:"origin,omitempty"`
	FieldAccess LocationRef `json:"field_access,omitempty" yaml:"field_access,omitempty"`
	SiloAccess  LocationRef `json:"silo_access,omitempty" yaml:"silo_access,omitempty"`
	Timing      *Timing     `json:"timing,omitempty" yaml:"timing,omitempty"`
}

// Validate checks that the references required by the action kind are present.
func (a Action) Validate() error {
	switch a.Kind {
	case DriveHarvesterToFieldAndInit:
		if !a.FieldAccess.IsZero() && a.FieldAccess.Kind != LocFieldAccess {
			return fmt.Errorf("%s: field_access must be a field access, got %s", a.Kind, a.FieldAccess)
		}
	case DriveVehicleToFieldAndOverload, DriveToFieldExit:
		if a.FieldAccess.Kind != LocFieldAccess {
			return fmt.Errorf("%s: field_access required", a.Kind)
		}
	case DriveToSilo, UnloadAtSilo:
		if a.SiloAccess.Kind != LocSiloAccess {
			return fmt.Errorf("%s: silo_access required", a.Kind)
		}
	default:
		return fmt.Errorf("invalid action kind %d", uint8(a.Kind))
	}
	if fid, ok := a.FieldAccess.FieldID(); ok && fid != a.Field {
		return fmt.Errorf("%s: field_access %s does not belong to field %d", a.Kind, a.FieldAccess, a.Field)
	}
	if sid, ok := a.SiloAccess.SiloID(); ok && sid != a.Silo {
		return fmt.Errorf("%s: silo_access %s does not belong to silo %d", a.Kind, a.SiloAccess, a.Silo)
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case DriveHarvesterToFieldAndInit:
		return fmt.Sprintf("%s(m=%d f=%d via %s)", a.Kind, a.Machine, a.Field, a.FieldAccess)
	case DriveVehicleToFieldAndOverload:
		return fmt.Sprintf("%s(m=%d h=%d f=%d via %s)", a.Kind, a.Machine, a.Harvester, a.Field, a.FieldAccess)
	case DriveToFieldExit:
		return fmt.Sprintf("%s(m=%d f=%d via %s)", a.Kind, a.Machine, a.Field, a.FieldAccess)
	default:
		return fmt.Sprintf("%s(m=%d s=%d at %s)", a.Kind, a.Machine, a.Silo, a.SiloAccess)
	}
}
