package state

import "errors"

// Settings are the physical constants used to derive action timings.
type Settings struct {
	// InfieldTransitSeconds is the time to drive between an access point and
	// the working position inside a field.
	InfieldTransitSeconds float64 `json:"infield_transit_seconds" yaml:"infield_transit_seconds"`
	// OverloadTimeFactor scales the harvesting time of the overloaded mass.
	OverloadTimeFactor float64 `json:"overload_time_factor" yaml:"overload_time_factor"`
	// FinishedMassEpsilon is the remaining mass below which a field counts as harvested.
	FinishedMassEpsilon float64 `json:"finished_mass_epsilon" yaml:"finished_mass_epsilon"`
	// CapacityEpsilon is the minimum spare bunker capacity for an overload.
	CapacityEpsilon float64 `json:"capacity_epsilon" yaml:"capacity_epsilon"`
	// SerializeSiloAccess makes vehicles queue at a busy silo access point.
	SerializeSiloAccess *bool `json:"serialize_silo_access,omitempty" yaml:"serialize_silo_access,omitempty"`
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	s := Settings{}
	s.SetDefaults()
	return s
}

// SetDefaults fills zero values.
func (s *Settings) SetDefaults() {
	if s.InfieldTransitSeconds == 0 {
		s.InfieldTransitSeconds = 30
	}
	if s.OverloadTimeFactor == 0 {
		s.OverloadTimeFactor = 1.2
	}
	if s.FinishedMassEpsilon == 0 {
		s.FinishedMassEpsilon = 0.1
	}
	if s.CapacityEpsilon == 0 {
		s.CapacityEpsilon = 1e-3
	}
	if s.SerializeSiloAccess == nil {
		v := true
		s.SerializeSiloAccess = &v
	}
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.InfieldTransitSeconds < 0 {
		return errors.New("infield_transit_seconds must not be negative")
	}
	if s.OverloadTimeFactor < 0 {
		return errors.New("overload_time_factor must not be negative")
	}
	if s.FinishedMassEpsilon <= 0 || s.CapacityEpsilon <= 0 {
		return errors.New("epsilons must be positive")
	}
	return nil
}

func (s Settings) serializeSilo() bool {
	return s.SerializeSiloAccess == nil || *s.SerializeSiloAccess
}
