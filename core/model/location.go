package model

import (
	"fmt"
	"strconv"
	"strings"
)

// LocationKind tags the variant held by a LocationRef.
type LocationKind uint8

const (
	LocNone LocationKind = iota
	LocField
	LocFieldAccess
	LocSilo
	LocSiloAccess
	LocMachineInit
)

var locationPrefixes = [...]string{"", "field", "field_access", "silo", "silo_access", "init"}

func (k LocationKind) String() string {
	if int(k) < len(locationPrefixes) && k != LocNone {
		return locationPrefixes[k]
	}
	return "none"
}

// LocationRef references a named location of the campaign. ID is the field,
// silo or machine id depending on Kind; Index is the access point index for
// access kinds.
type LocationRef struct {
	Kind  LocationKind
	ID    int
	Index int
}

// FieldLoc references the inside of a field.
func FieldLoc(id FieldID) LocationRef { return LocationRef{Kind: LocField, ID: int(id)} }

// FieldAccessLoc references access point idx of a field.
func FieldAccessLoc(id FieldID, idx int) LocationRef {
	return LocationRef{Kind: LocFieldAccess, ID: int(id), Index: idx}
}

// SiloLoc references a silo as a whole.
func SiloLoc(id SiloID) LocationRef { return LocationRef{Kind: LocSilo, ID: int(id)} }

// SiloAccessLoc references access point idx of a silo.
func SiloAccessLoc(id SiloID, idx int) LocationRef {
	return LocationRef{Kind: LocSiloAccess, ID: int(id), Index: idx}
}

// MachineInitLoc references the initial location of a machine.
func MachineInitLoc(id MachineID) LocationRef { return LocationRef{Kind: LocMachineInit, ID: int(id)} }

// IsZero reports whether l references nothing.
func (l LocationRef) IsZero() bool { return l.Kind == LocNone }

// FieldID returns the field referenced by a field or field access location.
func (l LocationRef) FieldID() (FieldID, bool) {
	if l.Kind == LocField || l.Kind == LocFieldAccess {
		return FieldID(l.ID), true
	}
	return 0, false
}

// SiloID returns the silo referenced by a silo or silo access location.
func (l LocationRef) SiloID() (SiloID, bool) {
	if l.Kind == LocSilo || l.Kind == LocSiloAccess {
		return SiloID(l.ID), true
	}
	return 0, false
}

// InField reports whether l is the inside of a field.
func (l LocationRef) InField() bool { return l.Kind == LocField }

func (l LocationRef) String() string {
	switch l.Kind {
	case LocNone:
		return ""
	case LocFieldAccess, LocSiloAccess:
		return fmt.Sprintf("%s:%d:%d", l.Kind, l.ID, l.Index)
	default:
		return fmt.Sprintf("%s:%d", l.Kind, l.ID)
	}
}

// ParseLocation parses the text form produced by String.
func ParseLocation(s string) (LocationRef, error) {
	if s == "" {
		return LocationRef{}, nil
	}
	parts := strings.Split(s, ":")
	var kind LocationKind
	for i, p := range locationPrefixes {
		if i > 0 && p == parts[0] {
			kind = LocationKind(i)
		}
	}
	if kind == LocNone {
		return LocationRef{}, fmt.Errorf("%w: %q", ErrUnknownLocation, s)
	}
	want := 2
	if kind == LocFieldAccess || kind == LocSiloAccess {
		want = 3
	}
	if len(parts) != want {
		return LocationRef{}, fmt.Errorf("%w: %q", ErrUnknownLocation, s)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return LocationRef{}, fmt.Errorf("%w: %q: %v", ErrUnknownLocation, s, err)
	}
	ref := LocationRef{Kind: kind, ID: id}
	if want == 3 {
		if ref.Index, err = strconv.Atoi(parts[2]); err != nil {
			return LocationRef{}, fmt.Errorf("%w: %q: %v", ErrUnknownLocation, s, err)
		}
	}
	return ref, nil
}

// MarshalText implements encoding.TextMarshaler.
func (l LocationRef) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LocationRef) UnmarshalText(b []byte) error {
	ref, err := ParseLocation(string(b))
	if err != nil {
		return err
	}
	*l = ref
	return nil
}
