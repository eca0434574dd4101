package model

import "errors"

var (
	// ErrUnknownLocation is returned when a location reference does not
	// resolve to any field, silo, access point or initial machine location.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrUnknownEntity is returned for ids missing from the campaign.
	ErrUnknownEntity = errors.New("unknown entity")
)
