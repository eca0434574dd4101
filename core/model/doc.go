// Package model holds the static campaign catalog: machines, fields, silos,
// their access points and the transit-distance table between locations.
// It also defines the Action record exchanged between the scheduler, the
// timeline decoder and any external planner.
//
// Values in this package are treated as read-only once a Campaign has been
// prepared.
package model
