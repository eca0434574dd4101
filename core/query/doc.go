// Package query answers "where was entity X at time t" over a decoded run.
//
// Lookups resume from a caller-held Cursor, so sweeping a timeline with
// increasing timestamps costs amortised O(1) per call. An Engine never
// mutates the result it wraps and may be shared between goroutines; each
// goroutine keeps its own cursors.
package query
