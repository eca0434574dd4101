// Package state holds the mutable scheduling snapshot of a campaign and the
// action applier shared by the scheduler and the timeline decoder.
//
// Apply validates an action against the snapshot, derives its timing from
// the machine physics (or from timestamps embedded in the action) and
// commits the effects only when every precondition holds.
package state
