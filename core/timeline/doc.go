// Package timeline replays an ordered action list into per-entity interval
// timelines, merged machine routes and overload/unload event logs.
//
// Machine and field timelines are appended in action order. Appending first
// truncates trailing intervals that start at or after the new one, so a
// handler can correct a machine's recent past without breaking contiguity.
// Silo timelines are rebuilt from the unload events once every action has
// been decoded.
package timeline
