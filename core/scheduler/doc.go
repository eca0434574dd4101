// Package scheduler builds a feasible dispatch plan for a harvest campaign.
//
// The heuristic is greedy and turn based: each harvester works its fields in
// turn order while its vehicles overload in rotation and unload at the
// nearest silo that can take their load. Every decision is applied to a
// state.State before the next one is taken, so the resulting action list is
// feasible by construction.
package scheduler
