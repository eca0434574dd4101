package config

import (
	"fmt"

	"github.com/kilianp07/harvestplan/core/state"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Replay modes of the decoder.
const (
	ReplayPhysics  = "physics"
	ReplayEmbedded = "embedded"
)

// DecoderConfig selects how action lists are replayed.
type DecoderConfig struct {
	// Replay is "physics" for scheduler plans or "embedded" to honour the
	// timings carried by external actions.
	Replay string `json:"replay"`
	// WaitTolerance is the idle time in seconds below which no waiting
	// interval is recorded.
	WaitTolerance float64 `json:"wait_tolerance"`
	// BusBuffer sizes the event bus feeding the sinks.
	BusBuffer int `json:"bus_buffer"`
}

// SetDefaults fills zero values.
func (c *DecoderConfig) SetDefaults() {
	if c.Replay == "" {
		c.Replay = ReplayPhysics
	}
	if c.WaitTolerance <= 0 {
		c.WaitTolerance = timeline.DefaultWaitTolerance
	}
	if c.BusBuffer <= 0 {
		c.BusBuffer = 64
	}
}

// Validate checks the replay mode.
func (c DecoderConfig) Validate() error {
	switch c.Replay {
	case ReplayPhysics, ReplayEmbedded:
		return nil
	default:
		return fmt.Errorf("unknown replay %q", c.Replay)
	}
}

// Source returns the replay source. turns may be empty, in which case the
// physics replay infers them from the actions.
func (c DecoderConfig) Source(turns state.Turns) timeline.PlanReplaySource {
	if c.Replay == ReplayEmbedded {
		return timeline.EmbeddedPlan{}
	}
	return timeline.PhysicsReplay{Plan: turns}
}
