package mqtt

import (
	"strings"

	"github.com/kilianp07/harvestplan/core/timeline"
)

// DefaultTopicPrefix is the root of every decoder topic.
const DefaultTopicPrefix = "harvestplan"

// Topic returns "<prefix>/<run_id>/<kind>" for ev.
func Topic(prefix string, ev timeline.Event) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + ev.RunID + "/" + string(ev.Kind)
}

// RunFilter returns the subscription filter matching every event of run.
// An empty run matches all runs.
func RunFilter(prefix, run string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if run == "" {
		run = "+"
	}
	return prefix + "/" + run + "/#"
}
