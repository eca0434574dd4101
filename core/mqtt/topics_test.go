package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/harvestplan/core/timeline"
)

func TestTopic(t *testing.T) {
	ev := timeline.Event{RunID: "r1", Kind: timeline.EventOverload}
	assert.Equal(t, "harvestplan/r1/overload", Topic("", ev))
	assert.Equal(t, "farm/7/r1/overload", Topic("farm/7/", ev))
	assert.Equal(t, "harvestplan/+/#", RunFilter("", ""))
	assert.Equal(t, "farm/r1/#", RunFilter("farm", "r1"))
}
