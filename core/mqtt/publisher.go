package mqtt

import (
	"context"
	"errors"

	"github.com/kilianp07/harvestplan/core/timeline"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt: not connected")

// Publisher forwards decoder events to a message broker.
type Publisher interface {
	// Publish sends ev to the topic derived from its run and kind.
	Publish(ctx context.Context, ev timeline.Event) error
	// Close flushes pending messages and disconnects.
	Close() error
}
