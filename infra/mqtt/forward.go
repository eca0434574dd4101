package mqtt

import (
	"context"

	"github.com/kilianp07/harvestplan/core/logger"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/internal/eventbus"
)

// Forward publishes every event of bus until the bus is closed or ctx is
// canceled. Failed publishes are logged and skipped. The returned channel is
// closed once forwarding stops.
func Forward(ctx context.Context, bus *eventbus.TypedBus[timeline.Event], pub Publisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				go func() {
					for range sub {
					}
				}()
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := pub.Publish(ctx, ev); err != nil {
					log.Errorf("mqtt forward run %s event %d: %v", ev.RunID, ev.Index, err)
				}
			}
		}
	}()
	return done
}
