package eventlog

import (
	"context"
	"time"

	"github.com/kilianp07/harvestplan/core/logger"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/internal/eventbus"
)

// RecordBus subscribes to the decoder bus and appends every event to store
// until the bus is closed or ctx is canceled. The returned channel is closed
// once the last event has been written.
func RecordBus(ctx context.Context, bus *eventbus.TypedBus[timeline.Event], store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
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
				if err := store.Append(ctx, FromEvent(ev, time.Now().UTC())); err != nil {
					log.Errorf("event log append run %s event %d: %v", ev.RunID, ev.Index, err)
				}
			}
		}
	}()
	return done
}
