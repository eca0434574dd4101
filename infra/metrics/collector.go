package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/infra/logger"
	"github.com/kilianp07/harvestplan/internal/eventbus"
)

// StartEventCollector subscribes to the decoder bus and forwards events to
// sinks implementing coremetrics.EventRecorder. It stops when the context is
// canceled or the bus is closed; the returned channel is closed then.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[timeline.Event], sink coremetrics.Sink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.EventRecorder)
	if bus == nil || !ok {
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
				// Keep a blocking publisher moving until Unsubscribe closes sub.
				go func() {
					for range sub {
					}
				}()
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordEvent(ev); err != nil {
					log.Warnf("record %s event %d of run %s: %v", ev.Kind, ev.Index, ev.RunID, err)
				}
			}
		}
	}()
	return done
}
