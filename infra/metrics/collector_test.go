package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/internal/eventbus"
)

type eventSink struct {
	mu    sync.Mutex
	kinds []timeline.EventKind
}

func (s *eventSink) RecordRun(coremetrics.RunReport) error { return nil }

func (s *eventSink) RecordEvent(ev timeline.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, ev.Kind)
	return nil
}

func TestEventCollectorForwardsUntilClose(t *testing.T) {
	bus := eventbus.NewBlocking[timeline.Event](0)
	sink := &eventSink{}
	done := StartEventCollector(context.Background(), bus, sink, nil)
	bus.Publish(timeline.Event{Kind: timeline.EventAction})
	bus.Publish(timeline.Event{Kind: timeline.EventUnload})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not stop")
	}
	assert.Equal(t, []timeline.EventKind{timeline.EventAction, timeline.EventUnload}, sink.kinds)
}

func TestEventCollectorStopsOnCancel(t *testing.T) {
	bus := eventbus.NewBlocking[timeline.Event](0)
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, &eventSink{}, nil)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not stop")
	}
	// Publishing after the collector left must not block.
	bus.Publish(timeline.Event{Kind: timeline.EventAction})
}

func TestEventCollectorSkipsPlainSinks(t *testing.T) {
	done := StartEventCollector(context.Background(), eventbus.NewTyped[timeline.Event](), runSink{}, nil)
	<-done
}

type runSink struct{}

func (runSink) RecordRun(coremetrics.RunReport) error { return nil }
