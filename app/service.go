package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	queryapi "github.com/kilianp07/harvestplan/api/query"
	"github.com/kilianp07/harvestplan/config"
	"github.com/kilianp07/harvestplan/core/eventlog"
	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/model"
	coremon "github.com/kilianp07/harvestplan/core/monitoring"
	coremqtt "github.com/kilianp07/harvestplan/core/mqtt"
	"github.com/kilianp07/harvestplan/core/query"
	"github.com/kilianp07/harvestplan/core/scheduler"
	"github.com/kilianp07/harvestplan/core/state"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/infra/logger"
	"github.com/kilianp07/harvestplan/infra/metrics"
	"github.com/kilianp07/harvestplan/infra/monitoring"
	"github.com/kilianp07/harvestplan/infra/mqtt"
	"github.com/kilianp07/harvestplan/internal/eventbus"
	"github.com/kilianp07/harvestplan/pkg/export"
)

// Service wires the scheduler and decoder to the configured sinks.
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	sched *scheduler.Scheduler
	sink  coremetrics.Sink
	store eventlog.Store
	pub   coremqtt.Publisher
	mon   coremon.Monitor
}

// Deps overrides the collaborators New would build from the configuration.
// Nil fields are built as usual.
type Deps struct {
	Sink      coremetrics.Sink
	Store     eventlog.Store
	Publisher coremqtt.Publisher
	Monitor   coremon.Monitor
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithDeps(cfg, Deps{})
}

// NewWithDeps creates a Service, using the provided collaborators where set.
func NewWithDeps(cfg *config.Config, deps Deps) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Log.Apply()
	logg := logger.New("service")
	sched, err := scheduler.New(cfg.Scheduler, logger.New("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	svc := &Service{cfg: cfg, log: logg, sched: sched, sink: deps.Sink, store: deps.Store, pub: deps.Publisher, mon: deps.Monitor}

	if svc.mon == nil {
		mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
		if err != nil {
			return nil, err
		}
		svc.mon = mon
	}

	if svc.sink == nil {
		sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
	}
	if svc.store == nil {
		store, err := eventlog.Open(cfg.EventLog)
		if err != nil {
			_ = svc.closeSink()
			return nil, fmt.Errorf("event log: %w", err)
		}
		svc.store = store
	}
	if svc.pub == nil && cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
	}
	return svc, nil
}

// EventLog returns the event store, nil when disabled.
func (s *Service) EventLog() eventlog.Store { return s.store }

// Plan runs the scheduler on c and reports the run to the sinks. The partial
// plan is returned with the error.
func (s *Service) Plan(c *model.Campaign) (*scheduler.Plan, error) {
	start := time.Now()
	plan, err := s.sched.Schedule(c)
	rep := coremetrics.ScheduleReport{
		Campaign: c.Name,
		Failed:   err != nil,
		Duration: time.Since(start),
		Time:     start.UTC(),
	}
	if plan != nil {
		rep.Actions = len(plan.Actions)
	}
	if err != nil {
		var outcome string
		outcome, rep.Reason = coremetrics.Outcome(err)
		s.mon.CaptureException(err, coremon.RunTags("plan", c.Name, "", outcome, rep.Reason))
	}
	if rec, ok := s.sink.(coremetrics.ScheduleRecorder); ok {
		if rerr := rec.RecordSchedule(rep); rerr != nil {
			s.log.Warnf("record schedule %s: %v", c.Name, rerr)
		}
	}
	return plan, err
}

// Decode replays actions on c. Every decoder event reaches the metrics sink,
// the event log and the MQTT publisher before Decode returns. turns may be
// empty. The partial result is returned with the error.
func (s *Service) Decode(ctx context.Context, c *model.Campaign, actions []model.Action, turns state.Turns) (*timeline.Result, error) {
	bus := eventbus.NewBlocking[timeline.Event](s.cfg.Decoder.BusBuffer)
	done := []<-chan struct{}{
		metrics.StartEventCollector(ctx, bus, s.sink, logger.New("metrics_collector")),
		eventlog.RecordBus(ctx, bus, s.store, logger.New("event_log")),
		mqtt.Forward(ctx, bus, s.pub, logger.New("mqtt_forward")),
	}
	dec := timeline.NewDecoder(timeline.Options{
		Source:        s.cfg.Decoder.Source(turns),
		Physics:       s.cfg.Scheduler.Physics,
		WaitTolerance: s.cfg.Decoder.WaitTolerance,
		Bus:           bus,
		Logger:        logger.New("decoder"),
	})
	start := time.Now()
	res, err := dec.Decode(c, actions)
	bus.Close()
	for _, ch := range done {
		<-ch
	}
	if n := bus.Dropped(); n > 0 {
		s.log.Warnf("decoder bus dropped %d events", n)
	}

	rep := coremetrics.RunReport{
		Campaign: c.Name,
		Actions:  len(actions),
		Duration: time.Since(start),
		Time:     start.UTC(),
	}
	rep.Outcome, rep.Reason = coremetrics.Outcome(err)
	if res != nil {
		rep.RunID = res.RunID
		rep.Source = res.Source
		rep.Decoded = res.Decoded
		rep.Summary = timeline.Summarize(res)
	}
	if rerr := s.sink.RecordRun(rep); rerr != nil {
		s.log.Warnf("record run %s: %v", rep.RunID, rerr)
	}
	if err != nil {
		s.mon.CaptureException(err, coremon.RunTags("decode", c.Name, rep.RunID, rep.Outcome, rep.Reason))
	}
	return res, err
}

// Outcome is the result of Run.
type Outcome struct {
	Plan    *scheduler.Plan
	Actions []model.Action
	Result  *timeline.Result
}

// Run plans c when actions is nil, then decodes the action list. Panics are
// reported to the monitor before they propagate.
func (s *Service) Run(ctx context.Context, c *model.Campaign, actions []model.Action) (Outcome, error) {
	defer monitoring.Recover(s.mon)
	var out Outcome
	var turns state.Turns
	if actions == nil {
		plan, err := s.Plan(c)
		out.Plan = plan
		if err != nil {
			return out, fmt.Errorf("plan %s: %w", c.Name, err)
		}
		actions, turns = plan.Actions, plan.Turns
	}
	out.Actions = actions
	res, err := s.Decode(ctx, c, actions, turns)
	out.Result = res
	if err != nil {
		return out, fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return out, nil
}

// Export writes the tables, actions and routes of a run unless disabled.
func (s *Service) Export(name string, out Outcome) (export.Files, error) {
	if s.cfg.Export.Disabled || out.Result == nil {
		return export.Files{}, nil
	}
	return export.WriteAll(s.cfg.Export, name, out.Result, out.Actions)
}

// Serve exposes res through the query API and /metrics until ctx is canceled.
func (s *Service) Serve(ctx context.Context, res *timeline.Result) error {
	engine, err := query.New(res)
	if err != nil {
		return err
	}
	h := queryapi.NewHandler(engine, queryapi.Options{
		Token:  s.cfg.API.Token,
		Events: s.store,
		Logger: logger.New("query_api"),
	})
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.ListenAndServe(ctx, s.cfg.API.Addr, h) })
	g.Go(func() error { return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr) })
	return g.Wait()
}

func (s *Service) closeSink() error {
	if c, ok := s.sink.(coremetrics.Closer); ok {
		return c.Close()
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	errs := []error{s.closeSink()}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.pub != nil {
		errs = append(errs, s.pub.Close())
	}
	if s.mon != nil && !s.mon.Flush(2*time.Second) {
		s.log.Warnf("monitor flush timed out")
	}
	return errors.Join(errs...)
}
