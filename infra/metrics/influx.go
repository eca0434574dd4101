package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	coremetrics "github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/timeline"
	"github.com/kilianp07/harvestplan/infra/logger"
)

// InfluxConfig configures an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Timeout bounds each write.
	Timeout time.Duration `json:"timeout"`
	// BreakerFailures consecutive write failures open the circuit for
	// BreakerOpen; writes fail fast meanwhile.
	BreakerFailures int           `json:"breaker_failures"`
	BreakerOpen     time.Duration `json:"breaker_open"`
	// HealthCheck makes the factory fall back to a NopSink when the
	// instance does not answer its health endpoint.
	HealthCheck bool `json:"health_check"`
}

// SetDefaults fills unset fields.
func (c *InfluxConfig) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerOpen <= 0 {
		c.BreakerOpen = 30 * time.Second
	}
}

// InfluxSink writes run reports and decoder events to an InfluxDB instance
// using the official client. Writes go through a circuit breaker so an
// unreachable instance does not stall decoding.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	cfg.SetDefaults()
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	log := logger.New("influx-sink")
	failures := uint32(cfg.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx-write",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit %s: %s -> %s", name, from, to)
		},
	})
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cb:       cb,
		timeout:  cfg.Timeout,
		log:      log,
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func (s *InfluxSink) write(pts ...*write.Point) error {
	_, err := s.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		return nil, s.writeAPI.WritePoint(ctx, pts...)
	})
	return err
}

// RecordRun writes the run totals and one point per machine.
func (s *InfluxSink) RecordRun(r coremetrics.RunReport) error {
	ts := r.Time
	if ts.IsZero() {
		ts = s.now()
	}
	sum := r.Summary
	pts := []*write.Point{
		write.NewPointWithMeasurement("decode_run").
			AddTag("run_id", r.RunID).
			AddTag("campaign", r.Campaign).
			AddTag("source", r.Source).
			AddTag("outcome", r.Outcome).
			AddField("actions", r.Actions).
			AddField("decoded", r.Decoded).
			AddField("makespan_s", round3(sum.Makespan)).
			AddField("harvested_kg", round3(sum.Harvested)).
			AddField("unloaded_kg", round3(sum.Unloaded)).
			AddField("mean_waiting_s", round3(sum.MeanWaiting)).
			AddField("stddev_waiting_s", round3(sum.StdDevWaiting)).
			AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
			SetTime(ts),
	}
	for _, m := range sum.Machines {
		pts = append(pts, write.NewPointWithMeasurement("machine_summary").
			AddTag("run_id", r.RunID).
			AddTag("machine", strconv.Itoa(int(m.Machine))).
			AddField("transit_s", round3(m.Transit)).
			AddField("waiting_s", round3(m.Waiting)).
			AddField("overloading_s", round3(m.Overloading)).
			AddField("unloading_s", round3(m.Unloading)).
			AddField("utilisation", round3(m.Utilisation)).
			SetTime(ts))
	}
	return s.write(pts...)
}

// RecordSchedule writes a scheduler run.
func (s *InfluxSink) RecordSchedule(r coremetrics.ScheduleReport) error {
	ts := r.Time
	if ts.IsZero() {
		ts = s.now()
	}
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("campaign", r.Campaign).
		AddTag("failed", strconv.FormatBool(r.Failed)).
		AddField("actions", r.Actions).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(ts)
	if r.Reason != "" {
		p = p.AddField("reason", r.Reason)
	}
	return s.write(p)
}

// RecordEvent writes overload and unload events. Action events are skipped.
func (s *InfluxSink) RecordEvent(ev timeline.Event) error {
	var p *write.Point
	switch {
	case ev.Kind == timeline.EventOverload && ev.Overload != nil:
		o := ev.Overload
		p = write.NewPointWithMeasurement("overload").
			AddTag("run_id", ev.RunID).
			AddTag("field", strconv.Itoa(int(o.Field))).
			AddTag("harvester", strconv.Itoa(int(o.Harvester))).
			AddTag("vehicle", strconv.Itoa(int(o.Vehicle))).
			AddField("ts_start", round3(o.TsStart)).
			AddField("ts_end", round3(o.TsEnd)).
			AddField("mass_kg", round3(o.Mass))
	case ev.Kind == timeline.EventUnload && ev.Unload != nil:
		u := ev.Unload
		p = write.NewPointWithMeasurement("unload").
			AddTag("run_id", ev.RunID).
			AddTag("silo", strconv.Itoa(int(u.Silo))).
			AddTag("vehicle", strconv.Itoa(int(u.Vehicle))).
			AddField("ts_start", round3(u.TsStart)).
			AddField("ts_end", round3(u.TsEnd)).
			AddField("mass_kg", round3(u.Mass))
	default:
		return nil
	}
	return s.write(p.SetTime(s.now()))
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
