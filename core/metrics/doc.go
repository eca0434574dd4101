// Package metrics defines the sinks that observe planning and decoding runs.
// Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves with the factory helpers of this package; NewSink returns a
// MultiSink when several sinks are configured. Optional recorder interfaces
// let a sink also consume the per-event stream of the decoder bus.
package metrics
