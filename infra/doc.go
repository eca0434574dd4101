// Package infra contains technical adapters: the MQTT publisher, the
// metrics sinks, the Sentry monitor and the zerolog logger. These packages
// depend only on the interfaces defined in the core packages.
package infra
