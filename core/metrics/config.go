package metrics

import (
	"fmt"

	"github.com/kilianp07/harvestplan/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is where the serve command exposes /metrics.
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9100"
	}
}

// Validate checks that every configured sink type is registered.
func (c Config) Validate() error {
	known := make(map[string]bool)
	for _, n := range sinkRegistry.Types() {
		known[n] = true
	}
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sinks[%d]: type is required", i)
		}
		if len(known) > 0 && !known[s.Type] {
			return fmt.Errorf("sinks[%d]: unknown sink type %q", i, s.Type)
		}
	}
	return nil
}
