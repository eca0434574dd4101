package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/harvestplan/core/eventlog"
	"github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/scheduler"
	"github.com/kilianp07/harvestplan/infra/monitoring"
	"github.com/kilianp07/harvestplan/infra/mqtt"
	"github.com/kilianp07/harvestplan/pkg/export"
)

// Config is the application configuration.
type Config struct {
	Log        LogConfig         `json:"log"`
	Scheduler  scheduler.Config  `json:"scheduler"`
	Decoder    DecoderConfig     `json:"decoder"`
	Export     export.Config     `json:"export"`
	EventLog   eventlog.Config   `json:"event_log"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	API        APIConfig         `json:"api"`
	Monitoring monitoring.Config `json:"monitoring"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Decoder.SetDefaults()
	c.Export.SetDefaults()
	c.EventLog.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section and reports all failures.
func (c *Config) Validate() error {
	return errors.Join(
		section("log", c.Log.Validate()),
		section("scheduler", c.Scheduler.Validate()),
		section("decoder", c.Decoder.Validate()),
		section("export", c.Export.Validate()),
		section("event_log", c.EventLog.Validate()),
		section("metrics", c.Metrics.Validate()),
		section("mqtt", c.MQTT.Validate()),
		section("monitoring", c.Monitoring.Validate()),
	)
}

func section(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Load reads a YAML or JSON file, applies K_ environment overrides
// (K_SCHEDULER__UNLOAD_AFTER_FILL=0.6), then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
