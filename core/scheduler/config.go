package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/harvestplan/core/state"
)

// Config defines the dispatch thresholds loaded from configuration.
type Config struct {
	// UnloadBeforeFill sends a vehicle to a silo before an overload when its
	// fill fraction exceeds this value.
	UnloadBeforeFill float64 `json:"unload_before_fill" yaml:"unload_before_fill"`
	// UnloadAfterFill sends a vehicle to a silo right after an overload when
	// its fill fraction exceeds this value.
	UnloadAfterFill float64 `json:"unload_after_fill" yaml:"unload_after_fill"`
	// CyclicVehicleTurns restarts a harvester's vehicle rotation after the
	// last vehicle. Defaults to true.
	CyclicVehicleTurns *bool          `json:"cyclic_vehicle_turns,omitempty" yaml:"cyclic_vehicle_turns,omitempty"`
	Physics            state.Settings `json:"physics" yaml:"physics"`
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.UnloadBeforeFill == 0 {
		c.UnloadBeforeFill = 0.9
	}
	if c.UnloadAfterFill == 0 {
		c.UnloadAfterFill = 0.5
	}
	if c.CyclicVehicleTurns == nil {
		v := true
		c.CyclicVehicleTurns = &v
	}
	c.Physics.SetDefaults()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.UnloadBeforeFill <= 0 || c.UnloadBeforeFill > 1 {
		return errors.New("unload_before_fill must be in (0, 1]")
	}
	if c.UnloadAfterFill <= 0 || c.UnloadAfterFill > 1 {
		return errors.New("unload_after_fill must be in (0, 1]")
	}
	return c.Physics.Validate()
}

// Cyclic reports whether vehicle turns wrap around.
func (c Config) Cyclic() bool {
	return c.CyclicVehicleTurns == nil || *c.CyclicVehicleTurns
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeConfig(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeConfig reads from r to decode a Config. Defaults are applied.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
