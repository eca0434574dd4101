// Package scenarios runs YAML campaign scenarios end to end through the
// service and checks the decoded outcome.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Expected is the outcome a scenario must produce. Zero values are not
// checked, except Outcome which defaults to "ok".
type Expected struct {
	Outcome   string                   `yaml:"outcome"`
	Makespan  float64                  `yaml:"makespan"`
	Harvested float64                  `yaml:"harvested"`
	Unloaded  float64                  `yaml:"unloaded"`
	Overloads int                      `yaml:"overloads"`
	Unloads   int                      `yaml:"unloads"`
	SiloMass  map[model.SiloID]float64 `yaml:"silo_mass,omitempty"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Campaign    model.Campaign `yaml:"campaign"`
	// FailKinds makes MQTT publishing fail for these event kinds.
	FailKinds []timeline.EventKind `yaml:"fail_kinds,omitempty"`
	Expected  Expected             `yaml:"expected"`
}

// Load reads a scenario file and prepares its campaign.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if sc.Campaign.Name == "" {
		sc.Campaign.Name = sc.Name
	}
	if err := sc.Campaign.Prepare(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if sc.Expected.Outcome == "" {
		sc.Expected.Outcome = "ok"
	}
	return &sc, nil
}
