// Package export writes decoded runs to disk: the tabular state dump, the
// action list and the route file.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Config selects where and how runs are exported.
type Config struct {
	Dir       string `json:"dir"`
	Separator string `json:"separator"`
	// ChartStep is the sampling period of the HTML chart, in seconds.
	ChartStep float64 `json:"chart_step"`
	// Disabled skips the export entirely.
	Disabled bool `json:"disabled"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
	if c.Separator == "" {
		c.Separator = ";"
	}
	if c.ChartStep <= 0 {
		c.ChartStep = DefaultChartStep
	}
}

// Validate checks the separator is a single character.
func (c Config) Validate() error {
	if len([]rune(c.Separator)) != 1 {
		return fmt.Errorf("export: separator must be one character, got %q", c.Separator)
	}
	return nil
}

func (c Config) comma() rune { return []rune(c.Separator)[0] }

// Files lists the paths written by WriteAll.
type Files struct {
	States  string
	Actions string
	Routes  string
	Chart   string
}

// WriteAll writes "<name>.states.csv", "<name>.actions.json",
// "<name>.routes.json" and "<name>.chart.html" into cfg.Dir.
func WriteAll(cfg Config, name string, res *timeline.Result, actions []model.Action) (Files, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Files{}, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return Files{}, err
	}
	files := Files{
		States:  filepath.Join(cfg.Dir, name+".states.csv"),
		Actions: filepath.Join(cfg.Dir, name+".actions.json"),
		Routes:  filepath.Join(cfg.Dir, name+".routes.json"),
		Chart:   filepath.Join(cfg.Dir, name+".chart.html"),
	}
	err := errors.Join(
		writeFile(files.States, func(f *os.File) error { return WriteStates(f, res, cfg.comma(), AllSections) }),
		writeFile(files.Actions, func(f *os.File) error { return WriteActions(f, actions) }),
		writeFile(files.Routes, func(f *os.File) error { return WriteRoutes(f, res) }),
		writeFile(files.Chart, func(f *os.File) error { return WriteChart(f, res, cfg.ChartStep) }),
	)
	return files, err
}

func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
