package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCampaign reads a campaign from a JSON or YAML file and prepares it.
func LoadCampaign(path string) (*Campaign, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	c, err := DecodeCampaign(f, ext)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return c, nil
}

// DecodeCampaign reads a campaign in the given format ("yaml" or "json")
// and prepares it.
func DecodeCampaign(r io.Reader, format string) (*Campaign, error) {
	var c Campaign
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&c); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err := c.Prepare(); err != nil {
		return nil, err
	}
	return &c, nil
}
