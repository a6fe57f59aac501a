package route

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed lel2025.yaml
var defaultRoute []byte

// File is the YAML layout of a route configuration.
type File struct {
	Controls      []ControlEntry `yaml:"controls"`
	StartVariants []StartVariant `yaml:"start_variants"`
}

// ControlEntry is a control plus any extra names the feed uses for it.
type ControlEntry struct {
	Name     string   `yaml:"name"`
	Km       float64  `yaml:"km"`
	Leg      string   `yaml:"leg"`
	IsReturn bool     `yaml:"is_return"`
	Aliases  []string `yaml:"aliases"`
}

// StartVariant is an alternative start location. Riders are assigned by exact
// rider number or by rider-number prefix.
type StartVariant struct {
	Name     string   `yaml:"name"`
	OffsetKm float64  `yaml:"offset_km"`
	Prefixes []string `yaml:"prefixes"`
	Riders   []string `yaml:"riders"`
}

// Default returns the embedded event route.
func Default() (*Table, error) {
	return parse(defaultRoute, "embedded route")
}

// LoadFile reads a route configuration from a YAML file. An empty path
// yields the embedded default.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading route config %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing route config %s: %w", source, err)
	}
	t, err := NewTable(f)
	if err != nil {
		return nil, fmt.Errorf("route config %s: %w", source, err)
	}
	return t, nil
}
