// Package seed loads the initial set of wine regions from YAML.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

//go:embed regions.yaml
var defaultRegions []byte

var errNoRegions = errors.New("seed file lists no regions")

type file struct {
	Regions []entry `yaml:"regions"`
}

type entry struct {
	Name        string   `yaml:"name"`
	Latitude    *float64 `yaml:"latitude"`
	Longitude   *float64 `yaml:"longitude"`
	Description string   `yaml:"description"`
}

// Default returns the built-in seed regions.
func Default() ([]climate.Region, error) {
	return Parse(defaultRegions)
}

// Load reads seed regions from a YAML file.
func Load(path string) ([]climate.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	return Parse(data)
}

// Parse decodes seed regions, rejecting entries without a name or
// coordinates and duplicate names.
func Parse(data []byte) ([]climate.Region, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "seed: parse regions")
	}
	if len(f.Regions) == 0 {
		return nil, errNoRegions
	}

	seen := make(map[string]bool, len(f.Regions))
	regions := make([]climate.Region, 0, len(f.Regions))
	for i, e := range f.Regions {
		e.Name = strings.TrimSpace(e.Name)
		switch {
		case e.Name == "":
			return nil, fmt.Errorf("seed: region %d has no name", i+1)
		case e.Latitude == nil || e.Longitude == nil:
			return nil, fmt.Errorf("seed: region %q needs latitude and longitude", e.Name)
		case *e.Latitude < -90 || *e.Latitude > 90 || *e.Longitude < -180 || *e.Longitude > 180:
			return nil, fmt.Errorf("seed: region %q has coordinates out of range", e.Name)
		case seen[e.Name]:
			return nil, fmt.Errorf("seed: region %q listed twice", e.Name)
		}
		seen[e.Name] = true

		regions = append(regions, climate.Region{
			Name:        e.Name,
			Latitude:    *e.Latitude,
			Longitude:   *e.Longitude,
			Description: e.Description,
		})
	}
	return regions, nil
}
