package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz  int `yaml:"tick_rate_hz"`
	MaxRouteLen int `yaml:"max_route_len"`

	// Grid cells are squares of this many tiles on a side.
	GridCellTiles int `yaml:"grid_cell_tiles"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      60,
		MaxRouteLen:     256,
		GridCellTiles:   1,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.GridCellTiles <= 0 {
		t.GridCellTiles = 1
	}
	return t, nil
}
