package multizone

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"tilerealm.gg/internal/protocol"
)

type Config struct {
	DefaultZoneID string     `yaml:"default_zone_id"`
	Zones         []ZoneSpec `yaml:"zones"`
}

type ZoneSpec struct {
	ID    string `yaml:"id"`
	MapID string `yaml:"map_id"`

	// Zero values fall back to the server tuning.
	TickRateHz    int `yaml:"tick_rate_hz"`
	MaxRouteLen   int `yaml:"max_route_len"`
	GridCellTiles int `yaml:"grid_cell_tiles"`

	// Snapshot restored on load and written on unload when set.
	SnapshotFile string `yaml:"snapshot_file,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("zones.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("zones.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultZoneID: "town",
		Zones: []ZoneSpec{
			{ID: "town", MapID: "town"},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Zones {
		if strings.TrimSpace(c.Zones[i].MapID) == "" {
			c.Zones[i].MapID = c.Zones[i].ID
		}
	}
	if strings.TrimSpace(c.DefaultZoneID) == "" && len(c.Zones) > 0 {
		c.DefaultZoneID = c.Zones[0].ID
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Zones) == 0 {
		return fmt.Errorf("zones must not be empty")
	}
	seen := map[string]bool{}
	for _, zs := range c.Zones {
		if strings.TrimSpace(zs.ID) == "" {
			return fmt.Errorf("zone id must not be empty")
		}
		if seen[zs.ID] {
			return fmt.Errorf("duplicate zone id: %s", zs.ID)
		}
		seen[zs.ID] = true
		if zs.TickRateHz < 0 || zs.MaxRouteLen < 0 || zs.GridCellTiles < 0 {
			return fmt.Errorf("zone %s has negative tuning overrides", zs.ID)
		}
	}
	if !seen[c.DefaultZoneID] {
		return fmt.Errorf("default_zone_id %q not found in zones", c.DefaultZoneID)
	}
	return nil
}

func (c Config) ZoneSpecByID(id string) (ZoneSpec, bool) {
	for _, zs := range c.Zones {
		if zs.ID == id {
			return zs, true
		}
	}
	return ZoneSpec{}, false
}

func (c Config) Manifest() []protocol.ZoneRef {
	out := make([]protocol.ZoneRef, 0, len(c.Zones))
	for _, zs := range c.Zones {
		out = append(out, protocol.ZoneRef{ZoneID: zs.ID, MapID: zs.MapID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out
}
