package mapsource

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownMap is returned by sources for ids they do not carry.
var ErrUnknownMap = errors.New("unknown map")

// Source supplies parsed map definitions keyed by map id. The runtime is
// agnostic to the backing format.
type Source interface {
	MapDef(ctx context.Context, id string) (MapDef, error)
}

// Mode declares how an event definition may be instantiated.
type Mode string

const (
	// ModeScenario means exactly one live instance per map, keyed by name.
	ModeScenario Mode = "scenario"
	// ModeShared means one live instance per dynamic-creation call.
	ModeShared Mode = "shared"
)

func (m Mode) Valid() bool { return m == ModeScenario || m == ModeShared }

// MapDef is the static description of one zone map.
type MapDef struct {
	ID         string
	Width      int // in tiles
	Height     int // in tiles
	TileWidth  int // in pixels
	TileHeight int // in pixels

	Layers []LayerDef
	Shapes []ShapeDef
	Events []EventDef
}

func (m MapDef) PixelWidth() float64  { return float64(m.Width * m.TileWidth) }
func (m MapDef) PixelHeight() float64 { return float64(m.Height * m.TileHeight) }

func (m MapDef) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("map: empty id")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("map %s: non-positive size %dx%d", m.ID, m.Width, m.Height)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return fmt.Errorf("map %s: non-positive tile size %dx%d", m.ID, m.TileWidth, m.TileHeight)
	}
	for _, l := range m.Layers {
		if l.Name == "" {
			return fmt.Errorf("map %s: layer with empty name", m.ID)
		}
		if len(l.Tiles) != 0 && len(l.Tiles) != m.Width*m.Height {
			return fmt.Errorf("map %s: layer %s has %d tiles, want %d", m.ID, l.Name, len(l.Tiles), m.Width*m.Height)
		}
	}
	for _, e := range m.Events {
		if e.Name == "" {
			return fmt.Errorf("map %s: event with empty name", m.ID)
		}
		if !e.Mode.Valid() {
			return fmt.Errorf("map %s: event %s has invalid mode %q", m.ID, e.Name, e.Mode)
		}
	}
	return nil
}

// LayerDef is one static tile layer. Tiles may be empty, meaning an all-zero
// layer with no collision.
type LayerDef struct {
	Name  string
	Z     int
	Tiles []Tile
}

// Tile is one static layer cell.
type Tile struct {
	ID        int
	Collision bool
}

// ShapeDef declares a static trigger region in absolute map pixels.
type ShapeDef struct {
	Name       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Properties PropertyBag
}

// EventDef declares a scripted event actor.
type EventDef struct {
	Name         string
	Mode         Mode
	X            float64
	Y            float64
	Z            int
	HitboxWidth  float64
	HitboxHeight float64
	Speed        float64
	Frequency    int
	Properties   PropertyBag
}
