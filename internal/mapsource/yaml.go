package mapsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// YAMLSource reads map definitions from a directory of <id>.yaml files.
type YAMLSource struct {
	dir string
}

func NewYAMLSource(dir string) *YAMLSource {
	return &YAMLSource{dir: dir}
}

type yamlMap struct {
	ID         string      `yaml:"id"`
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	TileWidth  int         `yaml:"tile_width"`
	TileHeight int         `yaml:"tile_height"`
	Layers     []yamlLayer `yaml:"layers"`
	Shapes     []yamlShape `yaml:"shapes"`
	Events     []yamlEvent `yaml:"events"`
}

type yamlLayer struct {
	Name      string   `yaml:"name"`
	Z         int      `yaml:"z"`
	Tiles     []int    `yaml:"tiles"`
	Collision [][2]int `yaml:"collision"` // blocked cells as [x, y]
}

type yamlShape struct {
	Name       string         `yaml:"name"`
	X          float64        `yaml:"x"`
	Y          float64        `yaml:"y"`
	Width      float64        `yaml:"width"`
	Height     float64        `yaml:"height"`
	Properties map[string]any `yaml:"properties"`
}

type yamlEvent struct {
	Name       string         `yaml:"name"`
	Mode       string         `yaml:"mode"`
	X          float64        `yaml:"x"`
	Y          float64        `yaml:"y"`
	Z          int            `yaml:"z"`
	Hitbox     [2]float64     `yaml:"hitbox"`
	Speed      float64        `yaml:"speed"`
	Frequency  int            `yaml:"frequency"`
	Properties map[string]any `yaml:"properties"`
}

func (s *YAMLSource) MapDef(_ context.Context, id string) (MapDef, error) {
	path := filepath.Join(s.dir, id+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MapDef{}, fmt.Errorf("map %s: %w", id, ErrUnknownMap)
		}
		return MapDef{}, err
	}
	var ym yamlMap
	if err := yaml.Unmarshal(raw, &ym); err != nil {
		return MapDef{}, fmt.Errorf("map %s: %w", id, err)
	}
	if ym.ID == "" {
		ym.ID = id
	}
	def, err := ym.toDef()
	if err != nil {
		return MapDef{}, err
	}
	if err := def.Validate(); err != nil {
		return MapDef{}, err
	}
	return def, nil
}

func (ym yamlMap) toDef() (MapDef, error) {
	def := MapDef{
		ID:         ym.ID,
		Width:      ym.Width,
		Height:     ym.Height,
		TileWidth:  ym.TileWidth,
		TileHeight: ym.TileHeight,
	}
	for _, yl := range ym.Layers {
		l := LayerDef{Name: yl.Name, Z: yl.Z}
		if len(yl.Tiles) > 0 || len(yl.Collision) > 0 {
			l.Tiles = make([]Tile, ym.Width*ym.Height)
			for i, id := range yl.Tiles {
				if i >= len(l.Tiles) {
					break
				}
				l.Tiles[i].ID = id
			}
			for _, c := range yl.Collision {
				x, y := c[0], c[1]
				if x < 0 || x >= ym.Width || y < 0 || y >= ym.Height {
					return MapDef{}, fmt.Errorf("map %s: layer %s collision cell (%d,%d) out of range", ym.ID, yl.Name, x, y)
				}
				l.Tiles[y*ym.Width+x].Collision = true
			}
		}
		def.Layers = append(def.Layers, l)
	}
	for _, ys := range ym.Shapes {
		def.Shapes = append(def.Shapes, ShapeDef{
			Name:       ys.Name,
			X:          ys.X,
			Y:          ys.Y,
			Width:      ys.Width,
			Height:     ys.Height,
			Properties: PropertyBag(ys.Properties).Normalize(),
		})
	}
	for _, ye := range ym.Events {
		def.Events = append(def.Events, EventDef{
			Name:         ye.Name,
			Mode:         Mode(ye.Mode),
			X:            ye.X,
			Y:            ye.Y,
			Z:            ye.Z,
			HitboxWidth:  ye.Hitbox[0],
			HitboxHeight: ye.Hitbox[1],
			Speed:        ye.Speed,
			Frequency:    ye.Frequency,
			Properties:   PropertyBag(ye.Properties).Normalize(),
		})
	}
	return def, nil
}
