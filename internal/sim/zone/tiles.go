package zone

import (
	"math"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/protocol"
)

// layerState is the mutable runtime copy of one static layer.
type layerState struct {
	name  string
	z     int
	tiles []mapsource.Tile // nil means an empty, walkable layer
}

func newLayerStates(def mapsource.MapDef) []layerState {
	out := make([]layerState, len(def.Layers))
	for i, l := range def.Layers {
		ls := layerState{name: l.Name, z: l.Z}
		if len(l.Tiles) > 0 {
			ls.tiles = make([]mapsource.Tile, len(l.Tiles))
			copy(ls.tiles, l.Tiles)
		}
		out[i] = ls
	}
	return out
}

// TileDescriptor reports one affected layer cell from a SetTile call.
type TileDescriptor struct {
	Layer     string
	X         int
	Y         int
	Tile      int
	Collision bool
}

// LayerSelectorAll applies a tile edit to every layer.
const LayerSelectorAll = "*"

// setTile mutates one static layer cell. It is the authoritative state
// change; pushing it to clients is the sync layer's concern (the edit is
// recorded in the tick's dirty set).
func (z *Zone) setTile(x, y int, layerSelector string, tile mapsource.Tile) []TileDescriptor {
	if x < 0 || x >= z.def.Width || y < 0 || y >= z.def.Height {
		return nil
	}
	var affected []TileDescriptor
	for i := range z.layers {
		l := &z.layers[i]
		if layerSelector != LayerSelectorAll && l.name != layerSelector {
			continue
		}
		if l.tiles == nil {
			l.tiles = make([]mapsource.Tile, z.def.Width*z.def.Height)
		}
		l.tiles[y*z.def.Width+x] = tile
		affected = append(affected, TileDescriptor{
			Layer:     l.name,
			X:         x,
			Y:         y,
			Tile:      tile.ID,
			Collision: tile.Collision,
		})
		z.tileEdits = append(z.tileEdits, protocol.TileEdit{
			X:         x,
			Y:         y,
			Layer:     l.name,
			Tile:      tile.ID,
			Collision: tile.Collision,
		})
	}
	return affected
}

// blockedCell reports whether any layer marks the tile cell non-walkable.
// Out-of-range cells are treated as blocked.
func (z *Zone) blockedCell(col, row int) bool {
	if col < 0 || col >= z.def.Width || row < 0 || row >= z.def.Height {
		return true
	}
	idx := row*z.def.Width + col
	for i := range z.layers {
		t := z.layers[i].tiles
		if t != nil && t[idx].Collision {
			return true
		}
	}
	return false
}

// tileRange converts a half-open pixel interval into the covered tile range.
func tileRange(min, max float64, tileDim int) (lo, hi int) {
	lo = int(math.Floor(min / float64(tileDim)))
	hi = int(math.Ceil(max/float64(tileDim))) - 1
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
