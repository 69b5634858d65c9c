package grid

import (
	"math"

	"tilerealm.gg/internal/sim/geom"
)

type cellKey struct {
	X int
	Y int
}

// Grid is a fixed-cell spatial index over actor bounding rectangles. The cell
// size is fixed when the map loads. It is a candidate pre-filter: queries
// return a superset that callers narrow with exact geometry checks.
type Grid struct {
	cellSize    float64
	invCellSize float64

	cells   map[cellKey][]string
	entries map[string][]cellKey
}

func New(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]string),
		entries:     make(map[string][]cellKey),
	}
}

// Upsert registers id under every cell intersecting r, replacing any previous
// registration. Insert and move are the same operation.
func (g *Grid) Upsert(id string, r geom.Rect) {
	if id == "" {
		return
	}
	if prev, ok := g.entries[id]; ok {
		g.removeFromCells(id, prev)
	}
	cells := g.cellsFor(r)
	g.entries[id] = cells
	for _, c := range cells {
		g.cells[c] = append(g.cells[c], id)
	}
}

// Remove drops id from the index. Removing an unregistered id is a no-op.
func (g *Grid) Remove(id string) {
	entry, ok := g.entries[id]
	if !ok {
		return
	}
	g.removeFromCells(id, entry)
	delete(g.entries, id)
}

// Contains reports whether id is currently registered.
func (g *Grid) Contains(id string) bool {
	_, ok := g.entries[id]
	return ok
}

// Query returns the ids registered in any cell intersecting r, each at most
// once, in no particular order.
func (g *Grid) Query(r geom.Rect) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range g.cellsFor(r) {
		for _, id := range g.cells[c] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (g *Grid) removeFromCells(id string, cells []cellKey) {
	for _, c := range cells {
		bucket := g.cells[c]
		for i := range bucket {
			if bucket[i] != id {
				continue
			}
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
		if len(bucket) == 0 {
			delete(g.cells, c)
		} else {
			g.cells[c] = bucket
		}
	}
}

func (g *Grid) cellsFor(r geom.Rect) []cellKey {
	minX := g.coordToCell(r.MinX)
	minY := g.coordToCell(r.MinY)
	maxX := g.coordToCell(r.MaxX)
	maxY := g.coordToCell(r.MaxY)
	cells := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1))
	for row := minY; row <= maxY; row++ {
		for col := minX; col <= maxX; col++ {
			cells = append(cells, cellKey{X: col, Y: row})
		}
	}
	return cells
}

func (g *Grid) coordToCell(v float64) int {
	return int(math.Floor(v * g.invCellSize))
}
