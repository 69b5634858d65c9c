package grid

import (
	"sort"
	"testing"

	"tilerealm.gg/internal/sim/geom"
)

func rect(minX, minY, maxX, maxY float64) geom.Rect {
	return geom.Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func TestGrid_UpsertAndQuery(t *testing.T) {
	g := New(32)
	g.Upsert("a", rect(0, 0, 32, 32))
	g.Upsert("b", rect(100, 100, 132, 132))

	got := g.Query(rect(0, 0, 64, 64))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("query near origin: got %v want [a]", got)
	}

	got = g.Query(rect(0, 0, 200, 200))
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("wide query: got %v want [a b]", got)
	}
}

func TestGrid_MoveUpdatesCells(t *testing.T) {
	g := New(32)
	g.Upsert("a", rect(0, 0, 32, 32))
	g.Upsert("a", rect(500, 500, 532, 532))

	if got := g.Query(rect(0, 0, 64, 64)); len(got) != 0 {
		t.Fatalf("old cells should be vacated: got %v", got)
	}
	if got := g.Query(rect(480, 480, 540, 540)); len(got) != 1 || got[0] != "a" {
		t.Fatalf("new cells: got %v want [a]", got)
	}
}

func TestGrid_QueryDeduplicates(t *testing.T) {
	g := New(32)
	// Spans four cells.
	g.Upsert("a", rect(16, 16, 48, 48))
	got := g.Query(rect(0, 0, 64, 64))
	if len(got) != 1 {
		t.Fatalf("spanning actor should appear once: got %v", got)
	}
}

func TestGrid_RemoveMissingIsNoop(t *testing.T) {
	g := New(32)
	g.Remove("ghost")
	g.Upsert("a", rect(0, 0, 32, 32))
	g.Remove("a")
	g.Remove("a")
	if g.Contains("a") {
		t.Fatalf("a should be gone")
	}
	if got := g.Query(rect(0, 0, 64, 64)); len(got) != 0 {
		t.Fatalf("query after remove: got %v", got)
	}
}
