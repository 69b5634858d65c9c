package snapshot

import (
	"path/filepath"
	"testing"
)

func TestSnapshot_Roundtrip(t *testing.T) {
	s := SnapshotV1{
		Header: Header{Version: 1, MapID: "town", Tick: 42},
		Actors: []ActorV1{
			{ID: "guard", Name: "guard", Kind: "event", Mode: "scenario", X: 96, Y: 32, HitboxW: 32, HitboxH: 32, Speed: 3, Direction: 3},
			{ID: "P1", Name: "alice", Kind: "player", X: 0, Y: 0, HitboxW: 32, HitboxH: 32, Speed: 3, Direction: 3},
		},
		Shapes: []ShapeV1{
			{Name: "aura", OwnerID: "guard", Width: 100, Height: 100, Positioning: "center"},
		},
		Layers: []LayerV1{
			{Name: "ground", Z: 0, Tiles: []TileV1{{ID: 1}, {ID: 1, Collision: true}, {}, {}}},
		},
	}

	path := filepath.Join(t.TempDir(), "town.snap.zst")
	if err := WriteFile(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != s.Header {
		t.Fatalf("header: got %+v want %+v", got.Header, s.Header)
	}
	if len(got.Actors) != 2 || got.Actors[0].ID != "guard" {
		t.Fatalf("actors: %+v", got.Actors)
	}
	if len(got.Shapes) != 1 || got.Shapes[0].OwnerID != "guard" {
		t.Fatalf("shapes: %+v", got.Shapes)
	}
	if len(got.Layers) != 1 || !got.Layers[0].Tiles[1].Collision {
		t.Fatalf("layers: %+v", got.Layers)
	}
}

func TestSnapshot_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := WriteFile(path, SnapshotV1{Header: Header{Version: 7}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatalf("expected version error")
	}
}
