package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	MapID   string `json:"map_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures a zone's dynamic state: live actors, their attached
// shapes, and the runtime tile layers (including setTile edits).
type SnapshotV1 struct {
	Header Header `json:"header"`

	Actors []ActorV1 `json:"actors"`
	Shapes []ShapeV1 `json:"shapes,omitempty"`
	Layers []LayerV1 `json:"layers"`
}

type ActorV1 struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"` // "player" | "event"
	Mode       string         `json:"mode,omitempty"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Z          int            `json:"z"`
	HitboxW    float64        `json:"hitbox_w"`
	HitboxH    float64        `json:"hitbox_h"`
	Speed      float64        `json:"speed"`
	Frequency  int            `json:"frequency"`
	Direction  int            `json:"direction"`
	Properties map[string]any `json:"properties,omitempty"`
}

type ShapeV1 struct {
	Name        string         `json:"name"`
	OwnerID     string         `json:"owner_id"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Positioning string         `json:"positioning"`
	Properties  map[string]any `json:"properties,omitempty"`
}

type LayerV1 struct {
	Name  string   `json:"name"`
	Z     int      `json:"z"`
	Tiles []TileV1 `json:"tiles,omitempty"`
}

type TileV1 struct {
	ID        int  `json:"id,omitempty"`
	Collision bool `json:"c,omitempty"`
}

// WriteFile writes a zstd-compressed JSON snapshot, creating parent
// directories as needed.
func WriteFile(path string, s SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (SnapshotV1, error) {
	var s SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&s); err != nil {
		return s, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if s.Header.Version != 1 {
		return s, fmt.Errorf("snapshot %s: unsupported version %d", path, s.Header.Version)
	}
	return s, nil
}
