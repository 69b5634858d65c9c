package mapsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads map definitions from a sqlite catalog. Layer tiles are
// stored as a JSON blob per layer; shape and event properties as JSON objects.
type SQLiteSource struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteSource, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s := &SQLiteSource{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) Close() error { return s.db.Close() }

func (s *SQLiteSource) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS maps (
			id TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			tile_width INTEGER NOT NULL,
			tile_height INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS layers (
			map_id TEXT NOT NULL,
			name TEXT NOT NULL,
			z INTEGER NOT NULL,
			tiles TEXT NOT NULL,
			PRIMARY KEY (map_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS shapes (
			map_id TEXT NOT NULL,
			name TEXT NOT NULL,
			x REAL NOT NULL, y REAL NOT NULL,
			width REAL NOT NULL, height REAL NOT NULL,
			properties TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (map_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			map_id TEXT NOT NULL,
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			x REAL NOT NULL, y REAL NOT NULL, z INTEGER NOT NULL DEFAULT 0,
			hitbox_w REAL NOT NULL, hitbox_h REAL NOT NULL,
			speed REAL NOT NULL, frequency INTEGER NOT NULL DEFAULT 0,
			properties TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (map_id, name)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

type layerTilesJSON struct {
	IDs       []int `json:"ids,omitempty"`
	Collision []int `json:"collision,omitempty"` // blocked cell indexes
}

func (s *SQLiteSource) MapDef(ctx context.Context, id string) (MapDef, error) {
	var def MapDef
	row := s.db.QueryRowContext(ctx,
		`SELECT id, width, height, tile_width, tile_height FROM maps WHERE id = ?`, id)
	if err := row.Scan(&def.ID, &def.Width, &def.Height, &def.TileWidth, &def.TileHeight); err != nil {
		if err == sql.ErrNoRows {
			return MapDef{}, fmt.Errorf("map %s: %w", id, ErrUnknownMap)
		}
		return MapDef{}, err
	}

	layers, err := s.db.QueryContext(ctx,
		`SELECT name, z, tiles FROM layers WHERE map_id = ? ORDER BY z, name`, id)
	if err != nil {
		return MapDef{}, err
	}
	defer layers.Close()
	for layers.Next() {
		var l LayerDef
		var raw string
		if err := layers.Scan(&l.Name, &l.Z, &raw); err != nil {
			return MapDef{}, err
		}
		var tj layerTilesJSON
		if err := json.Unmarshal([]byte(raw), &tj); err != nil {
			return MapDef{}, fmt.Errorf("map %s: layer %s tiles: %w", id, l.Name, err)
		}
		if len(tj.IDs) > 0 || len(tj.Collision) > 0 {
			l.Tiles = make([]Tile, def.Width*def.Height)
			for i, tid := range tj.IDs {
				if i >= len(l.Tiles) {
					break
				}
				l.Tiles[i].ID = tid
			}
			for _, idx := range tj.Collision {
				if idx < 0 || idx >= len(l.Tiles) {
					return MapDef{}, fmt.Errorf("map %s: layer %s collision index %d out of range", id, l.Name, idx)
				}
				l.Tiles[idx].Collision = true
			}
		}
		def.Layers = append(def.Layers, l)
	}
	if err := layers.Err(); err != nil {
		return MapDef{}, err
	}

	shapes, err := s.db.QueryContext(ctx,
		`SELECT name, x, y, width, height, properties FROM shapes WHERE map_id = ? ORDER BY rowid`, id)
	if err != nil {
		return MapDef{}, err
	}
	defer shapes.Close()
	for shapes.Next() {
		var sh ShapeDef
		var raw string
		if err := shapes.Scan(&sh.Name, &sh.X, &sh.Y, &sh.Width, &sh.Height, &raw); err != nil {
			return MapDef{}, err
		}
		if sh.Properties, err = decodeProps(raw); err != nil {
			return MapDef{}, fmt.Errorf("map %s: shape %s: %w", id, sh.Name, err)
		}
		def.Shapes = append(def.Shapes, sh)
	}
	if err := shapes.Err(); err != nil {
		return MapDef{}, err
	}

	events, err := s.db.QueryContext(ctx,
		`SELECT name, mode, x, y, z, hitbox_w, hitbox_h, speed, frequency, properties
		 FROM events WHERE map_id = ? ORDER BY rowid`, id)
	if err != nil {
		return MapDef{}, err
	}
	defer events.Close()
	for events.Next() {
		var ev EventDef
		var mode, raw string
		if err := events.Scan(&ev.Name, &mode, &ev.X, &ev.Y, &ev.Z,
			&ev.HitboxWidth, &ev.HitboxHeight, &ev.Speed, &ev.Frequency, &raw); err != nil {
			return MapDef{}, err
		}
		ev.Mode = Mode(mode)
		if ev.Properties, err = decodeProps(raw); err != nil {
			return MapDef{}, fmt.Errorf("map %s: event %s: %w", id, ev.Name, err)
		}
		def.Events = append(def.Events, ev)
	}
	if err := events.Err(); err != nil {
		return MapDef{}, err
	}

	if err := def.Validate(); err != nil {
		return MapDef{}, err
	}
	return def, nil
}

// ImportDef writes a full map definition into the catalog, replacing any
// previous rows for the same id. Used by import tooling and tests.
func (s *SQLiteSource) ImportDef(ctx context.Context, def MapDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM maps WHERE id = ?`,
		`DELETE FROM layers WHERE map_id = ?`,
		`DELETE FROM shapes WHERE map_id = ?`,
		`DELETE FROM events WHERE map_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, def.ID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO maps (id, width, height, tile_width, tile_height) VALUES (?, ?, ?, ?, ?)`,
		def.ID, def.Width, def.Height, def.TileWidth, def.TileHeight); err != nil {
		return err
	}
	for _, l := range def.Layers {
		tj := layerTilesJSON{}
		for _, t := range l.Tiles {
			if t.ID != 0 {
				tj.IDs = make([]int, len(l.Tiles))
				break
			}
		}
		for i, t := range l.Tiles {
			if tj.IDs != nil {
				tj.IDs[i] = t.ID
			}
			if t.Collision {
				tj.Collision = append(tj.Collision, i)
			}
		}
		raw, err := json.Marshal(tj)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO layers (map_id, name, z, tiles) VALUES (?, ?, ?, ?)`,
			def.ID, l.Name, l.Z, string(raw)); err != nil {
			return err
		}
	}
	for _, sh := range def.Shapes {
		raw, err := encodeProps(sh.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shapes (map_id, name, x, y, width, height, properties) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			def.ID, sh.Name, sh.X, sh.Y, sh.Width, sh.Height, raw); err != nil {
			return err
		}
	}
	for _, ev := range def.Events {
		raw, err := encodeProps(ev.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (map_id, name, mode, x, y, z, hitbox_w, hitbox_h, speed, frequency, properties)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			def.ID, ev.Name, string(ev.Mode), ev.X, ev.Y, ev.Z,
			ev.HitboxWidth, ev.HitboxHeight, ev.Speed, ev.Frequency, raw); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func decodeProps(raw string) (PropertyBag, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return PropertyBag(m).Normalize(), nil
}

func encodeProps(b PropertyBag) (string, error) {
	if len(b) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
