package zone

import (
	"encoding/json"
	"sort"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/persistence/snapshot"
	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/geom"
)

func (z *Zone) markDirty(actorID string) {
	z.dirtyActors[actorID] = struct{}{}
}

// flushFrame makes the tick's committed mutations observable: one FRAME
// message per client and one tick log entry. Slow clients drop frames rather
// than stalling the loop.
func (z *Zone) flushFrame() {
	if len(z.dirtyActors) == 0 && len(z.tileEdits) == 0 && len(z.transitions) == 0 &&
		len(z.joinedIDs) == 0 && len(z.leftIDs) == 0 {
		return
	}

	ids := make([]string, 0, len(z.dirtyActors))
	for id := range z.dirtyActors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	deltas := make([]protocol.ActorDelta, 0, len(ids))
	for _, id := range ids {
		a, ok := z.actors[id]
		if !ok {
			continue
		}
		deltas = append(deltas, protocol.ActorDelta{
			ID:        a.ID,
			X:         a.X,
			Y:         a.Y,
			Z:         a.Z,
			Direction: int(a.Direction),
		})
	}

	tick := z.tick.Load()
	frame := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		MapID:           z.cfg.ID,
		Tick:            tick,
		Actors:          deltas,
		Tiles:           z.tileEdits,
		Transitions:     z.transitions,
		Joins:           z.joinedIDs,
		Leaves:          z.leftIDs,
	}
	if len(z.clients) > 0 {
		if b, err := json.Marshal(frame); err == nil {
			for _, c := range z.clients {
				select {
				case c.Out <- b:
				default:
				}
			}
		}
	}

	if z.tickLogger != nil {
		_ = z.tickLogger.WriteTick(TickLogEntry{
			MapID:       z.cfg.ID,
			Tick:        tick,
			Moves:       deltas,
			Tiles:       z.tileEdits,
			Transitions: z.transitions,
			Joins:       z.joinedIDs,
			Leaves:      z.leftIDs,
		})
	}

	z.dirtyActors = make(map[string]struct{})
	z.tileEdits = nil
	z.transitions = nil
	z.joinedIDs = nil
	z.leftIDs = nil
}

func (z *Zone) handleSnapshot(req snapshotReq) {
	req.Resp <- z.buildSnapshot()
}

func (z *Zone) buildSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, MapID: z.cfg.ID, Tick: z.tick.Load()},
	}
	for _, a := range z.sortedActors() {
		kind := "player"
		if a.kind == kindEvent {
			kind = "event"
		}
		s.Actors = append(s.Actors, snapshot.ActorV1{
			ID:         a.ID,
			Name:       a.Name,
			Kind:       kind,
			Mode:       string(a.mode),
			X:          a.X,
			Y:          a.Y,
			Z:          a.Z,
			HitboxW:    a.HitboxW,
			HitboxH:    a.HitboxH,
			Speed:      a.Speed,
			Frequency:  a.Frequency,
			Direction:  int(a.Direction),
			Properties: a.Properties,
		})
		for _, sh := range a.Shapes {
			s.Shapes = append(s.Shapes, snapshot.ShapeV1{
				Name:        sh.Name,
				OwnerID:     sh.OwnerID,
				Width:       sh.Width,
				Height:      sh.Height,
				Positioning: string(sh.Positioning),
				Properties:  sh.Properties,
			})
		}
	}
	for i := range z.layers {
		l := &z.layers[i]
		lv := snapshot.LayerV1{Name: l.name, Z: l.z}
		for _, t := range l.tiles {
			lv.Tiles = append(lv.Tiles, snapshot.TileV1{ID: t.ID, Collision: t.Collision})
		}
		s.Layers = append(s.Layers, lv)
	}
	return s
}

// ApplySnapshot restores event actors, attached shapes and tile state from a
// snapshot. It must run before the zone loop starts; players are sessions,
// not persistent state, and are skipped.
func (z *Zone) ApplySnapshot(s snapshot.SnapshotV1) {
	for i := range z.layers {
		l := &z.layers[i]
		for _, lv := range s.Layers {
			if lv.Name != l.name || len(lv.Tiles) != z.def.Width*z.def.Height {
				continue
			}
			l.tiles = make([]mapsource.Tile, len(lv.Tiles))
			for j, t := range lv.Tiles {
				l.tiles[j] = mapsource.Tile{ID: t.ID, Collision: t.Collision}
			}
		}
	}

	for _, av := range s.Actors {
		if av.Kind != "event" {
			continue
		}
		// Scenario events already exist from the map definition; reposition
		// them instead of spawning duplicates.
		if existing, ok := z.events[av.ID]; ok {
			existing.X = av.X
			existing.Y = av.Y
			existing.Z = av.Z
			existing.Direction = geom.Direction(av.Direction)
			z.grid.Upsert(existing.ID, existing.MaxBounds())
			z.restoreShapes(existing, s.Shapes, av.ID)
			continue
		}
		mode := mapsource.Mode(av.Mode)
		if !mode.Valid() {
			continue
		}
		def := mapsource.EventDef{
			Name:         av.Name,
			Mode:         mode,
			X:            av.X,
			Y:            av.Y,
			Z:            av.Z,
			HitboxWidth:  av.HitboxW,
			HitboxHeight: av.HitboxH,
			Speed:        av.Speed,
			Frequency:    av.Frequency,
			Properties:   mapsource.PropertyBag(av.Properties).Normalize(),
		}
		a, ok := z.spawnEvent(def, av.X, av.Y, mode)
		if !ok {
			continue
		}
		a.Direction = geom.Direction(av.Direction)
		z.restoreShapes(a, s.Shapes, av.ID)
	}
}

// restoreShapes re-attaches the snapshot shapes owned by the given snapshot
// actor id. Shape ids are regenerated; names and geometry survive.
func (z *Zone) restoreShapes(a *Actor, shapes []snapshot.ShapeV1, ownerID string) {
	for _, sv := range shapes {
		if sv.OwnerID != ownerID {
			continue
		}
		z.attachShape(a, sv.Name, sv.Width, sv.Height, geom.Positioning(sv.Positioning),
			mapsource.PropertyBag(sv.Properties).Normalize())
	}
}
