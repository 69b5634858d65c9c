package zone

import (
	"fmt"

	"tilerealm.gg/internal/mapsource"
)

// spawnEvent instantiates an event definition at (x, y). A definition whose
// declared mode does not match the requested creation mode yields no actor;
// callers must check the ok result.
func (z *Zone) spawnEvent(def mapsource.EventDef, x, y float64, mode mapsource.Mode) (*Actor, bool) {
	if def.Mode != mode {
		return nil, false
	}

	var id string
	switch mode {
	case mapsource.ModeScenario:
		// One live instance per map, keyed by event name.
		if _, exists := z.events[def.Name]; exists {
			return nil, false
		}
		id = def.Name
	default:
		id = fmt.Sprintf("EV%d", z.nextEventNum.Add(1))
	}

	props := def.Properties
	// A static shape declared under the event's name donates its properties.
	if s, ok := z.shapeByName(def.Name); ok {
		props = props.Merge(s.Properties)
	}

	hitW := def.HitboxWidth
	hitH := def.HitboxHeight
	if hitW <= 0 {
		hitW = float64(z.def.TileWidth)
	}
	if hitH <= 0 {
		hitH = float64(z.def.TileHeight)
	}
	speed := def.Speed
	if speed <= 0 {
		speed = 1
	}

	a := &Actor{
		ID:         id,
		Name:       def.Name,
		X:          clampCoord(x, 0, z.def.PixelWidth()-hitW),
		Y:          clampCoord(y, 0, z.def.PixelHeight()-hitH),
		Z:          def.Z,
		HitboxW:    hitW,
		HitboxH:    hitH,
		Speed:      speed,
		Frequency:  def.Frequency,
		Direction:  3, // facing down
		Properties: props,
		kind:       kindEvent,
		mode:       def.Mode,
	}

	z.actors[id] = a
	z.events[id] = a
	z.grid.Upsert(id, a.MaxBounds())
	z.markDirty(id)
	z.hooks.OnEventInit(a)
	z.evaluateTriggers(a)
	return a, true
}

// createDynamicEvents spawns the given definitions in shared mode, skipping
// any whose declared mode mismatches. The returned slice carries only the
// actors actually created.
func (z *Zone) createDynamicEvents(defs []mapsource.EventDef) []*Actor {
	var out []*Actor
	for _, def := range defs {
		if a, ok := z.spawnEvent(def, def.X, def.Y, mapsource.ModeShared); ok {
			out = append(out, a)
		}
	}
	return out
}

// removeEvent drops the event from the registry and grid after forcing exits.
// Reports whether an event existed under id.
func (z *Zone) removeEvent(id string) bool {
	a, ok := z.events[id]
	if !ok {
		return false
	}
	z.removeActor(a, false)
	return true
}

func (z *Zone) eventByID(id string) (*Actor, bool) {
	a, ok := z.events[id]
	return a, ok
}
