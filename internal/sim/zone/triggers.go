package zone

import (
	"fmt"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/geom"
)

func (z *Zone) installStaticShape(sd mapsource.ShapeDef) *Shape {
	s := &Shape{
		ID:   fmt.Sprintf("S%d", z.nextShapeNum.Add(1)),
		Name: sd.Name,
		Fixed: geom.Rect{
			MinX: sd.X,
			MinY: sd.Y,
			MaxX: sd.X + sd.Width,
			MaxY: sd.Y + sd.Height,
		},
		Width:      sd.Width,
		Height:     sd.Height,
		Properties: sd.Properties,
	}
	z.shapes = append(z.shapes, s)
	z.shapeByID[s.ID] = s
	return s
}

// attachShape registers a dynamic shape on an actor. Triggers re-evaluate
// immediately: attachment changes count as geometry changes.
func (z *Zone) attachShape(a *Actor, name string, width, height float64, pos geom.Positioning, props mapsource.PropertyBag) *Shape {
	if !pos.Valid() {
		pos = geom.TopLeft
	}
	s := &Shape{
		ID:          fmt.Sprintf("S%d", z.nextShapeNum.Add(1)),
		Name:        name,
		OwnerID:     a.ID,
		Width:       width,
		Height:      height,
		Positioning: pos,
		Properties:  props,
	}
	z.shapes = append(z.shapes, s)
	z.shapeByID[s.ID] = s
	a.Shapes = append(a.Shapes, s)

	bounds := a.MaxBounds()
	z.grid.Upsert(a.ID, bounds)
	z.evaluateTriggers(a)
	z.evaluateNeighbors(a, bounds)
	return s
}

// shapeRect is the shape's current absolute rectangle. Attached shapes follow
// their owner.
func (z *Zone) shapeRect(s *Shape) (geom.Rect, bool) {
	if s.static() {
		return s.Fixed, true
	}
	owner, ok := z.actors[s.OwnerID]
	if !ok {
		return geom.Rect{}, false
	}
	r := geom.AttachedRect(owner.X, owner.Y, owner.HitboxW, owner.HitboxH,
		geom.Attachment{Width: s.Width, Height: s.Height, Positioning: s.Positioning})
	return r, true
}

// evaluateTriggers recomputes the actor's overlap set and fires enter/exit
// hooks exactly once per transition, in shape registration order. Exits fire
// before enters.
func (z *Zone) evaluateTriggers(a *Actor) {
	bounds := a.MaxBounds()

	// Grid pre-filter for actor-attached shapes; static shapes are always
	// considered.
	candidates := make(map[string]struct{})
	for _, id := range z.grid.Query(bounds) {
		candidates[id] = struct{}{}
	}

	newSet := make(map[string]struct{})
	for _, s := range z.shapes {
		if s.OwnerID == a.ID {
			continue
		}
		if !s.static() {
			if _, ok := candidates[s.OwnerID]; !ok {
				continue
			}
		}
		r, ok := z.shapeRect(s)
		if !ok {
			continue
		}
		if r.Overlaps(bounds) {
			newSet[s.ID] = struct{}{}
		}
	}

	prev := z.overlaps[a.ID]
	var entered, exited []*Shape
	for _, s := range z.shapes {
		_, inNew := newSet[s.ID]
		var inOld bool
		if prev != nil {
			_, inOld = prev[s.ID]
		}
		switch {
		case inOld && !inNew:
			exited = append(exited, s)
		case inNew && !inOld:
			entered = append(entered, s)
		}
	}
	z.overlaps[a.ID] = newSet

	for _, s := range exited {
		z.hooks.OnOutShape(a, s)
		z.recordTransition(a, s, protocol.TransitionOut)
	}
	for _, s := range entered {
		z.hooks.OnInShape(a, s)
		z.recordTransition(a, s, protocol.TransitionIn)
	}
}

// evaluateNeighbors re-evaluates every other actor near region, so that both
// participants of an actor-vs-actor overlap receive notifications.
func (z *Zone) evaluateNeighbors(a *Actor, region geom.Rect) {
	for _, id := range z.grid.Query(region) {
		if id == a.ID {
			continue
		}
		other, ok := z.actors[id]
		if !ok {
			continue
		}
		z.evaluateTriggers(other)
	}
}

// forceExit fires OnOutShape for every shape the actor still overlaps, then
// removes the actor's own shapes from the registry, force-exiting any other
// actor inside them. Runs before the actor is dropped from the grid.
func (z *Zone) forceExit(a *Actor) {
	prev := z.overlaps[a.ID]
	if len(prev) > 0 {
		for _, s := range z.shapes {
			if _, ok := prev[s.ID]; !ok {
				continue
			}
			z.hooks.OnOutShape(a, s)
			z.recordTransition(a, s, protocol.TransitionOut)
		}
	}
	delete(z.overlaps, a.ID)

	if len(a.Shapes) == 0 {
		return
	}
	owned := make(map[string]*Shape, len(a.Shapes))
	for _, s := range a.Shapes {
		owned[s.ID] = s
	}
	for otherID, set := range z.overlaps {
		other, ok := z.actors[otherID]
		if !ok {
			continue
		}
		for _, s := range a.Shapes {
			if _, in := set[s.ID]; !in {
				continue
			}
			delete(set, s.ID)
			z.hooks.OnOutShape(other, s)
			z.recordTransition(other, s, protocol.TransitionOut)
		}
	}
	kept := z.shapes[:0]
	for _, s := range z.shapes {
		if _, drop := owned[s.ID]; drop {
			delete(z.shapeByID, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	z.shapes = kept
	a.Shapes = nil
}

// shapeByName returns the first shape registered under name: the accessor
// behind getEventShape.
func (z *Zone) shapeByName(name string) (*Shape, bool) {
	for _, s := range z.shapes {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (z *Zone) recordTransition(a *Actor, s *Shape, kind string) {
	z.transitions = append(z.transitions, protocol.ShapeTransition{
		ActorID: a.ID,
		Shape:   s.Name,
		Kind:    kind,
	})
}
