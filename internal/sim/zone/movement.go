package zone

import (
	"fmt"
	"math"

	"tilerealm.gg/internal/sim/geom"
	"tilerealm.gg/internal/sim/route"
)

// startRoute attaches a route to an actor. A route already in progress is
// interrupted between steps; its waiter gets an error. done may be nil for
// fire-and-forget starts.
func (z *Zone) startRoute(actorID string, cmds []route.Command, done chan<- error) {
	fail := func(err error) {
		if done != nil {
			done <- err
		}
	}
	a, ok := z.actors[actorID]
	if !ok {
		fail(fmt.Errorf("unknown actor %s", actorID))
		return
	}
	if len(cmds) > z.cfg.MaxRouteLen {
		fail(fmt.Errorf("route of %d commands exceeds limit %d", len(cmds), z.cfg.MaxRouteLen))
		return
	}
	if a.route != nil {
		a.route.finish(fmt.Errorf("route interrupted"))
		a.route = nil
	}
	if len(cmds) == 0 {
		fail(nil)
		return
	}
	a.route = newActiveRoute(cmds, done)
	a.idleTicks = 0
}

// advanceRoutes runs one atomic command step for every actor with a route in
// progress, in deterministic actor-id order. Each step's position commit,
// clamping and trigger evaluation complete before the next actor advances.
func (z *Zone) advanceRoutes() {
	for _, a := range z.sortedActors() {
		if a.route == nil {
			continue
		}
		if a.idleTicks > 0 {
			a.idleTicks--
			continue
		}
		z.execRouteStep(a)
	}
}

func (z *Zone) execRouteStep(a *Actor) {
	r := a.route
	cmd := r.current()
	if cmd == nil {
		z.completeRoute(a, nil)
		return
	}

	stepped := false
	switch cmd.Kind {
	case route.KindTurn:
		// Facing only: no position change, no trigger re-evaluation.
		a.Direction = cmd.Direction
		z.markDirty(a.ID)
		r.remaining = 0
	case route.KindStep:
		z.stepBy(a, cmd.Direction, a.Speed)
		stepped = true
		r.remaining--
	case route.KindTileStep:
		moved := z.stepTileAligned(a, cmd.Direction)
		stepped = true
		// A fully blocked step degrades to a clamp and finishes the command
		// rather than spinning against the wall.
		if z.axisAligned(a, cmd.Direction) || !moved {
			r.remaining--
		}
	case route.KindTowardTarget, route.KindAwayFromTarget:
		dir, ok := z.relativeDirection(a, cmd.TargetID, cmd.Kind == route.KindAwayFromTarget)
		if ok {
			z.stepBy(a, dir, a.Speed)
			stepped = true
		}
		r.remaining = 0
	}

	if r.remaining <= 0 && !r.advance() {
		z.completeRoute(a, nil)
		return
	}
	if stepped {
		a.idleTicks = a.Frequency
	}
}

func (z *Zone) completeRoute(a *Actor, err error) {
	if a.route == nil {
		return
	}
	a.route.finish(err)
	a.route = nil
}

// stepBy displaces the actor by dist pixels along dir, clamping each axis
// independently against map edges and the collision layers. Partial movement
// is allowed: a blocked axis clamps to the boundary while the other axis may
// still advance. Returns whether any displacement was committed.
func (z *Zone) stepBy(a *Actor, dir geom.Direction, dist float64) bool {
	a.Direction = dir
	z.markDirty(a.ID)

	dx, dy := dir.Delta()
	deltaX := dx * dist
	deltaY := dy * dist

	oldBounds := a.MaxBounds()

	newX := clampCoord(a.X+deltaX, 0, z.def.PixelWidth()-a.HitboxW)
	if deltaX != 0 {
		newX = z.resolveAxisX(a, newX, deltaX)
	}
	newY := clampCoord(a.Y+deltaY, 0, z.def.PixelHeight()-a.HitboxH)
	if deltaY != 0 {
		newY = z.resolveAxisY(a, newX, newY, deltaY)
	}

	moved := newX != a.X || newY != a.Y
	a.X = newX
	a.Y = newY
	if moved {
		z.commitMove(a, oldBounds)
	}
	return moved
}

// stepTileAligned performs one step clamped so the moving axis never
// overshoots the next tile boundary, regardless of speed.
func (z *Zone) stepTileAligned(a *Actor, dir geom.Direction) bool {
	dx, dy := dir.Delta()
	var stepLen float64
	if dx != 0 {
		stepLen = distanceToNextMultiple(a.X, float64(z.def.TileWidth), dx)
	} else {
		stepLen = distanceToNextMultiple(a.Y, float64(z.def.TileHeight), dy)
	}
	if a.Speed < stepLen {
		stepLen = a.Speed
	}
	return z.stepBy(a, dir, stepLen)
}

func (z *Zone) axisAligned(a *Actor, dir geom.Direction) bool {
	dx, _ := dir.Delta()
	if dx != 0 {
		return math.Mod(a.X, float64(z.def.TileWidth)) == 0
	}
	return math.Mod(a.Y, float64(z.def.TileHeight)) == 0
}

// distanceToNextMultiple is the distance from v to the next multiple of dim
// in the direction of sign. A position already on a multiple is a full tile
// away from the next one.
func distanceToNextMultiple(v, dim, sign float64) float64 {
	if sign > 0 {
		return math.Floor(v/dim)*dim + dim - v
	}
	return v - (math.Ceil(v/dim)*dim - dim)
}

// relativeDirection derives the facing for toward/away commands: the axis
// with greater absolute distance to the target wins, ties go to the y-axis.
func (z *Zone) relativeDirection(a *Actor, targetID string, away bool) (geom.Direction, bool) {
	t, ok := z.actors[targetID]
	if !ok {
		return geom.None, false
	}
	dx := t.X - a.X
	dy := t.Y - a.Y
	var dir geom.Direction
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			dir = geom.Right
		} else {
			dir = geom.Left
		}
	} else {
		if dy > 0 {
			dir = geom.Down
		} else {
			dir = geom.Up
		}
	}
	if away {
		dir = dir.Opposite()
	}
	return dir, true
}

// resolveAxisX applies horizontal movement while stopping at the edge of any
// blocked tile the hitbox would cross.
func (z *Zone) resolveAxisX(a *Actor, proposed, delta float64) float64 {
	rowLo, rowHi := tileRange(a.Y, a.Y+a.HitboxH, z.def.TileHeight)
	tw := float64(z.def.TileWidth)
	lo := math.Min(a.X, proposed)
	hi := math.Max(a.X, proposed) + a.HitboxW
	colLo, colHi := tileRange(lo, hi, z.def.TileWidth)
	for col := colLo; col <= colHi; col++ {
		if !z.anyBlockedInRows(col, rowLo, rowHi) {
			continue
		}
		tileMinX := float64(col) * tw
		if delta > 0 {
			boundary := tileMinX - a.HitboxW
			if a.X <= boundary && proposed > boundary {
				proposed = boundary
			}
		} else {
			boundary := tileMinX + tw
			if a.X >= boundary && proposed < boundary {
				proposed = boundary
			}
		}
	}
	return proposed
}

// resolveAxisY applies vertical movement while stopping at blocked tile
// edges, using the already-resolved horizontal position.
func (z *Zone) resolveAxisY(a *Actor, resolvedX, proposed, delta float64) float64 {
	colLo, colHi := tileRange(resolvedX, resolvedX+a.HitboxW, z.def.TileWidth)
	th := float64(z.def.TileHeight)
	lo := math.Min(a.Y, proposed)
	hi := math.Max(a.Y, proposed) + a.HitboxH
	rowLo, rowHi := tileRange(lo, hi, z.def.TileHeight)
	for row := rowLo; row <= rowHi; row++ {
		if !z.anyBlockedInCols(row, colLo, colHi) {
			continue
		}
		tileMinY := float64(row) * th
		if delta > 0 {
			boundary := tileMinY - a.HitboxH
			if a.Y <= boundary && proposed > boundary {
				proposed = boundary
			}
		} else {
			boundary := tileMinY + th
			if a.Y >= boundary && proposed < boundary {
				proposed = boundary
			}
		}
	}
	return proposed
}

func (z *Zone) anyBlockedInRows(col, rowLo, rowHi int) bool {
	for row := rowLo; row <= rowHi; row++ {
		if z.blockedCell(col, row) {
			return true
		}
	}
	return false
}

func (z *Zone) anyBlockedInCols(row, colLo, colHi int) bool {
	for col := colLo; col <= colHi; col++ {
		if z.blockedCell(col, row) {
			return true
		}
	}
	return false
}

// commitMove finishes one committed step: grid update, move hook, trigger
// re-evaluation for the mover and for neighbors whose overlap against the
// mover's shapes may have changed.
func (z *Zone) commitMove(a *Actor, oldBounds geom.Rect) {
	newBounds := a.MaxBounds()
	z.grid.Upsert(a.ID, newBounds)
	z.markDirty(a.ID)
	z.hooks.OnMove(a)
	z.evaluateTriggers(a)
	z.evaluateNeighbors(a, oldBounds.Union(newBounds))
}
