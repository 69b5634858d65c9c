package zone

import (
	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/sim/geom"
	"tilerealm.gg/internal/sim/route"
)

type actorKind int

const (
	kindPlayer actorKind = iota + 1
	kindEvent
)

// Actor is any positioned, movable entity on the map. Position is the
// hitbox's top-left corner in map pixels; Z is a layer index and takes no
// part in collision.
type Actor struct {
	ID   string
	Name string

	X float64
	Y float64
	Z int

	HitboxW   float64
	HitboxH   float64
	Speed     float64 // pixels per simulation step
	Frequency int     // idle ticks between autonomous steps
	Direction geom.Direction

	// Shapes attached to this actor, in attach order. They move with it.
	Shapes []*Shape

	Properties mapsource.PropertyBag

	kind actorKind
	mode mapsource.Mode // events only

	route     *activeRoute
	idleTicks int
}

func (a *Actor) IsEvent() bool { return a.kind == kindEvent }

// Mode reports the declared instantiation mode for event actors.
func (a *Actor) Mode() mapsource.Mode { return a.mode }

// HitboxRect is the actor's own collision rectangle at its current position.
func (a *Actor) HitboxRect() geom.Rect {
	return geom.HitboxRect(a.X, a.Y, a.HitboxW, a.HitboxH)
}

// MaxBounds is the smallest rectangle covering the hitbox and every attached
// shape. Recomputed on every call; never cached across a position change.
func (a *Actor) MaxBounds() geom.Rect {
	if len(a.Shapes) == 0 {
		return a.HitboxRect()
	}
	att := make([]geom.Attachment, len(a.Shapes))
	for i, s := range a.Shapes {
		att[i] = geom.Attachment{Width: s.Width, Height: s.Height, Positioning: s.Positioning}
	}
	return geom.MaxBounds(a.X, a.Y, a.HitboxW, a.HitboxH, att)
}

// Shape is a named trigger region: static (map-attached, fixed rectangle) or
// dynamic (actor-attached, moving with its owner).
type Shape struct {
	ID      string
	Name    string
	OwnerID string // empty for static map shapes

	// Static shapes: fixed absolute rectangle.
	Fixed geom.Rect

	// Attached shapes: geometry relative to the owner.
	Width       float64
	Height      float64
	Positioning geom.Positioning

	Properties mapsource.PropertyBag
}

func (s *Shape) static() bool { return s.OwnerID == "" }

type activeRoute struct {
	commands  []route.Command
	index     int
	remaining int // steps left in the current command
	done      chan<- error
}

func newActiveRoute(cmds []route.Command, done chan<- error) *activeRoute {
	r := &activeRoute{commands: cmds, done: done}
	if len(cmds) > 0 {
		r.remaining = cmds[0].Count
	}
	return r
}

func (r *activeRoute) current() *route.Command {
	if r.index >= len(r.commands) {
		return nil
	}
	return &r.commands[r.index]
}

// advance moves to the next command, returning false when the route drained.
func (r *activeRoute) advance() bool {
	r.index++
	if r.index >= len(r.commands) {
		return false
	}
	r.remaining = r.commands[r.index].Count
	return true
}

func (r *activeRoute) finish(err error) {
	if r.done != nil {
		r.done <- err
		r.done = nil
	}
}
