package zone

import (
	"context"
	"errors"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/persistence/snapshot"
	"tilerealm.gg/internal/sim/geom"
	"tilerealm.gg/internal/sim/route"
)

// ErrZoneStopped is returned when a request races zone shutdown.
var ErrZoneStopped = errors.New("zone stopped")

// ErrUnknownActor is returned for requests naming an actor not on this map.
var ErrUnknownActor = errors.New("unknown actor")

// EventRef is a value snapshot of a created event, safe to hold off-loop.
type EventRef struct {
	ID   string
	Name string
	X    float64
	Y    float64
	Mode mapsource.Mode
}

// ActorInfo is a value snapshot of a live actor.
type ActorInfo struct {
	ID         string
	Name       string
	X          float64
	Y          float64
	Z          int
	Direction  geom.Direction
	Event      bool
	Mode       mapsource.Mode
	Properties mapsource.PropertyBag
}

// ShapeInfo is a value snapshot of a registered shape.
type ShapeInfo struct {
	Name       string
	OwnerID    string
	Rect       geom.Rect
	Properties mapsource.PropertyBag
}

// AttachSpec declares a dynamic shape to attach to an actor.
type AttachSpec struct {
	Name        string
	Width       float64
	Height      float64
	Positioning geom.Positioning
	Properties  mapsource.PropertyBag
}

type routeReq struct {
	ActorID  string
	Commands []route.Command
	Done     chan error
}

type spawnEventReq struct {
	Defs []mapsource.EventDef
	Resp chan []EventRef
}

type removeEventReq struct {
	ID   string
	Resp chan bool
}

type eventReq struct {
	ID   string
	Resp chan eventResp
}

type eventResp struct {
	Info ActorInfo
	OK   bool
}

type eventShapeReq struct {
	Name string
	Resp chan eventShapeResp
}

type eventShapeResp struct {
	Info ShapeInfo
	OK   bool
}

type setTileReq struct {
	X, Y  int
	Layer string
	Tile  mapsource.Tile
	Resp  chan []TileDescriptor
}

type attachShapeReq struct {
	ActorID string
	Spec    AttachSpec
	Resp    chan error
}

type maxShapeReq struct {
	ActorID string
	Resp    chan maxShapeResp
}

type maxShapeResp struct {
	Rect geom.Rect
	Err  error
}

type changeMapReq struct {
	ActorID     string
	TargetMapID string
	Resp        chan changeMapResp
}

type changeMapResp struct {
	Allowed bool
	Err     error
}

type snapshotReq struct {
	Resp chan snapshot.SnapshotV1
}

// RequestJoin adds a player actor from off-loop and waits for its id.
func (z *Zone) RequestJoin(ctx context.Context, name string, x, y float64, out chan []byte) (string, error) {
	resp := make(chan JoinResponse, 1)
	req := JoinRequest{Name: name, X: x, Y: y, Out: out, Resp: resp}
	select {
	case z.join <- req:
	case <-z.stop:
		return "", ErrZoneStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return "", errors.New(r.Err)
		}
		return r.ActorID, nil
	case <-z.stop:
		return "", ErrZoneStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RequestLeave removes a player actor from off-loop. The removal itself runs
// on the zone goroutine; unknown ids are ignored there.
func (z *Zone) RequestLeave(ctx context.Context, actorID string) error {
	select {
	case z.leave <- actorID:
		return nil
	case <-z.stop:
		return ErrZoneStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestMoveRoute queues a parsed route on the actor and waits until the
// whole sequence completes or is interrupted. Steps are applied one per tick
// on the zone goroutine.
func (z *Zone) RequestMoveRoute(ctx context.Context, actorID string, cmds []route.Command) error {
	done := make(chan error, 1)
	req := routeReq{ActorID: actorID, Commands: cmds, Done: done}
	select {
	case z.routeReq <- req:
	case <-z.stop:
		return ErrZoneStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-z.stop:
		return ErrZoneStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestCreateDynamicEvents spawns shared-mode events. Definitions whose
// declared mode mismatches are skipped, not errors.
func (z *Zone) RequestCreateDynamicEvents(ctx context.Context, defs ...mapsource.EventDef) ([]EventRef, error) {
	resp := make(chan []EventRef, 1)
	select {
	case z.spawnEventReq <- spawnEventReq{Defs: defs, Resp: resp}:
	case <-z.stop:
		return nil, ErrZoneStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case refs := <-resp:
		return refs, nil
	case <-z.stop:
		return nil, ErrZoneStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestRemoveEvent reports whether an event existed under id.
func (z *Zone) RequestRemoveEvent(ctx context.Context, id string) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case z.removeEventReq <- removeEventReq{ID: id, Resp: resp}:
	case <-z.stop:
		return false, ErrZoneStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-z.stop:
		return false, ErrZoneStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// RequestEvent looks up a live event by registry id.
func (z *Zone) RequestEvent(ctx context.Context, id string) (ActorInfo, bool, error) {
	resp := make(chan eventResp, 1)
	select {
	case z.eventReq <- eventReq{ID: id, Resp: resp}:
	case <-z.stop:
		return ActorInfo{}, false, ErrZoneStopped
	case <-ctx.Done():
		return ActorInfo{}, false, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Info, r.OK, nil
	case <-z.stop:
		return ActorInfo{}, false, ErrZoneStopped
	case <-ctx.Done():
		return ActorInfo{}, false, ctx.Err()
	}
}

// RequestEventShape looks up a registered trigger shape by name.
func (z *Zone) RequestEventShape(ctx context.Context, name string) (ShapeInfo, bool, error) {
	resp := make(chan eventShapeResp, 1)
	select {
	case z.eventShapeReq <- eventShapeReq{Name: name, Resp: resp}:
	case <-z.stop:
		return ShapeInfo{}, false, ErrZoneStopped
	case <-ctx.Done():
		return ShapeInfo{}, false, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Info, r.OK, nil
	case <-z.stop:
		return ShapeInfo{}, false, ErrZoneStopped
	case <-ctx.Done():
		return ShapeInfo{}, false, ctx.Err()
	}
}

// RequestSetTile mutates one static layer cell and returns the affected
// descriptors. "*" selects every layer.
func (z *Zone) RequestSetTile(ctx context.Context, x, y int, layer string, tile mapsource.Tile) ([]TileDescriptor, error) {
	resp := make(chan []TileDescriptor, 1)
	select {
	case z.setTileReq <- setTileReq{X: x, Y: y, Layer: layer, Tile: tile, Resp: resp}:
	case <-z.stop:
		return nil, ErrZoneStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case descs := <-resp:
		return descs, nil
	case <-z.stop:
		return nil, ErrZoneStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestAttachShape attaches a dynamic trigger shape to an actor.
func (z *Zone) RequestAttachShape(ctx context.Context, actorID string, spec AttachSpec) error {
	resp := make(chan error, 1)
	select {
	case z.attachShapeReq <- attachShapeReq{ActorID: actorID, Spec: spec, Resp: resp}:
	case <-z.stop:
		return ErrZoneStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-z.stop:
		return ErrZoneStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestMaxShape returns the actor's current maximal bounding region.
func (z *Zone) RequestMaxShape(ctx context.Context, actorID string) (geom.Rect, error) {
	resp := make(chan maxShapeResp, 1)
	select {
	case z.maxShapeReq <- maxShapeReq{ActorID: actorID, Resp: resp}:
	case <-z.stop:
		return geom.Rect{}, ErrZoneStopped
	case <-ctx.Done():
		return geom.Rect{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Rect, r.Err
	case <-z.stop:
		return geom.Rect{}, ErrZoneStopped
	case <-ctx.Done():
		return geom.Rect{}, ctx.Err()
	}
}

// RequestChangeMap consults the CanChangeMap hook; when allowed, the actor is
// removed from this map with full leave semantics and the caller may join it
// to the target zone.
func (z *Zone) RequestChangeMap(ctx context.Context, actorID, targetMapID string) (bool, error) {
	resp := make(chan changeMapResp, 1)
	select {
	case z.changeMapReq <- changeMapReq{ActorID: actorID, TargetMapID: targetMapID, Resp: resp}:
	case <-z.stop:
		return false, ErrZoneStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Allowed, r.Err
	case <-z.stop:
		return false, ErrZoneStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// RequestSnapshot exports the zone's dynamic state.
func (z *Zone) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	select {
	case z.snapshotReq <- snapshotReq{Resp: resp}:
	case <-z.stop:
		return snapshot.SnapshotV1{}, ErrZoneStopped
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-z.stop:
		return snapshot.SnapshotV1{}, ErrZoneStopped
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}

// Loop-side handlers. Responses are buffered and never block the loop.

func (z *Zone) handleRouteReq(req routeReq) {
	z.startRoute(req.ActorID, req.Commands, req.Done)
}

func (z *Zone) handleSpawnEvent(req spawnEventReq) {
	actors := z.createDynamicEvents(req.Defs)
	refs := make([]EventRef, len(actors))
	for i, a := range actors {
		refs[i] = EventRef{ID: a.ID, Name: a.Name, X: a.X, Y: a.Y, Mode: a.mode}
	}
	req.Resp <- refs
}

func (z *Zone) handleRemoveEvent(req removeEventReq) {
	req.Resp <- z.removeEvent(req.ID)
}

func (z *Zone) handleEventReq(req eventReq) {
	a, ok := z.eventByID(req.ID)
	r := eventResp{OK: ok}
	if ok {
		r.Info = actorInfo(a)
	}
	req.Resp <- r
}

func (z *Zone) handleEventShapeReq(req eventShapeReq) {
	s, ok := z.shapeByName(req.Name)
	r := eventShapeResp{OK: ok}
	if ok {
		rect, live := z.shapeRect(s)
		if !live {
			r.OK = false
		} else {
			r.Info = ShapeInfo{Name: s.Name, OwnerID: s.OwnerID, Rect: rect, Properties: s.Properties}
		}
	}
	req.Resp <- r
}

func (z *Zone) handleSetTile(req setTileReq) {
	req.Resp <- z.setTile(req.X, req.Y, req.Layer, req.Tile)
}

func (z *Zone) handleAttachShape(req attachShapeReq) {
	a, ok := z.actors[req.ActorID]
	if !ok {
		req.Resp <- ErrUnknownActor
		return
	}
	z.attachShape(a, req.Spec.Name, req.Spec.Width, req.Spec.Height, req.Spec.Positioning, req.Spec.Properties)
	req.Resp <- nil
}

func (z *Zone) handleMaxShape(req maxShapeReq) {
	a, ok := z.actors[req.ActorID]
	if !ok {
		req.Resp <- maxShapeResp{Err: ErrUnknownActor}
		return
	}
	req.Resp <- maxShapeResp{Rect: a.MaxBounds()}
}

func (z *Zone) handleChangeMap(req changeMapReq) {
	a, ok := z.actors[req.ActorID]
	if !ok {
		req.Resp <- changeMapResp{Err: ErrUnknownActor}
		return
	}
	if !z.hooks.CanChangeMap(a, req.TargetMapID) {
		req.Resp <- changeMapResp{Allowed: false}
		return
	}
	z.removeActor(a, true)
	req.Resp <- changeMapResp{Allowed: true}
}

func actorInfo(a *Actor) ActorInfo {
	return ActorInfo{
		ID:         a.ID,
		Name:       a.Name,
		X:          a.X,
		Y:          a.Y,
		Z:          a.Z,
		Direction:  a.Direction,
		Event:      a.kind == kindEvent,
		Mode:       a.mode,
		Properties: a.Properties,
	}
}
