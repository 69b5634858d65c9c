package zone

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/grid"
	"tilerealm.gg/internal/sim/route"
)

type Config struct {
	ID          string
	TickRateHz  int
	MaxRouteLen int
	// Grid cell side in tiles; the pixel cell size is fixed at load time.
	GridCellTiles int
}

// Zone is the single-threaded authoritative simulation of one loaded map.
// All state must be accessed only from the zone loop goroutine; external
// callers go through the Request* methods or the inbox.
type Zone struct {
	cfg Config
	def mapsource.MapDef

	hooks Hooks

	tick atomic.Uint64

	layers []layerState

	grid    *grid.Grid
	actors  map[string]*Actor
	events  map[string]*Actor // registry key -> live event actor
	clients map[string]*clientState

	// All trigger shapes (static first), in registration order.
	shapes    []*Shape
	shapeByID map[string]*Shape

	// Previous overlap set per actor id, as of the last evaluation.
	overlaps map[string]map[string]struct{}

	// Per-tick dirty state, flushed at the end of step.
	dirtyActors map[string]struct{}
	tileEdits   []protocol.TileEdit
	transitions []protocol.ShapeTransition
	joinedIDs   []string
	leftIDs     []string

	inbox    chan ActionEnvelope
	join     chan JoinRequest
	leave    chan string
	stop     chan struct{}
	stopOnce sync.Once

	routeReq       chan routeReq
	spawnEventReq  chan spawnEventReq
	removeEventReq chan removeEventReq
	eventReq       chan eventReq
	eventShapeReq  chan eventShapeReq
	setTileReq     chan setTileReq
	attachShapeReq chan attachShapeReq
	maxShapeReq    chan maxShapeReq
	changeMapReq   chan changeMapReq
	snapshotReq    chan snapshotReq

	nextPlayerNum atomic.Uint64
	nextEventNum  atomic.Uint64
	nextShapeNum  atomic.Uint64

	// Optional logger (may be nil). Implemented in internal/persistence/log.
	tickLogger TickLogger
}

type clientState struct {
	Out chan []byte
}

// ActionEnvelope is a fire-and-forget route start from the transport layer.
type ActionEnvelope struct {
	ActorID  string
	Commands []route.Command
}

// JoinRequest adds a player actor to the map.
type JoinRequest struct {
	Name string
	X    float64
	Y    float64
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	ActorID string
	Err     string
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry records every committed mutation of one tick.
type TickLogEntry struct {
	MapID       string                     `json:"map_id"`
	Tick        uint64                     `json:"tick"`
	Moves       []protocol.ActorDelta      `json:"moves,omitempty"`
	Tiles       []protocol.TileEdit        `json:"tiles,omitempty"`
	Transitions []protocol.ShapeTransition `json:"transitions,omitempty"`
	Joins       []string                   `json:"joins,omitempty"`
	Leaves      []string                   `json:"leaves,omitempty"`
}

func New(cfg Config, def mapsource.MapDef, hooks Hooks) (*Zone, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = def.ID
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 60
	}
	if cfg.MaxRouteLen <= 0 {
		cfg.MaxRouteLen = 256
	}
	if cfg.GridCellTiles <= 0 {
		cfg.GridCellTiles = 1
	}
	if hooks == nil {
		hooks = NopHooks{}
	}

	z := &Zone{
		cfg:   cfg,
		def:   def,
		hooks: hooks,

		layers: newLayerStates(def),

		grid:    grid.New(float64(cfg.GridCellTiles * def.TileWidth)),
		actors:  map[string]*Actor{},
		events:  map[string]*Actor{},
		clients: map[string]*clientState{},

		shapeByID: map[string]*Shape{},
		overlaps:  map[string]map[string]struct{}{},

		dirtyActors: map[string]struct{}{},

		inbox: make(chan ActionEnvelope, 256),
		join:  make(chan JoinRequest, 64),
		leave: make(chan string, 64),
		stop:  make(chan struct{}),

		routeReq:       make(chan routeReq, 64),
		spawnEventReq:  make(chan spawnEventReq, 16),
		removeEventReq: make(chan removeEventReq, 16),
		eventReq:       make(chan eventReq, 16),
		eventShapeReq:  make(chan eventShapeReq, 16),
		setTileReq:     make(chan setTileReq, 16),
		attachShapeReq: make(chan attachShapeReq, 16),
		maxShapeReq:    make(chan maxShapeReq, 16),
		changeMapReq:   make(chan changeMapReq, 16),
		snapshotReq:    make(chan snapshotReq, 4),
	}

	// Install static trigger shapes in declaration order.
	for _, sd := range def.Shapes {
		z.installStaticShape(sd)
	}

	// Instantiate declared scenario events exactly once.
	for _, ed := range def.Events {
		if ed.Mode != mapsource.ModeScenario {
			continue
		}
		z.spawnEvent(ed, ed.X, ed.Y, mapsource.ModeScenario)
	}

	return z, nil
}

func (z *Zone) ID() string            { return z.cfg.ID }
func (z *Zone) Def() mapsource.MapDef { return z.def }
func (z *Zone) CurrentTick() uint64   { return z.tick.Load() }
func (z *Zone) TickRateHz() int       { return z.cfg.TickRateHz }

func (z *Zone) SetTickLogger(l TickLogger) { z.tickLogger = l }

func (z *Zone) Inbox() chan<- ActionEnvelope { return z.inbox }
func (z *Zone) Join() chan<- JoinRequest     { return z.join }
func (z *Zone) Leave() chan<- string         { return z.leave }

// Run drives the zone loop until the context is cancelled or Stop is called.
func (z *Zone) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(z.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-z.stop:
			return nil
		case req := <-z.join:
			z.handleJoin(req)
		case id := <-z.leave:
			z.handleLeave(id)
		case env := <-z.inbox:
			z.startRoute(env.ActorID, env.Commands, nil)
		case req := <-z.routeReq:
			z.handleRouteReq(req)
		case req := <-z.spawnEventReq:
			z.handleSpawnEvent(req)
		case req := <-z.removeEventReq:
			z.handleRemoveEvent(req)
		case req := <-z.eventReq:
			z.handleEventReq(req)
		case req := <-z.eventShapeReq:
			z.handleEventShapeReq(req)
		case req := <-z.setTileReq:
			z.handleSetTile(req)
		case req := <-z.attachShapeReq:
			z.handleAttachShape(req)
		case req := <-z.maxShapeReq:
			z.handleMaxShape(req)
		case req := <-z.changeMapReq:
			z.handleChangeMap(req)
		case req := <-z.snapshotReq:
			z.handleSnapshot(req)
		case <-ticker.C:
			z.step()
		}
	}
}

func (z *Zone) Stop() { z.stopOnce.Do(func() { close(z.stop) }) }

// step advances every in-progress route by one atomic command step, then
// makes the tick's committed mutations observable to clients and the logger.
func (z *Zone) step() {
	z.tick.Add(1)
	z.advanceRoutes()
	z.flushFrame()
}

func (z *Zone) sortedActors() []*Actor {
	ids := make([]string, 0, len(z.actors))
	for id := range z.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Actor, len(ids))
	for i, id := range ids {
		out[i] = z.actors[id]
	}
	return out
}

func (z *Zone) handleJoin(req JoinRequest) {
	resp := JoinResponse{}
	defer func() {
		if req.Resp != nil {
			select {
			case req.Resp <- resp:
			default:
			}
		}
	}()

	name := req.Name
	if name == "" {
		name = "player"
	}
	id := fmt.Sprintf("P%d", z.nextPlayerNum.Add(1))
	hitW := float64(z.def.TileWidth)
	hitH := float64(z.def.TileHeight)
	a := &Actor{
		ID:        id,
		Name:      name,
		X:         clampCoord(req.X, 0, z.def.PixelWidth()-hitW),
		Y:         clampCoord(req.Y, 0, z.def.PixelHeight()-hitH),
		HitboxW:   hitW,
		HitboxH:   hitH,
		Speed:     3,
		Direction: 3, // facing down
		kind:      kindPlayer,
	}
	z.actors[id] = a
	z.grid.Upsert(id, a.MaxBounds())
	if req.Out != nil {
		z.clients[id] = &clientState{Out: req.Out}
	}
	z.joinedIDs = append(z.joinedIDs, id)
	z.markDirty(id)
	z.hooks.OnJoinMap(a)
	z.evaluateTriggers(a)

	resp.ActorID = id
}

// handleLeave force-exits overlapped shapes, then drops the actor from the
// grid and registries. Interrupted routes fail with a leave error.
func (z *Zone) handleLeave(id string) {
	a, ok := z.actors[id]
	if !ok {
		return
	}
	z.removeActor(a, true)
}

func (z *Zone) removeActor(a *Actor, fireLeaveHook bool) {
	if a.route != nil {
		a.route.finish(fmt.Errorf("actor %s left the map", a.ID))
		a.route = nil
	}
	z.forceExit(a)
	if fireLeaveHook && a.kind == kindPlayer {
		z.hooks.OnLeaveMap(a)
	}
	z.grid.Remove(a.ID)
	delete(z.actors, a.ID)
	delete(z.events, a.ID)
	delete(z.clients, a.ID)
	z.leftIDs = append(z.leftIDs, a.ID)
	delete(z.dirtyActors, a.ID)
}

func clampCoord(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
