package zone

import (
	"fmt"
	"testing"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/sim/geom"
)

// hookRecorder logs every callback in arrival order so tests can assert both
// counts and relative ordering.
type hookRecorder struct {
	NopHooks
	log        []string
	denyChange bool
}

func (h *hookRecorder) OnJoinMap(a *Actor)  { h.log = append(h.log, "join:"+a.ID) }
func (h *hookRecorder) OnLeaveMap(a *Actor) { h.log = append(h.log, "leave:"+a.ID) }
func (h *hookRecorder) OnEventInit(a *Actor) {
	h.log = append(h.log, "init:"+a.ID)
}
func (h *hookRecorder) OnInShape(a *Actor, s *Shape) {
	h.log = append(h.log, fmt.Sprintf("in:%s:%s", a.ID, s.Name))
}
func (h *hookRecorder) OnOutShape(a *Actor, s *Shape) {
	h.log = append(h.log, fmt.Sprintf("out:%s:%s", a.ID, s.Name))
}
func (h *hookRecorder) OnMove(a *Actor) { h.log = append(h.log, "move:"+a.ID) }
func (h *hookRecorder) CanChangeMap(a *Actor, target string) bool {
	h.log = append(h.log, fmt.Sprintf("change:%s:%s", a.ID, target))
	return !h.denyChange
}

func (h *hookRecorder) count(prefix string) int {
	n := 0
	for _, e := range h.log {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// testDef builds a 10x10 map of 30px tiles with one empty ground layer.
func testDef() mapsource.MapDef {
	return mapsource.MapDef{
		ID:         "testmap",
		Width:      10,
		Height:     10,
		TileWidth:  30,
		TileHeight: 30,
		Layers:     []mapsource.LayerDef{{Name: "ground", Z: 0}},
	}
}

func newTestZone(t *testing.T, def mapsource.MapDef, hooks Hooks) *Zone {
	t.Helper()
	z, err := New(Config{TickRateHz: 60, MaxRouteLen: 16}, def, hooks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return z
}

func joinAt(t *testing.T, z *Zone, x, y float64) *Actor {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	z.handleJoin(JoinRequest{Name: "tester", X: x, Y: y, Resp: resp})
	r := <-resp
	if r.Err != "" {
		t.Fatalf("join: %s", r.Err)
	}
	return z.actors[r.ActorID]
}

// runRoute drives the loop until the actor's route drains, bounded so a
// stuck route fails the test instead of hanging it.
func runRoute(t *testing.T, z *Zone, a *Actor) int {
	t.Helper()
	for ticks := 0; ticks < 1000; ticks++ {
		if a.route == nil {
			return ticks
		}
		z.step()
	}
	t.Fatalf("route on %s did not finish within 1000 ticks", a.ID)
	return 0
}

func TestJoinAssignsSequentialIDs(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	b := joinAt(t, z, 60, 0)
	if a.ID != "P1" || b.ID != "P2" {
		t.Fatalf("ids: got %s, %s want P1, P2", a.ID, b.ID)
	}
	if a.HitboxW != 30 || a.HitboxH != 30 {
		t.Fatalf("hitbox: got %vx%v want tile size", a.HitboxW, a.HitboxH)
	}
}

func TestJoinClampsSpawnToMap(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 5000, -20)
	if a.X != 270 || a.Y != 0 {
		t.Fatalf("spawn: got (%v, %v) want (270, 0)", a.X, a.Y)
	}
}

func TestLeaveInterruptsRoute(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	done := make(chan error, 1)
	z.startRoute(a.ID, stepRight(5), done)
	z.handleLeave(a.ID)
	if err := <-done; err == nil {
		t.Fatalf("route on a removed actor should fail")
	}
	if _, ok := z.actors[a.ID]; ok {
		t.Fatalf("actor still registered after leave")
	}
	if z.grid.Contains(a.ID) {
		t.Fatalf("actor still in spatial grid after leave")
	}
}

func TestFlushFrameBroadcastsAndClears(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	out := make(chan []byte, 4)
	resp := make(chan JoinResponse, 1)
	z.handleJoin(JoinRequest{Name: "watcher", X: 0, Y: 0, Out: out, Resp: resp})
	r := <-resp

	z.step()
	select {
	case b := <-out:
		if len(b) == 0 {
			t.Fatalf("empty frame payload")
		}
	default:
		t.Fatalf("no frame broadcast after join tick")
	}
	if len(z.dirtyActors) != 0 || z.joinedIDs != nil {
		t.Fatalf("dirty state not cleared after flush")
	}

	// A quiet tick produces no frame.
	z.step()
	select {
	case <-out:
		t.Fatalf("frame broadcast on a tick with no mutations")
	default:
	}
	_ = r
}

func TestSnapshotRoundtripsState(t *testing.T) {
	def := testDef()
	def.Events = []mapsource.EventDef{{
		Name: "guard", Mode: mapsource.ModeScenario, X: 60, Y: 60,
	}}
	z := newTestZone(t, def, nil)
	joinAt(t, z, 0, 0)
	z.setTile(3, 3, "ground", mapsource.Tile{ID: 7, Collision: true})
	z.step()

	s := z.buildSnapshot()
	if s.Header.MapID != "testmap" || s.Header.Version != 1 {
		t.Fatalf("header: %+v", s.Header)
	}
	if len(s.Actors) != 2 {
		t.Fatalf("actors in snapshot: got %d want 2", len(s.Actors))
	}

	z2 := newTestZone(t, testDef(), nil)
	z2.ApplySnapshot(s)
	if _, ok := z2.events["guard"]; !ok {
		t.Fatalf("event not restored from snapshot")
	}
	if _, ok := z2.actors["P1"]; ok {
		t.Fatalf("player session restored from snapshot")
	}
	if !z2.blockedCell(3, 3) {
		t.Fatalf("tile edit not restored from snapshot")
	}
}

func TestSnapshotRestoresScenarioEventShapes(t *testing.T) {
	def := testDef()
	def.Events = []mapsource.EventDef{{
		Name: "guard", Mode: mapsource.ModeScenario, X: 60, Y: 60,
	}}
	z := newTestZone(t, def, nil)
	guard := z.events["guard"]
	z.attachShape(guard, "aura", 90, 90, geom.Center, mapsource.PropertyBag{"radius": int64(3)})
	s := z.buildSnapshot()

	z2 := newTestZone(t, def, nil)
	z2.ApplySnapshot(s)
	restored, ok := z2.events["guard"]
	if !ok {
		t.Fatalf("event not restored from snapshot")
	}
	if len(restored.Shapes) != 1 {
		t.Fatalf("shapes on restored event: got %d want 1", len(restored.Shapes))
	}
	sh := restored.Shapes[0]
	if sh.Name != "aura" || sh.Width != 90 || sh.Positioning != geom.Center {
		t.Fatalf("restored shape: %+v", sh)
	}
	if got := sh.Properties["radius"]; got != int64(3) {
		t.Fatalf("restored shape properties: got %v want 3", got)
	}
	want := guard.MaxBounds()
	if got := restored.MaxBounds(); got != want {
		t.Fatalf("restored bounds: got %+v want %+v", got, want)
	}
}
