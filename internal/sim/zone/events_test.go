package zone

import (
	"testing"

	"tilerealm.gg/internal/mapsource"
)

func TestScenarioEventSpawnsOnceAtLoad(t *testing.T) {
	hooks := &hookRecorder{}
	def := testDef()
	def.Events = []mapsource.EventDef{{
		Name: "guard", Mode: mapsource.ModeScenario, X: 60, Y: 60,
	}}
	z := newTestZone(t, def, hooks)

	a, ok := z.events["guard"]
	if !ok {
		t.Fatalf("scenario event not instantiated at load")
	}
	if a.ID != "guard" || !a.IsEvent() {
		t.Fatalf("event identity: id=%s event=%v", a.ID, a.IsEvent())
	}
	if got := hooks.count("init:guard"); got != 1 {
		t.Fatalf("OnEventInit count: got %d want 1", got)
	}

	// A second instantiation of the same scenario definition is refused.
	if _, ok := z.spawnEvent(def.Events[0], 0, 0, mapsource.ModeScenario); ok {
		t.Fatalf("duplicate scenario spawn accepted")
	}
	if len(z.events) != 1 {
		t.Fatalf("events registry: got %d want 1", len(z.events))
	}
}

func TestSpawnModeMismatchIsNoOp(t *testing.T) {
	hooks := &hookRecorder{}
	z := newTestZone(t, testDef(), hooks)
	def := mapsource.EventDef{Name: "npc", Mode: mapsource.ModeScenario}

	a, ok := z.spawnEvent(def, 0, 0, mapsource.ModeShared)
	if ok || a != nil {
		t.Fatalf("mode mismatch spawned an actor")
	}
	if len(z.events) != 0 || len(z.actors) != 0 {
		t.Fatalf("mismatch left registry entries behind")
	}
	if got := hooks.count("init:"); got != 0 {
		t.Fatalf("OnEventInit fired for refused spawn")
	}
}

func TestCreateDynamicEventsSkipsMismatches(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	created := z.createDynamicEvents([]mapsource.EventDef{
		{Name: "slime", Mode: mapsource.ModeShared, X: 30, Y: 30},
		{Name: "boss", Mode: mapsource.ModeScenario, X: 60, Y: 60},
		{Name: "bat", Mode: mapsource.ModeShared, X: 90, Y: 90},
	})
	if len(created) != 2 {
		t.Fatalf("created: got %d want 2", len(created))
	}
	if created[0].ID != "EV1" || created[1].ID != "EV2" {
		t.Fatalf("ids: got %s, %s want EV1, EV2", created[0].ID, created[1].ID)
	}
	if _, ok := z.events["boss"]; ok {
		t.Fatalf("scenario definition created through the dynamic path")
	}
}

func TestRemoveEvent(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	created := z.createDynamicEvents([]mapsource.EventDef{
		{Name: "slime", Mode: mapsource.ModeShared, X: 30, Y: 30},
	})
	id := created[0].ID

	if !z.removeEvent(id) {
		t.Fatalf("removeEvent(%s) = false for a live event", id)
	}
	if _, ok := z.actors[id]; ok {
		t.Fatalf("removed event still in actors")
	}
	if z.grid.Contains(id) {
		t.Fatalf("removed event still in spatial grid")
	}
	if z.removeEvent(id) {
		t.Fatalf("removeEvent(%s) = true after removal", id)
	}
	if z.removeEvent("nope") {
		t.Fatalf("removeEvent accepted an unknown id")
	}
}

func TestEventInheritsShapeProperties(t *testing.T) {
	def := testDef()
	def.Shapes = []mapsource.ShapeDef{{
		Name: "chest", X: 60, Y: 60, Width: 30, Height: 30,
		Properties: mapsource.PropertyBag{"loot": "gold", "locked": true},
	}}
	z := newTestZone(t, def, nil)

	created := z.createDynamicEvents([]mapsource.EventDef{{
		Name: "chest", Mode: mapsource.ModeShared, X: 60, Y: 60,
		Properties: mapsource.PropertyBag{"loot": "silver", "respawns": true},
	}})
	if len(created) != 1 {
		t.Fatalf("created: got %d want 1", len(created))
	}
	props := created[0].Properties
	// The placed shape's values win over the definition's defaults.
	if v, _ := props.String("loot"); v != "gold" {
		t.Fatalf("loot: got %q want gold", v)
	}
	if v, _ := props.Bool("locked"); !v {
		t.Fatalf("locked property not inherited")
	}
	if v, _ := props.Bool("respawns"); !v {
		t.Fatalf("definition-only property lost in merge")
	}
}

func TestEventDefaults(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	created := z.createDynamicEvents([]mapsource.EventDef{
		{Name: "slime", Mode: mapsource.ModeShared, X: -50, Y: 500},
	})
	a := created[0]
	if a.HitboxW != 30 || a.HitboxH != 30 {
		t.Fatalf("hitbox defaults: got %vx%v want tile size", a.HitboxW, a.HitboxH)
	}
	if a.Speed != 1 {
		t.Fatalf("speed default: got %v want 1", a.Speed)
	}
	if a.X != 0 || a.Y != 270 {
		t.Fatalf("spawn clamp: got (%v, %v) want (0, 270)", a.X, a.Y)
	}
}

func TestSetTileDescriptors(t *testing.T) {
	def := testDef()
	def.Layers = append(def.Layers, mapsource.LayerDef{Name: "detail", Z: 1})
	z := newTestZone(t, def, nil)

	descs := z.setTile(2, 3, "ground", mapsource.Tile{ID: 9, Collision: true})
	if len(descs) != 1 || descs[0].Layer != "ground" || descs[0].Tile != 9 || !descs[0].Collision {
		t.Fatalf("descriptors: %+v", descs)
	}
	if !z.blockedCell(2, 3) {
		t.Fatalf("collision edit not visible to movement")
	}

	descs = z.setTile(2, 3, LayerSelectorAll, mapsource.Tile{ID: 4})
	if len(descs) != 2 {
		t.Fatalf("wildcard selector: got %d descriptors want 2", len(descs))
	}
	if z.blockedCell(2, 3) {
		t.Fatalf("collision not cleared by overwrite")
	}

	if descs = z.setTile(-1, 0, "ground", mapsource.Tile{}); descs != nil {
		t.Fatalf("out-of-range edit accepted: %+v", descs)
	}
	if descs = z.setTile(10, 0, "ground", mapsource.Tile{}); descs != nil {
		t.Fatalf("out-of-range edit accepted: %+v", descs)
	}
}

func TestChangeMapGatedByHook(t *testing.T) {
	hooks := &hookRecorder{denyChange: true}
	z := newTestZone(t, testDef(), hooks)
	a := joinAt(t, z, 0, 0)

	resp := make(chan changeMapResp, 1)
	z.handleChangeMap(changeMapReq{ActorID: a.ID, TargetMapID: "dungeon", Resp: resp})
	if r := <-resp; r.Allowed || r.Err != nil {
		t.Fatalf("denied change: %+v", r)
	}
	if _, ok := z.actors[a.ID]; !ok {
		t.Fatalf("denied change removed the actor")
	}

	hooks.denyChange = false
	z.handleChangeMap(changeMapReq{ActorID: a.ID, TargetMapID: "dungeon", Resp: resp})
	if r := <-resp; !r.Allowed || r.Err != nil {
		t.Fatalf("allowed change: %+v", r)
	}
	if _, ok := z.actors[a.ID]; ok {
		t.Fatalf("allowed change left the actor on the map")
	}

	z.handleChangeMap(changeMapReq{ActorID: "ghost", TargetMapID: "dungeon", Resp: resp})
	if r := <-resp; r.Err == nil {
		t.Fatalf("unknown actor accepted")
	}
}

func TestEventShapeLookup(t *testing.T) {
	def := testDef()
	def.Shapes = []mapsource.ShapeDef{{Name: "portal", X: 60, Y: 90, Width: 30, Height: 60}}
	z := newTestZone(t, def, nil)

	resp := make(chan eventShapeResp, 1)
	z.handleEventShapeReq(eventShapeReq{Name: "portal", Resp: resp})
	r := <-resp
	if !r.OK {
		t.Fatalf("portal not found")
	}
	if r.Info.Rect.MinX != 60 || r.Info.Rect.MaxY != 150 {
		t.Fatalf("rect: %+v", r.Info.Rect)
	}

	z.handleEventShapeReq(eventShapeReq{Name: "missing", Resp: resp})
	if r = <-resp; r.OK {
		t.Fatalf("missing shape reported found")
	}
}
