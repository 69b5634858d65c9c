package zone

import (
	"testing"

	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/sim/geom"
	"tilerealm.gg/internal/sim/route"
)

func stepRight(count int) []route.Command {
	return []route.Command{route.Step(geom.Right, count)}
}

// wallAt marks one ground tile as blocking.
func wallAt(z *Zone, col, row int) {
	z.setTile(col, row, "ground", mapsource.Tile{ID: 1, Collision: true})
	z.tileEdits = nil
}

func TestStepAdvancesBySpeedPerTick(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)

	done := make(chan error, 1)
	z.startRoute(a.ID, stepRight(2), done)
	ticks := runRoute(t, z, a)
	if err := <-done; err != nil {
		t.Fatalf("route: %v", err)
	}
	if a.X != 6 || a.Y != 0 {
		t.Fatalf("position: got (%v, %v) want (6, 0)", a.X, a.Y)
	}
	if ticks != 2 {
		t.Fatalf("ticks: got %d want 2", ticks)
	}
	if a.Direction != geom.Right {
		t.Fatalf("direction: got %v want %v", a.Direction, geom.Right)
	}
}

func TestStepClampsAtMapEdge(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 1, 0)

	z.startRoute(a.ID, []route.Command{route.Step(geom.Left, 1)}, nil)
	runRoute(t, z, a)
	if a.X != 0 {
		t.Fatalf("x: got %v want 0", a.X)
	}
}

func TestTileStepLandsOnBoundaryRegardlessOfSpeed(t *testing.T) {
	for _, speed := range []float64{3, 7, 30, 50} {
		z := newTestZone(t, testDef(), nil)
		a := joinAt(t, z, 0, 0)
		a.Speed = speed

		z.startRoute(a.ID, []route.Command{route.TileStep(geom.Right, 2)}, nil)
		runRoute(t, z, a)
		if a.X != 60 {
			t.Fatalf("speed %v: x got %v want 60", speed, a.X)
		}
	}
}

func TestTileStepNeverOvershootsBoundary(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	a.Speed = 7

	z.startRoute(a.ID, []route.Command{route.TileStep(geom.Right, 1)}, nil)
	prev := a.X
	for ticks := 0; a.route != nil && ticks < 100; ticks++ {
		z.step()
		if a.X > 30 {
			t.Fatalf("overshot boundary: x=%v", a.X)
		}
		if a.X < prev {
			t.Fatalf("moved backwards: %v -> %v", prev, a.X)
		}
		prev = a.X
	}
	if a.X != 30 {
		t.Fatalf("x: got %v want 30", a.X)
	}
}

func TestTileStepAgainstWallFinishes(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	wallAt(z, 1, 0)
	a := joinAt(t, z, 0, 0)
	a.Speed = 30

	done := make(chan error, 1)
	z.startRoute(a.ID, []route.Command{route.TileStep(geom.Right, 3)}, done)
	runRoute(t, z, a)
	if err := <-done; err != nil {
		t.Fatalf("blocked tile step should complete, got %v", err)
	}
	if a.X != 0 {
		t.Fatalf("x: got %v want 0", a.X)
	}
}

func TestTurnChangesFacingOnly(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 30, 30)

	z.startRoute(a.ID, []route.Command{route.Turn(geom.Up)}, nil)
	ticks := runRoute(t, z, a)
	if a.Direction != geom.Up {
		t.Fatalf("direction: got %v want %v", a.Direction, geom.Up)
	}
	if a.X != 30 || a.Y != 30 {
		t.Fatalf("position changed on turn: (%v, %v)", a.X, a.Y)
	}
	if ticks != 1 {
		t.Fatalf("turn ticks: got %d want 1", ticks)
	}
}

func TestTowardPicksDominantAxis(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	b := joinAt(t, z, 30, 120)

	z.startRoute(a.ID, []route.Command{route.Toward(b.ID)}, nil)
	runRoute(t, z, a)
	if a.Direction != geom.Down || a.Y != 3 || a.X != 0 {
		t.Fatalf("toward: dir %v at (%v, %v), want Down at (0, 3)", a.Direction, a.X, a.Y)
	}
}

func TestTowardTieGoesToYAxis(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	b := joinAt(t, z, 90, 90)

	z.startRoute(a.ID, []route.Command{route.Toward(b.ID)}, nil)
	runRoute(t, z, a)
	if a.Direction != geom.Down {
		t.Fatalf("tie direction: got %v want %v", a.Direction, geom.Down)
	}
}

func TestAwayMovesOppositeTarget(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 60, 90)
	b := joinAt(t, z, 60, 0)

	z.startRoute(a.ID, []route.Command{route.Away(b.ID)}, nil)
	runRoute(t, z, a)
	if a.Direction != geom.Down || a.Y != 93 {
		t.Fatalf("away: dir %v y %v, want Down 93", a.Direction, a.Y)
	}
}

func TestTowardMissingTargetCompletes(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 60, 60)

	done := make(chan error, 1)
	z.startRoute(a.ID, []route.Command{route.Toward("nobody")}, done)
	runRoute(t, z, a)
	if err := <-done; err != nil {
		t.Fatalf("missing target should not fail the route: %v", err)
	}
	if a.X != 60 || a.Y != 60 {
		t.Fatalf("position changed: (%v, %v)", a.X, a.Y)
	}
}

func TestStepClampsAtWallEdge(t *testing.T) {
	hooks := &hookRecorder{}
	z := newTestZone(t, testDef(), hooks)
	wallAt(z, 2, 0)
	a := joinAt(t, z, 28, 0)

	movesBefore := hooks.count("move:")
	z.startRoute(a.ID, stepRight(1), nil)
	runRoute(t, z, a)
	if a.X != 30 {
		t.Fatalf("x: got %v want 30 (wall edge minus hitbox)", a.X)
	}
	// The clamped partial step still committed a displacement.
	if hooks.count("move:") != movesBefore+1 {
		t.Fatalf("OnMove not fired for clamped partial step")
	}

	// Flush against the wall: no displacement, no move hook.
	movesBefore = hooks.count("move:")
	z.startRoute(a.ID, stepRight(1), nil)
	runRoute(t, z, a)
	if a.X != 30 {
		t.Fatalf("x: got %v want 30", a.X)
	}
	if hooks.count("move:") != movesBefore {
		t.Fatalf("OnMove fired with no displacement")
	}
}

func TestFrequencyIdlesBetweenSteps(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)
	a.Frequency = 2

	z.startRoute(a.ID, stepRight(2), nil)
	z.step() // move to 3
	if a.X != 3 {
		t.Fatalf("tick 1: x got %v want 3", a.X)
	}
	z.step() // idle
	z.step() // idle
	if a.X != 3 {
		t.Fatalf("idle ticks: x got %v want 3", a.X)
	}
	z.step() // move to 6
	if a.X != 6 {
		t.Fatalf("tick 4: x got %v want 6", a.X)
	}
}

func TestNewRouteInterruptsCurrent(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)

	first := make(chan error, 1)
	z.startRoute(a.ID, stepRight(10), first)
	z.step()
	z.startRoute(a.ID, []route.Command{route.Turn(geom.Left)}, nil)
	if err := <-first; err == nil {
		t.Fatalf("interrupted route should fail its waiter")
	}
	runRoute(t, z, a)
	if a.Direction != geom.Left {
		t.Fatalf("replacement route did not run")
	}
}

func TestRouteLimits(t *testing.T) {
	z := newTestZone(t, testDef(), nil)
	a := joinAt(t, z, 0, 0)

	long := make([]route.Command, z.cfg.MaxRouteLen+1)
	for i := range long {
		long[i] = route.Turn(geom.Up)
	}
	done := make(chan error, 1)
	z.startRoute(a.ID, long, done)
	if err := <-done; err == nil {
		t.Fatalf("over-limit route accepted")
	}

	done = make(chan error, 1)
	z.startRoute("ghost", stepRight(1), done)
	if err := <-done; err == nil {
		t.Fatalf("route for unknown actor accepted")
	}

	done = make(chan error, 1)
	z.startRoute(a.ID, nil, done)
	if err := <-done; err != nil {
		t.Fatalf("empty route: %v", err)
	}
}
