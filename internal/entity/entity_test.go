package entity

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
	"portalshift/engine/internal/portal"
)

const step = 1.0 / 60.0

var (
	_ portal.Body          = (*Player)(nil)
	_ portal.Body          = (*Crate)(nil)
	_ portal.Body          = (*Sentry)(nil)
	_ portal.Disorientable = (*Sentry)(nil)
)

func floor() []*level.Obstacle {
	return []*level.Obstacle{level.NewObstacle(0, 500, 1000, 100, true)}
}

func TestPlayerFallsAndLands(t *testing.T) {
	player := NewPlayer(r2.Vec{X: 100, Y: 400})
	//1.- Two seconds is plenty to drop 36 units onto the floor.
	for i := 0; i < 120; i++ {
		player.Update(step, floor())
	}
	if !player.OnGround() {
		t.Fatal("expected player to be grounded")
	}
	if player.Position().Y != 500-PlayerHeight || player.Velocity().Y != 0 {
		t.Fatalf("expected resting at y=%v, got pos=%+v vel=%+v", 500-PlayerHeight, player.Position(), player.Velocity())
	}
}

func TestPlayerWalksAndJumps(t *testing.T) {
	player := NewPlayer(r2.Vec{X: 100, Y: 500 - PlayerHeight})
	player.Update(step, floor())

	player.SetIntent(Intent{Right: true})
	player.Update(step, floor())
	if player.Velocity().X != PlayerSpeed || !player.FacingRight() {
		t.Fatalf("expected walking right, vel=%+v", player.Velocity())
	}

	player.SetIntent(Intent{Left: true, Jump: true})
	player.Update(step, floor())
	if player.Velocity().X != -PlayerSpeed || player.FacingRight() {
		t.Fatalf("expected walking left, vel=%+v", player.Velocity())
	}
	if player.OnGround() || player.Velocity().Y >= 0 {
		t.Fatalf("expected jump to lift off, vel=%+v", player.Velocity())
	}

	//1.- Jumping mid-air does nothing.
	vy := player.Velocity().Y
	player.Update(step, floor())
	if player.Velocity().Y <= vy-PlayerJump/2 {
		t.Fatal("player double-jumped")
	}
}

func TestPlayerStopsAtWall(t *testing.T) {
	obstacles := append(floor(), level.NewObstacle(200, 0, 50, 500, true))
	player := NewPlayer(r2.Vec{X: 150, Y: 500 - PlayerHeight})
	player.SetIntent(Intent{Right: true})
	for i := 0; i < 30; i++ {
		player.Update(step, obstacles)
	}
	if player.Position().X != 200-PlayerWidth {
		t.Fatalf("expected player flush with wall, got x=%v", player.Position().X)
	}

	player.Reset(r2.Vec{X: 10, Y: 10})
	if player.Position() != (r2.Vec{X: 10, Y: 10}) || player.Velocity() != (r2.Vec{}) || player.Intent() != (Intent{}) {
		t.Fatal("reset must restore a resting player")
	}
}

func TestCrateBouncesAndSettles(t *testing.T) {
	crate := NewCrate("crate-1", level.CrateSpec{Position: r2.Vec{X: 300, Y: 400}, Size: r2.Vec{X: 40, Y: 40}})
	if crate.Material() != CrateCube || crate.Kind() != portal.KindCrate {
		t.Fatalf("unexpected crate defaults %+v", crate.State())
	}
	crate.SetVelocity(r2.Vec{X: 200})
	for i := 0; i < 180; i++ {
		crate.Update(step, floor())
	}
	if !crate.OnGround() || crate.Position().Y != 460 {
		t.Fatalf("expected crate resting on floor, got %+v", crate.State())
	}
	//1.- Friction bleeds horizontal speed while grounded.
	if math.Abs(crate.Velocity().X) >= 200 {
		t.Fatalf("expected friction to slow the crate, vx=%v", crate.Velocity().X)
	}
}

func TestCrateReboundsOffWall(t *testing.T) {
	obstacles := []*level.Obstacle{level.NewObstacle(400, 0, 50, 500, true)}
	crate := NewCrate("crate-1", level.CrateSpec{Position: r2.Vec{X: 355, Y: 100}, Size: r2.Vec{X: 40, Y: 40}, Type: CrateMetalCube})
	crate.SetVelocity(r2.Vec{X: 600})
	crate.Update(step, obstacles)
	if crate.Position().X != 360 {
		t.Fatalf("expected crate flush at x=360, got %v", crate.Position().X)
	}
	if math.Abs(crate.Velocity().X+600*CrateRestitution) > 1e-9 {
		t.Fatalf("expected rebound vx %v, got %v", -600*CrateRestitution, crate.Velocity().X)
	}
	if crate.State().Mode != CrateMetalCube {
		t.Fatalf("expected material in state, got %+v", crate.State())
	}
}

func TestSentryPatrolsBetweenWaypoints(t *testing.T) {
	spec := level.SentrySpec{Position: r2.Vec{X: 150, Y: 200}, Patrol: []r2.Vec{{X: 150, Y: 200}, {X: 350, Y: 200}}}
	sentry := NewSentry("sentry-1", spec, 1)
	far := r2.Vec{X: 5000, Y: 5000}
	now := time.Unix(0, 0)

	//1.- Standing on the first waypoint advances the route to the second.
	sentry.Update(step, now, far, nil)
	for i := 0; i < 60; i++ {
		sentry.Update(step, now, far, nil)
	}
	if sentry.Mode() != ModePatrol {
		t.Fatalf("expected patrol, got %s", sentry.Mode())
	}
	if sentry.Position().X <= 150 || sentry.Velocity().X <= 0 {
		t.Fatalf("expected sentry heading right, pos=%+v vel=%+v", sentry.Position(), sentry.Velocity())
	}
}

func TestSentryChasesNearbyPlayer(t *testing.T) {
	sentry := NewSentry("sentry-1", level.SentrySpec{Position: r2.Vec{X: 100, Y: 100}}, 1)
	sentry.Update(step, time.Unix(0, 0), r2.Vec{X: 100, Y: 300}, nil)
	if sentry.Mode() != ModeChase {
		t.Fatalf("expected chase, got %s", sentry.Mode())
	}
	if v := sentry.Velocity(); math.Abs(v.X) > 1e-9 || math.Abs(v.Y-SentrySpeed) > 1e-9 {
		t.Fatalf("expected chase velocity (0,%v), got %+v", SentrySpeed, v)
	}
}

func TestSentryDisorientationIsDeterministicAndExpires(t *testing.T) {
	now := time.Unix(100, 0)
	run := func() []r2.Vec {
		sentry := NewSentry("sentry-1", level.SentrySpec{Position: r2.Vec{X: 100, Y: 100}}, 42)
		sentry.Disorient(now.Add(3 * time.Second))
		var headings []r2.Vec
		for i := 0; i < 3; i++ {
			sentry.Update(step, now.Add(time.Duration(i)*time.Second), r2.Vec{X: 110, Y: 100}, nil)
			if sentry.Mode() != ModeDisoriented {
				t.Fatalf("expected disoriented at %ds, got %s", i, sentry.Mode())
			}
			headings = append(headings, sentry.Velocity())
		}
		sentry.Update(step, now.Add(3*time.Second), r2.Vec{X: 110, Y: 100}, nil)
		if sentry.Mode() != ModeChase {
			t.Fatalf("expected chase once disorientation ends, got %s", sentry.Mode())
		}
		return headings
	}
	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("wander heading %d differs between seeded runs: %+v vs %+v", i, first[i], second[i])
		}
		if math.Abs(first[i].X) > SentrySpeed || math.Abs(first[i].Y) > SentrySpeed {
			t.Fatalf("wander heading %+v exceeds speed bound", first[i])
		}
	}
}

func TestSwitchTogglesWithCrate(t *testing.T) {
	plate := NewSwitch("switch-1", level.SwitchSpec{Position: r2.Vec{X: 700, Y: 290}})
	crate := NewCrate("crate-1", level.CrateSpec{Position: r2.Vec{X: 0, Y: 0}, Size: r2.Vec{X: 40, Y: 40}})

	if plate.Update(0.1, []*Crate{crate}) || plate.Active() {
		t.Fatal("plate must start inactive")
	}
	crate.SetPosition(r2.Vec{X: 700, Y: 260})
	if !plate.Update(0.25, []*Crate{crate}) || !plate.Active() {
		t.Fatal("expected plate to toggle on")
	}
	if math.Abs(plate.Activation()-0.5) > 1e-9 {
		t.Fatalf("expected activation 0.5, got %v", plate.Activation())
	}
	//1.- Activation saturates at one and toggling only reports changes.
	if plate.Update(1, []*Crate{crate}) || plate.Activation() != 1 {
		t.Fatalf("expected steady active plate, activation=%v", plate.Activation())
	}
	crate.SetPosition(r2.Vec{})
	if !plate.Update(0.25, []*Crate{crate}) || plate.Active() {
		t.Fatal("expected plate to toggle off")
	}
	if plate.State().Size != (geometry.Point{X: level.DefaultSwitchWidth, Y: level.DefaultSwitchHeight}) {
		t.Fatalf("expected default plate size, got %+v", plate.State())
	}
}
