package physics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/level"
)

func TestClampMagnitude(t *testing.T) {
	//1.- Vectors under the limit or with the guard disabled pass through untouched.
	if got := ClampMagnitude(r2.Vec{X: 3, Y: 4}, 10); got != (r2.Vec{X: 3, Y: 4}) {
		t.Fatalf("unexpected clamp %+v", got)
	}
	if got := ClampMagnitude(r2.Vec{X: 300, Y: 400}, 0); got != (r2.Vec{X: 300, Y: 400}) {
		t.Fatalf("disabled guard changed vector %+v", got)
	}
	//2.- Oversized vectors keep their direction at the limit length.
	got := ClampMagnitude(r2.Vec{X: 30, Y: 40}, 5)
	if math.Abs(got.X-3) > 1e-9 || math.Abs(got.Y-4) > 1e-9 {
		t.Fatalf("expected (3,4), got %+v", got)
	}
}

func TestAdvanceAndGravity(t *testing.T) {
	velocity := ApplyGravity(r2.Vec{X: 100, Y: 0}, 1000, 0.5)
	if velocity.Y != 500 {
		t.Fatalf("expected vy 500, got %.2f", velocity.Y)
	}
	position := Advance(r2.Vec{X: 10, Y: 10}, velocity, AxisX, 0.5)
	if position != (r2.Vec{X: 60, Y: 10}) {
		t.Fatalf("expected only x to move, got %+v", position)
	}
	position = Advance(position, velocity, AxisY, 0.5)
	if position != (r2.Vec{X: 60, Y: 260}) {
		t.Fatalf("expected y to move, got %+v", position)
	}
	if got := Advance(position, velocity, AxisY, -1); got != position {
		t.Fatal("negative step must be a no-op")
	}
}

func TestResolveAxisSnapsToFace(t *testing.T) {
	floor := level.NewObstacle(0, 500, 1000, 100, true)
	wall := level.NewObstacle(400, 0, 50, 500, true)
	size := r2.Vec{X: 32, Y: 64}

	//1.- Falling into the floor lands on top of it.
	pos, touched := ResolveAxis(r2.Vec{X: 100, Y: 450}, size, 200, AxisY, []*level.Obstacle{floor})
	if !touched || pos.Y != 436 {
		t.Fatalf("expected landing at y=436, got %+v (touched=%v)", pos, touched)
	}
	//2.- Walking right into the wall stops at its left face.
	pos, touched = ResolveAxis(r2.Vec{X: 380, Y: 300}, size, 300, AxisX, []*level.Obstacle{wall})
	if !touched || pos.X != 368 {
		t.Fatalf("expected stop at x=368, got %+v", pos)
	}
	//3.- Walking left into it stops at its right face.
	pos, _ = ResolveAxis(r2.Vec{X: 440, Y: 300}, size, -300, AxisX, []*level.Obstacle{wall})
	if pos.X != 450 {
		t.Fatalf("expected stop at x=450, got %+v", pos)
	}
	//4.- Clear space reports no contact.
	if _, touched := ResolveAxis(r2.Vec{X: 100, Y: 100}, size, 300, AxisX, []*level.Obstacle{wall, floor}); touched {
		t.Fatal("expected no contact in open space")
	}
}

func TestPushOutUsesShallowestAxis(t *testing.T) {
	wall := level.NewObstacle(400, 0, 50, 500, true)
	size := r2.Vec{X: 30, Y: 30}

	//1.- A shallow overlap from the left pushes back left and reflects vx.
	pos, vel := PushOut(r2.Vec{X: 375, Y: 200}, size, r2.Vec{X: 100, Y: 10}, 0.8, []*level.Obstacle{wall})
	if pos.X != 370 || pos.Y != 200 {
		t.Fatalf("expected push to x=370, got %+v", pos)
	}
	if math.Abs(vel.X+80) > 1e-9 || vel.Y != 10 {
		t.Fatalf("expected reflected vx -80, got %+v", vel)
	}

	//2.- Clipping the top of a floor pushes upward.
	floor := level.NewObstacle(0, 500, 1000, 100, true)
	pos, vel = PushOut(r2.Vec{X: 100, Y: 475}, size, r2.Vec{X: 20, Y: 50}, 0.8, []*level.Obstacle{floor})
	if pos.Y != 470 || math.Abs(vel.Y+40) > 1e-9 || vel.X != 20 {
		t.Fatalf("unexpected floor response pos=%+v vel=%+v", pos, vel)
	}
}
