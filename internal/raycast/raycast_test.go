package raycast

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
)

func TestCastHitsVerticalWall(t *testing.T) {
	wall := level.NewObstacle(400, 0, 50, 500, true)
	//1.- Approach the wall from the left along y=250.
	hit, ok := Cast(r2.Vec{X: 100, Y: 250}, r2.Vec{X: 425, Y: 250}, []*level.Obstacle{wall})
	if !ok {
		t.Fatal("expected ray to hit the wall")
	}
	if hit.Point.X < 400 || hit.Point.X > 450 {
		t.Fatalf("hit x %.2f outside wall span", hit.Point.X)
	}
	if hit.Point.Y != 250 {
		t.Fatalf("expected hit y 250, got %.2f", hit.Point.Y)
	}
	if hit.Normal != NormalLeft {
		t.Fatalf("expected left-facing normal, got %+v", hit.Normal)
	}
	if hit.Obstacle != wall {
		t.Fatal("expected the wall to be reported")
	}
}

func TestCastFromRightReportsRightNormal(t *testing.T) {
	wall := level.NewObstacle(400, 0, 50, 500, true)
	hit, ok := Cast(r2.Vec{X: 800, Y: 250}, r2.Vec{X: 425, Y: 250}, []*level.Obstacle{wall})
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Normal != NormalRight {
		t.Fatalf("expected right-facing normal, got %+v", hit.Normal)
	}
}

func TestCastIsDeterministic(t *testing.T) {
	obstacles := level.Tutorial().Obstacles
	origin := r2.Vec{X: 100, Y: 400}
	target := r2.Vec{X: 700, Y: 120}
	first, ok := Cast(origin, target, obstacles)
	if !ok {
		t.Fatal("expected a hit inside the tutorial level")
	}
	for i := 0; i < 10; i++ {
		//1.- Repeat the same query and demand identical answers.
		again, ok := Cast(origin, target, obstacles)
		if !ok || again != first {
			t.Fatalf("iteration %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestCastReturnsNearestObstacle(t *testing.T) {
	far := level.NewObstacle(600, 0, 50, 500, true)
	near := level.NewObstacle(300, 0, 50, 500, true)
	//1.- Declare the far obstacle first to prove ordering in the slice does not matter.
	hit, ok := Cast(r2.Vec{X: 0, Y: 250}, r2.Vec{X: 900, Y: 250}, []*level.Obstacle{far, near})
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Obstacle != near {
		t.Fatalf("expected the nearer obstacle, got %+v", hit.Obstacle.Rect)
	}
}

func TestCastDegenerateDirection(t *testing.T) {
	wall := level.NewObstacle(0, 0, 50, 50, true)
	if _, ok := Cast(r2.Vec{X: 25, Y: 25}, r2.Vec{X: 25, Y: 25}, []*level.Obstacle{wall}); ok {
		t.Fatal("zero-length aim must not hit")
	}
}

func TestCastEmptyObstacleSet(t *testing.T) {
	if _, ok := Cast(r2.Vec{}, r2.Vec{X: 10}, nil); ok {
		t.Fatal("empty obstacle set must not hit")
	}
}

func TestCastReportsPortalResistantSurfaces(t *testing.T) {
	resistant := level.NewObstacle(200, 0, 40, 400, false)
	hit, ok := Cast(r2.Vec{X: 0, Y: 100}, r2.Vec{X: 400, Y: 100}, []*level.Obstacle{resistant})
	if !ok || hit.Obstacle != resistant {
		t.Fatal("resistant obstacles must still be reported as hits")
	}
}

func TestCastRespectsMaxDistance(t *testing.T) {
	wall := level.NewObstacle(400, 0, 50, 500, true)
	short := New(5, 200)
	if _, ok := short.Cast(r2.Vec{X: 0, Y: 250}, r2.Vec{X: 425, Y: 250}, []*level.Obstacle{wall}); ok {
		t.Fatal("expected the ray to run out before reaching the wall")
	}
}

func TestSurfaceNormalPerEdge(t *testing.T) {
	rect := geometry.NewRect(0, 0, 100, 60)
	cases := []struct {
		name  string
		point r2.Vec
		want  r2.Vec
	}{
		{name: "left", point: r2.Vec{X: 2, Y: 30}, want: NormalLeft},
		{name: "right", point: r2.Vec{X: 97, Y: 30}, want: NormalRight},
		{name: "top", point: r2.Vec{X: 50, Y: 1}, want: NormalTop},
		{name: "bottom", point: r2.Vec{X: 50, Y: 58}, want: NormalBottom},
	}
	for _, tc := range cases {
		if got := SurfaceNormal(tc.point, rect); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestSurfaceNormalTieBreakOrder(t *testing.T) {
	rect := geometry.NewRect(0, 0, 10, 10)
	//1.- The exact centre is equidistant from every edge; left wins.
	if got := SurfaceNormal(r2.Vec{X: 5, Y: 5}, rect); got != NormalLeft {
		t.Fatalf("expected left on a four-way tie, got %+v", got)
	}
	//2.- Top-right corner ties right and top; right precedes top.
	if got := SurfaceNormal(r2.Vec{X: 10, Y: 0}, rect); got != NormalRight {
		t.Fatalf("expected right on a right/top tie, got %+v", got)
	}
	//3.- Bottom-left corner ties left and bottom; left precedes bottom.
	if got := SurfaceNormal(r2.Vec{X: 0, Y: 10}, rect); got != NormalLeft {
		t.Fatalf("expected left on a left/bottom tie, got %+v", got)
	}
}

func TestNewSubstitutesDefaults(t *testing.T) {
	c := New(0, -1)
	if c.Step != DefaultStep || c.MaxDistance != DefaultMaxDistance {
		t.Fatalf("unexpected caster %+v", c)
	}
}
