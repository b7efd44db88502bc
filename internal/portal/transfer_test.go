package portal

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
)

type testBody struct {
	id          string
	kind        Kind
	pos         r2.Vec
	size        r2.Vec
	vel         r2.Vec
	disoriented time.Time
}

func (b *testBody) ID() string                { return b.id }
func (b *testBody) Kind() Kind                { return b.kind }
func (b *testBody) Position() r2.Vec          { return b.pos }
func (b *testBody) SetPosition(p r2.Vec)      { b.pos = p }
func (b *testBody) Size() r2.Vec              { return b.size }
func (b *testBody) Velocity() r2.Vec          { return b.vel }
func (b *testBody) SetVelocity(v r2.Vec)      { b.vel = v }
func (b *testBody) Bounds() geometry.Rect     { return geometry.RectAt(b.pos, b.size) }
func (b *testBody) Disorient(until time.Time) { b.disoriented = until }

func newPlayer(pos, vel r2.Vec) *testBody {
	return &testBody{id: "player", kind: KindPlayer, pos: pos, size: r2.Vec{X: 32, Y: 64}, vel: vel}
}

func newCrate(id string, pos, vel r2.Vec) *testBody {
	return &testBody{id: id, kind: KindCrate, pos: pos, size: r2.Vec{X: 40, Y: 40}, vel: vel}
}

func newSentry(pos, vel r2.Vec) *testBody {
	return &testBody{id: "sentry", kind: KindSentry, pos: pos, size: r2.Vec{X: 30, Y: 30}, vel: vel}
}

// verticalPair returns two vertical portals with centres (110,140) and (510,140).
func verticalPair() (*Portal, *Portal) {
	a := New(ChannelA, Vertical, r2.Vec{X: 100, Y: 100})
	b := New(ChannelB, Vertical, r2.Vec{X: 500, Y: 100})
	return &a, &b
}

// mixedPair returns a vertical A centred at (110,140) and a horizontal B centred at (440,410).
func mixedPair() (*Portal, *Portal) {
	a := New(ChannelA, Vertical, r2.Vec{X: 100, Y: 100})
	b := New(ChannelB, Horizontal, r2.Vec{X: 400, Y: 400})
	return &a, &b
}

func TestTransferNoOpWithoutBothPortals(t *testing.T) {
	engine := NewEngine()
	a, _ := verticalPair()
	player := newPlayer(r2.Vec{X: 95, Y: 110}, r2.Vec{X: 200})

	if engine.TryTransfer(player, a, nil) || engine.TryTransfer(player, nil, a) || engine.TryTransfer(player, nil, nil) {
		t.Fatal("transfer must be a no-op while a slot is empty")
	}
	if player.pos != (r2.Vec{X: 95, Y: 110}) || player.vel != (r2.Vec{X: 200}) {
		t.Fatalf("actor state changed on no-op: %+v", player)
	}
}

func TestTransferRequiresOverlap(t *testing.T) {
	engine := NewEngine()
	a, b := verticalPair()
	player := newPlayer(r2.Vec{X: 300, Y: 110}, r2.Vec{X: 200})
	if engine.TryTransfer(player, a, b) {
		t.Fatal("actor away from both portals must not transfer")
	}

	//1.- Touching an edge is not an overlap.
	player.pos = r2.Vec{X: 100 - 32, Y: 110}
	if engine.TryTransfer(player, a, b) {
		t.Fatal("edge contact must not trigger a transfer")
	}
}

func TestTransferSameAngleScenario(t *testing.T) {
	engine := NewEngine()
	a, b := verticalPair()
	player := newPlayer(r2.Vec{X: 95, Y: 110}, r2.Vec{X: 200, Y: 0})

	result, ok := engine.Transfer(player, a, b)
	if !ok {
		t.Fatal("expected transfer")
	}
	if result.Entry != ChannelA || result.Exit != ChannelB || result.AngleDelta != 0 || result.Direction != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !geometry.ApproxEqual(player.vel, r2.Vec{X: 210, Y: 0}, 1e-9) {
		t.Fatalf("expected velocity (210,0), got %+v", player.vel)
	}

	//1.- The centre sits half a portal plus the player clearance beyond B in the direction of motion.
	center := player.Bounds().Center()
	wantX := b.Center().X + b.HalfThickness() + 25
	if math.Abs(center.X-wantX) > 1e-9 {
		t.Fatalf("expected centre x %.2f, got %.2f", wantX, center.X)
	}
	//2.- The lateral offset from A's centre is carried over to B.
	if math.Abs(center.Y-(b.Center().Y+2)) > 1e-9 {
		t.Fatalf("expected lateral offset 2 preserved, got centre y %.2f", center.Y)
	}
	if player.Bounds().Intersects(a.Rect()) || player.Bounds().Intersects(b.Rect()) {
		t.Fatal("player overlaps a portal after transfer")
	}
}

func TestTransferWithoutBoostIsIdentityAtZeroDelta(t *testing.T) {
	engine := NewEngine(WithBoost(1))
	a, b := verticalPair()
	velocity := r2.Vec{X: 180, Y: -75}
	crate := newCrate("crate", r2.Vec{X: 90, Y: 120}, velocity)

	if !engine.TryTransfer(crate, a, b) {
		t.Fatal("expected transfer")
	}
	if !geometry.ApproxEqual(crate.vel, velocity, 1e-9) {
		t.Fatalf("expected velocity %+v unchanged, got %+v", velocity, crate.vel)
	}
}

func TestTransferExitsOnSideOfMotion(t *testing.T) {
	engine := NewEngine()
	a, b := verticalPair()

	//1.- Moving left through A lands left of B.
	crate := newCrate("crate", r2.Vec{X: 90, Y: 120}, r2.Vec{X: -150})
	if !engine.TryTransfer(crate, a, b) {
		t.Fatal("expected transfer")
	}
	if right := crate.Bounds().Right(); right > b.Rect().Left() {
		t.Fatalf("expected crate left of B, right edge %.2f", right)
	}

	//2.- Zero penetration speed counts as positive.
	still := newCrate("still", r2.Vec{X: 90, Y: 120}, r2.Vec{Y: 50})
	result, ok := engine.Transfer(still, a, b)
	if !ok || result.Direction != 1 {
		t.Fatalf("expected positive direction for zero speed, got %+v", result)
	}
	if left := still.Bounds().Left(); left < b.Rect().Right() {
		t.Fatalf("expected crate right of B, left edge %.2f", left)
	}
}

func TestTransferRoundTripPreservesDirection(t *testing.T) {
	engine := NewEngine()
	a, b := mixedPair()
	original := r2.Vec{X: 200, Y: 50}
	crate := newCrate("crate", r2.Vec{X: 90, Y: 120}, original)

	first, ok := engine.Transfer(crate, a, b)
	if !ok || first.AngleDelta != -90 {
		t.Fatalf("expected A->B transfer with -90 degrees, got %+v", first)
	}

	//1.- Drop the crate back into B and go the other way.
	crate.pos = r2.Vec{X: 420, Y: 390}
	second, ok := engine.Transfer(crate, a, b)
	if !ok || second.Entry != ChannelB || second.AngleDelta != 90 {
		t.Fatalf("expected B->A transfer with +90 degrees, got %+v", second)
	}

	wantDir, _ := geometry.Normalize(original)
	gotDir, _ := geometry.Normalize(crate.vel)
	if !geometry.ApproxEqual(gotDir, wantDir, 1e-9) {
		t.Fatalf("direction drifted: want %+v got %+v", wantDir, gotDir)
	}
	wantMag := geometry.Length(original) * DefaultBoost * DefaultBoost
	if math.Abs(geometry.Length(crate.vel)-wantMag) > 1e-6 {
		t.Fatalf("expected magnitude %.4f, got %.4f", wantMag, geometry.Length(crate.vel))
	}
}

func TestTransferNonOverlapWithHalfSizeClearance(t *testing.T) {
	engine := NewEngine()
	velocities := []r2.Vec{{X: 200, Y: 30}, {X: -200, Y: 30}, {X: 0, Y: -100}}
	for _, velocity := range velocities {
		for _, kind := range []Kind{KindCrate, KindSentry} {
			a, b := mixedPair()
			body := newCrate("body", r2.Vec{X: 90, Y: 120}, velocity)
			body.kind = kind
			engine.Reset()
			if !engine.TryTransfer(body, a, b) {
				t.Fatalf("%s %+v: expected transfer", kind, velocity)
			}
			if body.Bounds().Intersects(a.Rect()) || body.Bounds().Intersects(b.Rect()) {
				t.Fatalf("%s %+v: body overlaps a portal at %+v", kind, velocity, body.Bounds())
			}
		}
	}
}

func TestTransferLowClearanceCanReenter(t *testing.T) {
	engine := NewEngine()
	a, b := mixedPair()
	//1.- The player's 25 unit clearance is below its 32 unit half height at a horizontal exit.
	player := newPlayer(r2.Vec{X: 95, Y: 110}, r2.Vec{X: 200})
	if !engine.TryTransfer(player, a, b) {
		t.Fatal("expected first transfer")
	}
	if !player.Bounds().Intersects(b.Rect()) {
		t.Fatalf("expected player to still overlap exit portal, bounds %+v", player.Bounds())
	}
	if !engine.TryTransfer(player, a, b) {
		t.Fatal("expected immediate re-entry without a cooldown")
	}
}

func TestSentryCooldownAndDisorientation(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(WithClock(func() time.Time { return now }))
	a, b := verticalPair()
	start := r2.Vec{X: 100, Y: 120}
	sentry := newSentry(start, r2.Vec{X: 100})

	if !engine.TryTransfer(sentry, a, b) {
		t.Fatal("expected first sentry transfer")
	}
	if want := now.Add(3 * time.Second); !sentry.disoriented.Equal(want) {
		t.Fatalf("expected disorientation until %v, got %v", want, sentry.disoriented)
	}

	//1.- Inside the cooldown the sentry ignores portals.
	now = now.Add(500 * time.Millisecond)
	sentry.pos, sentry.vel = start, r2.Vec{X: 100}
	if engine.TryTransfer(sentry, a, b) {
		t.Fatal("expected cooldown to block transfer")
	}
	if sentry.pos != start {
		t.Fatal("blocked transfer moved the sentry")
	}

	//2.- Once the cooldown elapses it transfers again.
	now = now.Add(500 * time.Millisecond)
	if !engine.TryTransfer(sentry, a, b) {
		t.Fatal("expected transfer after cooldown")
	}

	//3.- Forget clears the bookkeeping for removed bodies.
	sentry.pos = start
	engine.Forget(sentry.ID())
	if !engine.TryTransfer(sentry, a, b) {
		t.Fatal("expected transfer after Forget")
	}
}

func TestPlayerHasNoCooldown(t *testing.T) {
	engine := NewEngine(WithClock(func() time.Time { return time.Unix(0, 0) }))
	a, b := verticalPair()
	player := newPlayer(r2.Vec{X: 95, Y: 110}, r2.Vec{X: 200})
	if !engine.TryTransfer(player, a, b) {
		t.Fatal("expected first transfer")
	}
	player.pos = r2.Vec{X: 95, Y: 110}
	if !engine.TryTransfer(player, a, b) {
		t.Fatal("player must be able to transfer again immediately")
	}
	if !player.disoriented.IsZero() {
		t.Fatal("player must never be disoriented")
	}
}

func TestProfilesOverrideAndFallback(t *testing.T) {
	engine := NewEngine(WithProfiles(map[Kind]Profile{KindPlayer: {Clearance: 40}}))
	if got := engine.Profile(KindPlayer).Clearance; got != 40 {
		t.Fatalf("expected overridden clearance 40, got %v", got)
	}
	if got := engine.Profile(Kind("boulder")); got != engine.Profile(KindCrate) {
		t.Fatalf("unknown kinds should use the crate profile, got %+v", got)
	}

	a, b := verticalPair()
	player := newPlayer(r2.Vec{X: 95, Y: 110}, r2.Vec{X: 200})
	if !engine.TryTransfer(player, a, b) {
		t.Fatal("expected transfer")
	}
	if got := player.Bounds().Center().X; math.Abs(got-(b.Center().X+10+40)) > 1e-9 {
		t.Fatalf("expected overridden clearance applied, centre x %.2f", got)
	}
}

func TestClearanceForHalfSize(t *testing.T) {
	profile := Profile{HalfSizeClearance: true}
	size := r2.Vec{X: 40, Y: 60}
	if profile.ClearanceFor(size, Vertical) != 20 || profile.ClearanceFor(size, Horizontal) != 30 {
		t.Fatal("half-size clearance must follow the exit axis")
	}
}

func TestTransferMapsLateralOffsetAcrossOrientations(t *testing.T) {
	engine := NewEngine()
	a, b := mixedPair()

	//1.- The crate centre sits 10 below A's centre along the vertical face.
	crate := newCrate("crate", r2.Vec{X: 90, Y: 130}, r2.Vec{X: 200})
	if !engine.TryTransfer(crate, a, b) {
		t.Fatal("expected transfer")
	}
	//2.- The offset lands 10 along B's horizontal face; depth is 10 + 20 below it.
	want := r2.Vec{X: 430, Y: 420}
	if !geometry.ApproxEqual(crate.pos, want, 1e-9) {
		t.Fatalf("expected exit position %v, got %v", want, crate.pos)
	}
}
