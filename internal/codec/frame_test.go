package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"portalshift/engine/internal/level"
	"portalshift/engine/internal/state"
)

func tutorialSnapshot(t *testing.T, ticks int) state.Snapshot {
	t.Helper()
	world, err := state.NewWorld(level.Tutorial(), state.WithStartTime(time.Unix(0, 0)), state.WithSeed(3))
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	var diff state.TickDiff
	for i := 0; i < ticks; i++ {
		diff = world.AdvanceTick(time.Second / 60)
	}
	return diff.Snapshot
}

func TestFrameRoundTrip(t *testing.T) {
	snapshot := tutorialSnapshot(t, 30)
	payload, err := EncodeFrame(snapshot)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	decoded, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if diff := cmp.Diff(snapshot, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	snapshot := tutorialSnapshot(t, 5)
	first, err := EncodeFrame(snapshot)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	second, err := EncodeFrame(snapshot)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected identical bytes for identical snapshots")
	}
}

func TestEncoderBudget(t *testing.T) {
	snapshot := tutorialSnapshot(t, 1)
	if _, err := NewEncoder(16).Encode(snapshot); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if _, err := NewEncoder(1 << 20).Encode(snapshot); err != nil {
		t.Fatalf("expected frame within budget, got %v", err)
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected decode error")
	}
}
