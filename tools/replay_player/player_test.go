package replayplayer

import (
	"testing"
	"time"

	"portalshift/engine/internal/level"
	"portalshift/engine/internal/replay"
	"portalshift/engine/internal/state"
)

// recordTutorial records one second of the tutorial level with a reset at tick 30.
func recordTutorial(t *testing.T) string {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) }
	writer, _, err := replay.NewWriter(t.TempDir(), "player-test", clock)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	writer.SetHeaderMetadata("tutorial", 60)
	step := time.Second / 60
	recorder, err := replay.NewRecorder(writer, step, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	world, err := state.NewWorld(level.Tutorial(), state.WithStartTime(clock()))
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	for i := 1; i <= 60; i++ {
		if i == 30 {
			_ = world.Enqueue(state.Command{Type: state.CommandReset, Source: "test"})
		}
		if err := recorder.Record(world.AdvanceTick(step)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return writer.Directory()
}

func TestBuildSummarisesBundle(t *testing.T) {
	dir := recordTutorial(t)
	report, err := Build(dir, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Header.Level != "tutorial" || report.Header.SessionID != "player-test" {
		t.Fatalf("unexpected header %+v", report.Header)
	}
	if len(report.Events) != 1 || report.Events[0].Type != string(state.EventLevelReset) || report.Events[0].Tick != 30 {
		t.Fatalf("unexpected events %+v", report.Events)
	}
	if report.Counts[string(state.EventLevelReset)] != 1 {
		t.Fatalf("unexpected counts %v", report.Counts)
	}
	if len(report.Frames) != 5 || report.Frames[0].Snapshot != nil {
		t.Fatalf("expected five undecoded frames, got %+v", report.Frames)
	}
}

func TestBuildFiltersAndDecodes(t *testing.T) {
	dir := recordTutorial(t)
	report, err := Build(dir, Options{DecodeFrames: true, FromTick: 10, ToTick: 30, EventType: "portal_transfer"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(report.Events) != 0 {
		t.Fatalf("expected the type filter to hide the reset, got %+v", report.Events)
	}
	if report.Counts[string(state.EventLevelReset)] != 1 {
		t.Fatal("counts must ignore filters")
	}
	if len(report.Frames) != 2 {
		t.Fatalf("expected frames at ticks 14 and 27, got %+v", report.Frames)
	}
	for _, frame := range report.Frames {
		if frame.Snapshot == nil || frame.Snapshot.Tick != frame.Tick || frame.Snapshot.Level != "tutorial" {
			t.Fatalf("expected decoded snapshot for tick %d, got %+v", frame.Tick, frame.Snapshot)
		}
	}
}

func TestBuildRequiresDirectory(t *testing.T) {
	if _, err := Build(" ", Options{}); err == nil {
		t.Fatal("expected error for blank directory")
	}
	if _, err := Build(t.TempDir(), Options{}); err == nil {
		t.Fatal("expected error for a directory without a bundle")
	}
}
