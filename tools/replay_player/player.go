// Package replayplayer turns a recorded bundle into a JSON-friendly report.
package replayplayer

import (
	"fmt"
	"strings"

	"portalshift/engine/internal/replay"
	"portalshift/engine/internal/state"
)

// FrameSummary describes a stored frame without its binary payload. Snapshot
// is only populated when frames are decoded.
type FrameSummary struct {
	Tick        uint64          `json:"tick"`
	SimulatedMs int64           `json:"simulated_ms"`
	CapturedAt  string          `json:"captured_at"`
	Size        int             `json:"size"`
	Snapshot    *state.Snapshot `json:"snapshot,omitempty"`
}

// Report is the document printed by the replay player.
type Report struct {
	Directory string               `json:"directory"`
	Manifest  replay.Manifest      `json:"manifest"`
	Header    replay.Header        `json:"header"`
	Events    []replay.EventRecord `json:"events"`
	Frames    []FrameSummary       `json:"frames"`
	Counts    map[string]int       `json:"event_counts"`
}

// Options narrows what Build includes.
type Options struct {
	// DecodeFrames restores every frame into a full snapshot.
	DecodeFrames bool
	// EventType keeps only events of this type when set.
	EventType string
	// FromTick and ToTick bound the ticks included; zero ToTick means no upper bound.
	FromTick uint64
	ToTick   uint64
}

func (o Options) keep(tick uint64) bool {
	if tick < o.FromTick {
		return false
	}
	return o.ToTick == 0 || tick <= o.ToTick
}

// Build reads the bundle at dir and assembles a report.
func Build(dir string, opts Options) (*Report, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("bundle directory is required")
	}
	bundle, err := replay.ReadBundle(dir)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Directory: bundle.Dir,
		Manifest:  bundle.Manifest,
		Header:    bundle.Header,
		Events:    []replay.EventRecord{},
		Frames:    []FrameSummary{},
		Counts:    make(map[string]int),
	}
	//1.- Counts cover the whole bundle; the filters only shape the listed entries.
	for _, event := range bundle.Events {
		report.Counts[event.Type]++
		if !opts.keep(event.Tick) || (opts.EventType != "" && event.Type != opts.EventType) {
			continue
		}
		report.Events = append(report.Events, event)
	}
	for _, frame := range bundle.Frames {
		if !opts.keep(frame.Tick) {
			continue
		}
		summary := FrameSummary{
			Tick:        frame.Tick,
			SimulatedMs: frame.SimulatedMs,
			CapturedAt:  frame.CapturedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Size:        frame.Size,
		}
		if opts.DecodeFrames {
			snapshot, err := frame.Snapshot()
			if err != nil {
				return nil, fmt.Errorf("decode frame at tick %d: %w", frame.Tick, err)
			}
			summary.Snapshot = &snapshot
		}
		report.Frames = append(report.Frames, summary)
	}
	return report, nil
}
