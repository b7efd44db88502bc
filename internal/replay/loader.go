package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"portalshift/engine/internal/codec"
	"portalshift/engine/internal/state"
)

// FrameRecord is one decoded entry of the frame log.
type FrameRecord struct {
	Tick        uint64    `json:"tick"`
	SimulatedMs int64     `json:"simulated_ms"`
	CapturedAt  time.Time `json:"captured_at"`
	Payload     []byte    `json:"-"`
	Size        int       `json:"size"`
}

// Snapshot decodes the frame payload back into a world snapshot.
func (f FrameRecord) Snapshot() (state.Snapshot, error) {
	return codec.DecodeFrame(f.Payload)
}

// Bundle is a fully loaded replay directory.
type Bundle struct {
	Dir      string        `json:"dir"`
	Manifest Manifest      `json:"manifest"`
	Header   Header        `json:"header"`
	Events   []EventRecord `json:"events"`
	Frames   []FrameRecord `json:"frames"`
}

// TimelineEntry is a frame or event positioned in simulated time.
type TimelineEntry struct {
	Tick        uint64
	SimulatedMs int64
	Kind        string
	Event       *EventRecord
	Frame       *FrameRecord
}

// ReadBundle loads manifest, header, events and frames from a bundle directory.
func ReadBundle(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay bundle path must be provided")
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	bundle := &Bundle{Dir: dir}
	if err := json.Unmarshal(data, &bundle.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if bundle.Manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", bundle.Manifest.Version)
	}
	//1.- The header only exists once the writer closed cleanly.
	header, err := ReadHeader(filepath.Join(dir, headerFile))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	bundle.Header = header

	if bundle.Events, err = readEvents(filepath.Join(dir, bundle.Manifest.EventsPath)); err != nil {
		return nil, err
	}
	if bundle.Frames, err = readFrames(filepath.Join(dir, bundle.Manifest.FramesPath)); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Timeline merges frames and events ordered by simulated time, then tick, frames first.
func (b *Bundle) Timeline() []TimelineEntry {
	if b == nil {
		return nil
	}
	entries := make([]TimelineEntry, 0, len(b.Events)+len(b.Frames))
	for i := range b.Frames {
		frame := &b.Frames[i]
		entries = append(entries, TimelineEntry{Tick: frame.Tick, SimulatedMs: frame.SimulatedMs, Kind: "frame", Frame: frame})
	}
	for i := range b.Events {
		event := &b.Events[i]
		entries = append(entries, TimelineEntry{Tick: event.Tick, SimulatedMs: event.SimulatedMs, Kind: "event", Event: event})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].SimulatedMs != entries[j].SimulatedMs {
			return entries[i].SimulatedMs < entries[j].SimulatedMs
		}
		if entries[i].Tick != entries[j].Tick {
			return entries[i].Tick < entries[j].Tick
		}
		return entries[i].Kind == "frame" && entries[j].Kind != "frame"
	})
	return entries
}

// Replay invokes apply for every timeline entry, stopping at the first error.
func (b *Bundle) Replay(apply func(TimelineEntry) error) error {
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range b.Timeline() {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

func readEvents(path string) ([]EventRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	var events []EventRecord
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(events)+1, err)
		}
		events = append(events, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}

func readFrames(path string) ([]FrameRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame log: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer decoder.Close()

	var frames []FrameRecord
	header := make([]byte, frameHeaderSize)
	for {
		//1.- A clean EOF may only happen on a record boundary.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, fmt.Errorf("read frame %d header: %w", len(frames)+1, err)
		}
		size := binary.LittleEndian.Uint32(header[24:28])
		payload := make([]byte, size)
		if _, err := io.ReadFull(decoder, payload); err != nil {
			return nil, fmt.Errorf("read frame %d payload: %w", len(frames)+1, err)
		}
		frames = append(frames, FrameRecord{
			Tick:        binary.LittleEndian.Uint64(header[0:8]),
			SimulatedMs: int64(binary.LittleEndian.Uint64(header[8:16])),
			CapturedAt:  time.Unix(0, int64(binary.LittleEndian.Uint64(header[16:24]))).UTC(),
			Payload:     payload,
			Size:        int(size),
		})
	}
}
