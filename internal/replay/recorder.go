package replay

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"portalshift/engine/internal/codec"
	"portalshift/engine/internal/logging"
	"portalshift/engine/internal/state"
)

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Directory     string `json:"directory"`
	Events        int64  `json:"events"`
	Frames        int64  `json:"frames"`
	FrameBytes    int64  `json:"frame_bytes"`
	Failures      int64  `json:"failures"`
	LastFrameTick uint64 `json:"last_frame_tick"`
}

// Recorder samples tick diffs into a Writer: every event, and one frame per
// FrameInterval of simulated time.
type Recorder struct {
	mu        sync.Mutex
	writer    *Writer
	encoder   *codec.Encoder
	logger    *logging.Logger
	step      time.Duration
	elapsed   time.Duration
	nextFrame time.Duration
	stats     Stats
}

// NewRecorder wraps writer. step is the fixed tick duration used to derive simulated time.
func NewRecorder(writer *Writer, step time.Duration, logger *logging.Logger) (*Recorder, error) {
	if writer == nil {
		return nil, fmt.Errorf("replay writer must be provided")
	}
	if step <= 0 {
		return nil, fmt.Errorf("tick step must be positive")
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Recorder{
		writer:  writer,
		encoder: codec.NewEncoder(0),
		logger:  logger,
		step:    step,
		stats:   Stats{Directory: writer.Directory()},
	}, nil
}

// Record persists the events of a diff and, when due, its snapshot frame.
func (r *Recorder) Record(diff state.TickDiff) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.elapsed += r.step
	simulatedMs := r.elapsed.Milliseconds()

	//1.- Events are always kept; they are sparse and carry the interesting moments.
	for _, event := range diff.Events {
		payload, err := json.Marshal(event)
		if err != nil {
			return r.fail(fmt.Errorf("encode event %s: %w", event.ID, err))
		}
		if err := r.writer.AppendEvent(diff.Tick, simulatedMs, string(event.Type), payload); err != nil {
			return r.fail(fmt.Errorf("append event: %w", err))
		}
		r.stats.Events++
	}

	//2.- Frames are sampled on simulated time so replays do not depend on host speed.
	if r.elapsed < r.nextFrame {
		return nil
	}
	r.nextFrame = r.elapsed + FrameInterval
	payload, err := r.encoder.Encode(diff.Snapshot)
	if err != nil {
		return r.fail(fmt.Errorf("encode frame: %w", err))
	}
	if err := r.writer.AppendFrame(diff.Tick, simulatedMs, payload); err != nil {
		return r.fail(fmt.Errorf("append frame: %w", err))
	}
	r.stats.Frames++
	r.stats.FrameBytes += int64(len(payload))
	r.stats.LastFrameTick = diff.Tick
	return nil
}

// Close flushes and closes the underlying writer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}

// Snapshot returns a copy of the recorder counters.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Recorder) fail(err error) error {
	r.stats.Failures++
	r.logger.Warn("replay record failed", logging.Error(err), logging.String("directory", r.stats.Directory))
	return err
}
