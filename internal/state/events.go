package state

import (
	"sync"

	"portalshift/engine/internal/geometry"
)

// EventType names a gameplay occurrence worth broadcasting or recording.
type EventType string

const (
	EventPortalPlaced   EventType = "portal_placed"
	EventPortalRejected EventType = "portal_rejected"
	EventTransfer       EventType = "portal_transfer"
	EventSwitchToggled  EventType = "switch_toggled"
	EventLevelReset     EventType = "level_reset"
)

// Event is a single gameplay occurrence stamped with the tick that produced it.
type Event struct {
	ID       string            `json:"id"`
	Tick     uint64            `json:"tick"`
	Type     EventType         `json:"type"`
	Actor    string            `json:"actor,omitempty"`
	Position geometry.Point    `json:"position"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EventStore buffers gameplay events until the next tick publishes them.
type EventStore struct {
	mu     sync.Mutex
	events []Event
}

// NewEventStore constructs an event buffer.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Add enqueues a gameplay event for the next diff.
func (s *EventStore) Add(event Event) {
	if s == nil {
		return
	}
	clone := cloneEvent(event)
	s.mu.Lock()
	//1.- Append while holding the mutex to keep emission order.
	s.events = append(s.events, clone)
	s.mu.Unlock()
}

// ConsumeDiff flushes and returns the queued events.
func (s *EventStore) ConsumeDiff() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	//1.- Swap out the current slice with a fresh buffer for the next tick.
	events := s.events
	s.events = nil
	s.mu.Unlock()
	return events
}

func cloneEvent(event Event) Event {
	if event.Metadata != nil {
		metadata := make(map[string]string, len(event.Metadata))
		for key, value := range event.Metadata {
			metadata[key] = value
		}
		event.Metadata = metadata
	}
	return event
}
