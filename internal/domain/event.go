package domain

import "time"

// EventKind represents the type of a progress event
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventUpdated      EventKind = "updated"
	EventCompleted    EventKind = "completed"
	EventFailed       EventKind = "failed"
	EventCancelled    EventKind = "cancelled"
	EventSpeedUpdated EventKind = "speed_updated"
	EventETAUpdated   EventKind = "eta_updated"
)

// EventDiff carries the deltas that triggered an event, for listeners
// that render changes rather than absolute state.
type EventDiff struct {
	SpeedBefore   *float64 `json:"speed_before,omitempty"`
	SpeedAfter    *float64 `json:"speed_after,omitempty"`
	PercentBefore float64  `json:"percent_before"`
	PercentAfter  float64  `json:"percent_after"`
	ETABefore     *int64   `json:"eta_before,omitempty"`
	ETAAfter      *int64   `json:"eta_after,omitempty"`
}

// ProgressEvent is a typed notification fired by the registry on every
// mutation. Exactly one event is emitted per update; the kind is chosen
// by a priority chain (terminal transition, then speed, then ETA, then
// a generic update). Events are created fresh per update and never persisted.
type ProgressEvent struct {
	Kind      EventKind      `json:"kind"`
	RequestID string         `json:"request_id"`
	Record    ProgressRecord `json:"record"`
	Timestamp time.Time      `json:"timestamp"`
	Diff      *EventDiff     `json:"diff,omitempty"`
}

// EventListener receives progress events from the registry. A panic in a
// listener is recovered and logged so one faulty observer cannot break
// delivery to the others.
type EventListener func(ProgressEvent)
