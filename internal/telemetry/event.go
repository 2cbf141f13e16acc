package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// Kind names an event stream.
type Kind string

const (
	// KindTransition is emitted on every behavior switch, including switches
	// to and from none.
	KindTransition Kind = "behavior_transition"
	// KindResult is emitted when a running behavior reports Complete or Failure.
	KindResult Kind = "behavior_result"
	// KindInitFailure is emitted when a selected behavior fails to Init.
	KindInitFailure Kind = "behavior_init_failure"
	// KindActivity is emitted when the active activity changes.
	KindActivity Kind = "activity_change"
)

// Transition describes one switch of the current behavior.
type Transition struct {
	OldID    behavior.ID    `json:"old_behavior_id"`
	NewID    behavior.ID    `json:"new_behavior_id"`
	OldClass behavior.Class `json:"old_behavior_class"`
	NewClass behavior.Class `json:"new_behavior_class"`
}

// Event is a one-way telemetry record.
type Event struct {
	EventID    string          `json:"event_id"`
	Kind       Kind            `json:"kind"`
	Tick       uint64          `json:"tick"`
	At         time.Time       `json:"at"`
	Transition *Transition     `json:"transition,omitempty"`
	Behavior   behavior.ID     `json:"behavior,omitempty"`
	Status     behavior.Status `json:"status,omitempty"`
	Activity   string          `json:"activity,omitempty"`
	Detail     string          `json:"detail,omitempty"`
}

// NewEvent stamps a fresh event id.
func NewEvent(kind Kind, tick uint64, at time.Time) Event {
	return Event{EventID: uuid.NewString(), Kind: kind, Tick: tick, At: at}
}

// Sink receives telemetry events. Publish must not block the tick.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// Fanout publishes to every non-nil sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(e Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(e)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
