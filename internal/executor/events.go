package executor

// EventType is one of the five execution lifecycle events spec.md §6
// defines for a running sequence.
type EventType string

const (
	EventStarted   EventType = "started"
	EventStep      EventType = "step"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// Event is emitted from the executor at every state change of a
// running (or rejected) sequence.
type Event struct {
	Type        EventType
	BindingName string
	RunID       string
	StepIndex   *int
	DelayMs     *int
	Err         string
	TimestampMs int64
}

// EventListener receives execution events. Implementations must not
// block for long: the executor calls it synchronously from the
// sequence's own flow.
type EventListener func(Event)
