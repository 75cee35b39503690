package tasks

// EventKind classifies queue change events.
type EventKind string

const (
	EventAdded         EventKind = "added"
	EventStatusChanged EventKind = "status_changed"
	EventUpdated       EventKind = "updated"
)

// Event carries data about a queue mutation.
type Event struct {
	Kind     EventKind
	Task     *Task
	Previous Status // for EventStatusChanged: status before the change
}

// Handler receives queue events. Handlers run synchronously in
// registration order; a panicking handler propagates to the mutating
// caller.
type Handler func(Event)
