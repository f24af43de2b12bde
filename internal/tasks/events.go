package tasks

import (
	"encoding/json"
)

// EventType enumerates the lifecycle events a sync run emits.
type EventType int

const (
	EventStart EventType = iota
	EventProgress
	EventDone
	EventError
	EventAuthExpired
	EventComplete
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventProgress:
		return "progress"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	case EventAuthExpired:
		return "auth_expired"
	case EventComplete:
		return "complete"
	default:
		return ""
	}
}

// Event is one entry in a run's ordered progress stream. Exactly one
// EventStart precedes, and exactly one EventDone or EventError closes, each
// attempted collection; EventAuthExpired and EventComplete are run-terminal.
type Event struct {
	Type    EventType
	Task    string            // collection name: playlists, favorites, albums, artists
	Label   string            // human-readable task label
	Percent int               // 0..100, non-decreasing within a collection
	Item    string            // display string for the item being processed
	Result  *CollectionResult // set on EventDone
	Run     *RunResult        // set on EventComplete
	Service string            // set on EventAuthExpired
	Err     string            // set on EventError
}

// MarshalJSON renders the event in the wire shape consumed by stream
// transports: a JSON object with a "type" discriminator plus type-specific
// fields.
func (e Event) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"type": e.Type.String()}

	switch e.Type {
	case EventStart:
		payload["task"] = e.Task
		payload["label"] = e.Label
	case EventProgress:
		payload["task"] = e.Task
		payload["percent"] = e.Percent
		if e.Item != "" {
			payload["item"] = e.Item
		}
	case EventDone:
		payload["task"] = e.Task
		payload["result"] = e.Result
	case EventError:
		payload["task"] = e.Task
		payload["error"] = e.Err
	case EventAuthExpired:
		payload["service"] = e.Service
	case EventComplete:
		payload["result"] = e.Run
	}

	return json.Marshal(payload)
}

func startEvent(task, label string) Event {
	return Event{Type: EventStart, Task: task, Label: label}
}

func progressEvent(task string, percent int, item string) Event {
	return Event{Type: EventProgress, Task: task, Percent: percent, Item: item}
}

func doneEvent(task string, result *CollectionResult) Event {
	return Event{Type: EventDone, Task: task, Result: result}
}

func errorEvent(task string, err error) Event {
	return Event{Type: EventError, Task: task, Err: err.Error()}
}

func authExpiredEvent(service string) Event {
	return Event{Type: EventAuthExpired, Service: service}
}

func completeEvent(run *RunResult) Event {
	return Event{Type: EventComplete, Run: run}
}
