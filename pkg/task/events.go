package task

import "github.com/marmos91/chunkflow/pkg/resume"

// EventName identifies the kind of lifecycle event carried by an Event.
type EventName string

// Required task events, per the event surface.
const (
	EventStart        EventName = "start"
	EventProgress     EventName = "progress"
	EventChunkSuccess EventName = "chunkSuccess"
	EventChunkError   EventName = "chunkError"
	EventHashProgress EventName = "hashProgress"
	EventHashComplete EventName = "hashComplete"
	EventPause        EventName = "pause"
	EventResume       EventName = "resume"
	EventCancel       EventName = "cancel"
	EventSuccess      EventName = "success"
	EventError        EventName = "error"
)

// Event is the single payload type carried by a Task's event bus. Only the
// fields relevant to Name are populated; the rest are zero.
type Event struct {
	Name   EventName
	TaskID string
	Status resume.Status

	Progress Progress

	// ChunkIndex is -1 when the event is not scoped to one chunk.
	ChunkIndex int
	ChunkHash  string

	HashPercent int

	Err error

	FileURL string
	FileID  string
}
