package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ==============================
// Events
// ==============================
// Events are the inputs to the reducer: panel gestures, observations fed
// back from executed commands, and external filesystem changes. The deck
// loop is the only consumer; producers (panel pump, IPC server, watcher)
// just feed the events channel.

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent wraps an external event with the instant it entered the loop.
// The loop assigns timestamps so producers stay payload-only.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// ButtonDown is a press on a numbered panel key.
type ButtonDown struct {
	Key uint8 `json:"key"`
}

func (ButtonDown) eventMarker() {}

// ButtonUp is a release of a numbered panel key.
type ButtonUp struct {
	Key uint8 `json:"key"`
}

func (ButtonUp) eventMarker() {}

// FileChanged reports that a bound recording file appeared or disappeared
// outside the loop's own doing (fsnotify watcher, or injected over IPC).
type FileChanged struct {
	Key    uint8 `json:"key"`
	Exists bool  `json:"exists"`
	At     time.Time
}

func (FileChanged) eventMarker() {}

// RefreshFiles requests a re-stat of every bound recording file.
type RefreshFiles struct{}

func (RefreshFiles) eventMarker() {}

// ==============================
// Observation events (effects feedback)
// ==============================

// FileStatObserved is the result of a CmdStatFile.
type FileStatObserved struct {
	Key    uint8
	Exists bool
	At     time.Time
}

func (FileStatObserved) eventMarker() {}

// DaemonStatusObserved carries the raw STATUS response line.
type DaemonStatusObserved struct {
	Key      uint8
	Response string
	At       time.Time
}

func (DaemonStatusObserved) eventMarker() {}

// RecordingStarted is emitted after a successful START.
type RecordingStarted struct {
	Key uint8
	At  time.Time
}

func (RecordingStarted) eventMarker() {}

// RecordingStopped is emitted after a successful STOP.
type RecordingStopped struct {
	Key uint8
	At  time.Time
}

func (RecordingStopped) eventMarker() {}

// FileDeleted is emitted after a successful recording-file delete.
type FileDeleted struct {
	Key uint8
	At  time.Time
}

func (FileDeleted) eventMarker() {}

// EffectFailed is emitted when executing a Command fails. The reducer
// decides per command type whether failure means "state unchanged, retry
// on next gesture" (STOP) or "fold into a no-op" (everything else).
type EffectFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (EffectFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events for the IPC surface. Only externally injectable
// events are encodable; observations stay internal to the loop.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "button_down":
		var e ButtonDown
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonDown: %w", err)
		}
		return e, nil

	case "button_up":
		var e ButtonUp
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonUp: %w", err)
		}
		return e, nil

	case "file_changed":
		var e FileChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal FileChanged: %w", err)
		}
		return e, nil

	case "refresh_files":
		return RefreshFiles{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ButtonDown:
		env.Type = "button_down"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonDown: %w", err)
		}
		env.Data = data

	case ButtonUp:
		env.Type = "button_up"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonUp: %w", err)
		}
		env.Data = data

	case FileChanged:
		env.Type = "file_changed"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal FileChanged: %w", err)
		}
		env.Data = data

	case RefreshFiles:
		env.Type = "refresh_files"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
