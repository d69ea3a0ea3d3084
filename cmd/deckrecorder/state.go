package main

import "time"

// noActiveKey marks the empty recording-session slot.
const noActiveKey = -1

// DeckState is the top-level, loop-owned state container.
//
// Goals:
//   - Keep all reducer-owned state in one place (pure reducer, no external mutation).
//   - Make the "at most one recording at a time" invariant enforceable by
//     construction: ActiveKey is the single session slot and only the
//     reducer, running on the loop goroutine, ever touches it.
//   - Make it easy to publish a coherent snapshot to other clients (IPC/WS).
type DeckState struct {
	// Keys holds per-key state for every bound key. Unbound keys have no
	// entry and are ignored by the reducer.
	Keys map[uint8]*KeyState

	// ActiveKey is the single recording-session slot: the key index whose
	// recording is in progress, or noActiveKey. Set when START succeeds,
	// cleared when the matching STOP succeeds, never in between.
	ActiveKey int

	// ExitKey is the highest-indexed panel key; releasing it terminates
	// the loop unconditionally.
	ExitKey uint8

	// ShuttingDown is set once the exit gesture has been reduced. The loop
	// stops processing further events after the shutdown command runs.
	ShuttingDown bool
}

// KeyState is the reducer-owned state for one bound key.
//
// The three logical key states are computed on demand, not stored:
// Empty (file absent, not active), Recording (key == ActiveKey), and
// HasFile (file present, not active), with HasFile subdivided by HeldSince
// into idle-with-file and held.
type KeyState struct {
	// Path is the recording file bound to this key. Immutable after startup.
	Path string

	// FileExists is the cached existence of Path. It is refreshed by an
	// explicit stat on every press decision, by observations after
	// start/stop/delete, and by the filesystem watcher; the press path
	// never trusts the cache directly.
	FileExists bool
	FileAt     time.Time

	// PressedAt is the instant the current press arrived. Gesture timing is
	// measured from the press itself, not from the stat that follows it.
	PressedAt time.Time

	// HeldSince marks an in-flight tap/hold gesture: set on press-down of a
	// key whose file exists, cleared on release. Zero means no gesture.
	HeldSince time.Time

	// PressPending is set between a press-down and the stat observation
	// that decides what the press means.
	PressPending bool

	// StartPending is set between the STATUS query and the outcome of the
	// START it may trigger.
	StartPending bool
}

// NewDeckState builds the initial state from the binding table.
// fileExists carries the startup filesystem scan.
func NewDeckState(bindings map[uint8]string, fileExists map[uint8]bool, exitKey uint8) *DeckState {
	s := &DeckState{
		Keys:      make(map[uint8]*KeyState, len(bindings)),
		ActiveKey: noActiveKey,
		ExitKey:   exitKey,
	}
	now := time.Now()
	for key, path := range bindings {
		s.Keys[key] = &KeyState{
			Path:       path,
			FileExists: fileExists[key],
			FileAt:     now,
		}
	}
	return s
}

// HasActive reports whether any key currently owns the recording session.
func (s *DeckState) HasActive() bool {
	return s.ActiveKey != noActiveKey
}

// IsActive reports whether key owns the recording session.
func (s *DeckState) IsActive(key uint8) bool {
	return s.ActiveKey == int(key)
}

// SetActive claims the recording session for key.
// Intended to be called only by the reducer (single-owner).
func (s *DeckState) SetActive(key uint8) {
	s.ActiveKey = int(key)
}

// ClearActive releases the recording session.
// Intended to be called only by the reducer (single-owner).
func (s *DeckState) ClearActive() {
	s.ActiveKey = noActiveKey
}

// SetObservedFile updates the cached file existence for key.
// Intended to be called only by the reducer (single-owner).
func (s *DeckState) SetObservedFile(key uint8, exists bool, now time.Time) {
	ks, ok := s.Keys[key]
	if !ok {
		return
	}
	ks.FileExists = exists
	ks.FileAt = now
}
