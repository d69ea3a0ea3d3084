package main

import (
	"strings"
	"time"
)

// This file implements the reducer for the button state machine:
//
//   - Events: panel gestures, observations from executed commands, external
//     file changes (see events.go)
//   - Commands: side effects requested by the reducer (see commands.go)
//   - Reduce(): computes next state + commands, without performing I/O
//
// The reducer must not perform I/O, must not block, and must not mutate
// anything outside the returned state. The deck loop executes Commands and
// feeds resulting observations back as Events, synchronously, so no two
// transitions for the same key ever interleave.

// GestureConfig carries the reducer's tunables.
type GestureConfig struct {
	// HoldThreshold disambiguates tap from hold on release. The comparison
	// is inclusive: elapsed == HoldThreshold already deletes.
	HoldThreshold time.Duration
}

// Gesture is the tap/hold classification of a completed press-release pair.
type Gesture int

const (
	GestureTap Gesture = iota
	GestureHold
)

// classifyGesture computes the gesture from the elapsed press duration.
// This is the only place the threshold comparison lives.
func classifyGesture(elapsed, threshold time.Duration) Gesture {
	if elapsed >= threshold {
		return GestureHold
	}
	return GestureTap
}

// ReduceResult is the output of Reduce(): next state plus Commands to execute.
type ReduceResult struct {
	State    *DeckState
	Commands []Command
}

// Reduce is the pure reducer for the deck.
//
// The deck loop must:
// - execute Commands
// - translate outcomes into observation Events
// - feed those Events back into Reduce()
func Reduce(s *DeckState, e Event, cfg GestureConfig) ReduceResult {
	if s == nil {
		s = &DeckState{ActiveKey: noActiveKey}
	}

	// External events are wrapped with their arrival instant by the loop.
	at := time.Now()
	if te, ok := e.(TimedEvent); ok {
		if !te.At.IsZero() {
			at = te.At
		}
		e = te.Event
	}

	var cmds []Command

	switch ev := e.(type) {
	case ButtonDown:
		ks, ok := s.Keys[ev.Key]
		if !ok {
			break // unbound key
		}
		if s.IsActive(ev.Key) {
			break // re-press of the recording key is a no-op
		}
		if ks.PressPending || ks.StartPending || !ks.HeldSince.IsZero() {
			break // duplicate press while a gesture is already in flight
		}

		// File presence is re-checked on every press; the decision happens
		// when the stat observation comes back.
		ks.PressPending = true
		ks.PressedAt = at
		cmds = append(cmds, CmdStatFile{Key: ev.Key, Path: ks.Path})

	case ButtonUp:
		// Exit gesture: release of the last panel key terminates the loop
		// unconditionally, ahead of any other release logic.
		if ev.Key == s.ExitKey {
			s.ShuttingDown = true
			cmds = append(cmds, CmdShutdown{})
			break
		}

		ks, ok := s.Keys[ev.Key]
		if !ok {
			break
		}

		switch {
		case s.IsActive(ev.Key):
			// Release of the recording key: STOP. On failure the state is
			// left unchanged so the next release retries the STOP.
			cmds = append(cmds, CmdStopRecording{Key: ev.Key})

		case !ks.HeldSince.IsZero():
			elapsed := at.Sub(ks.HeldSince)
			ks.HeldSince = time.Time{}

			switch classifyGesture(elapsed, cfg.HoldThreshold) {
			case GestureHold:
				cmds = append(cmds, CmdDeleteFile{Key: ev.Key, Path: ks.Path})
			case GestureTap:
				// Fire-and-forget playback; the icon goes back to "play"
				// immediately, not when playback finishes.
				cmds = append(cmds,
					CmdPlayFile{Key: ev.Key, Path: ks.Path},
					CmdSetIcon{Key: ev.Key, Icon: IconPlay},
				)
			}

		default:
			// Release with no tracked press (unbound gestures, releases
			// that raced a failed stat): ignored.
			ks.PressPending = false
			ks.StartPending = false
		}

	case FileStatObserved:
		ks, ok := s.Keys[ev.Key]
		if !ok {
			break
		}
		prev := ks.FileExists
		s.SetObservedFile(ev.Key, ev.Exists, ev.At)

		if ks.PressPending {
			// This stat decides what the in-flight press means.
			ks.PressPending = false

			if ev.Exists {
				// Armed: start the hold timer from the press instant and
				// show the recording icon as a hold indicator. No daemon
				// command for this transition.
				ks.HeldSince = ks.PressedAt
				if ks.HeldSince.IsZero() {
					ks.HeldSince = ev.At
				}
				cmds = append(cmds, CmdSetIcon{Key: ev.Key, Icon: IconRecording})
				break
			}

			// Empty key: only one recording may run at a time. With a local
			// session active this press is dropped without even asking the
			// daemon; otherwise STATUS decides.
			if s.HasActive() {
				break
			}
			ks.StartPending = true
			cmds = append(cmds, CmdQueryStatus{Key: ev.Key})
			break
		}

		cmds = appendIconRefresh(cmds, s, ev.Key, prev)

	case DaemonStatusObserved:
		ks, ok := s.Keys[ev.Key]
		if !ok || !ks.StartPending {
			break
		}
		if !strings.Contains(ev.Response, statusListening) {
			// Daemon busy or in an unknown state: the press is ignored.
			ks.StartPending = false
			break
		}
		if s.HasActive() {
			ks.StartPending = false
			break
		}
		cmds = append(cmds, CmdStartRecording{Key: ev.Key, Path: ks.Path})

	case RecordingStarted:
		ks, ok := s.Keys[ev.Key]
		if !ok {
			break
		}
		ks.StartPending = false
		if s.HasActive() {
			break
		}
		s.SetActive(ev.Key)
		cmds = append(cmds, CmdSetIcon{Key: ev.Key, Icon: IconRecording})

	case RecordingStopped:
		if !s.IsActive(ev.Key) {
			break
		}
		s.ClearActive()
		s.SetObservedFile(ev.Key, true, ev.At)
		cmds = append(cmds, CmdSetIcon{Key: ev.Key, Icon: IconPlay})

	case FileDeleted:
		s.SetObservedFile(ev.Key, false, ev.At)
		cmds = append(cmds, CmdSetIcon{Key: ev.Key, Icon: IconIdle})

	case FileChanged:
		ks, ok := s.Keys[ev.Key]
		if !ok {
			break
		}
		prev := ks.FileExists
		when := ev.At
		if when.IsZero() {
			when = at
		}
		s.SetObservedFile(ev.Key, ev.Exists, when)
		cmds = appendIconRefresh(cmds, s, ev.Key, prev)

	case RefreshFiles:
		// Deterministic key order keeps command sequences stable.
		for k := 0; k < 256; k++ {
			key := uint8(k)
			if ks, ok := s.Keys[key]; ok {
				cmds = append(cmds, CmdStatFile{Key: key, Path: ks.Path})
			}
		}

	case EffectFailed:
		cmds = reduceEffectFailure(s, ev, cmds)

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:    s,
		Commands: cmds,
	}
}

// appendIconRefresh emits an icon update when a key's observed file
// existence changed and no session or gesture owns the key's icon.
// The active key is always treated as "no persisted file yet": a file
// appearing mid-recording must not flip its icon.
func appendIconRefresh(cmds []Command, s *DeckState, key uint8, prevExists bool) []Command {
	ks := s.Keys[key]
	if ks == nil || ks.FileExists == prevExists {
		return cmds
	}
	if s.IsActive(key) || !ks.HeldSince.IsZero() || ks.PressPending || ks.StartPending {
		return cmds
	}
	icon := IconIdle
	if ks.FileExists {
		icon = IconPlay
	}
	return append(cmds, CmdSetIcon{Key: key, Icon: icon})
}

// reduceEffectFailure folds command failures back into the state machine.
// Failure policy, per command:
//   - STOP: state untouched, so the next release of the same key retries and
//     the icon keeps showing "recording" until STOP succeeds.
//   - delete: file kept, icon reverts to "play"; no automatic retry.
//   - STATUS/START/stat: the pending press dissolves into a no-op.
//   - playback/icon: logged by the effects layer, nothing to undo.
func reduceEffectFailure(s *DeckState, ev EffectFailed, cmds []Command) []Command {
	switch cmd := ev.Command.(type) {
	case CmdStatFile:
		if ks, ok := s.Keys[cmd.Key]; ok {
			ks.PressPending = false
		}

	case CmdQueryStatus:
		if ks, ok := s.Keys[cmd.Key]; ok {
			ks.StartPending = false
		}

	case CmdStartRecording:
		if ks, ok := s.Keys[cmd.Key]; ok {
			ks.StartPending = false
		}

	case CmdStopRecording:
		// Intentionally nothing: Recording state survives a failed STOP.

	case CmdDeleteFile:
		cmds = append(cmds, CmdSetIcon{Key: cmd.Key, Icon: IconPlay})
	}
	return cmds
}
