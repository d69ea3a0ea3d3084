package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the deck loop.
// In this codebase, those are recorder daemon calls, filesystem operations,
// playback launches, and icon writes.
type Command interface {
	commandMarker()
	String() string
}

// CmdStatFile re-checks whether a key's recording file exists on disk.
// Every press decision starts with one of these; the cached existence state
// is never trusted for a press.
type CmdStatFile struct {
	Key  uint8
	Path string
}

func (CmdStatFile) commandMarker() {}
func (c CmdStatFile) String() string {
	return fmt.Sprintf("CmdStatFile(key=%d path=%s)", c.Key, c.Path)
}

// CmdQueryStatus asks the recorder daemon whether it is idle (STATUS).
type CmdQueryStatus struct {
	Key uint8
}

func (CmdQueryStatus) commandMarker() {}
func (c CmdQueryStatus) String() string {
	return fmt.Sprintf("CmdQueryStatus(key=%d)", c.Key)
}

// CmdStartRecording asks the recorder daemon to start capturing to Path.
type CmdStartRecording struct {
	Key  uint8
	Path string
}

func (CmdStartRecording) commandMarker() {}
func (c CmdStartRecording) String() string {
	return fmt.Sprintf("CmdStartRecording(key=%d path=%s)", c.Key, c.Path)
}

// CmdStopRecording asks the recorder daemon to stop the active capture.
type CmdStopRecording struct {
	Key uint8
}

func (CmdStopRecording) commandMarker() {}
func (c CmdStopRecording) String() string {
	return fmt.Sprintf("CmdStopRecording(key=%d)", c.Key)
}

// CmdDeleteFile removes a key's recording file from disk.
type CmdDeleteFile struct {
	Key  uint8
	Path string
}

func (CmdDeleteFile) commandMarker() {}
func (c CmdDeleteFile) String() string {
	return fmt.Sprintf("CmdDeleteFile(key=%d path=%s)", c.Key, c.Path)
}

// CmdPlayFile launches asynchronous playback of a key's recording.
// The loop never waits for playback to finish.
type CmdPlayFile struct {
	Key  uint8
	Path string
}

func (CmdPlayFile) commandMarker() {}
func (c CmdPlayFile) String() string {
	return fmt.Sprintf("CmdPlayFile(key=%d path=%s)", c.Key, c.Path)
}

// CmdSetIcon writes a button icon and flushes it to the panel.
// Set and flush are one logical side effect; they always happen together
// before the next event is processed.
type CmdSetIcon struct {
	Key  uint8
	Icon IconState
}

func (CmdSetIcon) commandMarker() {}
func (c CmdSetIcon) String() string {
	return fmt.Sprintf("CmdSetIcon(key=%d icon=%s)", c.Key, c.Icon)
}

// CmdShutdown terminates the control loop (exit gesture).
type CmdShutdown struct{}

func (CmdShutdown) commandMarker() {}
func (CmdShutdown) String() string { return "CmdShutdown()" }
