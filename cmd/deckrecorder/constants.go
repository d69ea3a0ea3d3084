package main

// Recorder daemon wire protocol: one newline-terminated command per
// connection, one line of response.
const (
	daemonCmdStatus = "STATUS"
	daemonCmdStart  = "START"
	daemonCmdStop   = "STOP"

	// statusListening is the substring that marks the daemon as idle and
	// ready to accept a START. Only STATUS responses are pattern-matched;
	// other responses count as success by virtue of the send succeeding.
	statusListening = "Listening"
)

// Gesture and daemon-call timing defaults
const (
	// defaultHoldThresholdMS is the tap/hold disambiguation threshold.
	// A press held for at least this long deletes the recording on release;
	// anything shorter plays it back.
	defaultHoldThresholdMS = 2000

	// defaultDaemonTimeoutMS bounds each daemon round-trip (dial + write +
	// read). A hung daemon stalls at most one call, not the whole session.
	defaultDaemonTimeoutMS = 1000
)

// Panel defaults
const (
	defaultBrightness = 50

	// defaultIconPixels is the icon edge length used for generated
	// fallback icons when no panel pixel size is known (72x72 is the
	// classic Stream Deck key size).
	defaultIconPixels = 72
)

// Playback defaults
const defaultPlayer = "pw-play"
