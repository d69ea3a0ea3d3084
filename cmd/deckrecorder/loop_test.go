package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// scriptedClient answers daemon commands by prefix, recording the order.
type scriptedClient struct {
	sent []string
}

func (c *scriptedClient) Send(command string) (string, error) {
	c.sent = append(c.sent, command)
	switch {
	case command == daemonCmdStatus:
		return "Listening", nil
	case command == daemonCmdStop:
		return "Recording stopped", nil
	default:
		return "Recording started", nil
	}
}

// TestRunDeck_RecordStopExitScenario drives a full session through the loop:
// press an empty key (STATUS + START), release it (STOP), then release the
// exit key. Commands run synchronously inside the loop, so the daemon
// command order is deterministic.
func TestRunDeck_RecordStopExitScenario(t *testing.T) {
	logger := testLogger()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")

	bindings := map[uint8]string{0: path}
	state := NewDeckState(bindings, nil, 2)

	client := &scriptedClient{}
	sink := newFakeSink()
	icons := LoadIconSet(IconFileConfig{}, 72, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := Effects{
		Client:   client,
		Icons:    icons,
		Panel:    sink,
		Shutdown: cancel,
	}

	var snapshots []StateSnapshot
	publish := func(s *DeckState) {
		snapshots = append(snapshots, snapshotDeck(s))
	}

	events := make(chan Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDeck(ctx, events, state, GestureConfig{HoldThreshold: 2 * time.Second}, fx, publish, logger)
	}()

	events <- ButtonDown{Key: 0}
	events <- ButtonUp{Key: 0}
	events <- ButtonUp{Key: 2} // exit gesture

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not terminate on exit gesture")
	}

	want := []string{daemonCmdStatus, daemonCmdStart + " " + path, daemonCmdStop}
	if len(client.sent) != len(want) {
		t.Fatalf("expected daemon commands %v, got %v", want, client.sent)
	}
	for i := range want {
		if client.sent[i] != want[i] {
			t.Fatalf("daemon command %d: expected %q, got %q", i, want[i], client.sent[i])
		}
	}

	// Snapshots were published for every external event: recording in the
	// first, stopped-with-file after the release.
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 published snapshots, got %d", len(snapshots))
	}
	first := snapshots[0]
	if first.ActiveKey == nil || *first.ActiveKey != 0 {
		t.Fatalf("expected key 0 recording after press, got %+v", first)
	}
	second := snapshots[1]
	if second.ActiveKey != nil {
		t.Fatalf("expected no active key after release, got %+v", second)
	}
	if len(second.Keys) != 1 || !second.Keys[0].FileExists {
		t.Fatalf("expected key 0 to have a file after STOP, got %+v", second.Keys)
	}

	// Icon history: recording on START, play on STOP.
	if sink.images[0] != icons.Image(IconPlay) {
		t.Fatalf("expected final icon to be play")
	}
	if sink.flushes < 2 {
		t.Fatalf("expected a flush per icon write, got %d", sink.flushes)
	}
}

func TestRunDeck_StopsOnContextCancel(t *testing.T) {
	logger := testLogger()
	state := NewDeckState(map[uint8]string{0: "/tmp/recording_A.wav"}, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDeck(ctx, events, state, GestureConfig{HoldThreshold: 2 * time.Second}, Effects{}, nil, logger)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop on context cancel")
	}
}

func TestRunDeck_StopsOnClosedChannel(t *testing.T) {
	logger := testLogger()
	state := NewDeckState(map[uint8]string{0: "/tmp/recording_A.wav"}, nil, 2)

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDeck(context.Background(), events, state, GestureConfig{HoldThreshold: 2 * time.Second}, Effects{}, nil, logger)
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop on channel close")
	}
}
