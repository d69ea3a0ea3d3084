package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func startTestIPCServer(t *testing.T, events chan Event) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "ipc.sock")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		if err := runIPCServer(ctx, socketPath, events, testLogger()); err != nil {
			t.Errorf("IPC server error: %v", err)
		}
	}()

	// Wait for the socket to appear.
	waitUntil(t, time.Second, func() bool {
		err := SendIPCEvent(socketPath, RefreshFiles{})
		return err == nil
	}, "IPC server did not come up")

	// Drain the probe event.
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatalf("probe event not delivered")
	}

	return socketPath
}

func TestIPCServer_InjectsEvents(t *testing.T) {
	events := make(chan Event, 16)
	socketPath := startTestIPCServer(t, events)

	if err := SendIPCEvent(socketPath, ButtonDown{Key: 1}); err != nil {
		t.Fatalf("SendIPCEvent(ButtonDown) failed: %v", err)
	}
	select {
	case ev := <-events:
		down, ok := ev.(ButtonDown)
		if !ok || down.Key != 1 {
			t.Fatalf("expected ButtonDown{1}, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("injected event not delivered")
	}

	if err := SendIPCEvent(socketPath, FileChanged{Key: 0, Exists: true}); err != nil {
		t.Fatalf("SendIPCEvent(FileChanged) failed: %v", err)
	}
	select {
	case ev := <-events:
		fc, ok := ev.(FileChanged)
		if !ok || fc.Key != 0 || !fc.Exists {
			t.Fatalf("expected FileChanged{0,true}, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("injected event not delivered")
	}
}

func TestIPCServer_RejectsFullQueue(t *testing.T) {
	// Capacity 1: the probe drain leaves it empty, then two sends fill and
	// overflow it.
	events := make(chan Event, 1)
	socketPath := startTestIPCServer(t, events)

	if err := SendIPCEvent(socketPath, RefreshFiles{}); err != nil {
		t.Fatalf("first send should fit the queue: %v", err)
	}
	if err := SendIPCEvent(socketPath, RefreshFiles{}); err == nil {
		t.Fatalf("expected error when the event queue is full")
	}
}

func TestSendIPCEvent_NoServer(t *testing.T) {
	err := SendIPCEvent(filepath.Join(t.TempDir(), "nobody.sock"), RefreshFiles{})
	if err == nil {
		t.Fatalf("expected error without a server")
	}
}

func TestMarshalEvent_RoundTrip(t *testing.T) {
	cases := []Event{
		ButtonDown{Key: 3},
		ButtonUp{Key: 7},
		FileChanged{Key: 1, Exists: true},
		RefreshFiles{},
	}

	for _, ev := range cases {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("marshal %T: %v", ev, err)
		}
		got, err := UnmarshalEvent(data)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", ev, err)
		}
		switch want := ev.(type) {
		case ButtonDown:
			if got.(ButtonDown).Key != want.Key {
				t.Fatalf("round trip lost key: %v != %v", got, want)
			}
		case ButtonUp:
			if got.(ButtonUp).Key != want.Key {
				t.Fatalf("round trip lost key: %v != %v", got, want)
			}
		case FileChanged:
			g := got.(FileChanged)
			if g.Key != want.Key || g.Exists != want.Exists {
				t.Fatalf("round trip lost fields: %v != %v", got, want)
			}
		case RefreshFiles:
			if _, ok := got.(RefreshFiles); !ok {
				t.Fatalf("expected RefreshFiles, got %T", got)
			}
		}
	}
}

func TestUnmarshalEvent_Unknown(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"type":"reboot"}`)); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
	if _, err := UnmarshalEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	// Observations are not part of the IPC surface.
	if _, err := MarshalEvent(RecordingStarted{Key: 0}); err == nil {
		t.Fatalf("expected error marshaling internal observation")
	}
}
