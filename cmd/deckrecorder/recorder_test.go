package main

import (
	"bufio"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startFakeDaemon serves the recorder daemon's line protocol on a Unix
// socket: read one command line, answer with respond(command).
func startFakeDaemon(t *testing.T, respond func(command string) string) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen on %s: %v", socketPath, err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err != nil {
					return
				}
				fmt.Fprintf(conn, "%s\n", respond(strings.TrimSpace(line)))
			}(conn)
		}
	}()

	return socketPath
}

func TestClient_SendStatus(t *testing.T) {
	socketPath := startFakeDaemon(t, func(command string) string {
		if command == daemonCmdStatus {
			return "Listening"
		}
		return "ERROR unknown command"
	})

	client := NewClient(socketPath, time.Second, testLogger())
	resp, err := client.Send(daemonCmdStatus)
	if err != nil {
		t.Fatalf("Send(STATUS) failed: %v", err)
	}
	if resp != "Listening" {
		t.Fatalf("expected Listening, got %q", resp)
	}
}

func TestClient_SendCarriesArguments(t *testing.T) {
	var got string
	socketPath := startFakeDaemon(t, func(command string) string {
		got = command
		return "OK"
	})

	client := NewClient(socketPath, time.Second, testLogger())
	resp, err := client.Send(daemonCmdStart + " /tmp/recording_A.wav")
	if err != nil {
		t.Fatalf("Send(START) failed: %v", err)
	}
	if resp != "OK" {
		t.Fatalf("expected OK, got %q", resp)
	}
	if got != "START /tmp/recording_A.wav" {
		t.Fatalf("daemon saw command %q", got)
	}
}

func TestClient_SendTrimsResponse(t *testing.T) {
	socketPath := startFakeDaemon(t, func(command string) string {
		return "  Listening\r"
	})

	client := NewClient(socketPath, time.Second, testLogger())
	resp, err := client.Send(daemonCmdStatus)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp != "Listening" {
		t.Fatalf("expected trimmed response, got %q", resp)
	}
}

func TestClient_SendAcceptsResponseWithoutNewline(t *testing.T) {
	// A daemon that writes its response and closes without a trailing
	// newline still counts as having answered.
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n')
		conn.Write([]byte("Listening"))
	}()

	client := NewClient(socketPath, time.Second, testLogger())
	resp, err := client.Send(daemonCmdStatus)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp != "Listening" {
		t.Fatalf("expected Listening, got %q", resp)
	}
}

func TestClient_SendConnectionRefused(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "nobody.sock"), 100*time.Millisecond, testLogger())
	if _, err := client.Send(daemonCmdStatus); err == nil {
		t.Fatalf("expected error for missing daemon socket")
	}
}

func TestClient_SendEmptyResponseIsError(t *testing.T) {
	// Daemon accepts and closes without answering.
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	client := NewClient(socketPath, time.Second, testLogger())
	if _, err := client.Send(daemonCmdStatus); err == nil {
		t.Fatalf("expected error when daemon closes without responding")
	}
}

func TestClient_SendTimesOutOnSilentDaemon(t *testing.T) {
	// Daemon accepts but never responds; the round-trip deadline fires.
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-hold
	}()

	client := NewClient(socketPath, 100*time.Millisecond, testLogger())
	start := time.Now()
	if _, err := client.Send(daemonCmdStatus); err == nil {
		t.Fatalf("expected timeout error from silent daemon")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Send took %v, deadline did not bound the round-trip", elapsed)
	}
}
