package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// deck-ctl - Command-line IPC Client
// ============================================================================
// This tool injects panel events into the deckrecorder daemon via IPC.
//
// Usage:
//   deck-ctl press 0
//   deck-ctl release 0
//   deck-ctl tap 1
//   deck-ctl refresh
//
// It can also talk to the recorder daemon directly:
//   deck-ctl daemon STATUS
//
// Options:
//   -socket PATH           deckrecorder IPC socket (default: /tmp/deckrecorder.sock)
//   -daemon-socket PATH    recorder daemon socket (default: /tmp/audio-monitor.sock)
// ============================================================================

// Event types (duplicated from main package for standalone binary)
type Event interface{}

type ButtonDown struct {
	Key uint8 `json:"key"`
}

type ButtonUp struct {
	Key uint8 `json:"key"`
}

type RefreshFiles struct{}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/deckrecorder.sock"
	daemonSocketPath := "/tmp/audio-monitor.sock"

	// Parse arguments
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for socket flags
	for flags := true; flags && len(args) >= 2; {
		switch args[0] {
		case "-socket", "--socket":
			socketPath = args[1]
			args = args[2:]
		case "-daemon-socket", "--daemon-socket":
			daemonSocketPath = args[1]
			args = args[2:]
		default:
			flags = false
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Parse command
	var events []Event

	switch args[0] {
	case "press", "down":
		key, err := parseKey(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		events = append(events, ButtonDown{Key: key})

	case "release", "up":
		key, err := parseKey(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		events = append(events, ButtonUp{Key: key})

	case "tap":
		key, err := parseKey(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		events = append(events, ButtonDown{Key: key}, ButtonUp{Key: key})

	case "refresh":
		events = append(events, RefreshFiles{})

	case "daemon":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: daemon requires a command (e.g. STATUS)\n")
			os.Exit(1)
		}
		resp, err := sendDaemonCommand(daemonSocketPath, strings.Join(args[1:], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		return

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	// Send events
	for _, ev := range events {
		if err := sendEvent(socketPath, ev); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("ok")
}

func parseKey(args []string) (uint8, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a key index", args[0])
	}
	n, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid key index %q: %w", args[1], err)
	}
	return uint8(n), nil
}

func sendEvent(socketPath string, ev Event) error {
	// Connect to socket
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	// Marshal event
	data, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Send event (line-delimited JSON)
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	// Read response
	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	// Check response status
	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
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

	case RefreshFiles:
		env.Type = "refresh_files"

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}

// sendDaemonCommand speaks the recorder daemon's raw line protocol: one
// newline-terminated command, one line of response.
func sendDaemonCommand(socketPath, command string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	resp := strings.TrimSpace(line)
	if resp == "" && err != nil {
		return "", fmt.Errorf("no response from daemon: %w", err)
	}
	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `deck-ctl - Control deckrecorder daemon via IPC

Usage:
  deck-ctl [options] <command> [args]

Options:
  -socket PATH           deckrecorder IPC socket (default: /tmp/deckrecorder.sock)
  -daemon-socket PATH    recorder daemon socket (default: /tmp/audio-monitor.sock)

Commands:
  press, down <key>     Simulate a panel key press
  release, up <key>     Simulate a panel key release
  tap <key>             Press immediately followed by release
  refresh               Re-check recording files on disk
  daemon <CMD> [args]   Send a raw command to the recorder daemon (STATUS/START/STOP)
  help, -h, --help      Show this help message

Examples:
  deck-ctl tap 0
  deck-ctl press 1
  deck-ctl -socket /var/run/deckrecorder.sock refresh
  deck-ctl daemon STATUS
`)
}
