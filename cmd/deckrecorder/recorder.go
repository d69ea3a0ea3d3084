package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Client talks the recorder daemon's line protocol over its Unix socket:
// one newline-terminated command per connection, one line of response.
//
// A fresh connection is dialed per call; no persistent connection is held.
// No retries happen here either: retry policy belongs to the caller (the
// reducer's STOP-retry-on-release rule relies on that).
type Client struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient builds a daemon client. timeout bounds the whole round-trip
// (dial, write, read) of each Send so a hung daemon cannot stall the loop
// indefinitely.
func NewClient(socketPath string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    timeout,
		logger:     logger,
	}
}

// Send writes command and returns the daemon's single response line,
// trimmed. The write side is half-closed after the command so the daemon
// sees end-of-input; the response is whatever arrives before the first
// newline or the daemon's close.
func (c *Client) Send(command string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return "", fmt.Errorf("close write side: %w", err)
		}
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read response: %w", err)
	}
	resp := strings.TrimSpace(line)
	if resp == "" && err != nil {
		// Read side closed before any response line arrived.
		return "", fmt.Errorf("no response from daemon: %w", err)
	}

	c.logger.Debug("daemon round-trip", "command", command, "response", resp)
	return resp, nil
}
