//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

// The evdev driver needs Linux input devices; other platforms use "hid".
func openEvdevPanel(cfg PanelConfig, logger *slog.Logger) (Panel, error) {
	return nil, errors.New("panel.type evdev is only supported on linux")
}
