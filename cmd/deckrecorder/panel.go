package main

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// PanelEvent is a raw press/release on a numbered panel key.
type PanelEvent struct {
	Key     uint8
	Pressed bool
}

// Panel abstracts the physical multi-button device: a stream of press and
// release events in, per-key icon images out.
type Panel interface {
	// Events starts the device's event stream. The returned channel is
	// closed when the device stops delivering events; the pump treats that
	// as a fatal read error (device assumed disconnected).
	Events() (<-chan PanelEvent, error)

	SetImage(key uint8, img image.Image) error
	// Flush pushes pending icon writes to the device. Drivers that apply
	// writes immediately implement it as a no-op.
	Flush() error
	Clear() error
	SetBrightness(percent uint8) error

	KeyCount() uint8
	// Pixels is the icon edge length in pixels, or 0 when the panel has no
	// displays.
	Pixels() int

	Close() error
}

// OpenPanel opens the configured panel driver.
func OpenPanel(cfg PanelConfig, logger *slog.Logger) (Panel, error) {
	switch cfg.Type {
	case "hid":
		return openHIDPanel(cfg, logger)
	case "evdev":
		return openEvdevPanel(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown panel type: %q", cfg.Type)
	}
}

// pumpPanelEvents translates the panel's event stream into loop Events.
// Runs on its own goroutine; the loop goroutine stays the sole owner of
// deck state.
func pumpPanelEvents(p Panel, events chan<- Event, readErr chan<- error) {
	pch, err := p.Events()
	if err != nil {
		readErr <- fmt.Errorf("start panel event stream: %w", err)
		return
	}

	for pe := range pch {
		if pe.Pressed {
			events <- ButtonDown{Key: pe.Key}
		} else {
			events <- ButtonUp{Key: pe.Key}
		}
	}

	// A closed stream means the device stopped talking to us.
	readErr <- errors.New("panel event stream closed")
}
