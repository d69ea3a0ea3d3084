package main

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/muesli/streamdeck"
)

// hidPanel drives real Stream Deck hardware over USB HID.
type hidPanel struct {
	dev    *streamdeck.Device
	logger *slog.Logger
}

// openHIDPanel connects to the first attached Stream Deck, or the one
// matching cfg.Serial when set.
func openHIDPanel(cfg PanelConfig, logger *slog.Logger) (Panel, error) {
	devs, err := streamdeck.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate stream decks: %w", err)
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no stream deck found")
	}

	idx := -1
	for i := range devs {
		if cfg.Serial == "" || devs[i].Serial == cfg.Serial {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no stream deck with serial %q", cfg.Serial)
	}

	dev := &devs[idx]
	if err := dev.Open(); err != nil {
		return nil, fmt.Errorf("open stream deck: %w", err)
	}

	logger.Info("stream deck connected",
		"serial", dev.Serial,
		"keys", int(dev.Keys),
		"pixels", int(dev.Pixels))

	return &hidPanel{dev: dev, logger: logger}, nil
}

func (p *hidPanel) Events() (<-chan PanelEvent, error) {
	kch, err := p.dev.ReadKeys()
	if err != nil {
		return nil, fmt.Errorf("read stream deck keys: %w", err)
	}

	out := make(chan PanelEvent, 64)
	go func() {
		defer close(out)
		for k := range kch {
			out <- PanelEvent{Key: uint8(k.Index), Pressed: k.Pressed}
		}
	}()
	return out, nil
}

func (p *hidPanel) SetImage(key uint8, img image.Image) error {
	return p.dev.SetImage(key, img)
}

// Flush is a no-op: the device applies SetImage writes immediately.
func (p *hidPanel) Flush() error { return nil }

func (p *hidPanel) Clear() error {
	return p.dev.Clear()
}

func (p *hidPanel) SetBrightness(percent uint8) error {
	return p.dev.SetBrightness(percent)
}

func (p *hidPanel) KeyCount() uint8 {
	return uint8(p.dev.Keys)
}

func (p *hidPanel) Pixels() int {
	return int(p.dev.Pixels)
}

func (p *hidPanel) Close() error {
	return p.dev.Close()
}
