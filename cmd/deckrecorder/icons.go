package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"

	_ "image/png"
)

// IconState identifies the visual state rendered on a button.
type IconState int

const (
	// IconIdle marks a key with no recording ("press to record").
	IconIdle IconState = iota
	// IconRecording marks an in-progress recording, and doubles as the
	// hold indicator while a tap/hold gesture is in flight.
	IconRecording
	// IconPlay marks a key with a finished recording ("tap to play").
	IconPlay
)

func (s IconState) String() string {
	switch s {
	case IconIdle:
		return "idle"
	case IconRecording:
		return "recording"
	case IconPlay:
		return "play"
	default:
		return fmt.Sprintf("icon(%d)", int(s))
	}
}

// Fallback icon colors, used when an icon file is missing or undecodable.
var (
	fallbackIdleColor      = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	fallbackRecordingColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	fallbackPlayColor      = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// IconSet holds the pre-loaded images for every visual button state.
// Images are decoded once at startup; the event loop only looks them up.
type IconSet struct {
	idle      image.Image
	recording image.Image
	play      image.Image
}

// LoadIconSet decodes the configured icon files, substituting generated
// solid-color icons for anything missing or unreadable. It never fails:
// a panel with plain colored keys is better than no panel.
func LoadIconSet(cfg IconFileConfig, pixels int, logger *slog.Logger) *IconSet {
	if pixels <= 0 {
		pixels = defaultIconPixels
	}
	return &IconSet{
		idle:      loadIcon(cfg.Idle, fallbackIdleColor, pixels, logger),
		recording: loadIcon(cfg.Recording, fallbackRecordingColor, pixels, logger),
		play:      loadIcon(cfg.Play, fallbackPlayColor, pixels, logger),
	}
}

// Image returns the image for a visual state.
func (s *IconSet) Image(st IconState) image.Image {
	switch st {
	case IconRecording:
		return s.recording
	case IconPlay:
		return s.play
	default:
		return s.idle
	}
}

func loadIcon(path string, fallback color.RGBA, pixels int, logger *slog.Logger) image.Image {
	if path == "" {
		return solidIcon(fallback, pixels)
	}

	f, err := os.Open(ExpandPath(path))
	if err != nil {
		logger.Warn("icon file not readable, using fallback color", "path", path, "error", err)
		return solidIcon(fallback, pixels)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		logger.Warn("icon file not decodable, using fallback color", "path", path, "error", err)
		return solidIcon(fallback, pixels)
	}

	return img
}

// solidIcon generates a uniform square image of the given color.
func solidIcon(c color.RGBA, pixels int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, pixels, pixels))
	for y := 0; y < pixels; y++ {
		for x := 0; x < pixels; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
