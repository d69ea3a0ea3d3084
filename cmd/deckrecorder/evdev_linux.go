//go:build linux

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Linux input event types and values (from <linux/input.h>)
const (
	evKey = 0x01

	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// evdevPanel drives display-less panels (macro pads, footswitches) that show
// up as Linux input devices. Icon writes are accepted and dropped; the key
// count and the keycode-to-key mapping come from config.
type evdevPanel struct {
	files  []*os.File
	keymap map[uint16]uint8
	keys   uint8
	logger *slog.Logger
}

func openEvdevPanel(cfg PanelConfig, logger *slog.Logger) (Panel, error) {
	files := make([]*os.File, 0, len(cfg.Evdev.Devices))
	for _, dev := range cfg.Evdev.Devices {
		f, err := os.Open(dev)
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", dev, err)
		}
		files = append(files, f)
	}

	logger.Info("evdev panel opened", "devices", cfg.Evdev.Devices, "keys", cfg.Evdev.Keys)

	return &evdevPanel{
		files:  files,
		keymap: cfg.Evdev.Keymap,
		keys:   uint8(cfg.Evdev.Keys),
		logger: logger,
	}, nil
}

func (p *evdevPanel) Events() (<-chan PanelEvent, error) {
	out := make(chan PanelEvent, 64)
	go p.readEpoll(out)
	return out, nil
}

// readEpoll reads from all input devices using a single epoll instance:
// one goroutine, kernel wakes us only when events are available.
// The out channel is closed on any device error, which the pump treats as
// a fatal panel read error.
func (p *evdevPanel) readEpoll(out chan<- PanelEvent) {
	defer close(out)

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		p.logger.Error("epoll_create1 failed", "error", err)
		return
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)
	for _, f := range p.files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			p.logger.Error("epoll_ctl_add failed", "device", f.Name(), "error", err)
			return
		}
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			p.logger.Error("epoll_wait failed", "error", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				p.logger.Error("input device error/hangup", "device", f.Name())
				return
			}

			if _, err := f.Read(buf); err != nil {
				p.logger.Error("input device read failed", "device", f.Name(), "error", err)
				return
			}

			reader.Reset(buf)
			var ev inputEvent
			if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
				// Skip malformed events
				continue
			}

			if ev.Type != evKey {
				continue
			}
			key, bound := p.keymap[ev.Code]
			if !bound {
				continue
			}

			switch ev.Value {
			case evValuePress:
				out <- PanelEvent{Key: key, Pressed: true}
			case evValueRelease:
				out <- PanelEvent{Key: key, Pressed: false}
			}
			// Key repeat is ignored: a held key is one press until release.
		}
	}
}

// The evdev panel has no displays: icon writes succeed and are dropped.
func (p *evdevPanel) SetImage(key uint8, img image.Image) error { return nil }
func (p *evdevPanel) Flush() error                              { return nil }
func (p *evdevPanel) Clear() error                              { return nil }
func (p *evdevPanel) SetBrightness(percent uint8) error         { return nil }

func (p *evdevPanel) KeyCount() uint8 { return p.keys }
func (p *evdevPanel) Pixels() int     { return 0 }

func (p *evdevPanel) Close() error {
	var firstErr error
	for _, f := range p.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
