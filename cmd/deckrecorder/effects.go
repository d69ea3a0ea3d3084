package main

import (
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// RecorderClient is the slice of the daemon client the effects layer needs.
// Narrow on purpose so tests can substitute a double.
type RecorderClient interface {
	Send(command string) (string, error)
}

// IconSink is the slice of the panel the effects layer writes icons through.
type IconSink interface {
	SetImage(key uint8, img image.Image) error
	Flush() error
}

// PlaybackLauncher dispatches playback without blocking the caller.
type PlaybackLauncher interface {
	Play(path string)
}

// Effects bundles every external collaborator the loop may touch.
type Effects struct {
	Client RecorderClient
	Icons  *IconSet
	Panel  IconSink
	Player PlaybackLauncher

	// Shutdown cancels the loop context; invoked by CmdShutdown.
	Shutdown func()
}

// runEffect executes a single reducer-emitted Command against external
// systems and emits observation Events via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced
//   by the deck loop.
// - The loop is responsible for sequencing: Reduce -> Commands -> runEffect
//   -> Events -> Reduce.
func runEffect(fx Effects, cmd Command, logger *slog.Logger, onEvent func(Event)) {
	if onEvent == nil {
		// No place to report observations; nothing sensible to do.
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdStatFile:
		_, err := os.Stat(c.Path)
		switch {
		case err == nil:
			onEvent(FileStatObserved{Key: c.Key, Exists: true, At: now})
		case errors.Is(err, fs.ErrNotExist):
			onEvent(FileStatObserved{Key: c.Key, Exists: false, At: now})
		default:
			logger.Error("stat recording file failed", "key", c.Key, "path", c.Path, "error", err)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
		}

	case CmdQueryStatus:
		if fx.Client == nil {
			onEvent(EffectFailed{Command: cmd, Err: errNoClient{}, At: now})
			return
		}
		resp, err := fx.Client.Send(daemonCmdStatus)
		if err != nil {
			logger.Error("daemon STATUS failed", "key", c.Key, "error", err)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Debug("daemon STATUS", "key", c.Key, "response", resp)
		onEvent(DaemonStatusObserved{Key: c.Key, Response: resp, At: now})

	case CmdStartRecording:
		if fx.Client == nil {
			onEvent(EffectFailed{Command: cmd, Err: errNoClient{}, At: now})
			return
		}
		resp, err := fx.Client.Send(daemonCmdStart + " " + c.Path)
		if err != nil {
			logger.Error("daemon START failed", "key", c.Key, "path", c.Path, "error", err)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Info("recording started", "key", c.Key, "path", c.Path, "response", resp)
		onEvent(RecordingStarted{Key: c.Key, At: now})

	case CmdStopRecording:
		if fx.Client == nil {
			onEvent(EffectFailed{Command: cmd, Err: errNoClient{}, At: now})
			return
		}
		resp, err := fx.Client.Send(daemonCmdStop)
		if err != nil {
			// The reducer leaves the session untouched; the next release of
			// the same key retries the STOP.
			logger.Error("daemon STOP failed", "key", c.Key, "error", err)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Info("recording stopped", "key", c.Key, "response", resp)
		onEvent(RecordingStopped{Key: c.Key, At: now})

	case CmdDeleteFile:
		if err := os.Remove(c.Path); err != nil {
			logger.Error("delete recording failed", "key", c.Key, "path", c.Path, "error", err)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Info("recording deleted", "key", c.Key, "path", c.Path)
		onEvent(FileDeleted{Key: c.Key, At: now})

	case CmdPlayFile:
		if fx.Player == nil {
			logger.Warn("no playback launcher configured", "key", c.Key, "path", c.Path)
			return
		}
		// Fire-and-forget: the launcher runs the player on its own
		// goroutine and reports failure only via log.
		fx.Player.Play(c.Path)

	case CmdSetIcon:
		if fx.Panel == nil || fx.Icons == nil {
			return
		}
		// Set + flush are one logical side effect; both land before the
		// next event is processed. A failed icon write is not fatal (only
		// a panel read error terminates the loop).
		if err := fx.Panel.SetImage(c.Key, fx.Icons.Image(c.Icon)); err != nil {
			logger.Error("set button image failed", "key", c.Key, "icon", c.Icon.String(), "error", err)
			return
		}
		if err := fx.Panel.Flush(); err != nil {
			logger.Error("panel flush failed", "key", c.Key, "error", err)
		}

	case CmdShutdown:
		if fx.Shutdown != nil {
			fx.Shutdown()
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(EffectFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// errNoClient indicates the loop was asked to run a daemon command without a
// recorder client.
type errNoClient struct{}

func (errNoClient) Error() string { return "no recorder daemon client" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
