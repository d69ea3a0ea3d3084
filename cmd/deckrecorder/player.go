package main

import (
	"log/slog"
	"os/exec"
)

// Launcher runs the external player as an independent task so playback
// latency never blocks panel event handling. Failures (player missing,
// non-zero exit) are reported only via log; they never reach icon state.
type Launcher struct {
	player     string
	targetSink string
	logger     *slog.Logger
}

// NewLauncher builds a playback launcher. targetSink routes playback to a
// named output sink; empty means the default output.
func NewLauncher(player, targetSink string, logger *slog.Logger) *Launcher {
	return &Launcher{
		player:     player,
		targetSink: targetSink,
		logger:     logger,
	}
}

// Play launches playback of path and returns immediately.
// Two overlapping playbacks have no ordering guarantee; they share nothing
// but read-only file paths.
func (l *Launcher) Play(path string) {
	args := make([]string, 0, 3)
	if l.targetSink != "" {
		args = append(args, "--target", l.targetSink)
	}
	args = append(args, path)

	l.logger.Info("launching playback", "player", l.player, "path", path, "target_sink", l.targetSink)

	go func() {
		cmd := exec.Command(l.player, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			l.logger.Error("playback failed", "player", l.player, "path", path, "error", err, "output", string(out))
			return
		}
		l.logger.Debug("playback finished", "path", path)
	}()
}
