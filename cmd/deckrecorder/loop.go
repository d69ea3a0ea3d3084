package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Deck Loop - Reducer-driven control loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The loop is the only place that executes side effects (daemon calls,
//     filesystem operations, playback launches, icon writes).
//   - Command outcomes are turned into Events and fed back into the reducer.
//   - Explicit event and command queues; no nested/re-entrant execution.
//
// Because commands run synchronously inside the loop, daemon round-trips
// serialize START/STOP issuance: no two keys can race for the recording
// session, and every icon write lands before the next panel event is read.
// ============================================================================

// runDeck is the main control loop:
//   - Receives Events from the panel pump, IPC server, and file watcher
//   - Reduces events into (state, commands)
//   - Executes commands via the effects layer and feeds observations back
//   - Publishes state snapshots after each external event, if a publisher
//     is configured
//
// Shutdown semantics:
//   - Exits when ctx is canceled (the exit gesture cancels via CmdShutdown)
//   - Exits cleanly when the events channel is closed
func runDeck(
	ctx context.Context,
	events <-chan Event,
	state *DeckState,
	cfg GestureConfig,
	fx Effects,
	publish func(*DeckState),
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("deck state is nil")
		return
	}

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}
	enqueueCommands := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		cmdQueue = append(cmdQueue, cmds...)
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			enqueueCommands(rr.Commands)
		}
	}

	// Execute all queued commands, enqueuing observation events.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(fx, cmd, logger, func(obs Event) {
				enqueueEvent(obs)
			})

			// Observations are reduced promptly so follow-up commands (for
			// example START after a Listening STATUS) run in order.
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("deck loop stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("deck loop stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

			if publish != nil {
				publish(state)
			}

			if state.ShuttingDown {
				logger.Info("deck loop stopping (exit gesture)")
				return
			}
		}
	}
}
