package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("deckrecorder v%s\n", version)
	fmt.Println("Stream Deck controller for an external audio-recording daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  deckrecorder [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Drives a multi-button panel that starts, stops, plays back and")
	fmt.Println("  deletes audio recordings managed by an always-running recorder")
	fmt.Println("  daemon. Short tap on a recorded key plays it back; holding the")
	fmt.Println("  key deletes the recording. Releasing the highest-indexed key")
	fmt.Println("  exits.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -panel string")
	fmt.Println("        Panel driver: hid|evdev (default \"hid\")")
	fmt.Println()
	fmt.Println("  -serial string")
	fmt.Println("        Stream Deck serial to bind when several are attached")
	fmt.Println()
	fmt.Println("  -brightness int")
	fmt.Printf("        Panel brightness percent (default %d)\n", defaultBrightness)
	fmt.Println()
	fmt.Println("  -daemon-socket string")
	fmt.Println("        Unix socket of the recorder daemon")
	fmt.Println()
	fmt.Println("  -daemon-timeout-ms int")
	fmt.Printf("        Bound on each daemon round-trip in ms (default %d)\n", defaultDaemonTimeoutMS)
	fmt.Println()
	fmt.Println("  -hold-ms int")
	fmt.Printf("        Tap/hold threshold in ms; holding at least this long deletes (default %d)\n", defaultHoldThresholdMS)
	fmt.Println()
	fmt.Println("  -player string")
	fmt.Printf("        External player binary (default %q)\n", defaultPlayer)
	fmt.Println()
	fmt.Println("  -target-sink string")
	fmt.Println("        Named output sink for playback (empty = default output)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (empty disables)")
	fmt.Println()
	fmt.Println("  -state-ws-port int")
	fmt.Println("        State WebSocket listener port (0 disables)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - The recorder daemon must already be running and answering")
	fmt.Println("    STATUS/START/STOP on its socket")
	fmt.Println("  - Key bindings come from the config file (bindings: key/path)")
	fmt.Println("  - The evdev driver requires read access to the input devices")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	// Parse command-line flags
	var (
		configPath      = flag.String("config", "", "Path to YAML config file")
		panelType       = flag.String("panel", "hid", "Panel driver: hid|evdev")
		panelSerial     = flag.String("serial", "", "Stream Deck serial to bind")
		brightness      = flag.Int("brightness", defaultBrightness, "Panel brightness percent")
		daemonSocket    = flag.String("daemon-socket", "/tmp/audio-monitor.sock", "Unix socket of the recorder daemon")
		daemonTimeoutMs = flag.Int("daemon-timeout-ms", defaultDaemonTimeoutMS, "Bound on each daemon round-trip in milliseconds")
		holdMs          = flag.Int("hold-ms", defaultHoldThresholdMS, "Tap/hold threshold in milliseconds")
		player          = flag.String("player", defaultPlayer, "External player binary")
		targetSink      = flag.String("target-sink", "", "Named output sink for playback")
		ipcSocketPath   = flag.String("ipc-socket", "/tmp/deckrecorder.sock", "Unix domain socket path for IPC")
		stateWSPort     = flag.Int("state-ws-port", 0, "State WebSocket listener port (0 disables)")
		logLevelStr     = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion     = flag.Bool("version", false, "Print version and exit")
		showHelp        = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Config file first, then flag overrides on top. Only flags that were
	// actually set on the command line override file values.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "panel":
			overrides.PanelType = panelType
		case "serial":
			overrides.PanelSerial = panelSerial
		case "brightness":
			overrides.Brightness = brightness
		case "daemon-socket":
			overrides.DaemonSocket = daemonSocket
		case "daemon-timeout-ms":
			overrides.DaemonTimeMS = daemonTimeoutMs
		case "hold-ms":
			overrides.HoldMS = holdMs
		case "player":
			overrides.Player = player
		case "target-sink":
			overrides.TargetSink = targetSink
		case "ipc-socket":
			overrides.IPCSocket = ipcSocketPath
		case "state-ws-port":
			overrides.StateWSPort = stateWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	// Open the panel
	panel, err := OpenPanel(cfg.Panel, logger)
	if err != nil {
		logger.Error("failed to open panel", "type", cfg.Panel.Type, "error", err)
		os.Exit(1)
	}
	defer panel.Close()

	keyCount := panel.KeyCount()
	if keyCount < 2 {
		logger.Error("panel too small", "keys", keyCount)
		os.Exit(1)
	}
	exitKey := keyCount - 1

	// Bindings must fit the panel, and the exit key stays unbound.
	bindings := cfg.BindingMap()
	for key := range bindings {
		if key >= keyCount {
			logger.Error("binding beyond panel keys", "key", key, "panel_keys", keyCount)
			os.Exit(1)
		}
		if key == exitKey {
			logger.Error("highest panel key is reserved for the exit gesture", "key", key)
			os.Exit(1)
		}
	}

	if err := panel.SetBrightness(uint8(cfg.Panel.Brightness)); err != nil {
		logger.Warn("set brightness failed", "error", err)
	}
	if err := panel.Clear(); err != nil {
		logger.Warn("clear panel failed", "error", err)
	}

	icons := LoadIconSet(cfg.Icons, panel.Pixels(), logger)

	// Initial filesystem scan: file presence is the source of truth for
	// whether a key starts in "empty" or "has-recording" mode.
	fileExists := make(map[uint8]bool, len(bindings))
	for key, path := range bindings {
		if _, err := os.Stat(path); err == nil {
			fileExists[key] = true
		}
	}
	state := NewDeckState(bindings, fileExists, exitKey)

	// Paint initial icons before any event is processed.
	for key := range bindings {
		icon := IconIdle
		if fileExists[key] {
			icon = IconPlay
		}
		if err := panel.SetImage(key, icons.Image(icon)); err != nil {
			logger.Warn("initial icon write failed", "key", key, "error", err)
		}
	}
	if err := panel.Flush(); err != nil {
		logger.Warn("initial panel flush failed", "error", err)
	}

	client := NewClient(cfg.Daemon.SocketPath, time.Duration(cfg.Daemon.TimeoutMS)*time.Millisecond, logger)
	launcher := NewLauncher(cfg.Playback.Player, cfg.Playback.TargetSink, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := Effects{
		Client:   client,
		Icons:    icons,
		Panel:    panel,
		Player:   launcher,
		Shutdown: cancel,
	}

	// Handle shutdown signals
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	// Central event channel: panel pump, IPC server and file watcher all
	// feed the single-consumer loop.
	events := make(chan Event, 64)
	readErr := make(chan error, 1)

	// State WebSocket hub (optional)
	var publish func(*DeckState)
	if cfg.StateWS.Port > 0 {
		hub := NewHub(logger)
		go hub.Run(ctx)
		go func() {
			if err := runStateWSServer(ctx, cfg.StateWS.Port, hub, logger); err != nil {
				logger.Error("state ws server error", "error", err)
			}
		}()
		publish = hub.Publisher()
	}

	// Start the deck loop
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runDeck(ctx, events, state, cfg.ToGestureConfig(), fx, publish, logger)
	}()

	// IPC server (optional)
	if cfg.IPC.SocketPath != "" {
		go func() {
			if err := runIPCServer(ctx, cfg.IPC.SocketPath, events, logger); err != nil {
				logger.Error("IPC server error", "error", err)
			}
		}()
	}

	// File watcher for external creation/deletion of recordings
	if err := runFileWatcher(ctx, bindings, events, logger); err != nil {
		logger.Warn("file watcher unavailable", "error", err)
	}

	// Panel event pump
	go pumpPanelEvents(panel, events, readErr)

	logger.Debug("configuration",
		"panel_type", cfg.Panel.Type,
		"panel_keys", keyCount,
		"exit_key", exitKey,
		"daemon_socket", cfg.Daemon.SocketPath,
		"daemon_timeout_ms", cfg.Daemon.TimeoutMS,
		"bindings", len(bindings),
		"hold_ms", cfg.Gesture.HoldMS,
		"player", cfg.Playback.Player,
		"target_sink", cfg.Playback.TargetSink,
		"ipc_socket", cfg.IPC.SocketPath,
		"state_ws_port", cfg.StateWS.Port)
	logger.Info("listening",
		"panel", cfg.Panel.Type,
		"keys", keyCount,
		"daemon", cfg.Daemon.SocketPath,
		"bindings", len(bindings))

	select {
	case <-sigc:
		logger.Info("shutting down (signal)")
		cancel()

	case err := <-readErr:
		// A hard panel read error is the one fatal failure mode: the
		// device is assumed disconnected.
		logger.Error("panel reader stopped", "error", err)
		cancel()

	case <-ctx.Done():
		// Exit gesture: the loop canceled the context itself.
	}

	<-loopDone

	if err := panel.Clear(); err != nil {
		logger.Debug("clear panel on exit failed", "error", err)
	}
}
