package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjackroom/internal/history"
	"github.com/lox/blackjackroom/internal/server"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the blackjack server
type ServeCmd struct {
	Config   string `short:"c" default:"blackjackroom.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Seed     *int64 `help:"Deterministic RNG seed (overrides config)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Apply command line overrides
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(os.Stderr)
	logger.SetLevel(parseLogLevel(cfg.Server.LogLevel))

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("Using random seed", "seed", seed)
	} else {
		logger.Info("Using deterministic seed", "seed", seed)
	}

	store, err := history.NewStore(cfg.Server.HistoryDir, history.StoreOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}

	sessions := server.NewSessionMapper()
	rooms := server.NewRoomService(sessions, server.RoomServiceOptions{
		Seed:       seed,
		ThinkDelay: time.Duration(cfg.Server.BotThinkMillis) * time.Millisecond,
		Recorder:   store,
		Logger:     logger,
	})

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}
	wsServer := server.NewServer(addr, sessions, rooms, logger)

	watchdog := server.NewWatchdog(rooms, server.WatchdogOptions{
		Interval:     time.Duration(cfg.Watchdog.IntervalSeconds) * time.Second,
		Grace:        time.Duration(cfg.Watchdog.GraceSeconds) * time.Second,
		StallLimit:   cfg.Watchdog.StallLimit,
		SettledReset: time.Duration(cfg.Watchdog.SettledResetSeconds) * time.Second,
		Logger:       logger,
	})

	logger.Info("Starting blackjack server",
		"addr", addr,
		"rooms", len(cfg.Rooms),
		"bots", len(cfg.Bots),
		"historyDir", cfg.Server.HistoryDir)

	// Create rooms from configuration
	roomIDMap := make(map[string]string) // name -> ID mapping
	for _, roomConfig := range cfg.Rooms {
		id := rooms.CreateRoom(roomConfig.Name, roomConfig.MaxSeats, roomConfig.MinWager)
		roomIDMap[roomConfig.Name] = id
		logger.Info("Created room",
			"id", id,
			"name", roomConfig.Name,
			"maxSeats", roomConfig.MaxSeats,
			"minWager", roomConfig.MinWager)
	}

	// Seat bots from configuration
	for _, botConfig := range cfg.Bots {
		roomID, exists := roomIDMap[botConfig.Room]
		if !exists {
			logger.Warn("Bots configured for non-existent room", "room", botConfig.Room)
			continue
		}

		for i := 0; i < botConfig.Count; i++ {
			seatID, err := rooms.AddBot(roomID, botConfig.Difficulty)
			if err != nil {
				logger.Error("Failed to seat bot", "error", err, "room", botConfig.Room)
				break
			}
			logger.Info("Seated bot",
				"room", botConfig.Room,
				"seat", seatID,
				"difficulty", botConfig.Difficulty)
		}
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		_ = wsServer.Stop()
		os.Exit(0)
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchdog.Run(ctx)
	})
	g.Go(func() error {
		return wsServer.Start()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func parseLogLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
