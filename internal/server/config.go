package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server   ServerSettings    `hcl:"server,block"`
	Rooms    []RoomConfig      `hcl:"room,block"`
	Bots     []BotConfig       `hcl:"bot,block"`
	Watchdog *WatchdogSettings `hcl:"watchdog,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address        string `hcl:"address,optional"`
	Port           int    `hcl:"port,optional"`
	LogLevel       string `hcl:"log_level,optional"`
	LogFile        string `hcl:"log_file,optional"`
	HistoryDir     string `hcl:"history_dir,optional"`
	Seed           int64  `hcl:"seed,optional"`
	BotThinkMillis int    `hcl:"bot_think_millis,optional"`
}

// RoomConfig defines a room created at startup
type RoomConfig struct {
	Name     string `hcl:"name,label"`
	MaxSeats int    `hcl:"max_seats,optional"`
	MinWager int    `hcl:"min_wager,optional"`
}

// BotConfig defines automated players seated at startup
type BotConfig struct {
	Room       string `hcl:"room,label"`
	Difficulty string `hcl:"difficulty,optional"`
	Count      int    `hcl:"count,optional"`
}

// WatchdogSettings tunes the stall watchdog
type WatchdogSettings struct {
	IntervalSeconds     int `hcl:"interval_seconds,optional"`
	GraceSeconds        int `hcl:"grace_seconds,optional"`
	StallLimit          int `hcl:"stall_limit,optional"`
	SettledResetSeconds int `hcl:"settled_reset_seconds,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:    "localhost",
			Port:       8080,
			LogLevel:   "info",
			LogFile:    "blackjackroom.log",
			HistoryDir: "history",
		},
		Rooms: []RoomConfig{
			{
				Name:     "main",
				MaxSeats: 5,
				MinWager: 100,
			},
		},
		Watchdog: &WatchdogSettings{
			IntervalSeconds:     3,
			GraceSeconds:        5,
			StallLimit:          3,
			SettledResetSeconds: 30,
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.LogFile == "" {
		config.Server.LogFile = "blackjackroom.log"
	}
	if config.Server.HistoryDir == "" {
		config.Server.HistoryDir = "history"
	}

	for i := range config.Rooms {
		if config.Rooms[i].MaxSeats == 0 {
			config.Rooms[i].MaxSeats = 5
		}
		if config.Rooms[i].MinWager == 0 {
			config.Rooms[i].MinWager = 100
		}
	}

	for i := range config.Bots {
		if config.Bots[i].Difficulty == "" {
			config.Bots[i].Difficulty = "medium"
		}
		if config.Bots[i].Count == 0 {
			config.Bots[i].Count = 1
		}
	}

	if config.Watchdog == nil {
		config.Watchdog = &WatchdogSettings{}
	}
	if config.Watchdog.IntervalSeconds == 0 {
		config.Watchdog.IntervalSeconds = 3
	}
	if config.Watchdog.GraceSeconds == 0 {
		config.Watchdog.GraceSeconds = 5
	}
	if config.Watchdog.StallLimit == 0 {
		config.Watchdog.StallLimit = 3
	}
	if config.Watchdog.SettledResetSeconds == 0 {
		config.Watchdog.SettledResetSeconds = 30
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	roomNames := make(map[string]bool)
	for _, room := range c.Rooms {
		if room.MaxSeats < 1 || room.MaxSeats > 10 {
			return fmt.Errorf("room %s: max seats must be between 1 and 10", room.Name)
		}
		if room.MinWager <= 0 {
			return fmt.Errorf("room %s: minimum wager must be positive", room.Name)
		}
		if roomNames[room.Name] {
			return fmt.Errorf("room %s: duplicate room name", room.Name)
		}
		roomNames[room.Name] = true
	}

	validDifficulties := map[string]bool{
		"easy":   true,
		"medium": true,
		"hard":   true,
		"expert": true,
	}
	for _, bot := range c.Bots {
		if !validDifficulties[bot.Difficulty] {
			return fmt.Errorf("bot for room %s: invalid difficulty %s", bot.Room, bot.Difficulty)
		}
		if bot.Count < 1 {
			return fmt.Errorf("bot for room %s: count must be positive", bot.Room)
		}
		if len(c.Rooms) > 0 && !roomNames[bot.Room] {
			return fmt.Errorf("bot for room %s: no such room", bot.Room)
		}
	}

	if c.Watchdog.GraceSeconds < c.Watchdog.IntervalSeconds {
		return fmt.Errorf("watchdog grace (%ds) must be at least the sweep interval (%ds)",
			c.Watchdog.GraceSeconds, c.Watchdog.IntervalSeconds)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetBotsForRoom returns the bot blocks configured for a room
func (c *ServerConfig) GetBotsForRoom(roomName string) []BotConfig {
	var bots []BotConfig
	for _, bot := range c.Bots {
		if bot.Room == roomName {
			bots = append(bots, bot)
		}
	}
	return bots
}
