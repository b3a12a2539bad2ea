package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjackroom/internal/client"
	"github.com/lox/blackjackroom/internal/tui"
)

// PlayCmd connects to a server as an interactive player
type PlayCmd struct {
	Server   string `short:"s" default:"ws://localhost:8080/ws" help:"WebSocket server URL"`
	Name     string `short:"n" help:"Player name (defaults to $USER)"`
	Token    string `help:"Session token from a previous connection, resumes your seat"`
	LogLevel string `short:"l" default:"info" help:"Log level"`
	LogFile  string `default:"blackjackroom-client.log" help:"Log file path"`
}

func (c *PlayCmd) Run() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		name = strings.TrimSpace(input)
	}
	if name == "" {
		return fmt.Errorf("player name is required")
	}

	// The TUI owns the terminal, so logs go to a file
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	logger := log.New(logFile)
	logger.SetLevel(parseLogLevel(c.LogLevel))

	logger.Info("Starting blackjack client",
		"server", c.Server,
		"player", name)

	wsClient := client.NewClient(c.Server, logger)
	if err := wsClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = wsClient.Disconnect() }()

	if err := wsClient.Auth(name, c.Token); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	model := tui.NewModel(wsClient, name)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	// Print the token so a dropped seat can be reclaimed next time
	if token := model.Token(); token != "" {
		fmt.Printf("Session token (use --token to reconnect): %s\n", token)
	}
	return nil
}
