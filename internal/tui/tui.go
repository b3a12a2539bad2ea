package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lox/blackjackroom/internal/client"
	"github.com/lox/blackjackroom/internal/game"
	"github.com/lox/blackjackroom/internal/server"
)

// serverMsg carries an incoming server message into the update loop
type serverMsg struct {
	msg *server.Message
}

// disconnectedMsg signals that the server connection dropped
type disconnectedMsg struct{}

// Model represents the Bubble Tea model for the blackjack client
type Model struct {
	client     *client.Client
	playerName string
	token      string

	// Current room state
	roomID   string
	seatID   string
	snapshot *game.Snapshot

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog     []string
	lastMessage string
	quitting    bool
	focusedPane int // 0 = log, 1 = input

	styles *Styles

	width  int
	height int
}

// NewModel creates a new TUI model. The client must already be connected.
func NewModel(c *client.Client, playerName string) *Model {
	vp := viewport.New(100, 25)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "ready, bet 100, hit, stand, double, next (help for more)"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &Model{
		client:      c,
		playerName:  playerName,
		logViewport: vp,
		actionInput: ti,
		gameLog:     []string{},
		styles:      DefaultStyles(),
		focusedPane: 1, // Start with input focused
	}
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForServer())
}

// waitForServer blocks on the next server message
func (m *Model) waitForServer() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.client.Receive
		if !ok {
			return disconnectedMsg{}
		}
		return serverMsg{msg: msg}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateDimensions()

	case serverMsg:
		m.handleServerMessage(msg.msg)
		cmds = append(cmds, m.waitForServer())

	case disconnectedMsg:
		m.addLogEntry(m.styles.Error.Render("Connection to server lost"))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			_ = m.client.Disconnect()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				command := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.processCommand(command); cmd != nil {
					return m, cmd
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd

	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleServerMessage applies a server message to the model
func (m *Model) handleServerMessage(msg *server.Message) {
	switch msg.Type {
	case server.MessageTypeAuthResponse:
		var data server.AuthResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		if !data.Success {
			m.addLogEntry(m.styles.Error.Render("Authentication failed: " + data.Error))
			return
		}
		m.token = data.Token
		m.addLogEntry(m.styles.Success.Render(fmt.Sprintf("Authenticated as %s", m.playerName)))
		m.addLogEntry(m.styles.Info.Render("Type 'list' to see rooms, 'help' for all commands"))

	case server.MessageTypeRoomList:
		var data server.RoomListData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		if len(data.Rooms) == 0 {
			m.addLogEntry("No rooms open. Create one with: create <name>")
			return
		}
		m.addLogEntry(m.styles.Header.Render("Rooms"))
		for _, room := range data.Rooms {
			m.addLogEntry(fmt.Sprintf("  %s  %s (%d/%d seats, min $%d, %s)",
				room.ID, room.Name, room.SeatCount, room.MaxSeats, room.MinWager, room.Phase))
		}

	case server.MessageTypeRoomJoined:
		var data server.RoomJoinedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.roomID = data.RoomID
		m.seatID = data.SeatID
		m.snapshot = &data.State
		m.lastMessage = data.State.Message
		if data.Rejoined {
			m.addLogEntry(m.styles.Success.Render("Reconnected to " + data.State.Name))
		} else {
			m.addLogEntry(m.styles.Success.Render("Joined " + data.State.Name))
		}

	case server.MessageTypeRoomLeft:
		m.roomID = ""
		m.seatID = ""
		m.snapshot = nil
		m.lastMessage = ""
		m.addLogEntry("Left the room")

	case server.MessageTypeRoomState:
		var data server.RoomStateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		if data.RoomID != m.roomID {
			return
		}
		m.snapshot = &data.State
		if data.State.Message != "" && data.State.Message != m.lastMessage {
			m.lastMessage = data.State.Message
			m.addLogEntry(m.styles.GameLog.Render(data.State.Message))
		}

	case server.MessageTypeSeatStatus:
		var data server.SeatStatusData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		name := data.SeatID
		if m.snapshot != nil {
			for _, seat := range m.snapshot.Seats {
				if seat.ID == data.SeatID {
					name = seat.Name
				}
			}
		}
		if data.Connected {
			m.addLogEntry(m.styles.Info.Render(name + " reconnected"))
		} else {
			m.addLogEntry(m.styles.Warning.Render(name + " disconnected"))
		}

	case server.MessageTypeNotification:
		var data server.NotificationData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.addLogEntry(m.styles.Warning.Render(data.Message))

	case server.MessageTypeError:
		var data server.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.addLogEntry(m.styles.Error.Render(fmt.Sprintf("Error: %s (%s)", data.Message, data.Code)))
	}
}

// processCommand parses and dispatches a typed command
func (m *Model) processCommand(input string) tea.Cmd {
	input = strings.TrimPrefix(input, "/")
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch command {
	case "help":
		m.showHelp()
	case "list":
		err = m.client.ListRooms()
	case "create":
		if len(args) == 0 {
			m.addLogEntry(m.styles.Error.Render("Usage: create <name> [maxSeats] [minWager]"))
			return nil
		}
		maxSeats, minWager := 0, 0
		if len(args) > 1 {
			maxSeats, _ = strconv.Atoi(args[1])
		}
		if len(args) > 2 {
			minWager, _ = strconv.Atoi(args[2])
		}
		err = m.client.CreateRoom(args[0], maxSeats, minWager)
	case "join":
		if len(args) == 0 {
			m.addLogEntry(m.styles.Error.Render("Usage: join <roomID>"))
			return nil
		}
		err = m.client.JoinRoom(args[0])
	case "leave":
		err = m.client.LeaveRoom(m.roomID)
	case "ready":
		err = m.client.Ready()
	case "bet":
		if len(args) == 0 {
			m.addLogEntry(m.styles.Error.Render("Usage: bet <amount>"))
			return nil
		}
		amount, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			m.addLogEntry(m.styles.Error.Render("Bet amount must be a number"))
			return nil
		}
		err = m.client.Bet(amount)
	case "hit":
		err = m.client.Hit()
	case "stand":
		err = m.client.Stand()
	case "double":
		err = m.client.Double()
	case "next":
		err = m.client.NextRound()
	case "addbot":
		difficulty := ""
		if len(args) > 0 {
			difficulty = args[0]
		}
		err = m.client.AddBot(difficulty)
	case "kickbot":
		if len(args) == 0 {
			m.addLogEntry(m.styles.Error.Render("Usage: kickbot <seatID>"))
			return nil
		}
		err = m.client.KickBot(args[0])
	case "quit", "exit":
		m.quitting = true
		_ = m.client.Disconnect()
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	default:
		m.addLogEntry(m.styles.Error.Render("Unknown command: " + command))
		return nil
	}

	if err != nil {
		m.addLogEntry(m.styles.Error.Render("Failed to send: " + err.Error()))
	}
	return nil
}

func (m *Model) showHelp() {
	m.addLogEntry(m.styles.Header.Render("Commands"))
	m.addLogEntry("  list                       show open rooms")
	m.addLogEntry("  create <name> [seats] [min] create a room and sit down")
	m.addLogEntry("  join <roomID>              take a seat")
	m.addLogEntry("  leave                      give up your seat")
	m.addLogEntry("  ready                      ready up for the next round")
	m.addLogEntry("  bet <amount>               place your wager")
	m.addLogEntry("  hit / stand / double       play your hand")
	m.addLogEntry("  next                       start the next round")
	m.addLogEntry("  addbot [difficulty]        seat a bot (easy/medium/hard/expert)")
	m.addLogEntry("  kickbot <seatID>           remove a bot")
	m.addLogEntry("  quit                       disconnect and exit")
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	logPane := m.renderLogPane()
	actionPane := m.renderActionPane()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		logPane,
		actionPane,
	)
}

// renderLogPane renders the game log pane
func (m *Model) renderLogPane() string {
	content := strings.Join(m.gameLog, "\n")
	m.logViewport.SetContent(content)

	style := m.styles.LogPane.Width(m.width - 4)
	if m.focusedPane == 0 {
		style = style.BorderForeground(lipgloss.Color("#04B575")) // Green when focused
	}

	return style.Render(m.logViewport.View())
}

// renderActionPane renders the table view and input field
func (m *Model) renderActionPane() string {
	var content strings.Builder

	if m.snapshot != nil {
		content.WriteString(m.renderTable())
		content.WriteString("\n")
	} else {
		content.WriteString(m.styles.TableInfo.Render("Not seated"))
		content.WriteString("\n")
	}

	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(m.styles.Info.Render(
			"Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"))
	} else {
		content.WriteString(m.styles.Info.Render(
			"Tab to scroll log • Enter to submit • Ctrl+C to quit"))
	}

	style := m.styles.ActionPane.Width(m.width - 4)
	if m.focusedPane == 1 {
		style = style.BorderForeground(lipgloss.Color("#04B575")) // Green when focused
	}

	return style.Render(content.String())
}

// renderTable renders the dealer and every seat of the current room
func (m *Model) renderTable() string {
	snap := m.snapshot
	var lines []string

	lines = append(lines, m.styles.TableInfo.Render(
		fmt.Sprintf("%s  •  %s  •  %d cards left", snap.Name, snap.Phase, snap.DeckRemaining)))

	dealer := fmt.Sprintf("Dealer  %s", m.formatCards(snap.Dealer.Hand))
	if snap.Dealer.Score > 0 {
		dealer += fmt.Sprintf("  (%d)", snap.Dealer.Score)
	}
	lines = append(lines, dealer)

	for i, seat := range snap.Seats {
		marker := "  "
		if snap.Phase == game.PhasePlaying && i == snap.ActiveSeatIndex {
			marker = m.styles.Actions.Render("▸ ")
		}
		name := seat.Name
		if seat.ID == m.seatID {
			name = m.styles.Success.Render(name)
		}
		line := fmt.Sprintf("%s%-20s %s", marker, name, m.formatCards(seat.Hand))
		if seat.Score > 0 {
			line += fmt.Sprintf(" (%d)", seat.Score)
		}
		line += fmt.Sprintf("  $%d", seat.Funds)
		if seat.Wager > 0 {
			line += fmt.Sprintf("  bet $%d", seat.Wager)
		}
		line += "  " + string(seat.State)
		if seat.Automated {
			line += m.styles.Info.Render(fmt.Sprintf(" [bot %s %s]", seat.Difficulty, seat.ID))
		} else if !seat.Connected {
			line += m.styles.Warning.Render(" [away]")
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// formatCards formats cards with suit colors
func (m *Model) formatCards(cards []game.CardView) string {
	if len(cards) == 0 {
		return "--"
	}

	var formatted []string
	for _, card := range cards {
		text := card.Rank + card.Suit
		if card.Suit == "♥" || card.Suit == "♦" {
			formatted = append(formatted, m.styles.RedCard.Render(text))
		} else {
			formatted = append(formatted, m.styles.BlackCard.Render(text))
		}
	}

	return "[" + strings.Join(formatted, " ") + "]"
}

// updateDimensions updates component dimensions based on terminal size
func (m *Model) updateDimensions() {
	if m.height <= 0 || m.width <= 0 {
		return
	}

	// The action pane holds the table view, input, and help line plus
	// borders and padding. Ten rows covers a full table.
	actionPaneHeight := 10 + 4

	logHeight := m.height - actionPaneHeight - 1
	if logHeight < 3 {
		logHeight = 3
	}

	m.logViewport.Width = m.width - 4
	m.logViewport.Height = logHeight - 4

	m.actionInput.Width = m.width - 8
}

// addLogEntry appends an entry to the game log and scrolls to it
func (m *Model) addLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	content := strings.Join(m.gameLog, "\n")
	m.logViewport.SetContent(content)

	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Token returns the session token issued by the server, empty before auth
func (m *Model) Token() string {
	return m.token
}
