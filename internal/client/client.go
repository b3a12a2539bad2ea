package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjackroom/internal/server" // Reuse message types
)

// Client represents a WebSocket client for the blackjack server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	closeOnce sync.Once

	// Receive delivers every server message in arrival order. The channel
	// closes when the connection drops.
	Receive chan *server.Message
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL: serverURL,
		send:      make(chan *server.Message, 256),
		Receive:   make(chan *server.Message, 256),
		logger:    logger.WithPrefix("client"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect() error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Convert http/https to ws/wss
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close()
			c.connected = false
		}

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send queues a message for the server
func (c *Client) Send(messageType server.MessageType, data interface{}) error {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.Receive)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg server.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type)

		select {
		case c.Receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Auth authenticates with the server. A previously issued token resumes the
// session it belongs to.
func (c *Client) Auth(playerName, token string) error {
	return c.Send(server.MessageTypeAuth, server.AuthData{
		PlayerName: playerName,
		Token:      token,
	})
}

// ListRooms requests the current room list
func (c *Client) ListRooms() error {
	return c.Send(server.MessageTypeListRooms, struct{}{})
}

// CreateRoom creates a room and seats the caller in it
func (c *Client) CreateRoom(name string, maxSeats, minWager int) error {
	return c.Send(server.MessageTypeCreateRoom, server.CreateRoomData{
		Name:     name,
		MaxSeats: maxSeats,
		MinWager: minWager,
	})
}

// JoinRoom takes a seat in an existing room
func (c *Client) JoinRoom(roomID string) error {
	return c.Send(server.MessageTypeJoinRoom, server.JoinRoomData{RoomID: roomID})
}

// LeaveRoom gives up the caller's seat
func (c *Client) LeaveRoom(roomID string) error {
	return c.Send(server.MessageTypeLeaveRoom, server.LeaveRoomData{RoomID: roomID})
}

// Ready marks the caller ready for the next round
func (c *Client) Ready() error {
	return c.Send(server.MessageTypeReady, struct{}{})
}

// Bet places a wager for the current round
func (c *Client) Bet(amount int) error {
	return c.Send(server.MessageTypeBet, server.BetData{Amount: amount})
}

// Hit requests another card
func (c *Client) Hit() error {
	return c.Send(server.MessageTypeHit, struct{}{})
}

// Stand ends the caller's turn
func (c *Client) Stand() error {
	return c.Send(server.MessageTypeStand, struct{}{})
}

// Double doubles the caller's wager and draws a final card
func (c *Client) Double() error {
	return c.Send(server.MessageTypeDouble, struct{}{})
}

// NextRound resets a settled room for another round
func (c *Client) NextRound() error {
	return c.Send(server.MessageTypeNextRound, struct{}{})
}

// AddBot seats an automated player in the caller's room
func (c *Client) AddBot(difficulty string) error {
	return c.Send(server.MessageTypeAddBot, server.AddBotData{Difficulty: difficulty})
}

// KickBot removes an automated player from the caller's room
func (c *Client) KickBot(seatID string) error {
	return c.Send(server.MessageTypeKickBot, server.KickBotData{SeatID: seatID})
}
