package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/lox/blackjackroom/internal/game"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	token     string
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	sessions  *SessionMapper
	rooms     *RoomService
	server    *Server
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, sessions *SessionMapper, rooms *RoomService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:       ulid.Make().String(),
		conn:     conn,
		send:     make(chan *Message, 256),
		logger:   logger.WithPrefix("conn"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: sessions,
		rooms:    rooms,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetToken associates this connection with a session token
func (c *Connection) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetToken returns the associated session token
func (c *Connection) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetRoom associates this connection with a room
func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// GetRoom returns the associated room ID
func (c *Connection) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeListRooms:
		c.handleListRooms()

	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse create room data")
			return
		}
		c.handleCreateRoom(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data.RoomID)

	case MessageTypeLeaveRoom:
		c.handleLeaveRoom()

	case MessageTypeReady:
		c.handleSeatAction(msg.Type, 0)

	case MessageTypeBet:
		var data BetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse bet data")
			return
		}
		c.handleSeatAction(msg.Type, data.Amount)

	case MessageTypeHit, MessageTypeStand, MessageTypeDouble, MessageTypeNextRound:
		c.handleSeatAction(msg.Type, 0)

	case MessageTypeAddBot:
		var data AddBotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse add bot data")
			return
		}
		c.handleAddBot(data)

	case MessageTypeKickBot:
		var data KickBotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse kick bot data")
			return
		}
		c.handleKickBot(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg)
}

// sendReject maps a game rejection onto the wire error format
func (c *Connection) sendReject(err error) {
	if re, ok := game.AsReject(err); ok {
		c.sendError(string(re.Code), re.Reason)
		return
	}
	c.sendError("internal_error", err.Error())
}

// session resolves the connection's authenticated session, or nil
func (c *Connection) session() *Session {
	token := c.GetToken()
	if token == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return nil
	}
	sess := c.sessions.Lookup(token)
	if sess == nil {
		c.sendError("not_authenticated", "Session expired")
		return nil
	}
	return sess
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("Auth request", "playerName", data.PlayerName)

	if data.PlayerName == "" {
		c.sendError("invalid_auth", "Player name required")
		return
	}

	sess := c.sessions.Authenticate(data.PlayerName, data.Token)
	c.SetToken(sess.Token)

	// This connection speaks for the session now. Any earlier transport
	// still holding the token is closed, and its eventual unregister must
	// not flip the seat back to disconnected.
	c.sessions.BindTransport(sess.Token, c.id)
	if c.server != nil {
		c.server.closeSuperseded(sess.Token, c)
	}

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		Token:   sess.Token,
	})
	_ = c.SendMessage(response)

	// A returning session with a live seat is put straight back into its
	// room.
	if snap, ok := c.rooms.Resume(sess); ok {
		c.SetRoom(sess.RoomID)
		rejoined, _ := NewMessage(MessageTypeRoomJoined, RoomJoinedData{
			RoomID:   sess.RoomID,
			SeatID:   sess.SeatID,
			Rejoined: true,
			State:    snap,
		})
		_ = c.SendMessage(rejoined)
	}
}

func (c *Connection) handleListRooms() {
	response, _ := NewMessage(MessageTypeRoomList, RoomListData{
		Rooms: c.rooms.ListRooms(),
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleCreateRoom(data CreateRoomData) {
	sess := c.session()
	if sess == nil {
		return
	}
	if data.Name == "" {
		c.sendError("invalid_message", "Room name required")
		return
	}

	roomID := c.rooms.CreateRoom(data.Name, data.MaxSeats, data.MinWager)
	c.handleJoinRoom(roomID)
}

func (c *Connection) handleJoinRoom(roomID string) {
	sess := c.session()
	if sess == nil {
		return
	}

	seatID, snap, err := c.rooms.JoinRoom(roomID, sess)
	if err != nil {
		c.sendReject(err)
		return
	}
	c.SetRoom(roomID)

	response, _ := NewMessage(MessageTypeRoomJoined, RoomJoinedData{
		RoomID: roomID,
		SeatID: seatID,
		State:  snap,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleLeaveRoom() {
	sess := c.session()
	if sess == nil {
		return
	}
	roomID := sess.RoomID

	if err := c.rooms.LeaveRoom(sess); err != nil {
		c.sendReject(err)
		return
	}
	c.SetRoom("")

	response, _ := NewMessage(MessageTypeRoomLeft, RoomLeftData{RoomID: roomID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleSeatAction(msgType MessageType, amount int) {
	sess := c.session()
	if sess == nil {
		return
	}
	if sess.RoomID == "" {
		c.sendError("room_not_found", "Not seated in a room")
		return
	}

	var err error
	switch msgType {
	case MessageTypeReady:
		err = c.rooms.Ready(sess.RoomID, sess.SeatID)
	case MessageTypeBet:
		err = c.rooms.Bet(sess.RoomID, sess.SeatID, amount)
	case MessageTypeHit:
		err = c.rooms.Hit(sess.RoomID, sess.SeatID)
	case MessageTypeStand:
		err = c.rooms.Stand(sess.RoomID, sess.SeatID)
	case MessageTypeDouble:
		err = c.rooms.Double(sess.RoomID, sess.SeatID)
	case MessageTypeNextRound:
		err = c.rooms.NextRound(sess.RoomID)
	}
	if err != nil {
		c.sendReject(err)
	}
}

func (c *Connection) handleAddBot(data AddBotData) {
	sess := c.session()
	if sess == nil {
		return
	}
	if sess.RoomID == "" {
		c.sendError("room_not_found", "Not seated in a room")
		return
	}

	if _, err := c.rooms.AddBot(sess.RoomID, data.Difficulty); err != nil {
		c.sendReject(err)
	}
}

func (c *Connection) handleKickBot(data KickBotData) {
	sess := c.session()
	if sess == nil {
		return
	}
	if sess.RoomID == "" {
		c.sendError("room_not_found", "Not seated in a room")
		return
	}

	if err := c.rooms.KickBot(sess.RoomID, data.SeatID); err != nil {
		c.sendReject(err)
	}
}
