package server

import (
	"encoding/json"
	"time"

	"github.com/lox/blackjackroom/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	PlayerName string `json:"playerName"`
	Token      string `json:"token,omitempty"`
}

type CreateRoomData struct {
	Name     string `json:"name"`
	MaxSeats int    `json:"maxSeats,omitempty"`
	MinWager int    `json:"minWager,omitempty"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

type BetData struct {
	Amount int `json:"amount"`
}

type AddBotData struct {
	Difficulty string `json:"difficulty,omitempty"`
}

type KickBotData struct {
	SeatID string `json:"seatId"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SeatCount int    `json:"seatCount"`
	MaxSeats  int    `json:"maxSeats"`
	MinWager  int    `json:"minWager"`
	Phase     string `json:"phase"`
}

type RoomListData struct {
	Rooms []RoomInfo `json:"rooms"`
}

type RoomJoinedData struct {
	RoomID   string        `json:"roomId"`
	SeatID   string        `json:"seatId"`
	Rejoined bool          `json:"rejoined,omitempty"`
	State    game.Snapshot `json:"state"`
}

type RoomLeftData struct {
	RoomID string `json:"roomId"`
}

type RoomStateData struct {
	RoomID string        `json:"roomId"`
	State  game.Snapshot `json:"state"`
}

type SeatStatusData struct {
	RoomID    string `json:"roomId"`
	SeatID    string `json:"seatId"`
	Connected bool   `json:"connected"`
}

type NotificationData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}
