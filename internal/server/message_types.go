package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeAuth       MessageType = "auth"
	MessageTypeListRooms  MessageType = "list_rooms"
	MessageTypeCreateRoom MessageType = "create_room"
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeLeaveRoom  MessageType = "leave_room"
	MessageTypeReady      MessageType = "ready"
	MessageTypeBet        MessageType = "bet"
	MessageTypeHit        MessageType = "hit"
	MessageTypeStand      MessageType = "stand"
	MessageTypeDouble     MessageType = "double"
	MessageTypeNextRound  MessageType = "next_round"
	MessageTypeAddBot     MessageType = "add_bot"
	MessageTypeKickBot    MessageType = "kick_bot"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypeRoomJoined   MessageType = "room_joined"
	MessageTypeRoomLeft     MessageType = "room_left"
	MessageTypeRoomState    MessageType = "room_state"
	MessageTypeSeatStatus   MessageType = "seat_status"
	MessageTypeNotification MessageType = "notification"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
