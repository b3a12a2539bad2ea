package server

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Session is the durable identity behind a connection. The token outlives
// the WebSocket: a client that reconnects and presents the same token is
// bound back to its seat.
type Session struct {
	Token  string
	Name   string
	RoomID string
	SeatID string
	ConnID string // transport currently speaking for this session
}

// SessionMapper tracks durable sessions and their seat bindings. Transport
// identity (the connection) and game identity (the seat) only ever meet
// here.
type SessionMapper struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionMapper creates an empty session mapper
func NewSessionMapper() *SessionMapper {
	return &SessionMapper{
		sessions: make(map[string]*Session),
	}
}

// Authenticate resolves a session for the given name and optional token. A
// known token resumes the existing session; anything else mints a fresh one.
func (m *SessionMapper) Authenticate(name, token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token != "" {
		if sess, ok := m.sessions[token]; ok {
			sess.Name = name
			return sess
		}
	}

	sess := &Session{
		Token: ulid.Make().String(),
		Name:  name,
	}
	m.sessions[sess.Token] = sess
	return sess
}

// Lookup returns the session for a token, or nil
func (m *SessionMapper) Lookup(token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[token]
}

// BindTransport records the connection currently speaking for the session.
// Rebinding supersedes the previous transport: its later disconnect must
// not touch the seat.
func (m *SessionMapper) BindTransport(token, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[token]; ok {
		sess.ConnID = connID
	}
}

// IsCurrentTransport reports whether connID is the session's live transport
func (m *SessionMapper) IsCurrentTransport(token, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	return ok && sess.ConnID == connID
}

// BindSeat records the session's seat in a room
func (m *SessionMapper) BindSeat(token, roomID, seatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[token]; ok {
		sess.RoomID = roomID
		sess.SeatID = seatID
	}
}

// ClearSeat removes the session's seat binding
func (m *SessionMapper) ClearSeat(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[token]; ok {
		sess.RoomID = ""
		sess.SeatID = ""
	}
}

// ClearRoom drops every seat binding for a destroyed room
func (m *SessionMapper) ClearRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.RoomID == roomID {
			sess.RoomID = ""
			sess.SeatID = ""
		}
	}
}

// NewSeatID mints a seat identifier. Seat IDs appear in broadcasts, so
// they are distinct from session tokens.
func NewSeatID() string {
	return ulid.Make().String()
}
