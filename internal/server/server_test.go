package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackroom/internal/game"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

type wsFixture struct {
	srv   *Server
	rooms *RoomService
	url   string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	sessions := NewSessionMapper()
	rooms := NewRoomService(sessions, RoomServiceOptions{
		Seed:     31,
		MaxSeats: 5,
		MinWager: 100,
		Logger:   logger,
	})
	srv := NewServer("127.0.0.1:0", sessions, rooms, logger)
	go srv.run()
	t.Cleanup(func() { _ = srv.Stop() })

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return &wsFixture{
		srv:   srv,
		rooms: rooms,
		url:   "ws" + strings.TrimPrefix(ts.URL, "http"),
	}
}

func (f *wsFixture) dial(t *testing.T) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func dialTestServer(t *testing.T) (*Server, *wsClient) {
	t.Helper()
	f := newWSFixture(t)
	return f.srv, f.dial(t)
}

func (c *wsClient) send(mt MessageType, data interface{}) {
	c.t.Helper()
	msg, err := NewMessage(mt, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// expect reads messages until one of the wanted type arrives, skipping
// interleaved broadcasts.
func (c *wsClient) expect(mt MessageType) *Message {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == mt {
			return &msg
		}
		if msg.Type == MessageTypeError {
			var ed ErrorData
			_ = json.Unmarshal(msg.Data, &ed)
			c.t.Fatalf("expected %s, got error %s: %s", mt, ed.Code, ed.Message)
		}
	}
}

func TestWebSocketAuthAndRoomFlow(t *testing.T) {
	_, client := dialTestServer(t)

	client.send(MessageTypeAuth, AuthData{PlayerName: "alice"})
	authMsg := client.expect(MessageTypeAuthResponse)
	var auth AuthResponseData
	require.NoError(t, json.Unmarshal(authMsg.Data, &auth))
	require.True(t, auth.Success)
	require.NotEmpty(t, auth.Token)

	client.send(MessageTypeCreateRoom, CreateRoomData{Name: "Test Table"})
	joinedMsg := client.expect(MessageTypeRoomJoined)
	var joined RoomJoinedData
	require.NoError(t, json.Unmarshal(joinedMsg.Data, &joined))
	require.NotEmpty(t, joined.RoomID)
	require.NotEmpty(t, joined.SeatID)
	assert.Equal(t, game.PhaseWaiting, joined.State.Phase)

	client.send(MessageTypeListRooms, struct{}{})
	listMsg := client.expect(MessageTypeRoomList)
	var list RoomListData
	require.NoError(t, json.Unmarshal(listMsg.Data, &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "Test Table", list.Rooms[0].Name)

	// Readying the lone seat starts betting and broadcasts the new state.
	client.send(MessageTypeReady, struct{}{})
	stateMsg := client.expect(MessageTypeRoomState)
	var state RoomStateData
	require.NoError(t, json.Unmarshal(stateMsg.Data, &state))
	assert.Equal(t, game.PhaseBetting, state.State.Phase)

	client.send(MessageTypeLeaveRoom, struct{}{})
	client.expect(MessageTypeRoomLeft)
}

func TestWebSocketRequiresAuth(t *testing.T) {
	_, client := dialTestServer(t)

	client.send(MessageTypeCreateRoom, CreateRoomData{Name: "Nope"})

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, client.conn.SetReadDeadline(deadline))
	var msg Message
	require.NoError(t, client.conn.ReadJSON(&msg))
	require.Equal(t, MessageTypeError, msg.Type)

	var ed ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "not_authenticated", ed.Code)
}

func TestWebSocketBadPayloadRejected(t *testing.T) {
	_, client := dialTestServer(t)

	require.NoError(t, client.conn.WriteJSON(map[string]interface{}{
		"type": "bet",
		"data": "not-an-object",
	}))

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, client.conn.SetReadDeadline(deadline))
	var msg Message
	require.NoError(t, client.conn.ReadJSON(&msg))
	require.Equal(t, MessageTypeError, msg.Type)

	var ed ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "invalid_message", ed.Code)
}

func TestReconnectSupersedesStaleTransport(t *testing.T) {
	f := newWSFixture(t)

	c1 := f.dial(t)
	c1.send(MessageTypeAuth, AuthData{PlayerName: "alice"})
	authMsg := c1.expect(MessageTypeAuthResponse)
	var auth AuthResponseData
	require.NoError(t, json.Unmarshal(authMsg.Data, &auth))
	require.NotEmpty(t, auth.Token)

	c1.send(MessageTypeCreateRoom, CreateRoomData{Name: "Lounge"})
	joinedMsg := c1.expect(MessageTypeRoomJoined)
	var joined RoomJoinedData
	require.NoError(t, json.Unmarshal(joinedMsg.Data, &joined))

	// Resuming the token on a fresh connection takes over the seat and
	// closes c1 server-side.
	c2 := f.dial(t)
	c2.send(MessageTypeAuth, AuthData{PlayerName: "alice", Token: auth.Token})
	rejoinedMsg := c2.expect(MessageTypeRoomJoined)
	var rejoined RoomJoinedData
	require.NoError(t, json.Unmarshal(rejoinedMsg.Data, &rejoined))
	assert.True(t, rejoined.Rejoined)
	assert.Equal(t, joined.SeatID, rejoined.SeatID)

	require.Eventually(t, func() bool {
		return f.srv.ConnectedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// c1's unregister has landed. A superseded transport's disconnect must
	// not touch the seat, and the live transport still commands it.
	c2.send(MessageTypeReady, struct{}{})
	stateMsg := c2.expect(MessageTypeRoomState)
	var state RoomStateData
	require.NoError(t, json.Unmarshal(stateMsg.Data, &state))
	assert.Equal(t, game.PhaseBetting, state.State.Phase)

	snap, err := f.rooms.SnapshotRoom(joined.RoomID)
	require.NoError(t, err)
	require.Len(t, snap.Seats, 1)
	assert.True(t, snap.Seats[0].Connected)
}
